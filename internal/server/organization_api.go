package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
	orgservices "github.com/jacksonlee411/Roots-And-Branches/modules/organization/services"
)

var validate = validator.New()

// The /reactivate alias is retired; clients move to /activate.
const (
	reactivateSunset  = "2026-01-01T00:00:00Z"
	reactivateMessage = "Use /activate instead of /reactivate"
)

type organizationAPI struct {
	svc orgservices.OrganizationCommandService
	log *zap.Logger
}

type createOrganizationRequest struct {
	Code            string `json:"code" validate:"required,max=16"`
	Name            string `json:"name" validate:"required,max=200"`
	UnitType        string `json:"unitType" validate:"omitempty,max=64"`
	Description     string `json:"description" validate:"omitempty,max=1000"`
	SortOrder       int    `json:"sortOrder"`
	ParentCode      string `json:"parentCode" validate:"omitempty,max=16"`
	EffectiveDate   string `json:"effectiveDate" validate:"required,datetime=2006-01-02"`
	BusinessStatus  string `json:"businessStatus" validate:"omitempty,oneof=ACTIVE SUSPENDED"`
	OperationReason string `json:"operationReason" validate:"omitempty,max=500"`
}

type updateOrganizationRequest struct {
	EffectiveDate   string  `json:"effectiveDate" validate:"required,datetime=2006-01-02"`
	OperationReason string  `json:"operationReason" validate:"required,max=500"`
	Name            *string `json:"name" validate:"omitempty,max=200"`
	UnitType        *string `json:"unitType" validate:"omitempty,max=64"`
	Description     *string `json:"description" validate:"omitempty,max=1000"`
	SortOrder       *int    `json:"sortOrder"`
	ParentCode      *string `json:"parentCode" validate:"omitempty,max=16"`
}

type changeStatusRequest struct {
	EffectiveDate   string `json:"effectiveDate" validate:"required,datetime=2006-01-02"`
	OperationReason string `json:"operationReason" validate:"required,max=500"`
}

type softDeleteRequest struct {
	OperationReason string `json:"operationReason" validate:"required,max=500"`
}

type versionResponse struct {
	types.VersionSnapshot
	OperationType   types.OperationType `json:"operationType"`
	OperationReason string              `json:"operationReason,omitempty"`
	CreatedAt       string              `json:"createdAt"`
	UpdatedAt       string              `json:"updatedAt"`
}

type timelineEntryResponse struct {
	versionResponse
	LifecycleState types.LifecycleState `json:"lifecycleState"`
	IsCurrent      bool                 `json:"isCurrent"`
	IsFuture       bool                 `json:"isFuture"`
}

func newVersionResponse(v types.OrganizationVersion) versionResponse {
	return versionResponse{
		VersionSnapshot: v.Snapshot(),
		OperationType:   v.OperationType,
		OperationReason: v.OperationReason,
		CreatedAt:       v.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:       v.UpdatedAt.UTC().Format(timestampLayout),
	}
}

func newTimelineEntryResponse(entry orgservices.TimelineEntry) timelineEntryResponse {
	return timelineEntryResponse{
		versionResponse: newVersionResponse(entry.Version),
		LifecycleState:  entry.State,
		IsCurrent:       entry.IsCurrent,
		IsFuture:        entry.IsFuture,
	}
}

func (api *organizationAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "tenant missing", nil)
		return
	}

	var req createOrganizationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := api.svc.Create(r.Context(), tenant.ID, orgservices.CreateOrganizationRequest{
		Code:            req.Code,
		Name:            req.Name,
		UnitType:        req.UnitType,
		Description:     req.Description,
		SortOrder:       req.SortOrder,
		ParentCode:      req.ParentCode,
		EffectiveDate:   req.EffectiveDate,
		BusinessStatus:  types.BusinessStatus(req.BusinessStatus),
		OperationReason: req.OperationReason,
		Actor:           actorFrom(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("ETag", created.RecordID)
	writeSuccess(w, r, http.StatusCreated, newVersionResponse(created), "organization created")
}

func (api *organizationAPI) handleUpdate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "tenant missing", nil)
		return
	}

	var req updateOrganizationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ifMatch := strings.Trim(strings.TrimSpace(r.Header.Get("If-Match")), `"`)

	updated, err := api.svc.Update(r.Context(), tenant.ID, orgservices.UpdateOrganizationRequest{
		Code:            r.PathValue("code"),
		IfMatch:         ifMatch,
		EffectiveDate:   req.EffectiveDate,
		OperationReason: req.OperationReason,
		Name:            req.Name,
		UnitType:        req.UnitType,
		Description:     req.Description,
		SortOrder:       req.SortOrder,
		ParentCode:      req.ParentCode,
		Actor:           actorFrom(r),
	})
	if err != nil {
		// A stale If-Match is a failed precondition; every other
		// conflict keeps 409.
		if derr, ok := errorAs(err); ok && derr.Code == "CONFLICT" && ifMatch != "" && derr.CurrentRecordID != "" && ifMatch != derr.CurrentRecordID {
			writeErrorCode(w, r, http.StatusPreconditionFailed, string(derr.Code), derr.Message,
				map[string]any{"currentRecordId": derr.CurrentRecordID})
			return
		}
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("ETag", updated.RecordID)
	writeSuccess(w, r, http.StatusOK, newVersionResponse(updated), "organization updated")
}

func (api *organizationAPI) handleSuspend(w http.ResponseWriter, r *http.Request) {
	api.handleStatusChange(w, r, false)
}

func (api *organizationAPI) handleActivate(w http.ResponseWriter, r *http.Request) {
	api.handleStatusChange(w, r, true)
}

func (api *organizationAPI) handleStatusChange(w http.ResponseWriter, r *http.Request, activate bool) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "tenant missing", nil)
		return
	}

	var req changeStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	serviceReq := orgservices.ChangeStatusRequest{
		Code:            r.PathValue("code"),
		EffectiveDate:   req.EffectiveDate,
		OperationReason: req.OperationReason,
		Actor:           actorFrom(r),
	}

	var (
		version types.OrganizationVersion
		err     error
		message string
	)
	if activate {
		version, err = api.svc.Activate(r.Context(), tenant.ID, serviceReq)
		message = "organization activated"
	} else {
		version, err = api.svc.Suspend(r.Context(), tenant.ID, serviceReq)
		message = "organization suspended"
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("ETag", version.RecordID)
	writeSuccess(w, r, http.StatusOK, newVersionResponse(version), message)
}

// handleReactivateGone serves the retired /reactivate alias. The command
// core is never invoked; callers get the successor route.
func (api *organizationAPI) handleReactivateGone(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	w.Header().Set("Deprecation", "true")
	w.Header().Set("Sunset", reactivateSunset)
	w.Header().Set("Link", `</api/v1/organization-units/`+code+`/activate>; rel="successor-version"`)
	writeErrorCode(w, r, http.StatusGone, "VALIDATION_FAILED", reactivateMessage, map[string]any{
		"successor": "/api/v1/organization-units/" + code + "/activate",
	})
}

func (api *organizationAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "tenant missing", nil)
		return
	}

	var req softDeleteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	deleted, err := api.svc.SoftDelete(r.Context(), tenant.ID, orgservices.SoftDeleteRequest{
		Code:            r.PathValue("code"),
		OperationReason: req.OperationReason,
		Actor:           actorFrom(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	versions := make([]versionResponse, 0, len(deleted))
	for _, v := range deleted {
		versions = append(versions, newVersionResponse(v))
	}
	writeSuccess(w, r, http.StatusOK, map[string]any{"deletedVersions": versions}, "organization deleted")
}

func (api *organizationAPI) handleTimeline(w http.ResponseWriter, r *http.Request) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "tenant missing", nil)
		return
	}

	entries, err := api.svc.Timeline(r.Context(), tenant.ID, r.PathValue("code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]timelineEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, newTimelineEntryResponse(entry))
	}
	writeSuccess(w, r, http.StatusOK, map[string]any{"timeline": out}, "")
}

type auditRecordResponse struct {
	RecordID        string                 `json:"recordId,omitempty"`
	Code            string                 `json:"code"`
	OperationType   types.OperationType    `json:"operationType"`
	OperatedByID    string                 `json:"operatedById"`
	OperatedByName  string                 `json:"operatedByName"`
	OperationReason string                 `json:"operationReason,omitempty"`
	Timestamp       string                 `json:"timestamp"`
	Success         bool                   `json:"success"`
	ErrorCode       string                 `json:"errorCode,omitempty"`
	BeforeState     *types.VersionSnapshot `json:"beforeState,omitempty"`
	AfterState      *types.VersionSnapshot `json:"afterState,omitempty"`
}

func (api *organizationAPI) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "tenant missing", nil)
		return
	}

	records, err := api.svc.AuditTrail(r.Context(), tenant.ID, r.PathValue("code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]auditRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, auditRecordResponse{
			RecordID:        rec.RecordID,
			Code:            rec.Code,
			OperationType:   rec.OperationType,
			OperatedByID:    rec.OperatedBy.ID,
			OperatedByName:  rec.OperatedBy.DisplayName,
			OperationReason: rec.OperationReason,
			Timestamp:       rec.Timestamp.UTC().Format(timestampLayout),
			Success:         rec.Success,
			ErrorCode:       rec.ErrorCode,
			BeforeState:     rec.BeforeState,
			AfterState:      rec.AfterState,
		})
	}
	writeSuccess(w, r, http.StatusOK, map[string]any{"audit": out}, "")
}

func (api *organizationAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "tenant missing", nil)
		return
	}

	asOf := strings.TrimSpace(r.URL.Query().Get("asOf"))
	if asOf == "" {
		asOf = todayUTC()
	}

	entry, err := api.svc.AsOf(r.Context(), tenant.ID, r.PathValue("code"), asOf)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("ETag", entry.Version.RecordID)
	writeSuccess(w, r, http.StatusOK, newTimelineEntryResponse(entry), "")
}

func actorFrom(r *http.Request) types.Actor {
	principal, _ := currentPrincipal(r.Context())
	return types.Actor{ID: principal.ID, DisplayName: principal.DisplayName, Role: principal.RoleSlug}
}

// decodeBody decodes and validates a JSON body, writing the error response
// itself when the payload is unusable.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "malformed json body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		details := map[string]any{}
		if fieldErrs, ok := errors.AsType[validator.ValidationErrors](err); ok {
			for _, fe := range fieldErrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		writeErrorCode(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "request validation failed", details)
		return false
	}
	return true
}

func todayUTC() string {
	return time.Now().UTC().Format("2006-01-02")
}
