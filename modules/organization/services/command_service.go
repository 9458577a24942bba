package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/lifecycle"
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/ports"
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
	"github.com/jacksonlee411/Roots-And-Branches/pkg/domainerr"
	"github.com/jacksonlee411/Roots-And-Branches/pkg/orgcode"
	"github.com/jacksonlee411/Roots-And-Branches/pkg/uuidv7"
)

const (
	dateLayout       = "2006-01-02"
	minReasonRunes   = 4
	maxParentDepth   = 16
	defaultStoreWait = 5 * time.Second
)

var (
	newRecordID = uuidv7.NewString
	nowFn       = time.Now
)

type OrganizationCommandService interface {
	Create(ctx context.Context, tenantID string, req CreateOrganizationRequest) (types.OrganizationVersion, error)
	Update(ctx context.Context, tenantID string, req UpdateOrganizationRequest) (types.OrganizationVersion, error)
	Activate(ctx context.Context, tenantID string, req ChangeStatusRequest) (types.OrganizationVersion, error)
	Suspend(ctx context.Context, tenantID string, req ChangeStatusRequest) (types.OrganizationVersion, error)
	SoftDelete(ctx context.Context, tenantID string, req SoftDeleteRequest) ([]types.OrganizationVersion, error)
	Timeline(ctx context.Context, tenantID string, code string) ([]TimelineEntry, error)
	AsOf(ctx context.Context, tenantID string, code string, asOf string) (TimelineEntry, error)
	AuditTrail(ctx context.Context, tenantID string, code string) ([]types.AuditRecord, error)
}

type CreateOrganizationRequest struct {
	Code            string
	Name            string
	UnitType        string
	Description     string
	SortOrder       int
	ParentCode      string
	EffectiveDate   string
	BusinessStatus  types.BusinessStatus
	OperationReason string
	Actor           types.Actor
}

type UpdateOrganizationRequest struct {
	Code            string
	IfMatch         string
	EffectiveDate   string
	OperationReason string
	Name            *string
	UnitType        *string
	Description     *string
	SortOrder       *int
	ParentCode      *string
	Actor           types.Actor
}

type ChangeStatusRequest struct {
	Code            string
	EffectiveDate   string
	OperationReason string
	Actor           types.Actor
}

type SoftDeleteRequest struct {
	Code            string
	OperationReason string
	Actor           types.Actor
}

// TimelineEntry is a version row plus its derived lifecycle facts, computed
// by the same classifier the write path uses.
type TimelineEntry struct {
	Version   types.OrganizationVersion
	State     types.LifecycleState
	IsCurrent bool
	IsFuture  bool
}

type organizationCommandService struct {
	store        ports.VersionStore
	audit        *AuditRecorder
	events       ports.EventSink
	policy       MutationPolicy
	log          *zap.Logger
	locks        *codeLocks
	storeTimeout time.Duration
}

func NewOrganizationCommandService(store ports.VersionStore, audit *AuditRecorder, events ports.EventSink, policy MutationPolicy, log *zap.Logger, storeTimeout time.Duration) OrganizationCommandService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreWait
	}
	return &organizationCommandService{
		store:        store,
		audit:        audit,
		events:       events,
		policy:       policy,
		log:          log,
		locks:        newCodeLocks(),
		storeTimeout: storeTimeout,
	}
}

func (s *organizationCommandService) Create(ctx context.Context, tenantID string, req CreateOrganizationRequest) (types.OrganizationVersion, error) {
	effectiveDate, err := validateDate(req.EffectiveDate)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	code, err := normalizeCode(req.Code)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return types.OrganizationVersion{}, domainerr.NewValidation("name is required")
	}
	status := req.BusinessStatus
	if status == "" {
		status = types.StatusActive
	}
	if status != types.StatusActive && status != types.StatusSuspended {
		return types.OrganizationVersion{}, domainerr.NewValidation("businessStatus must be ACTIVE or SUSPENDED")
	}

	lock := s.locks.acquire(code)
	defer s.locks.release(code, lock)

	latest, err := s.latest(ctx, tenantID, code)
	switch {
	case err == nil:
		if latest.IsDeleted {
			return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationCreate, req.Actor,
				domainerr.New(domainerr.CodeOrganizationDeleted, "code is terminal, soft-deleted"))
		}
		return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationCreate, req.Actor,
			domainerr.New(domainerr.CodeDuplicateCode, "a live version already exists for this code"))
	case errors.Is(err, ports.ErrCodeNotFound):
		// First version for this code.
	default:
		return types.OrganizationVersion{}, err
	}

	var parentCode *string
	if strings.TrimSpace(req.ParentCode) != "" {
		normalized, err := s.validateParent(ctx, tenantID, req.ParentCode, code, effectiveDate)
		if err != nil {
			return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationCreate, req.Actor, err)
		}
		parentCode = &normalized
	}

	if err := s.resolvePolicy(tenantID, types.OperationCreate, code, req.UnitType, effectiveDate, req.Actor); err != nil {
		return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationCreate, req.Actor, err)
	}

	recordID, err := newRecordID()
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	now := nowFn().UTC()
	version := types.OrganizationVersion{
		RecordID:        recordID,
		Code:            code,
		ParentCode:      parentCode,
		Name:            name,
		UnitType:        strings.TrimSpace(req.UnitType),
		Description:     strings.TrimSpace(req.Description),
		SortOrder:       req.SortOrder,
		BusinessStatus:  status,
		EffectiveDate:   effectiveDate,
		CreatedAt:       now,
		UpdatedAt:       now,
		OperationType:   types.OperationCreate,
		OperatedBy:      req.Actor,
		OperationReason: strings.TrimSpace(req.OperationReason),
	}

	created, err := s.append(ctx, tenantID, version, "")
	if err != nil {
		return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationCreate, req.Actor, err)
	}

	s.commitSideEffects(tenantID, nil, created)
	s.log.Info("organization created",
		zap.String("code", created.Code),
		zap.String("record_id", created.RecordID),
		zap.String("effective_date", created.EffectiveDate),
	)
	return created, nil
}

func (s *organizationCommandService) Update(ctx context.Context, tenantID string, req UpdateOrganizationRequest) (types.OrganizationVersion, error) {
	effectiveDate, err := validateDate(req.EffectiveDate)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	code, err := normalizeCode(req.Code)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	if err := validateReason(req.OperationReason); err != nil {
		return types.OrganizationVersion{}, err
	}

	lock := s.locks.acquire(code)
	defer s.locks.release(code, lock)

	latest, err := s.latest(ctx, tenantID, code)
	if err != nil {
		return types.OrganizationVersion{}, notFoundOrErr(err)
	}
	if latest.IsDeleted {
		return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationUpdate, req.Actor,
			domainerr.New(domainerr.CodeOrganizationDeleted, "code is terminal, soft-deleted"))
	}
	if req.IfMatch != "" && req.IfMatch != latest.RecordID {
		return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationUpdate, req.Actor,
			domainerr.NewConflict("If-Match does not match the current version", latest.RecordID))
	}
	if effectiveDate < latest.EffectiveDate {
		return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationUpdate, req.Actor,
			domainerr.Newf(domainerr.CodeEffectiveDateBackdated, "effectiveDate %s precedes latest version's %s", effectiveDate, latest.EffectiveDate))
	}
	if err := lifecycle.CheckTransition(lifecycle.ClassifyVersion(latest, effectiveDate), types.OperationUpdate); err != nil {
		return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationUpdate, req.Actor, err)
	}

	next := latest
	next.OperationType = types.OperationUpdate
	next.OperationReason = strings.TrimSpace(req.OperationReason)
	next.OperatedBy = req.Actor
	next.EffectiveDate = effectiveDate
	next.EndDate = nil
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return types.OrganizationVersion{}, domainerr.NewValidation("name is required")
		}
		next.Name = name
	}
	if req.UnitType != nil {
		next.UnitType = strings.TrimSpace(*req.UnitType)
	}
	if req.Description != nil {
		next.Description = strings.TrimSpace(*req.Description)
	}
	if req.SortOrder != nil {
		next.SortOrder = *req.SortOrder
	}
	if req.ParentCode != nil {
		if strings.TrimSpace(*req.ParentCode) == "" {
			next.ParentCode = nil
		} else {
			normalized, err := s.validateParent(ctx, tenantID, *req.ParentCode, code, effectiveDate)
			if err != nil {
				return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationUpdate, req.Actor, err)
			}
			next.ParentCode = &normalized
		}
	}

	if err := s.resolvePolicy(tenantID, types.OperationUpdate, code, next.UnitType, effectiveDate, req.Actor); err != nil {
		return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationUpdate, req.Actor, err)
	}

	recordID, err := newRecordID()
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	now := nowFn().UTC()
	next.RecordID = recordID
	next.CreatedAt = now
	next.UpdatedAt = now

	updated, err := s.append(ctx, tenantID, next, latest.RecordID)
	if err != nil {
		return types.OrganizationVersion{}, s.fail(tenantID, code, types.OperationUpdate, req.Actor, err)
	}

	s.commitSideEffects(tenantID, &latest, updated)
	s.log.Info("organization updated",
		zap.String("code", updated.Code),
		zap.String("record_id", updated.RecordID),
		zap.String("superseded_record_id", latest.RecordID),
	)
	return updated, nil
}

func (s *organizationCommandService) Activate(ctx context.Context, tenantID string, req ChangeStatusRequest) (types.OrganizationVersion, error) {
	return s.changeStatus(ctx, tenantID, req, types.StatusActive, types.OperationReactivate)
}

func (s *organizationCommandService) Suspend(ctx context.Context, tenantID string, req ChangeStatusRequest) (types.OrganizationVersion, error) {
	return s.changeStatus(ctx, tenantID, req, types.StatusSuspended, types.OperationSuspend)
}

func (s *organizationCommandService) changeStatus(ctx context.Context, tenantID string, req ChangeStatusRequest, target types.BusinessStatus, op types.OperationType) (types.OrganizationVersion, error) {
	effectiveDate, err := validateDate(req.EffectiveDate)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	code, err := normalizeCode(req.Code)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	if err := validateReason(req.OperationReason); err != nil {
		return types.OrganizationVersion{}, err
	}
	reason := strings.TrimSpace(req.OperationReason)

	lock := s.locks.acquire(code)
	defer s.locks.release(code, lock)

	latest, err := s.latest(ctx, tenantID, code)
	if err != nil {
		return types.OrganizationVersion{}, notFoundOrErr(err)
	}
	if latest.IsDeleted {
		return types.OrganizationVersion{}, s.fail(tenantID, code, op, req.Actor,
			domainerr.New(domainerr.CodeOrganizationDeleted, "code is terminal, soft-deleted"))
	}
	if effectiveDate < latest.EffectiveDate {
		return types.OrganizationVersion{}, s.fail(tenantID, code, op, req.Actor,
			domainerr.Newf(domainerr.CodeEffectiveDateBackdated, "effectiveDate %s precedes latest version's %s", effectiveDate, latest.EffectiveDate))
	}

	// The version in effect at the requested date decides legality. With
	// monotonic effective dates that version is always the latest row.
	stateAtRequest := lifecycle.ClassifyVersion(latest, effectiveDate)
	if err := lifecycle.CheckTransition(stateAtRequest, op); err != nil {
		return types.OrganizationVersion{}, s.fail(tenantID, code, op, req.Actor, err)
	}

	if err := s.resolvePolicy(tenantID, op, code, latest.UnitType, effectiveDate, req.Actor); err != nil {
		return types.OrganizationVersion{}, s.fail(tenantID, code, op, req.Actor, err)
	}

	today := nowFn().UTC().Format(dateLayout)
	if effectiveDate == latest.EffectiveDate && lifecycle.ClassifyVersion(latest, today) == types.StatePlanned {
		// A planned version at the same date is adjusted in place: it
		// has not taken effect yet, so no new interval is carved out.
		updated, err := s.setPlannedStatus(ctx, tenantID, latest.RecordID, target, op, reason, req.Actor)
		if err != nil {
			return types.OrganizationVersion{}, s.fail(tenantID, code, op, req.Actor, err)
		}
		s.commitSideEffects(tenantID, &latest, updated)
		s.log.Info("planned version status adjusted in place",
			zap.String("code", code),
			zap.String("record_id", updated.RecordID),
			zap.String("operation", string(op)),
		)
		return updated, nil
	}

	recordID, err := newRecordID()
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	now := nowFn().UTC()
	next := latest
	next.RecordID = recordID
	next.BusinessStatus = target
	next.EffectiveDate = effectiveDate
	next.EndDate = nil
	next.CreatedAt = now
	next.UpdatedAt = now
	next.OperationType = op
	next.OperatedBy = req.Actor
	next.OperationReason = reason

	created, err := s.append(ctx, tenantID, next, latest.RecordID)
	if err != nil {
		return types.OrganizationVersion{}, s.fail(tenantID, code, op, req.Actor, err)
	}

	s.commitSideEffects(tenantID, &latest, created)
	s.log.Info("organization status changed",
		zap.String("code", code),
		zap.String("record_id", created.RecordID),
		zap.String("operation", string(op)),
		zap.String("effective_date", effectiveDate),
	)
	return created, nil
}

func (s *organizationCommandService) SoftDelete(ctx context.Context, tenantID string, req SoftDeleteRequest) ([]types.OrganizationVersion, error) {
	code, err := normalizeCode(req.Code)
	if err != nil {
		return nil, err
	}
	if err := validateReason(req.OperationReason); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.OperationReason)

	lock := s.locks.acquire(code)
	defer s.locks.release(code, lock)

	latest, err := s.latest(ctx, tenantID, code)
	if err != nil {
		return nil, notFoundOrErr(err)
	}
	if latest.IsDeleted {
		return nil, s.fail(tenantID, code, types.OperationDelete, req.Actor,
			domainerr.New(domainerr.CodeOrganizationDeleted, "code is already soft-deleted"))
	}
	if err := s.resolvePolicy(tenantID, types.OperationDelete, code, latest.UnitType, latest.EffectiveDate, req.Actor); err != nil {
		return nil, s.fail(tenantID, code, types.OperationDelete, req.Actor, err)
	}

	storeCtx, cancel := s.storeContext(ctx)
	deleted, err := s.store.MarkDeleted(storeCtx, tenantID, code, reason, req.Actor)
	cancel()
	if err != nil {
		return nil, s.fail(tenantID, code, types.OperationDelete, req.Actor, mapStoreErr(err))
	}
	if len(deleted) > 0 {
		tail := deleted[len(deleted)-1]
		s.commitSideEffects(tenantID, &latest, tail)
	}
	s.log.Info("organization soft-deleted",
		zap.String("code", code),
		zap.Int("versions_marked", len(deleted)),
	)
	return deleted, nil
}

func (s *organizationCommandService) Timeline(ctx context.Context, tenantID string, code string) ([]TimelineEntry, error) {
	normalized, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	versions, err := s.store.ListVersions(storeCtx, tenantID, normalized)
	if err != nil {
		return nil, notFoundOrErr(mapStoreErr(err))
	}
	today := nowFn().UTC().Format(dateLayout)
	entries := make([]TimelineEntry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, newTimelineEntry(v, today))
	}
	return entries, nil
}

func (s *organizationCommandService) AsOf(ctx context.Context, tenantID string, code string, asOf string) (TimelineEntry, error) {
	normalized, err := normalizeCode(code)
	if err != nil {
		return TimelineEntry{}, err
	}
	asOfDate, err := validateDate(asOf)
	if err != nil {
		return TimelineEntry{}, err
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	version, err := s.store.VersionAsOf(storeCtx, tenantID, normalized, asOfDate)
	if err != nil {
		return TimelineEntry{}, notFoundOrErr(mapStoreErr(err))
	}
	return newTimelineEntry(version, asOfDate), nil
}

func (s *organizationCommandService) AuditTrail(ctx context.Context, tenantID string, code string) ([]types.AuditRecord, error) {
	normalized, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, nil
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	records, err := s.audit.Trail(storeCtx, tenantID, normalized)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return records, nil
}

func newTimelineEntry(v types.OrganizationVersion, asOf string) TimelineEntry {
	return TimelineEntry{
		Version:   v,
		State:     lifecycle.ClassifyVersion(v, asOf),
		IsCurrent: lifecycle.IsCurrent(v, asOf),
		IsFuture:  lifecycle.IsFuture(v, asOf),
	}
}

func (s *organizationCommandService) latest(ctx context.Context, tenantID string, code string) (types.OrganizationVersion, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	v, err := s.store.LatestVersion(storeCtx, tenantID, code)
	if err != nil {
		return types.OrganizationVersion{}, mapStoreErr(err)
	}
	return v, nil
}

func (s *organizationCommandService) append(ctx context.Context, tenantID string, v types.OrganizationVersion, priorRecordID string) (types.OrganizationVersion, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	created, err := s.store.AppendVersion(storeCtx, tenantID, v)
	if err != nil {
		if errors.Is(err, ports.ErrEffectiveDateConflict) {
			return types.OrganizationVersion{}, domainerr.NewConflict("a version already exists at this effective date", priorRecordID)
		}
		return types.OrganizationVersion{}, mapStoreErr(err)
	}
	return created, nil
}

func (s *organizationCommandService) setPlannedStatus(ctx context.Context, tenantID string, recordID string, status types.BusinessStatus, op types.OperationType, reason string, actor types.Actor) (types.OrganizationVersion, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	v, err := s.store.SetPlannedStatus(storeCtx, tenantID, recordID, status, op, reason, actor)
	if err != nil {
		return types.OrganizationVersion{}, mapStoreErr(err)
	}
	return v, nil
}

// validateParent checks that the parent code refers to a live version whose
// interval contains the child's effective date, and that following the
// parent chain never reaches the child (bounded walk, no pointer graph).
func (s *organizationCommandService) validateParent(ctx context.Context, tenantID string, rawParent string, childCode string, effectiveDate string) (string, error) {
	parent, err := normalizeCode(rawParent)
	if err != nil {
		return "", err
	}
	if parent == childCode {
		return "", domainerr.NewValidation("parentCode must not reference the organization itself")
	}

	current := parent
	for depth := 0; depth < maxParentDepth; depth++ {
		storeCtx, cancel := s.storeContext(ctx)
		v, err := s.store.VersionAsOf(storeCtx, tenantID, current, effectiveDate)
		cancel()
		if err != nil {
			if errors.Is(err, ports.ErrCodeNotFound) || errors.Is(err, ports.ErrVersionNotFound) {
				if current == parent {
					return "", domainerr.Newf(domainerr.CodeValidationFailed, "parentCode %s has no version in effect at %s", parent, effectiveDate)
				}
				// Chain ends before reaching the child: no cycle.
				return parent, nil
			}
			return "", mapStoreErr(err)
		}
		if v.IsDeleted {
			return "", domainerr.Newf(domainerr.CodeValidationFailed, "parentCode %s is soft-deleted", current)
		}
		if v.ParentCode == nil {
			return parent, nil
		}
		if *v.ParentCode == childCode {
			return "", domainerr.Newf(domainerr.CodeValidationFailed, "parentCode %s would introduce a cycle", parent)
		}
		current = *v.ParentCode
	}
	return "", domainerr.Newf(domainerr.CodeValidationFailed, "parent chain exceeds maximum depth %d", maxParentDepth)
}

func (s *organizationCommandService) resolvePolicy(tenantID string, op types.OperationType, code string, unitType string, effectiveDate string, actor types.Actor) error {
	if s.policy == nil {
		return nil
	}
	decision, err := s.policy.Resolve(PolicyFacts{
		TenantID:      tenantID,
		Operation:     op,
		Code:          code,
		UnitType:      unitType,
		EffectiveDate: effectiveDate,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
	})
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return domainerr.Newf(domainerr.CodeValidationFailed, "mutation denied by policy rule %s (%s)", decision.RuleID, decision.ReasonCode)
	}
	return nil
}

// commitSideEffects runs after a successful commit: audit append and change
// event emission. Neither can fail the command.
func (s *organizationCommandService) commitSideEffects(tenantID string, before *types.OrganizationVersion, after types.OrganizationVersion) {
	if s.audit != nil {
		record := types.AuditRecord{
			RecordID:        after.RecordID,
			Code:            after.Code,
			OperationType:   after.OperationType,
			OperatedBy:      after.OperatedBy,
			OperationReason: after.OperationReason,
			Timestamp:       nowFn().UTC(),
			Success:         true,
		}
		if before != nil {
			snapshot := before.Snapshot()
			record.BeforeState = &snapshot
		}
		afterSnapshot := after.Snapshot()
		record.AfterState = &afterSnapshot
		s.audit.Record(tenantID, record)
	}
	if s.events != nil {
		s.events.Enqueue(types.ChangeEvent{
			TenantID:      tenantID,
			Code:          after.Code,
			RecordID:      after.RecordID,
			OperationType: after.OperationType,
			Version:       after.Snapshot(),
			CommittedAt:   nowFn().UTC(),
		})
	}
}

// fail records a denied or failed command in the audit trail and passes the
// error through unchanged.
func (s *organizationCommandService) fail(tenantID string, code string, op types.OperationType, actor types.Actor, err error) error {
	if s.audit != nil {
		errorCode := ""
		if c, ok := domainerr.CodeOf(err); ok {
			errorCode = string(c)
		}
		s.audit.Record(tenantID, types.AuditRecord{
			Code:          code,
			OperationType: op,
			OperatedBy:    actor,
			Timestamp:     nowFn().UTC(),
			Success:       false,
			ErrorCode:     errorCode,
		})
	}
	return err
}

func (s *organizationCommandService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func mapStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domainerr.New(domainerr.CodeStoreTimeout, "store operation exceeded its deadline; safe to retry")
	}
	return err
}

func notFoundOrErr(err error) error {
	if errors.Is(err, ports.ErrCodeNotFound) || errors.Is(err, ports.ErrVersionNotFound) {
		return domainerr.New(domainerr.CodeOrganizationNotFound, "organization not found")
	}
	return err
}

func normalizeCode(raw string) (string, error) {
	normalized, err := orgcode.Normalize(raw)
	if err != nil {
		return "", domainerr.NewValidation("invalid organization code")
	}
	return normalized, nil
}

func validateDate(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", domainerr.NewValidation("effectiveDate is required")
	}
	if _, err := time.Parse(dateLayout, value); err != nil {
		return "", domainerr.NewValidation("effectiveDate must be a 2006-01-02 date")
	}
	return value, nil
}

// validateReason requires at least minReasonRunes non-whitespace characters.
// Padding a two-letter reason with spaces does not count as justification.
func validateReason(raw string) error {
	meaningful := 0
	for _, r := range raw {
		if !isSpaceRune(r) {
			meaningful++
		}
	}
	if meaningful < minReasonRunes {
		return domainerr.Newf(domainerr.CodeValidationFailed, "operationReason must contain at least %d meaningful characters", minReasonRunes)
	}
	return nil
}

func isSpaceRune(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
