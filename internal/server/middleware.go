package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/services"
	"github.com/jacksonlee411/Roots-And-Branches/pkg/authz"
)

const (
	headerRequestID = "X-Request-Id"
	headerTenantID  = "X-Tenant-Id"
	headerActorID   = "X-Actor-Id"
	headerActorName = "X-Actor-Name"
	headerActorRole = "X-Actor-Role"
)

// withRequestContext assigns a request id (honoring an inbound one) and
// resolves tenant and principal from headers. Requests without a tenant are
// rejected before any handler runs.
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := withRequestID(r.Context(), requestID)
		w.Header().Set(headerRequestID, requestID)

		tenantID := strings.TrimSpace(r.Header.Get(headerTenantID))
		if tenantID == "" {
			r = r.WithContext(ctx)
			writeErrorCode(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "X-Tenant-Id header is required", nil)
			return
		}
		ctx = withTenant(ctx, Tenant{ID: tenantID})
		ctx = withPrincipal(ctx, Principal{
			ID:          strings.TrimSpace(r.Header.Get(headerActorID)),
			DisplayName: strings.TrimSpace(r.Header.Get(headerActorName)),
			RoleSlug:    strings.TrimSpace(r.Header.Get(headerActorRole)),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

// withAuthz gates a route on a casbin decision. Denials in enforce mode are
// recorded in the audit trail; shadow mode only logs.
func withAuthz(a authorizer, audit *services.AuditRecorder, log *zap.Logger, object string, action string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := currentTenant(r.Context())
		if !ok {
			writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "tenant missing", nil)
			return
		}
		principal, _ := currentPrincipal(r.Context())

		subject := authz.SubjectFromRoleSlug(principal.RoleSlug)
		domain := authz.DomainFromTenantID(tenant.ID)
		allowed, enforced, err := a.Authorize(subject, domain, object, action)
		if err != nil {
			log.Error("authorization check failed",
				zap.String("subject", subject),
				zap.String("object", object),
				zap.String("action", action),
				zap.Error(err),
			)
			if enforced {
				writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "authorization check failed", nil)
				return
			}
		}
		if !allowed {
			log.Warn("authorization denied",
				zap.String("subject", subject),
				zap.String("object", object),
				zap.String("action", action),
				zap.Bool("enforced", enforced),
			)
			if enforced {
				if audit != nil {
					audit.Record(tenant.ID, types.AuditRecord{
						OperationType: operationForAction(action),
						OperatedBy:    types.Actor{ID: principal.ID, DisplayName: principal.DisplayName},
						Timestamp:     time.Now().UTC(),
						Success:       false,
						ErrorCode:     "INSUFFICIENT_PERMISSIONS",
					})
				}
				writeErrorCode(w, r, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "not allowed", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func operationForAction(action string) types.OperationType {
	switch action {
	case authz.ActionDelete:
		return types.OperationDelete
	case authz.ActionWrite:
		return types.OperationUpdate
	default:
		return ""
	}
}
