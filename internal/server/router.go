package server

import (
	"net/http"

	"go.uber.org/zap"

	orgservices "github.com/jacksonlee411/Roots-And-Branches/modules/organization/services"
	"github.com/jacksonlee411/Roots-And-Branches/pkg/authz"
)

type Options struct {
	CommandService orgservices.OrganizationCommandService
	Authorizer     authorizer
	AuditRecorder  *orgservices.AuditRecorder
	Logger         *zap.Logger
}

// NewHandler builds the full HTTP surface: request context, per-route
// authorization, then the organization API.
func NewHandler(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	api := &organizationAPI{svc: opts.CommandService, log: log}

	guard := func(object string, action string, h http.HandlerFunc) http.Handler {
		if opts.Authorizer == nil {
			return h
		}
		return withAuthz(opts.Authorizer, opts.AuditRecorder, log, object, action, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("POST /api/v1/organization-units",
		guard(authz.ObjectOrganizations, authz.ActionWrite, api.handleCreate))
	mux.Handle("PUT /api/v1/organization-units/{code}",
		guard(authz.ObjectOrganizations, authz.ActionWrite, api.handleUpdate))
	mux.Handle("POST /api/v1/organization-units/{code}/suspend",
		guard(authz.ObjectOrganizations, authz.ActionWrite, api.handleSuspend))
	mux.Handle("POST /api/v1/organization-units/{code}/activate",
		guard(authz.ObjectOrganizations, authz.ActionWrite, api.handleActivate))
	// The retired alias is a pure migration signpost; it must answer 410
	// with the successor headers even for callers the guard would deny.
	mux.HandleFunc("POST /api/v1/organization-units/{code}/reactivate",
		api.handleReactivateGone)
	mux.Handle("DELETE /api/v1/organization-units/{code}",
		guard(authz.ObjectOrganizations, authz.ActionDelete, api.handleDelete))
	mux.Handle("GET /api/v1/organization-units/{code}/timeline",
		guard(authz.ObjectTimeline, authz.ActionRead, api.handleTimeline))
	mux.Handle("GET /api/v1/organization-units/{code}/audit",
		guard(authz.ObjectAudit, authz.ActionRead, api.handleAuditTrail))
	mux.Handle("GET /api/v1/organization-units/{code}",
		guard(authz.ObjectOrganizations, authz.ActionRead, api.handleGet))

	root := http.NewServeMux()
	root.Handle("/healthz", mux)
	root.Handle("/", withRequestContext(mux))

	return root
}
