package ports

import (
	"context"
	"errors"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
)

var (
	ErrCodeNotFound          = errors.New("organization_code_not_found")
	ErrVersionNotFound       = errors.New("version_not_found")
	ErrEffectiveDateConflict = errors.New("effective_date_conflict")
)

// VersionStore is the single shared mutable resource of the core. Rows are
// append-only: a committed version is read-only except for its EndDate being
// closed when a later version supersedes it, and the IsDeleted terminal mark.
// Every mutating method is atomic: either the close-prior + insert pair
// lands, or nothing does.
type VersionStore interface {
	// AppendVersion closes the prior open interval of v.Code at
	// v.EffectiveDate and inserts v, in one transaction. Returns
	// ErrEffectiveDateConflict when a non-deleted row for (code,
	// effectiveDate) already exists.
	AppendVersion(ctx context.Context, tenantID string, v types.OrganizationVersion) (types.OrganizationVersion, error)

	// SetPlannedStatus flips the business status of a future version in
	// place. Only legal for rows whose effective date is still ahead of
	// business time; the store does not re-check that, the command layer
	// does under the per-code lock.
	SetPlannedStatus(ctx context.Context, tenantID string, recordID string, status types.BusinessStatus, operationType types.OperationType, reason string, actor types.Actor) (types.OrganizationVersion, error)

	// MarkDeleted soft-deletes every live version of code. Terminal.
	MarkDeleted(ctx context.Context, tenantID string, code string, reason string, actor types.Actor) ([]types.OrganizationVersion, error)

	// ListVersions returns all non-deleted versions for code in effective
	// date order. ErrCodeNotFound when the code has no rows at all.
	ListVersions(ctx context.Context, tenantID string, code string) ([]types.OrganizationVersion, error)

	// LatestVersion returns the non-deleted row with the greatest
	// effective date, deleted-awareness included: if the code exists but
	// every row is deleted, the last deleted row is returned so callers
	// can surface ORGANIZATION_DELETED.
	LatestVersion(ctx context.Context, tenantID string, code string) (types.OrganizationVersion, error)

	// VersionAsOf returns the non-deleted version whose half-open
	// interval contains asOf.
	VersionAsOf(ctx context.Context, tenantID string, code string, asOf string) (types.OrganizationVersion, error)
}

// AuditStore persists immutable audit records. Failures are escalated by the
// recorder, never propagated to the command path.
type AuditStore interface {
	AppendAuditRecord(ctx context.Context, tenantID string, record types.AuditRecord) error

	// ListAuditRecords returns every audit record for the code in occurrence
	// order, including failed attempts.
	ListAuditRecords(ctx context.Context, tenantID string, code string) ([]types.AuditRecord, error)
}

// EventSink receives committed change events. Enqueue must not block command
// completion; delivery downstream is at-least-once in per-code commit order.
type EventSink interface {
	Enqueue(event types.ChangeEvent)
}
