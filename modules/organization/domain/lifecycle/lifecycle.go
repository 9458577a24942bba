// Package lifecycle derives an organization version's lifecycle state from
// its stored fields and an explicit as-of date. The state is never persisted;
// every layer that needs it calls Classify so the write side, the read side
// and the tests can never drift apart.
package lifecycle

import (
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
	"github.com/jacksonlee411/Roots-And-Branches/pkg/domainerr"
)

// Classify maps (businessStatus, isDeleted, effectiveDate, endDate, asOf) to
// exactly one lifecycle state. Dates are "2006-01-02" strings compared
// lexicographically; the business interval is half-open [effectiveDate,
// endDate), so effectiveDate == asOf is in effect and endDate == asOf is not.
func Classify(status types.BusinessStatus, isDeleted bool, effectiveDate string, endDate *string, asOf string) types.LifecycleState {
	if isDeleted {
		return types.StateDeleted
	}
	if effectiveDate > asOf {
		return types.StatePlanned
	}
	if endDate != nil && *endDate <= asOf {
		return types.StateHistorical
	}
	if status == types.StatusSuspended {
		return types.StateSuspended
	}
	return types.StateCurrent
}

// ClassifyVersion is Classify over a full version row.
func ClassifyVersion(v types.OrganizationVersion, asOf string) types.LifecycleState {
	return Classify(v.BusinessStatus, v.IsDeleted, v.EffectiveDate, v.EndDate, asOf)
}

// IsCurrent and IsFuture are the derived booleans the read surface exposes.
// They must stay in lock-step with Classify, so they are defined on top of it.
func IsCurrent(v types.OrganizationVersion, asOf string) bool {
	s := ClassifyVersion(v, asOf)
	return s == types.StateCurrent || s == types.StateSuspended
}

func IsFuture(v types.OrganizationVersion, asOf string) bool {
	return ClassifyVersion(v, asOf) == types.StatePlanned
}

// CheckTransition reports whether the requested operation is legal from the
// given derived state. A nil return means the transition is allowed.
func CheckTransition(from types.LifecycleState, op types.OperationType) error {
	if from == types.StateDeleted {
		return domainerr.New(domainerr.CodeOrganizationDeleted, "organization is deleted and terminal")
	}
	switch op {
	case types.OperationDelete:
		return nil
	case types.OperationUpdate:
		return nil
	case types.OperationSuspend:
		if from == types.StateSuspended {
			return domainerr.New(domainerr.CodeAlreadySuspended, "organization is already suspended")
		}
		return nil
	case types.OperationReactivate:
		if from == types.StateCurrent {
			return domainerr.New(domainerr.CodeAlreadyActive, "organization is already active")
		}
		return nil
	case types.OperationCreate:
		return domainerr.NewValidation("create is not a transition on an existing version")
	default:
		return domainerr.NewValidation("unknown operation type")
	}
}
