package types

import (
	"time"
)

type BusinessStatus string

const (
	StatusActive    BusinessStatus = "ACTIVE"
	StatusSuspended BusinessStatus = "SUSPENDED"
)

type OperationType string

const (
	OperationCreate     OperationType = "CREATE"
	OperationUpdate     OperationType = "UPDATE"
	OperationSuspend    OperationType = "SUSPEND"
	OperationReactivate OperationType = "REACTIVATE"
	OperationDelete     OperationType = "DELETE"
)

// LifecycleState is derived, never stored. See domain/lifecycle.
type LifecycleState string

const (
	StateCurrent    LifecycleState = "CURRENT"
	StateHistorical LifecycleState = "HISTORICAL"
	StatePlanned    LifecycleState = "PLANNED"
	StateSuspended  LifecycleState = "SUSPENDED"
	StateDeleted    LifecycleState = "DELETED"
)

type Actor struct {
	ID          string
	DisplayName string
	Role        string
}

// OrganizationVersion is one row per validity interval of one organization
// code. Business time is the half-open [EffectiveDate, EndDate) interval in
// "2006-01-02" date strings; system time is CreatedAt/UpdatedAt.
type OrganizationVersion struct {
	RecordID        string
	Code            string
	ParentCode      *string
	Name            string
	UnitType        string
	Description     string
	SortOrder       int
	BusinessStatus  BusinessStatus
	EffectiveDate   string
	EndDate         *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	OperationType   OperationType
	OperatedBy      Actor
	OperationReason string
	IsDeleted       bool
}

// ChangeEvent is published for every committed version row, in commit order
// per code. Consumers dedupe by RecordID (delivery is at-least-once).
type ChangeEvent struct {
	TenantID      string          `json:"tenantId"`
	Code          string          `json:"code"`
	RecordID      string          `json:"recordId"`
	OperationType OperationType   `json:"operationType"`
	Version       VersionSnapshot `json:"version"`
	CommittedAt   time.Time       `json:"committedAt"`
}

// VersionSnapshot is the wire form of a version row attached to a ChangeEvent.
type VersionSnapshot struct {
	RecordID       string         `json:"recordId"`
	Code           string         `json:"code"`
	ParentCode     *string        `json:"parentCode,omitempty"`
	Name           string         `json:"name"`
	UnitType       string         `json:"unitType"`
	Description    string         `json:"description,omitempty"`
	SortOrder      int            `json:"sortOrder"`
	BusinessStatus BusinessStatus `json:"businessStatus"`
	EffectiveDate  string         `json:"effectiveDate"`
	EndDate        *string        `json:"endDate,omitempty"`
	IsDeleted      bool           `json:"isDeleted"`
}

func (v OrganizationVersion) Snapshot() VersionSnapshot {
	return VersionSnapshot{
		RecordID:       v.RecordID,
		Code:           v.Code,
		ParentCode:     v.ParentCode,
		Name:           v.Name,
		UnitType:       v.UnitType,
		Description:    v.Description,
		SortOrder:      v.SortOrder,
		BusinessStatus: v.BusinessStatus,
		EffectiveDate:  v.EffectiveDate,
		EndDate:        v.EndDate,
		IsDeleted:      v.IsDeleted,
	}
}

// AuditRecord is one immutable entry per successful (or denied) mutating
// command.
type AuditRecord struct {
	RecordID        string
	Code            string
	OperationType   OperationType
	OperatedBy      Actor
	OperationReason string
	Timestamp       time.Time
	Success         bool
	ErrorCode       string
	BeforeState     *VersionSnapshot
	AfterState      *VersionSnapshot
}
