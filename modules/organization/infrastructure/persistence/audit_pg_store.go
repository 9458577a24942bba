package persistence

import (
	"context"
	"encoding/json"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/ports"
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
)

// AuditPGStore appends immutable audit events. The table has no update or
// delete path in this codebase.
type AuditPGStore struct {
	pool pgBeginner
}

func NewAuditPGStore(pool pgBeginner) ports.AuditStore {
	return &AuditPGStore{pool: pool}
}

func (s *AuditPGStore) AppendAuditRecord(ctx context.Context, tenantID string, record types.AuditRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	before, err := snapshotJSON(record.BeforeState)
	if err != nil {
		return err
	}
	after, err := snapshotJSON(record.AfterState)
	if err != nil {
		return err
	}

	var recordID any
	if record.RecordID != "" {
		recordID = record.RecordID
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO organization.org_audit_events (
  tenant_id, record_id, code, operation_type, operated_by_id,
  operated_by_name, operation_reason, occurred_at, success, error_code,
  before_state, after_state
) VALUES (
  $1::uuid, $2::uuid, $3, $4, $5,
  $6, $7, $8, $9, $10,
  $11::jsonb, $12::jsonb
)
`, tenantID, recordID, record.Code, record.OperationType, record.OperatedBy.ID,
		record.OperatedBy.DisplayName, record.OperationReason, record.Timestamp,
		record.Success, record.ErrorCode, before, after); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *AuditPGStore) ListAuditRecords(ctx context.Context, tenantID string, code string) ([]types.AuditRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT record_id::text, code, operation_type, operated_by_id, operated_by_name,
       operation_reason, occurred_at, success, error_code, before_state, after_state
FROM organization.org_audit_events
WHERE tenant_id = $1::uuid AND code = $2
ORDER BY occurred_at, id
`, tenantID, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []types.AuditRecord
	for rows.Next() {
		var (
			recordID      *string
			before, after []byte
			record        types.AuditRecord
		)
		if err := rows.Scan(&recordID, &record.Code, &record.OperationType,
			&record.OperatedBy.ID, &record.OperatedBy.DisplayName,
			&record.OperationReason, &record.Timestamp, &record.Success,
			&record.ErrorCode, &before, &after); err != nil {
			return nil, err
		}
		if recordID != nil {
			record.RecordID = *recordID
		}
		if record.BeforeState, err = snapshotFromJSON(before); err != nil {
			return nil, err
		}
		if record.AfterState, err = snapshotFromJSON(after); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, tx.Commit(ctx)
}

func snapshotFromJSON(raw []byte) (*types.VersionSnapshot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var snapshot types.VersionSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func snapshotJSON(snapshot *types.VersionSnapshot) (json.RawMessage, error) {
	if snapshot == nil {
		return nil, nil
	}
	return json.Marshal(snapshot)
}
