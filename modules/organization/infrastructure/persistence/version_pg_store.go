package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/ports"
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const uniqueViolation = "23505"

// VersionPGStore persists organization version chains in Postgres. Every
// method runs in its own transaction with the tenant GUC set, so row level
// security policies see app.current_tenant.
type VersionPGStore struct {
	pool pgBeginner
}

func NewVersionPGStore(pool pgBeginner) ports.VersionStore {
	return &VersionPGStore{pool: pool}
}

const versionColumns = `
  record_id,
  code,
  parent_code,
  name,
  unit_type,
  description,
  sort_order,
  business_status,
  effective_date::text,
  end_date::text,
  created_at,
  updated_at,
  operation_type,
  operated_by_id,
  operated_by_name,
  operation_reason,
  is_deleted
`

func (s *VersionPGStore) AppendVersion(ctx context.Context, tenantID string, v types.OrganizationVersion) (types.OrganizationVersion, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	// Close the prior open interval at the new effective date. The
	// half-open chain stays gapless: end_date equals the successor's
	// effective_date.
	if _, err := tx.Exec(ctx, `
UPDATE organization.org_versions
SET end_date = $3::date, updated_at = now()
WHERE tenant_id = $1::uuid
  AND code = $2
  AND NOT is_deleted
  AND end_date IS NULL
  AND effective_date < $3::date
`, tenantID, v.Code, v.EffectiveDate); err != nil {
		return types.OrganizationVersion{}, err
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO organization.org_versions (
  tenant_id, record_id, code, parent_code, name, unit_type, description,
  sort_order, business_status, effective_date, end_date, created_at,
  updated_at, operation_type, operated_by_id, operated_by_name,
  operation_reason, is_deleted
) VALUES (
  $1::uuid, $2::uuid, $3, $4, $5, $6, $7,
  $8, $9, $10::date, NULL, $11,
  $12, $13, $14, $15,
  $16, false
)
`, tenantID, v.RecordID, v.Code, v.ParentCode, v.Name, v.UnitType, v.Description,
		v.SortOrder, v.BusinessStatus, v.EffectiveDate, v.CreatedAt,
		v.UpdatedAt, v.OperationType, v.OperatedBy.ID, v.OperatedBy.DisplayName,
		v.OperationReason); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return types.OrganizationVersion{}, ports.ErrEffectiveDateConflict
		}
		return types.OrganizationVersion{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.OrganizationVersion{}, err
	}
	return v, nil
}

func (s *VersionPGStore) SetPlannedStatus(ctx context.Context, tenantID string, recordID string, status types.BusinessStatus, operationType types.OperationType, reason string, actor types.Actor) (types.OrganizationVersion, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	row := tx.QueryRow(ctx, `
UPDATE organization.org_versions
SET business_status = $3,
    operation_type = $4,
    operation_reason = $5,
    operated_by_id = $6,
    operated_by_name = $7,
    updated_at = now()
WHERE tenant_id = $1::uuid
  AND record_id = $2::uuid
  AND NOT is_deleted
RETURNING `+versionColumns, tenantID, recordID, status, operationType, reason, actor.ID, actor.DisplayName)

	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.OrganizationVersion{}, ports.ErrVersionNotFound
		}
		return types.OrganizationVersion{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.OrganizationVersion{}, err
	}
	return v, nil
}

func (s *VersionPGStore) MarkDeleted(ctx context.Context, tenantID string, code string, reason string, actor types.Actor) ([]types.OrganizationVersion, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	// RETURNING has no defined order, so the update runs in a CTE and the
	// outer select restores effective-date order for callers.
	rows, err := tx.Query(ctx, `
WITH marked AS (
  UPDATE organization.org_versions
  SET is_deleted = true,
      operation_type = 'DELETE',
      operation_reason = $3,
      operated_by_id = $4,
      operated_by_name = $5,
      updated_at = now()
  WHERE tenant_id = $1::uuid
    AND code = $2
    AND NOT is_deleted
  RETURNING `+versionColumns+`
)
SELECT * FROM marked ORDER BY effective_date
`, tenantID, code, reason, actor.ID, actor.DisplayName)
	if err != nil {
		return nil, err
	}
	deleted, err := collectVersions(rows)
	if err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, ports.ErrCodeNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *VersionPGStore) ListVersions(ctx context.Context, tenantID string, code string) ([]types.OrganizationVersion, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT `+versionColumns+`
FROM organization.org_versions
WHERE tenant_id = $1::uuid
  AND code = $2
  AND NOT is_deleted
ORDER BY effective_date
`, tenantID, code)
	if err != nil {
		return nil, err
	}
	versions, err := collectVersions(rows)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, ports.ErrCodeNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return versions, nil
}

func (s *VersionPGStore) LatestVersion(ctx context.Context, tenantID string, code string) (types.OrganizationVersion, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	// Live rows first. If the code only has deleted rows the last one is
	// returned so callers can tell deleted apart from never-existed.
	row := tx.QueryRow(ctx, `
SELECT `+versionColumns+`
FROM organization.org_versions
WHERE tenant_id = $1::uuid
  AND code = $2
ORDER BY is_deleted, effective_date DESC
LIMIT 1
`, tenantID, code)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.OrganizationVersion{}, ports.ErrCodeNotFound
		}
		return types.OrganizationVersion{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.OrganizationVersion{}, err
	}
	return v, nil
}

func (s *VersionPGStore) VersionAsOf(ctx context.Context, tenantID string, code string, asOf string) (types.OrganizationVersion, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	row := tx.QueryRow(ctx, `
SELECT `+versionColumns+`
FROM organization.org_versions
WHERE tenant_id = $1::uuid
  AND code = $2
  AND NOT is_deleted
  AND effective_date <= $3::date
  AND (end_date IS NULL OR end_date > $3::date)
LIMIT 1
`, tenantID, code, asOf)
	v, err := scanVersion(row)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return types.OrganizationVersion{}, err
		}
		return v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return types.OrganizationVersion{}, err
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM organization.org_versions
  WHERE tenant_id = $1::uuid AND code = $2 AND NOT is_deleted
)
`, tenantID, code).Scan(&exists); err != nil {
		return types.OrganizationVersion{}, err
	}
	if exists {
		return types.OrganizationVersion{}, ports.ErrVersionNotFound
	}
	return types.OrganizationVersion{}, ports.ErrCodeNotFound
}

func (s *VersionPGStore) begin(ctx context.Context, tenantID string) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, err
	}
	return tx, nil
}

func scanVersion(row pgx.Row) (types.OrganizationVersion, error) {
	var v types.OrganizationVersion
	err := row.Scan(
		&v.RecordID,
		&v.Code,
		&v.ParentCode,
		&v.Name,
		&v.UnitType,
		&v.Description,
		&v.SortOrder,
		&v.BusinessStatus,
		&v.EffectiveDate,
		&v.EndDate,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.OperationType,
		&v.OperatedBy.ID,
		&v.OperatedBy.DisplayName,
		&v.OperationReason,
		&v.IsDeleted,
	)
	if err != nil {
		return types.OrganizationVersion{}, err
	}
	return v, nil
}

func collectVersions(rows pgx.Rows) ([]types.OrganizationVersion, error) {
	defer rows.Close()
	var out []types.OrganizationVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
