package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/ports"
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
)

type beginFunc func(ctx context.Context) (pgx.Tx, error)

func (f beginFunc) Begin(ctx context.Context) (pgx.Tx, error) { return f(ctx) }

// txStub fails the Nth Exec according to execErrs and serves queued rows for
// QueryRow calls.
type txStub struct {
	execErrs  []error
	execCount int
	rowQueue  []pgx.Row
	rows      pgx.Rows
	queryErr  error
	commitErr error
}

func (t *txStub) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *txStub) Commit(context.Context) error          { return t.commitErr }
func (t *txStub) Rollback(context.Context) error        { return nil }
func (t *txStub) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *txStub) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return fakeBatchResults{} }
func (t *txStub) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *txStub) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *txStub) Conn() *pgx.Conn { return nil }

func (t *txStub) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	i := t.execCount
	t.execCount++
	if i < len(t.execErrs) {
		return pgconn.CommandTag{}, t.execErrs[i]
	}
	return pgconn.CommandTag{}, nil
}

func (t *txStub) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if t.queryErr != nil {
		return nil, t.queryErr
	}
	if t.rows != nil {
		return t.rows, nil
	}
	return &stubRows{}, nil
}

func (t *txStub) QueryRow(context.Context, string, ...any) pgx.Row {
	if len(t.rowQueue) > 0 {
		row := t.rowQueue[0]
		t.rowQueue = t.rowQueue[1:]
		return row
	}
	return stubRow{err: errors.New("row not mocked")}
}

type stubRows struct{}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Next() bool                                   { return false }
func (r *stubRows) Scan(...any) error                            { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

type stubRow struct {
	vals []any
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		if i >= len(r.vals) || r.vals[i] == nil {
			continue
		}
		switch d := dest[i].(type) {
		case *string:
			*d = r.vals[i].(string)
		case **string:
			v := r.vals[i].(string)
			*d = &v
		case *int:
			*d = r.vals[i].(int)
		case *bool:
			*d = r.vals[i].(bool)
		case *time.Time:
			*d = r.vals[i].(time.Time)
		case *[]byte:
			*d = []byte(r.vals[i].(string))
		case *types.BusinessStatus:
			*d = types.BusinessStatus(r.vals[i].(string))
		case *types.OperationType:
			*d = types.OperationType(r.vals[i].(string))
		}
	}
	return nil
}

// valueRows serves one prepared value set per Next/Scan cycle.
type valueRows struct {
	stubRows
	rows [][]any
	idx  int
}

func (r *valueRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *valueRows) Scan(dest ...any) error {
	return stubRow{vals: r.rows[r.idx-1]}.Scan(dest...)
}

type fakeBatchResults struct{}

func (fakeBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, nil }
func (fakeBatchResults) Query() (pgx.Rows, error)         { return &stubRows{}, nil }
func (fakeBatchResults) QueryRow() pgx.Row                { return stubRow{} }
func (fakeBatchResults) Close() error                     { return nil }

func sampleVersion() types.OrganizationVersion {
	return types.OrganizationVersion{
		RecordID:       "0192e1f4-0000-7000-8000-000000000001",
		Code:           "ENG",
		Name:           "Engineering",
		BusinessStatus: types.StatusActive,
		EffectiveDate:  "2025-06-01",
		OperationType:  types.OperationCreate,
	}
}

func TestVersionPGStore_AppendVersion(t *testing.T) {
	ctx := context.Background()

	store := NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return nil, errors.New("begin")
	}))
	if _, err := store.AppendVersion(ctx, "t1", sampleVersion()); err == nil {
		t.Fatal("expected begin error")
	}

	store = NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{execErrs: []error{errors.New("set_config")}}, nil
	}))
	if _, err := store.AppendVersion(ctx, "t1", sampleVersion()); err == nil {
		t.Fatal("expected set_config error")
	}

	store = NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{execErrs: []error{nil, errors.New("close prior")}}, nil
	}))
	if _, err := store.AppendVersion(ctx, "t1", sampleVersion()); err == nil {
		t.Fatal("expected close-prior error")
	}

	store = NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{execErrs: []error{nil, nil, &pgconn.PgError{Code: "23505"}}}, nil
	}))
	if _, err := store.AppendVersion(ctx, "t1", sampleVersion()); !errors.Is(err, ports.ErrEffectiveDateConflict) {
		t.Fatalf("unique violation must map to conflict sentinel, got %v", err)
	}

	store = NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{commitErr: errors.New("commit")}, nil
	}))
	if _, err := store.AppendVersion(ctx, "t1", sampleVersion()); err == nil {
		t.Fatal("expected commit error")
	}

	store = NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{}, nil
	}))
	v, err := store.AppendVersion(ctx, "t1", sampleVersion())
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if v.RecordID != sampleVersion().RecordID {
		t.Fatalf("append must echo the inserted version, got %+v", v)
	}
}

func TestVersionPGStore_SetPlannedStatus(t *testing.T) {
	ctx := context.Background()

	store := NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{rowQueue: []pgx.Row{stubRow{err: pgx.ErrNoRows}}}, nil
	}))
	_, err := store.SetPlannedStatus(ctx, "t1", "rec-1", types.StatusActive, types.OperationReactivate, "plan cancelled", types.Actor{ID: "u-1"})
	if !errors.Is(err, ports.ErrVersionNotFound) {
		t.Fatalf("no rows must map to version-not-found, got %v", err)
	}

	row := stubRow{vals: []any{
		"rec-1", "ENG", nil, "Engineering", "DEPARTMENT", "", 0,
		"ACTIVE", "2025-09-01", nil, time.Now(), time.Now(),
		"REACTIVATE", "u-1", "Alex", "plan cancelled", false,
	}}
	store = NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{rowQueue: []pgx.Row{row}}, nil
	}))
	v, err := store.SetPlannedStatus(ctx, "t1", "rec-1", types.StatusActive, types.OperationReactivate, "plan cancelled", types.Actor{ID: "u-1"})
	if err != nil {
		t.Fatalf("set planned status: %v", err)
	}
	if v.BusinessStatus != types.StatusActive || v.OperationType != types.OperationReactivate {
		t.Fatalf("scanned version = %+v", v)
	}
}

func TestVersionPGStore_MarkDeleted(t *testing.T) {
	ctx := context.Background()

	store := NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{}, nil
	}))
	_, err := store.MarkDeleted(ctx, "t1", "GHOST", "entity dissolved", types.Actor{ID: "u-1"})
	if !errors.Is(err, ports.ErrCodeNotFound) {
		t.Fatalf("empty update must map to code-not-found, got %v", err)
	}

	store = NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{queryErr: errors.New("query")}, nil
	}))
	if _, err := store.MarkDeleted(ctx, "t1", "ENG", "entity dissolved", types.Actor{ID: "u-1"}); err == nil {
		t.Fatal("expected query error")
	}
}

func TestVersionPGStore_LatestVersion(t *testing.T) {
	ctx := context.Background()

	store := NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{rowQueue: []pgx.Row{stubRow{err: pgx.ErrNoRows}}}, nil
	}))
	_, err := store.LatestVersion(ctx, "t1", "GHOST")
	if !errors.Is(err, ports.ErrCodeNotFound) {
		t.Fatalf("no rows must map to code-not-found, got %v", err)
	}
}

func TestVersionPGStore_VersionAsOf(t *testing.T) {
	ctx := context.Background()

	// No interval covers the date but the code has live rows.
	store := NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{rowQueue: []pgx.Row{
			stubRow{err: pgx.ErrNoRows},
			stubRow{vals: []any{true}},
		}}, nil
	}))
	_, err := store.VersionAsOf(ctx, "t1", "ENG", "2020-01-01")
	if !errors.Is(err, ports.ErrVersionNotFound) {
		t.Fatalf("want version-not-found, got %v", err)
	}

	store = NewVersionPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{rowQueue: []pgx.Row{
			stubRow{err: pgx.ErrNoRows},
			stubRow{vals: []any{false}},
		}}, nil
	}))
	_, err = store.VersionAsOf(ctx, "t1", "GHOST", "2020-01-01")
	if !errors.Is(err, ports.ErrCodeNotFound) {
		t.Fatalf("want code-not-found, got %v", err)
	}
}

func TestAuditPGStore_AppendAuditRecord(t *testing.T) {
	ctx := context.Background()

	store := NewAuditPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return nil, errors.New("begin")
	}))
	if err := store.AppendAuditRecord(ctx, "t1", types.AuditRecord{}); err == nil {
		t.Fatal("expected begin error")
	}

	store = NewAuditPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{execErrs: []error{nil, errors.New("insert")}}, nil
	}))
	if err := store.AppendAuditRecord(ctx, "t1", types.AuditRecord{Code: "ENG"}); err == nil {
		t.Fatal("expected insert error")
	}

	snapshot := sampleVersion().Snapshot()
	store = NewAuditPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{}, nil
	}))
	if err := store.AppendAuditRecord(ctx, "t1", types.AuditRecord{
		RecordID:      snapshot.RecordID,
		Code:          "ENG",
		OperationType: types.OperationCreate,
		Success:       true,
		AfterState:    &snapshot,
	}); err != nil {
		t.Fatalf("append audit: %v", err)
	}
}

func TestAuditPGStore_ListAuditRecords(t *testing.T) {
	ctx := context.Background()

	store := NewAuditPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{queryErr: errors.New("query")}, nil
	}))
	if _, err := store.ListAuditRecords(ctx, "t1", "ENG"); err == nil {
		t.Fatal("expected query error")
	}

	store = NewAuditPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{}, nil
	}))
	records, err := store.ListAuditRecords(ctx, "t1", "GHOST")
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty trail, got %+v", records)
	}

	occurred := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	rows := &valueRows{rows: [][]any{
		{
			"rec-1", "ENG", "CREATE", "u-1", "Alex",
			"initial setup", occurred, true, "", nil, `{"recordId":"rec-1","code":"ENG","name":"Engineering","unitType":"","sortOrder":0,"businessStatus":"ACTIVE","effectiveDate":"2025-06-01","isDeleted":false}`,
		},
		{
			nil, "ENG", "DELETE", "u-2", "Sam",
			"fat-fingered request", occurred.Add(time.Hour), false, "VALIDATION_FAILED", nil, nil,
		},
	}}
	store = NewAuditPGStore(beginFunc(func(context.Context) (pgx.Tx, error) {
		return &txStub{rows: rows}, nil
	}))
	records, err = store.ListAuditRecords(ctx, "t1", "ENG")
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %+v", records)
	}
	first := records[0]
	if first.RecordID != "rec-1" || !first.Success || first.AfterState == nil || first.AfterState.Name != "Engineering" {
		t.Fatalf("first record = %+v", first)
	}
	second := records[1]
	if second.RecordID != "" || second.Success || second.ErrorCode != "VALIDATION_FAILED" || second.AfterState != nil {
		t.Fatalf("second record = %+v", second)
	}
}
