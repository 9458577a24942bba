package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <init-schema|org-smoke> [args]")
	}

	switch os.Args[1] {
	case "init-schema":
		initSchema(os.Args[2:])
	case "org-smoke":
		orgSmoke(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

// schemaStatements is the full DDL for the organization schema: version
// chain table, audit table, RLS fail-closed on app.current_tenant, and the
// partial unique index that backs effective-date conflict detection.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS organization;`,

	`CREATE OR REPLACE FUNCTION organization.current_tenant_id() RETURNS uuid
LANGUAGE sql STABLE
AS $$ SELECT current_setting('app.current_tenant')::uuid $$;`,

	`CREATE TABLE IF NOT EXISTS organization.org_versions (
  tenant_id        uuid        NOT NULL,
  record_id        uuid        NOT NULL PRIMARY KEY,
  code             text        NOT NULL,
  parent_code      text,
  name             text        NOT NULL,
  unit_type        text        NOT NULL DEFAULT '',
  description      text        NOT NULL DEFAULT '',
  sort_order       int         NOT NULL DEFAULT 0,
  business_status  text        NOT NULL,
  effective_date   date        NOT NULL,
  end_date         date,
  created_at       timestamptz NOT NULL DEFAULT now(),
  updated_at       timestamptz NOT NULL DEFAULT now(),
  operation_type   text        NOT NULL,
  operated_by_id   text        NOT NULL DEFAULT '',
  operated_by_name text        NOT NULL DEFAULT '',
  operation_reason text        NOT NULL DEFAULT '',
  is_deleted       boolean     NOT NULL DEFAULT false,
  CHECK (business_status IN ('ACTIVE', 'SUSPENDED')),
  CHECK (end_date IS NULL OR end_date > effective_date)
);`,

	`CREATE UNIQUE INDEX IF NOT EXISTS org_versions_live_effective_date
ON organization.org_versions (tenant_id, code, effective_date)
WHERE NOT is_deleted;`,

	`CREATE INDEX IF NOT EXISTS org_versions_code
ON organization.org_versions (tenant_id, code, effective_date DESC);`,

	`ALTER TABLE organization.org_versions ENABLE ROW LEVEL SECURITY;`,
	`ALTER TABLE organization.org_versions FORCE ROW LEVEL SECURITY;`,

	`DROP POLICY IF EXISTS tenant_isolation ON organization.org_versions;`,
	`CREATE POLICY tenant_isolation ON organization.org_versions
USING (tenant_id = organization.current_tenant_id())
WITH CHECK (tenant_id = organization.current_tenant_id());`,

	`CREATE TABLE IF NOT EXISTS organization.org_audit_events (
  id               bigint      GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
  tenant_id        uuid        NOT NULL,
  record_id        uuid,
  code             text        NOT NULL,
  operation_type   text        NOT NULL,
  operated_by_id   text        NOT NULL DEFAULT '',
  operated_by_name text        NOT NULL DEFAULT '',
  operation_reason text        NOT NULL DEFAULT '',
  occurred_at      timestamptz NOT NULL,
  success          boolean     NOT NULL,
  error_code       text        NOT NULL DEFAULT '',
  before_state     jsonb,
  after_state      jsonb
);`,

	`CREATE INDEX IF NOT EXISTS org_audit_events_code
ON organization.org_audit_events (tenant_id, code, occurred_at);`,

	`ALTER TABLE organization.org_audit_events ENABLE ROW LEVEL SECURITY;`,
	`ALTER TABLE organization.org_audit_events FORCE ROW LEVEL SECURITY;`,

	`DROP POLICY IF EXISTS tenant_isolation ON organization.org_audit_events;`,
	`CREATE POLICY tenant_isolation ON organization.org_audit_events
USING (tenant_id = organization.current_tenant_id())
WITH CHECK (tenant_id = organization.current_tenant_id());`,
}

func initSchema(args []string) {
	fs := flag.NewFlagSet("init-schema", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	for _, stmt := range schemaStatements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			fatalf("schema statement failed: %v\n%s", err, stmt)
		}
	}

	fmt.Println("[init-schema] OK")
}

// orgSmoke verifies the two properties the stores rely on: RLS fails closed
// without app.current_tenant, and the partial unique index rejects two live
// versions at one effective date. Everything runs inside one transaction
// that is rolled back, so the smoke leaves no rows behind.
func orgSmoke(args []string) {
	fs := flag.NewFlagSet("org-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_failclosed;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, `SELECT count(*) FROM organization.org_versions;`)
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_failclosed;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected fail-closed error when app.current_tenant is missing")
	}

	tenant := "00000000-0000-0000-0000-00000000000a"
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenant); err != nil {
		fatal(err)
	}

	insert := `INSERT INTO organization.org_versions (
  tenant_id, record_id, code, name, business_status, effective_date, operation_type
) VALUES ($1, gen_random_uuid(), 'SMOKE', 'Smoke Test', 'ACTIVE', '2025-01-01', 'CREATE');`

	if _, err := tx.Exec(ctx, insert, tenant); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_duplicate;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, insert, tenant)
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_duplicate;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected unique violation on duplicate live effective date")
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM organization.org_versions WHERE code = 'SMOKE';`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 1 {
		fatalf("expected 1 smoke row, got %d", count)
	}

	fmt.Println("[org-smoke] OK")
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
