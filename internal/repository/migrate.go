package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

var schemaDDL = map[string][]string{
	dialect.Postgres: {
		`CREATE TABLE IF NOT EXISTS extract_job (
			id            UUID PRIMARY KEY,
			filename      TEXT NOT NULL,
			format        TEXT NOT NULL,
			variant       TEXT NOT NULL,
			tenant        TEXT NOT NULL DEFAULT '',
			source_key    TEXT,
			status        TEXT NOT NULL,
			started_at    TIMESTAMPTZ NOT NULL,
			finished_at   TIMESTAMPTZ,
			model_name    TEXT,
			raw_json      JSONB,
			document_json JSONB,
			warnings      JSONB,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS extract_job_started_at_idx ON extract_job (started_at DESC)`,
	},
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS extract_job (
			id            TEXT PRIMARY KEY,
			filename      TEXT NOT NULL,
			format        TEXT NOT NULL,
			variant       TEXT NOT NULL,
			tenant        TEXT NOT NULL DEFAULT '',
			source_key    TEXT,
			status        TEXT NOT NULL,
			started_at    DATETIME NOT NULL,
			finished_at   DATETIME,
			model_name    TEXT,
			raw_json      TEXT,
			document_json TEXT,
			warnings      TEXT,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS extract_job_started_at_idx ON extract_job (started_at DESC)`,
	},
}

// migrate creates the tables the repositories need if they are missing.
func migrate(ctx context.Context, drv *entsql.Driver) error {
	stmts, ok := schemaDDL[drv.Dialect()]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", drv.Dialect())
	}
	for _, stmt := range stmts {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
