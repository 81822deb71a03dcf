package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Coffer store (PostgreSQL).
var Migrations = migrate.NewGroup("coffer")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_stores",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS coffer_stores (
    id              TEXT PRIMARY KEY,
    created_by      TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_coffer_stores_creator ON coffer_stores (created_by);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS coffer_stores`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_objects",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS coffer_objects (
    id              TEXT PRIMARY KEY,
    store_id        TEXT NOT NULL REFERENCES coffer_stores(id) ON DELETE CASCADE,
    data            JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_coffer_objects_store ON coffer_objects (store_id, id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS coffer_objects`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_acl_entries",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS coffer_acl_entries (
    store_id        TEXT NOT NULL REFERENCES coffer_stores(id) ON DELETE CASCADE,
    identity        TEXT NOT NULL,
    perms           TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),

    PRIMARY KEY (store_id, identity)
);

CREATE INDEX IF NOT EXISTS idx_coffer_acl_identity ON coffer_acl_entries (identity);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS coffer_acl_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_audit",
			Version: "20250301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS coffer_audit (
    id              TEXT PRIMARY KEY,
    store_id        TEXT NOT NULL DEFAULT '',
    identity        TEXT NOT NULL DEFAULT '',
    op              TEXT NOT NULL,
    outcome         TEXT NOT NULL,
    detail          TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_coffer_audit_store ON coffer_audit (store_id);
CREATE INDEX IF NOT EXISTS idx_coffer_audit_identity ON coffer_audit (identity);
CREATE INDEX IF NOT EXISTS idx_coffer_audit_outcome ON coffer_audit (outcome);
CREATE INDEX IF NOT EXISTS idx_coffer_audit_created ON coffer_audit (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS coffer_audit`)
				return err
			},
		},
	)
}
