package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the licensing store.
var Migrations = migrate.NewGroup("licensing")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_licensing_configs",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS licensing_configs (
    deployment_id  TEXT PRIMARY KEY,
    owner          TEXT NOT NULL,
    name           TEXT NOT NULL DEFAULT '',
    symbol         TEXT NOT NULL DEFAULT '',
    base_uri       TEXT NOT NULL DEFAULT '',
    mint_price     TEXT NOT NULL DEFAULT '0',
    paused         BOOLEAN NOT NULL DEFAULT FALSE,
    payment_ledger TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS licensing_configs`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_licensing_licenses",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS licensing_licenses (
    deployment_id  TEXT NOT NULL,
    id             BIGINT NOT NULL,
    owner          TEXT NOT NULL,
    flag_a         BOOLEAN NOT NULL DEFAULT FALSE,
    flag_b         BOOLEAN NOT NULL DEFAULT FALSE,
    price_paid     TEXT NOT NULL DEFAULT '0',
    payment_ledger TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (deployment_id, id)
);

CREATE INDEX IF NOT EXISTS idx_licensing_licenses_owner ON licensing_licenses (deployment_id, owner, id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS licensing_licenses`)
				return err
			},
		},
	)
}
