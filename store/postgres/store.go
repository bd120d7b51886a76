package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/licensing"
	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/settings"
	licensingstore "github.com/xraph/licensing/store"
)

// compile-time interface check
var _ licensingstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("licensing/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("licensing/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Config Store ====================

func (s *Store) CreateConfig(ctx context.Context, c *settings.Config) error {
	m := toConfigModel(c)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("licensing/postgres: create config: %w", err)
	}
	return nil
}

func (s *Store) GetConfig(ctx context.Context, depID id.DeploymentID) (*settings.Config, error) {
	m := new(configModel)
	err := s.pg.NewSelect(m).
		Where("deployment_id = $1", depID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, licensing.ErrNotFound
		}
		return nil, fmt.Errorf("licensing/postgres: get config: %w", err)
	}
	return fromConfigModel(m)
}

func (s *Store) UpdateConfig(ctx context.Context, c *settings.Config) error {
	m := toConfigModel(c)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("licensing/postgres: update config: %w", err)
	}
	return requireRow(res)
}

// ==================== License Store ====================

func (s *Store) CreateLicense(ctx context.Context, l *license.License) error {
	m := toLicenseModel(l)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("licensing/postgres: create license: %w", err)
	}
	return nil
}

func (s *Store) GetLicense(ctx context.Context, depID id.DeploymentID, licenseID uint64) (*license.License, error) {
	m := new(licenseModel)
	err := s.pg.NewSelect(m).
		Where("deployment_id = $1", depID.String()).
		Where("id = $2", int64(licenseID)). //nolint:gosec // ids are sequential from 1
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, licensing.ErrNotFound
		}
		return nil, fmt.Errorf("licensing/postgres: get license: %w", err)
	}
	return fromLicenseModel(m)
}

func (s *Store) UpdateAttributes(ctx context.Context, depID id.DeploymentID, licenseID uint64, attrs license.Attributes) error {
	res, err := s.pg.NewUpdate((*licenseModel)(nil)).
		Set("flag_a = $1", attrs.FlagA).
		Set("flag_b = $2", attrs.FlagB).
		Set("updated_at = $3", now()).
		Where("deployment_id = $4", depID.String()).
		Where("id = $5", int64(licenseID)). //nolint:gosec // ids are sequential from 1
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("licensing/postgres: update attributes: %w", err)
	}
	return requireRow(res)
}

// TransferLicense rewrites the owner column; the ownership index is the
// (deployment_id, owner, id) index over the same row.
func (s *Store) TransferLicense(ctx context.Context, depID id.DeploymentID, licenseID uint64, to common.Address) error {
	res, err := s.pg.NewUpdate((*licenseModel)(nil)).
		Set("owner = $1", to.Hex()).
		Set("updated_at = $2", now()).
		Where("deployment_id = $3", depID.String()).
		Where("id = $4", int64(licenseID)). //nolint:gosec // ids are sequential from 1
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("licensing/postgres: transfer license: %w", err)
	}
	return requireRow(res)
}

func (s *Store) ListOwned(ctx context.Context, depID id.DeploymentID, owner common.Address) ([]uint64, error) {
	var models []licenseModel
	err := s.pg.NewSelect(&models).
		Where("deployment_id = $1", depID.String()).
		Where("owner = $2", owner.Hex()).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("licensing/postgres: list owned: %w", err)
	}

	ids := make([]uint64, len(models))
	for i := range models {
		ids[i] = uint64(models[i].ID) //nolint:gosec // stored from a uint64
	}
	return ids, nil
}

func (s *Store) LastLicenseID(ctx context.Context, depID id.DeploymentID) (uint64, error) {
	var last int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(MAX(id), 0) FROM licensing_licenses
		WHERE deployment_id = $1
	`, depID.String()).Scan(ctx, &last)
	if err != nil {
		return 0, fmt.Errorf("licensing/postgres: last license id: %w", err)
	}
	return uint64(last), nil //nolint:gosec // MAX over stored ids
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

// rowsResult is the part of an exec result requireRow needs.
type rowsResult interface {
	RowsAffected() (int64, error)
}

func requireRow(res rowsResult) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return licensing.ErrNotFound
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
