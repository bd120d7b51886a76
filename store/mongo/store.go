package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/licensing"
	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/settings"
	licensingstore "github.com/xraph/licensing/store"
)

// Collection name constants.
const (
	colConfigs  = "licensing_configs"
	colLicenses = "licensing_licenses"
)

// compile-time interface check
var _ licensingstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all licensing collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("licensing/mongo: migrate %s indexes: %w", col, err)
		}
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return licensing.ErrAlreadyExists
		}
		return fmt.Errorf("licensing/mongo: create config: %w", err)
	}
	return nil
}

func (s *Store) GetConfig(ctx context.Context, depID id.DeploymentID) (*settings.Config, error) {
	var m configModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": depID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, licensing.ErrNotFound
		}
		return nil, fmt.Errorf("licensing/mongo: get config: %w", err)
	}
	return fromConfigModel(&m)
}

func (s *Store) UpdateConfig(ctx context.Context, c *settings.Config) error {
	m := toConfigModel(c)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.DeploymentID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("licensing/mongo: update config: %w", err)
	}
	if res.MatchedCount() == 0 {
		return licensing.ErrNotFound
	}
	return nil
}

// ==================== License Store ====================

func (s *Store) CreateLicense(ctx context.Context, l *license.License) error {
	m := toLicenseModel(l)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return licensing.ErrAlreadyExists
		}
		return fmt.Errorf("licensing/mongo: create license: %w", err)
	}
	return nil
}

func (s *Store) GetLicense(ctx context.Context, depID id.DeploymentID, licenseID uint64) (*license.License, error) {
	var m licenseModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": licenseKey(depID, licenseID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, licensing.ErrNotFound
		}
		return nil, fmt.Errorf("licensing/mongo: get license: %w", err)
	}
	return fromLicenseModel(&m)
}

func (s *Store) UpdateAttributes(ctx context.Context, depID id.DeploymentID, licenseID uint64, attrs license.Attributes) error {
	res, err := s.mdb.NewUpdate((*licenseModel)(nil)).
		Filter(bson.M{"_id": licenseKey(depID, licenseID)}).
		Set("attributes", attrModel{FlagA: attrs.FlagA, FlagB: attrs.FlagB}).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("licensing/mongo: update attributes: %w", err)
	}
	if res.MatchedCount() == 0 {
		return licensing.ErrNotFound
	}
	return nil
}

func (s *Store) TransferLicense(ctx context.Context, depID id.DeploymentID, licenseID uint64, to common.Address) error {
	res, err := s.mdb.NewUpdate((*licenseModel)(nil)).
		Filter(bson.M{"_id": licenseKey(depID, licenseID)}).
		Set("owner", to.Hex()).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("licensing/mongo: transfer license: %w", err)
	}
	if res.MatchedCount() == 0 {
		return licensing.ErrNotFound
	}
	return nil
}

func (s *Store) ListOwned(ctx context.Context, depID id.DeploymentID, owner common.Address) ([]uint64, error) {
	var models []licenseModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"deployment_id": depID.String(), "owner": owner.Hex()}).
		Sort(bson.D{{Key: "license_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("licensing/mongo: list owned: %w", err)
	}

	ids := make([]uint64, len(models))
	for i := range models {
		ids[i] = uint64(models[i].LicenseID) //nolint:gosec // stored from a uint64
	}
	return ids, nil
}

func (s *Store) LastLicenseID(ctx context.Context, depID id.DeploymentID) (uint64, error) {
	var models []licenseModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"deployment_id": depID.String()}).
		Sort(bson.D{{Key: "license_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("licensing/mongo: last license id: %w", err)
	}
	if len(models) == 0 {
		return 0, nil
	}
	return uint64(models[0].LicenseID), nil //nolint:gosec // stored from a uint64
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all licensing collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colConfigs: {
			{Keys: bson.D{{Key: "owner", Value: 1}}},
		},
		colLicenses: {
			{
				Keys:    bson.D{{Key: "deployment_id", Value: 1}, {Key: "license_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "deployment_id", Value: 1}, {Key: "owner", Value: 1}, {Key: "license_id", Value: 1}}},
		},
	}
}
