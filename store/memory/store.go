// Package memory provides an in-process Store for tests, local development
// and single-process deployments that don't need durability.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/licensing"
	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/settings"
	"github.com/xraph/licensing/store"
)

var _ store.Store = (*Store)(nil)

type licenseKey struct {
	dep string
	id  uint64
}

type holderKey struct {
	dep   string
	owner common.Address
}

// Store keeps every record in maps guarded by one RWMutex. Returned records
// are copies, so callers can't mutate stored state behind the lock.
type Store struct {
	mu sync.RWMutex

	// Config storage, by deployment
	configs map[string]*settings.Config

	// License storage
	licenses map[licenseKey]*license.License
	lastID   map[string]uint64

	// Ownership index, ids kept sorted
	owned map[holderKey][]uint64

	closed bool
}

func New() *Store {
	return &Store{
		configs:  make(map[string]*settings.Config),
		licenses: make(map[licenseKey]*license.License),
		lastID:   make(map[string]uint64),
		owned:    make(map[holderKey][]uint64),
	}
}

// Config Store implementation
func (s *Store) CreateConfig(_ context.Context, c *settings.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return licensing.ErrStoreClosed
	}
	key := c.DeploymentID.String()
	if _, exists := s.configs[key]; exists {
		return licensing.ErrAlreadyExists
	}
	cp := *c
	s.configs[key] = &cp
	return nil
}

func (s *Store) GetConfig(_ context.Context, depID id.DeploymentID) (*settings.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, licensing.ErrStoreClosed
	}
	if c, ok := s.configs[depID.String()]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, licensing.ErrNotFound
}

func (s *Store) UpdateConfig(_ context.Context, c *settings.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return licensing.ErrStoreClosed
	}
	key := c.DeploymentID.String()
	if _, exists := s.configs[key]; !exists {
		return licensing.ErrNotFound
	}
	cp := *c
	cp.UpdatedAt = time.Now().UTC()
	s.configs[key] = &cp
	return nil
}

// License Store implementation
func (s *Store) CreateLicense(_ context.Context, l *license.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return licensing.ErrStoreClosed
	}
	dep := l.DeploymentID.String()
	key := licenseKey{dep: dep, id: l.ID}
	if _, exists := s.licenses[key]; exists {
		return licensing.ErrAlreadyExists
	}

	cp := *l
	s.licenses[key] = &cp
	s.index(dep, l.Owner, l.ID)
	if l.ID > s.lastID[dep] {
		s.lastID[dep] = l.ID
	}
	return nil
}

func (s *Store) GetLicense(_ context.Context, depID id.DeploymentID, licenseID uint64) (*license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, licensing.ErrStoreClosed
	}
	if l, ok := s.licenses[licenseKey{dep: depID.String(), id: licenseID}]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, licensing.ErrNotFound
}

func (s *Store) UpdateAttributes(_ context.Context, depID id.DeploymentID, licenseID uint64, attrs license.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return licensing.ErrStoreClosed
	}
	l, ok := s.licenses[licenseKey{dep: depID.String(), id: licenseID}]
	if !ok {
		return licensing.ErrNotFound
	}
	l.Attributes = attrs
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) TransferLicense(_ context.Context, depID id.DeploymentID, licenseID uint64, to common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return licensing.ErrStoreClosed
	}
	dep := depID.String()
	l, ok := s.licenses[licenseKey{dep: dep, id: licenseID}]
	if !ok {
		return licensing.ErrNotFound
	}

	s.unindex(dep, l.Owner, licenseID)
	s.index(dep, to, licenseID)
	l.Owner = to
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListOwned(_ context.Context, depID id.DeploymentID, owner common.Address) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, licensing.ErrStoreClosed
	}
	ids := s.owned[holderKey{dep: depID.String(), owner: owner}]
	result := make([]uint64, len(ids))
	copy(result, ids)
	return result, nil
}

func (s *Store) LastLicenseID(_ context.Context, depID id.DeploymentID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, licensing.ErrStoreClosed
	}
	return s.lastID[depID.String()], nil
}

// index inserts licenseID into owner's sorted id list. Caller holds s.mu.
func (s *Store) index(dep string, owner common.Address, licenseID uint64) {
	key := holderKey{dep: dep, owner: owner}
	ids := s.owned[key]
	pos, found := slices.BinarySearch(ids, licenseID)
	if found {
		return
	}
	s.owned[key] = slices.Insert(ids, pos, licenseID)
}

// unindex removes licenseID from owner's id list. Caller holds s.mu.
func (s *Store) unindex(dep string, owner common.Address, licenseID uint64) {
	key := holderKey{dep: dep, owner: owner}
	ids := s.owned[key]
	pos, found := slices.BinarySearch(ids, licenseID)
	if !found {
		return
	}
	ids = slices.Delete(ids, pos, pos+1)
	if len(ids) == 0 {
		delete(s.owned, key)
		return
	}
	s.owned[key] = ids
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return licensing.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Later calls fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
