// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/namedock/registrar/internal/app/domain/license"
	"github.com/namedock/registrar/internal/app/domain/oracle"
	"github.com/namedock/registrar/internal/app/domain/registration"
	"github.com/namedock/registrar/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	licenses  map[string]license.License
	receipts  map[string]registration.Receipt
	snapshots []oracle.Snapshot
}

var _ storage.LicenseStore = (*Store)(nil)
var _ storage.ReceiptStore = (*Store)(nil)
var _ storage.SnapshotStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:   1,
		licenses: make(map[string]license.License),
		receipts: make(map[string]registration.Receipt),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func licenseKey(account, parentLabel string) string {
	return strings.ToLower(account) + "|" + strings.ToLower(parentLabel)
}

// LicenseStore implementation ------------------------------------------------

func (s *Store) CreateLicense(_ context.Context, lic license.License) (license.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := licenseKey(lic.Account, lic.ParentLabel)
	if _, exists := s.licenses[key]; exists {
		return license.License{}, fmt.Errorf("license for %s under %s already exists", lic.Account, lic.ParentLabel)
	}

	if lic.ID == "" {
		lic.ID = s.nextIDLocked()
	}
	lic.CreatedAt = time.Now().UTC()

	s.licenses[key] = lic
	return lic, nil
}

func (s *Store) GetLicense(_ context.Context, account, parentLabel string) (license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lic, ok := s.licenses[licenseKey(account, parentLabel)]
	if !ok {
		return license.License{}, storage.ErrNotFound
	}
	return lic, nil
}

func (s *Store) ListLicenses(_ context.Context, parentLabel string) ([]license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]license.License, 0)
	for _, lic := range s.licenses {
		if parentLabel == "" || strings.EqualFold(lic.ParentLabel, parentLabel) {
			result = append(result, lic)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// ReceiptStore implementation ------------------------------------------------

func (s *Store) CreateReceipt(_ context.Context, rec registration.Receipt) (registration.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	} else if _, exists := s.receipts[rec.ID]; exists {
		return registration.Receipt{}, fmt.Errorf("receipt %s already exists", rec.ID)
	}
	rec.CreatedAt = time.Now().UTC()
	rec.Labels = append([]string(nil), rec.Labels...)

	s.receipts[rec.ID] = rec
	return cloneReceipt(rec), nil
}

func (s *Store) GetReceipt(_ context.Context, id string) (registration.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.receipts[id]
	if !ok {
		return registration.Receipt{}, storage.ErrNotFound
	}
	return cloneReceipt(rec), nil
}

func (s *Store) ListReceipts(_ context.Context, parentLabel string) ([]registration.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]registration.Receipt, 0)
	for _, rec := range s.receipts {
		if parentLabel == "" || strings.EqualFold(rec.ParentLabel, parentLabel) {
			result = append(result, cloneReceipt(rec))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// SnapshotStore implementation -----------------------------------------------

func (s *Store) CreatePriceSnapshot(_ context.Context, snap oracle.Snapshot) (oracle.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	snap.CreatedAt = now
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = now
	}

	s.snapshots = append(s.snapshots, snap)
	return snap, nil
}

func (s *Store) ListPriceSnapshots(_ context.Context, limit int) ([]oracle.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]oracle.Snapshot, len(s.snapshots))
	copy(result, s.snapshots)
	sort.Slice(result, func(i, j int) bool { return result[i].CollectedAt.After(result[j].CollectedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cloneReceipt(rec registration.Receipt) registration.Receipt {
	rec.Labels = append([]string(nil), rec.Labels...)
	return rec
}
