// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/namedock/registrar/internal/app/domain/license"
	"github.com/namedock/registrar/internal/app/domain/oracle"
	"github.com/namedock/registrar/internal/app/domain/registration"
	"github.com/namedock/registrar/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.LicenseStore = (*Store)(nil)
var _ storage.ReceiptStore = (*Store)(nil)
var _ storage.SnapshotStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- LicenseStore -----------------------------------------------------------

func (s *Store) CreateLicense(ctx context.Context, lic license.License) (license.License, error) {
	if lic.ID == "" {
		lic.ID = uuid.NewString()
	}
	lic.Account = strings.ToLower(lic.Account)
	lic.ParentLabel = strings.ToLower(lic.ParentLabel)
	lic.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registrar_licenses (id, account, parent_label, charged_wei, oracle_price8, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, lic.ID, lic.Account, lic.ParentLabel, lic.ChargedWei, lic.OraclePrice8, lic.CreatedAt)
	if err != nil {
		return license.License{}, err
	}
	return lic, nil
}

func (s *Store) GetLicense(ctx context.Context, account, parentLabel string) (license.License, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account, parent_label, charged_wei, oracle_price8, created_at
		FROM registrar_licenses
		WHERE account = $1 AND parent_label = $2
	`, strings.ToLower(account), strings.ToLower(parentLabel))

	var lic license.License
	if err := row.Scan(&lic.ID, &lic.Account, &lic.ParentLabel, &lic.ChargedWei, &lic.OraclePrice8, &lic.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return license.License{}, storage.ErrNotFound
		}
		return license.License{}, err
	}
	return lic, nil
}

func (s *Store) ListLicenses(ctx context.Context, parentLabel string) ([]license.License, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, parent_label, charged_wei, oracle_price8, created_at
		FROM registrar_licenses
		WHERE $1 = '' OR parent_label = $1
		ORDER BY created_at
	`, strings.ToLower(parentLabel))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []license.License
	for rows.Next() {
		var lic license.License
		if err := rows.Scan(&lic.ID, &lic.Account, &lic.ParentLabel, &lic.ChargedWei, &lic.OraclePrice8, &lic.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, lic)
	}
	return result, rows.Err()
}

// --- ReceiptStore -----------------------------------------------------------

func (s *Store) CreateReceipt(ctx context.Context, rec registration.Receipt) (registration.Receipt, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()

	labelsJSON, err := json.Marshal(rec.Labels)
	if err != nil {
		return registration.Receipt{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO registrar_receipts (id, parent_label, labels, payer, recipient, licensed, unit_price_cents, oracle_price8, charged_wei, refund_wei, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, rec.ParentLabel, labelsJSON, rec.Payer, rec.Recipient, rec.Licensed, rec.UnitPriceCents, rec.OraclePrice8, rec.ChargedWei, rec.RefundWei, rec.CreatedAt)
	if err != nil {
		return registration.Receipt{}, err
	}
	return rec, nil
}

func (s *Store) GetReceipt(ctx context.Context, id string) (registration.Receipt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, parent_label, labels, payer, recipient, licensed, unit_price_cents, oracle_price8, charged_wei, refund_wei, created_at
		FROM registrar_receipts
		WHERE id = $1
	`, id)

	rec, err := scanReceipt(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registration.Receipt{}, storage.ErrNotFound
		}
		return registration.Receipt{}, err
	}
	return rec, nil
}

func (s *Store) ListReceipts(ctx context.Context, parentLabel string) ([]registration.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_label, labels, payer, recipient, licensed, unit_price_cents, oracle_price8, charged_wei, refund_wei, created_at
		FROM registrar_receipts
		WHERE $1 = '' OR parent_label = $1
		ORDER BY created_at
	`, strings.ToLower(parentLabel))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []registration.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func scanReceipt(scan func(dest ...any) error) (registration.Receipt, error) {
	var (
		rec       registration.Receipt
		labelsRaw []byte
	)
	if err := scan(&rec.ID, &rec.ParentLabel, &labelsRaw, &rec.Payer, &rec.Recipient, &rec.Licensed, &rec.UnitPriceCents, &rec.OraclePrice8, &rec.ChargedWei, &rec.RefundWei, &rec.CreatedAt); err != nil {
		return registration.Receipt{}, err
	}
	if len(labelsRaw) > 0 {
		_ = json.Unmarshal(labelsRaw, &rec.Labels)
	}
	return rec, nil
}

// --- SnapshotStore ----------------------------------------------------------

func (s *Store) CreatePriceSnapshot(ctx context.Context, snap oracle.Snapshot) (oracle.Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	snap.CreatedAt = now
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registrar_price_snapshots (id, price8, source, collected_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, snap.ID, snap.Price8, snap.Source, snap.CollectedAt, snap.CreatedAt)
	if err != nil {
		return oracle.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) ListPriceSnapshots(ctx context.Context, limit int) ([]oracle.Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, price8, source, collected_at, created_at
		FROM registrar_price_snapshots
		ORDER BY collected_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []oracle.Snapshot
	for rows.Next() {
		var snap oracle.Snapshot
		if err := rows.Scan(&snap.ID, &snap.Price8, &snap.Source, &snap.CollectedAt, &snap.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	return result, rows.Err()
}
