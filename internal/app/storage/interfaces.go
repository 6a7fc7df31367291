package storage

import (
	"context"
	"errors"

	"github.com/namedock/registrar/internal/app/domain/license"
	"github.com/namedock/registrar/internal/app/domain/oracle"
	"github.com/namedock/registrar/internal/app/domain/registration"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// LicenseStore persists license flags keyed by (account, parent label).
type LicenseStore interface {
	CreateLicense(ctx context.Context, lic license.License) (license.License, error)
	GetLicense(ctx context.Context, account, parentLabel string) (license.License, error)
	ListLicenses(ctx context.Context, parentLabel string) ([]license.License, error)
}

// ReceiptStore persists registration receipts.
type ReceiptStore interface {
	CreateReceipt(ctx context.Context, rec registration.Receipt) (registration.Receipt, error)
	GetReceipt(ctx context.Context, id string) (registration.Receipt, error)
	ListReceipts(ctx context.Context, parentLabel string) ([]registration.Receipt, error)
}

// SnapshotStore persists oracle price observations.
type SnapshotStore interface {
	CreatePriceSnapshot(ctx context.Context, snap oracle.Snapshot) (oracle.Snapshot, error)
	ListPriceSnapshots(ctx context.Context, limit int) ([]oracle.Snapshot, error)
}
