// Package registrar settles bulk subname registrations: it checks control
// of the parent name, prices the batch at the live oracle rate, applies the
// labels atomically through the name wrapper, and records a receipt.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/namedock/registrar/internal/app/domain/registration"
	"github.com/namedock/registrar/internal/app/metrics"
	"github.com/namedock/registrar/internal/app/services/license"
	"github.com/namedock/registrar/internal/app/services/pricing"
	"github.com/namedock/registrar/internal/app/storage"
	"github.com/namedock/registrar/pkg/logger"
)

var (
	// ErrInvalidLabel indicates a label outside the allowed charset or
	// length for a DNS-style label.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrDuplicateLabel indicates a batch naming the same label twice.
	ErrDuplicateLabel = errors.New("duplicate label in batch")
	// ErrBatchTooLarge indicates a batch above the configured limit.
	ErrBatchTooLarge = errors.New("batch too large")
	// ErrPartialRegistration indicates a batch that could not be applied
	// in full. No label from the batch was committed.
	ErrPartialRegistration = errors.New("batch not applied")
)

// DefaultMaxBatchSize bounds one registration call.
const DefaultMaxBatchSize = 100

// Labels are DNS-style: lowercase alphanumerics and interior hyphens,
// 1 to 63 characters.
var labelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Service is the registration engine. Batches under the same parent are
// serialized so availability checks stay valid through the commit.
type Service struct {
	wrapper  NameWrapper
	guard    *AccessGuard
	pricing  *pricing.Service
	licenses *license.Service
	receipts storage.ReceiptStore
	forward  license.Forwarder
	maxBatch int
	log      *logger.Logger

	mu      sync.Mutex
	parents map[string]*parentLock
}

type parentLock struct {
	sync.Mutex
	refs int
}

// Option configures a Service.
type Option func(*Service)

// WithMaxBatchSize overrides DefaultMaxBatchSize.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// WithForwarder routes collected payments to a payout account.
func WithForwarder(f license.Forwarder) Option {
	return func(s *Service) { s.forward = f }
}

// New constructs the registration engine.
func New(wrapper NameWrapper, guard *AccessGuard, pricingSvc *pricing.Service, licenses *license.Service, receipts storage.ReceiptStore, log *logger.Logger, opts ...Option) (*Service, error) {
	if wrapper == nil {
		return nil, fmt.Errorf("name wrapper required")
	}
	if guard == nil {
		return nil, fmt.Errorf("access guard required")
	}
	if pricingSvc == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if licenses == nil {
		return nil, fmt.Errorf("license service required")
	}
	if receipts == nil {
		return nil, fmt.Errorf("receipt store required")
	}
	if log == nil {
		log = logger.NewDefault("registrar")
	}

	s := &Service{
		wrapper:  wrapper,
		guard:    guard,
		pricing:  pricingSvc,
		licenses: licenses,
		receipts: receipts,
		maxBatch: DefaultMaxBatchSize,
		log:      log,
		parents:  make(map[string]*parentLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register applies a batch and settles payment. On success every label in
// the batch exists under the parent; on any error none do and the full
// payment belongs back to the payer. The returned refund is the excess over
// the price computed at the current oracle reading, zero for licensed
// payers.
func (s *Service) Register(ctx context.Context, payer string, batch registration.Batch, payment *big.Int) (registration.Receipt, *big.Int, error) {
	payer = strings.ToLower(strings.TrimSpace(payer))
	batch.ParentLabel = strings.ToLower(strings.TrimSpace(batch.ParentLabel))
	batch.Recipient = strings.ToLower(strings.TrimSpace(batch.Recipient))
	if payer == "" {
		return registration.Receipt{}, nil, fmt.Errorf("payer account required")
	}
	if batch.Recipient == "" {
		batch.Recipient = payer
	}
	if payment == nil {
		payment = new(big.Int)
	}

	labels, err := s.normalizeLabels(batch.ParentLabel, batch.Labels)
	if err != nil {
		return registration.Receipt{}, nil, err
	}
	batch.Labels = labels

	unlock := s.lockParent(batch.ParentLabel)
	defer unlock()

	if err := s.guard.Authorize(ctx, payer, batch.ParentLabel); err != nil {
		return registration.Receipt{}, nil, err
	}

	licensed, err := s.licenses.HasLicense(ctx, payer, batch.ParentLabel)
	if err != nil {
		return registration.Receipt{}, nil, fmt.Errorf("check license: %w", err)
	}

	// Licensed payers are exempt from the per-subname fee, and the quote
	// is skipped entirely so their batches settle even during an oracle
	// outage.
	required := new(big.Int)
	var unitCents, price8 int64
	if !licensed {
		quote, err := s.pricing.QuoteBulk(ctx, len(labels))
		if err != nil {
			return registration.Receipt{}, nil, err
		}
		required = quote.RequiredWei
		unitCents = quote.UnitPriceCents
		price8 = quote.OraclePrice8
	}

	if payment.Cmp(required) < 0 {
		return registration.Receipt{}, nil, fmt.Errorf("%w: need %s wei for %d labels, got %s",
			license.ErrInsufficientPayment, required, len(labels), payment)
	}
	refund := new(big.Int).Sub(payment, required)

	// Check phase: every label must be free before anything is written.
	for _, label := range labels {
		free, err := s.wrapper.Available(ctx, batch.ParentLabel, label)
		if err != nil {
			return registration.Receipt{}, nil, fmt.Errorf("%w: availability of %q: %v", ErrPartialRegistration, label, err)
		}
		if !free {
			return registration.Receipt{}, nil, fmt.Errorf("%w: label %q is taken", ErrPartialRegistration, label)
		}
	}

	if err := s.wrapper.Register(ctx, batch.ParentLabel, labels, batch.Recipient, batch.Resolver, batch.TTL); err != nil {
		return registration.Receipt{}, nil, fmt.Errorf("%w: %v", ErrPartialRegistration, err)
	}

	// Funds move only after the batch is fully applied, so a failed apply
	// never needs a payment rollback.
	if s.forward != nil && required.Sign() > 0 {
		if err := s.forward.Forward(ctx, required); err != nil {
			s.log.WithError(err).WithField("parent", batch.ParentLabel).
				Error("Payout forwarding failed, funds held for retry")
		}
	}

	receipt, err := s.receipts.CreateReceipt(ctx, registration.Receipt{
		ID:             uuid.NewString(),
		ParentLabel:    batch.ParentLabel,
		Labels:         labels,
		Payer:          payer,
		Recipient:      batch.Recipient,
		Licensed:       licensed,
		UnitPriceCents: unitCents,
		OraclePrice8:   price8,
		ChargedWei:     required.String(),
		RefundWei:      refund.String(),
	})
	if err != nil {
		return registration.Receipt{}, nil, fmt.Errorf("record receipt: %w", err)
	}

	metrics.RecordRegistration(len(labels), licensed)
	s.log.WithField("parent", batch.ParentLabel).
		WithField("labels", len(labels)).
		WithField("licensed", licensed).
		WithField("charged_wei", receipt.ChargedWei).
		Info("Batch registered")
	return receipt, refund, nil
}

// GetReceipt looks up one receipt by ID.
func (s *Service) GetReceipt(ctx context.Context, id string) (registration.Receipt, error) {
	return s.receipts.GetReceipt(ctx, id)
}

// ListReceipts returns the receipts recorded under a parent label.
func (s *Service) ListReceipts(ctx context.Context, parentLabel string) ([]registration.Receipt, error) {
	return s.receipts.ListReceipts(ctx, strings.ToLower(strings.TrimSpace(parentLabel)))
}

// normalizeLabels lowercases, validates and dedup-checks the batch.
func (s *Service) normalizeLabels(parentLabel string, raw []string) ([]string, error) {
	if parentLabel == "" {
		return nil, fmt.Errorf("%w: empty parent label", ErrInvalidLabel)
	}
	if !labelPattern.MatchString(parentLabel) {
		return nil, fmt.Errorf("%w: parent %q", ErrInvalidLabel, parentLabel)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty batch", pricing.ErrInvalidQuantity)
	}
	if len(raw) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d labels, limit %d", ErrBatchTooLarge, len(raw), s.maxBatch)
	}

	labels := make([]string, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, label := range raw {
		label = strings.ToLower(strings.TrimSpace(label))
		if !labelPattern.MatchString(label) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
		}
		seen[label] = struct{}{}
		labels[i] = label
	}
	return labels, nil
}

// lockParent serializes batches under one parent without blocking other
// parents. Idle entries are dropped so the map stays bounded.
func (s *Service) lockParent(parentLabel string) func() {
	s.mu.Lock()
	pl, ok := s.parents[parentLabel]
	if !ok {
		pl = &parentLock{}
		s.parents[parentLabel] = pl
	}
	pl.refs++
	s.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		s.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(s.parents, parentLabel)
		}
		s.mu.Unlock()
	}
}
