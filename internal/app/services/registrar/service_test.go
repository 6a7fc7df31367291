package registrar

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/namedock/registrar/internal/app/domain/registration"
	"github.com/namedock/registrar/internal/app/services/license"
	"github.com/namedock/registrar/internal/app/services/oracle"
	"github.com/namedock/registrar/internal/app/services/pricing"
	"github.com/namedock/registrar/internal/app/storage/memory"
)

const (
	testPrice8   = 300000000000 // $3000.00 with 8 decimals
	ownerAddr    = "0x1111111111111111111111111111111111111111"
	agentAddr    = "0x2222222222222222222222222222222222222222"
	engineAddr   = "0x3333333333333333333333333333333333333333"
	strangerAddr = "0x4444444444444444444444444444444444444444"
)

type fixture struct {
	wrapper  *MemoryWrapper
	svc      *Service
	licenses *license.Service
	pricing  *pricing.Service
	store    *memory.Store
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	tiers, err := pricing.NewTierTable(pricing.DefaultTiers())
	if err != nil {
		t.Fatalf("tier table: %v", err)
	}
	adapter := oracle.NewAdapter(oracle.NewStaticSource(testPrice8), nil)
	pricingSvc, err := pricing.New(tiers, adapter, 2500, nil)
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}

	store := memory.New()
	licenseSvc, err := license.New(store, pricingSvc, nil, nil)
	if err != nil {
		t.Fatalf("license: %v", err)
	}

	wrapper := NewMemoryWrapper()
	wrapper.SetOwner("brand", ownerAddr)
	wrapper.SetApprovalForAll(ownerAddr, engineAddr, true)

	guard, err := NewAccessGuard(wrapper, engineAddr)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	svc, err := New(wrapper, guard, pricingSvc, licenseSvc, store, nil, opts...)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return &fixture{wrapper: wrapper, svc: svc, licenses: licenseSvc, pricing: pricingSvc, store: store}
}

func (f *fixture) requiredWei(t *testing.T, quantity int) *big.Int {
	t.Helper()
	quote, err := f.pricing.QuoteBulk(context.Background(), quantity)
	if err != nil {
		t.Fatalf("QuoteBulk: %v", err)
	}
	return quote.RequiredWei
}

func batchOf(labels ...string) registration.Batch {
	return registration.Batch{ParentLabel: "brand", Labels: labels}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	payment := f.requiredWei(t, 3)

	receipt, refund, err := f.svc.Register(context.Background(), ownerAddr, batchOf("alpha", "beta", "gamma"), payment)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if refund.Sign() != 0 {
		t.Fatalf("refund = %s, want 0", refund)
	}
	if receipt.UnitPriceCents != 500 {
		t.Fatalf("unit = %d, want 500", receipt.UnitPriceCents)
	}
	if receipt.Licensed {
		t.Fatal("receipt marked licensed without a license")
	}
	if receipt.ChargedWei != payment.String() {
		t.Fatalf("charged = %s, want %s", receipt.ChargedWei, payment)
	}
	for _, label := range []string{"alpha", "beta", "gamma"} {
		if got := f.wrapper.RecipientOf("brand", label); got != ownerAddr {
			t.Fatalf("label %q held by %q", label, got)
		}
	}

	stored, err := f.svc.GetReceipt(context.Background(), receipt.ID)
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	if stored.ParentLabel != "brand" || len(stored.Labels) != 3 {
		t.Fatalf("stored receipt %+v", stored)
	}
}

func TestRegister_ExcessPaymentRefunded(t *testing.T) {
	f := newFixture(t)
	required := f.requiredWei(t, 2)
	payment := new(big.Int).Add(required, big.NewInt(123456))

	receipt, refund, err := f.svc.Register(context.Background(), ownerAddr, batchOf("one", "two"), payment)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if refund.Cmp(big.NewInt(123456)) != 0 {
		t.Fatalf("refund = %s, want 123456", refund)
	}
	if receipt.RefundWei != "123456" {
		t.Fatalf("receipt refund = %s", receipt.RefundWei)
	}
}

func TestRegister_InsufficientPayment(t *testing.T) {
	f := newFixture(t)
	short := new(big.Int).Sub(f.requiredWei(t, 2), big.NewInt(1))

	_, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf("one", "two"), short)
	if !errors.Is(err, license.ErrInsufficientPayment) {
		t.Fatalf("err = %v, want ErrInsufficientPayment", err)
	}
	if free, _ := f.wrapper.Available(context.Background(), "brand", "one"); !free {
		t.Fatal("label committed despite rejected payment")
	}
}

func TestRegister_Unauthorized(t *testing.T) {
	f := newFixture(t)
	payment := f.requiredWei(t, 1)

	_, _, err := f.svc.Register(context.Background(), strangerAddr, batchOf("alpha"), payment)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestRegister_ApprovedOperator(t *testing.T) {
	f := newFixture(t)
	f.wrapper.SetApprovalForAll(ownerAddr, agentAddr, true)
	payment := f.requiredWei(t, 1)

	receipt, _, err := f.svc.Register(context.Background(), agentAddr, batchOf("alpha"), payment)
	if err != nil {
		t.Fatalf("Register by approved operator: %v", err)
	}
	if receipt.Payer != agentAddr {
		t.Fatalf("payer = %s", receipt.Payer)
	}
}

func TestRegister_EngineApprovalRequired(t *testing.T) {
	f := newFixture(t)
	f.wrapper.SetApprovalForAll(ownerAddr, engineAddr, false)
	payment := f.requiredWei(t, 1)

	_, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf("alpha"), payment)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized when engine approval revoked", err)
	}
}

func TestRegister_LicensedPayerIsFree(t *testing.T) {
	f := newFixture(t)
	licWei, _, err := f.pricing.LicenseQuote(context.Background())
	if err != nil {
		t.Fatalf("LicenseQuote: %v", err)
	}
	if _, _, err := f.licenses.Purchase(context.Background(), ownerAddr, "brand", licWei); err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	receipt, refund, err := f.svc.Register(context.Background(), ownerAddr, batchOf("alpha", "beta"), nil)
	if err != nil {
		t.Fatalf("Register with license: %v", err)
	}
	if !receipt.Licensed {
		t.Fatal("receipt not marked licensed")
	}
	if receipt.ChargedWei != "0" {
		t.Fatalf("charged = %s, want 0", receipt.ChargedWei)
	}
	if refund.Sign() != 0 {
		t.Fatalf("refund = %s", refund)
	}
}

func TestRegister_LicenseIsPerParent(t *testing.T) {
	f := newFixture(t)
	f.wrapper.SetOwner("otherbrand", ownerAddr)
	f.wrapper.SetApprovalForAll(ownerAddr, engineAddr, true)

	licWei, _, err := f.pricing.LicenseQuote(context.Background())
	if err != nil {
		t.Fatalf("LicenseQuote: %v", err)
	}
	if _, _, err := f.licenses.Purchase(context.Background(), ownerAddr, "brand", licWei); err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	batch := registration.Batch{ParentLabel: "otherbrand", Labels: []string{"alpha"}}
	_, _, err = f.svc.Register(context.Background(), ownerAddr, batch, nil)
	if !errors.Is(err, license.ErrInsufficientPayment) {
		t.Fatalf("err = %v, license must not cover other parents", err)
	}
}

func TestRegister_TakenLabelAbortsWholeBatch(t *testing.T) {
	f := newFixture(t)
	payment := f.requiredWei(t, 1)
	if _, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf("beta"), payment); err != nil {
		t.Fatalf("seed registration: %v", err)
	}

	payment = f.requiredWei(t, 3)
	_, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf("alpha", "beta", "gamma"), payment)
	if !errors.Is(err, ErrPartialRegistration) {
		t.Fatalf("err = %v, want ErrPartialRegistration", err)
	}
	// Neither of the free labels was committed.
	for _, label := range []string{"alpha", "gamma"} {
		if free, _ := f.wrapper.Available(context.Background(), "brand", label); !free {
			t.Fatalf("label %q committed from failed batch", label)
		}
	}
}

func TestRegister_WrapperFailureAbortsWholeBatch(t *testing.T) {
	f := newFixture(t)
	f.wrapper.FailAfter(2)
	payment := f.requiredWei(t, 3)

	_, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf("alpha", "beta", "gamma"), payment)
	if !errors.Is(err, ErrPartialRegistration) {
		t.Fatalf("err = %v, want ErrPartialRegistration", err)
	}
	for _, label := range []string{"alpha", "beta", "gamma"} {
		if free, _ := f.wrapper.Available(context.Background(), "brand", label); !free {
			t.Fatalf("label %q committed from failed batch", label)
		}
	}
	if receipts, _ := f.svc.ListReceipts(context.Background(), "brand"); len(receipts) != 0 {
		t.Fatalf("failed batch left %d receipts", len(receipts))
	}
}

func TestRegister_ForwardsPayment(t *testing.T) {
	var forwarded *big.Int
	forward := license.ForwarderFunc(func(_ context.Context, amount *big.Int) error {
		forwarded = new(big.Int).Set(amount)
		return nil
	})
	f := newFixture(t, WithForwarder(forward))

	required := f.requiredWei(t, 2)
	payment := new(big.Int).Add(required, big.NewInt(99))
	if _, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf("one", "two"), payment); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if forwarded == nil || forwarded.Cmp(required) != 0 {
		t.Fatalf("forwarded %v, want %s", forwarded, required)
	}
}

func TestRegister_InvalidLabels(t *testing.T) {
	f := newFixture(t)
	payment := f.requiredWei(t, 1)

	for _, label := range []string{"", "UPPER", "bad_char", "-lead", "trail-", "has space"} {
		if _, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf(label), payment); !errors.Is(err, ErrInvalidLabel) {
			t.Fatalf("label %q err = %v, want ErrInvalidLabel", label, err)
		}
	}
}

func TestRegister_DuplicateLabels(t *testing.T) {
	f := newFixture(t)
	payment := f.requiredWei(t, 2)

	_, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf("alpha", "alpha"), payment)
	if !errors.Is(err, ErrDuplicateLabel) {
		t.Fatalf("err = %v, want ErrDuplicateLabel", err)
	}
}

func TestRegister_EmptyBatch(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf(), big.NewInt(1))
	if !errors.Is(err, pricing.ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestRegister_BatchSizeLimit(t *testing.T) {
	f := newFixture(t, WithMaxBatchSize(2))

	_, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf("a1", "a2", "a3"), big.NewInt(1))
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("err = %v, want ErrBatchTooLarge", err)
	}
}

func TestRegister_RecipientDefaultsToPayer(t *testing.T) {
	f := newFixture(t)
	payment := f.requiredWei(t, 1)

	batch := registration.Batch{ParentLabel: "brand", Labels: []string{"alpha"}, Recipient: strangerAddr}
	receipt, _, err := f.svc.Register(context.Background(), ownerAddr, batch, payment)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if receipt.Recipient != strangerAddr {
		t.Fatalf("recipient = %s", receipt.Recipient)
	}
	if got := f.wrapper.RecipientOf("brand", "alpha"); got != strangerAddr {
		t.Fatalf("label held by %q", got)
	}

	receipt, _, err = f.svc.Register(context.Background(), ownerAddr, batchOf("beta"), f.requiredWei(t, 1))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if receipt.Recipient != ownerAddr {
		t.Fatalf("default recipient = %s, want payer", receipt.Recipient)
	}
}

func TestRegister_ParentLocksReleased(t *testing.T) {
	f := newFixture(t)
	payment := f.requiredWei(t, 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			label := fmt.Sprintf("worker-%d", i)
			if _, _, err := f.svc.Register(context.Background(), ownerAddr, batchOf(label), payment); err != nil {
				t.Errorf("Register(%s): %v", label, err)
			}
		}(i)
	}
	wg.Wait()

	f.svc.mu.Lock()
	held := len(f.svc.parents)
	f.svc.mu.Unlock()
	if held != 0 {
		t.Fatalf("%d parent locks still held after all batches settled", held)
	}
}

func TestRegister_StaleOracleBlocksUnlicensed(t *testing.T) {
	tiers, err := pricing.NewTierTable(pricing.DefaultTiers())
	if err != nil {
		t.Fatalf("tier table: %v", err)
	}
	source := oracle.NewStaticSource(testPrice8)
	adapter := oracle.NewAdapter(source, nil, oracle.WithMaxAge(time.Hour))
	pricingSvc, err := pricing.New(tiers, adapter, 2500, nil)
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}

	store := memory.New()
	licenseSvc, err := license.New(store, pricingSvc, nil, nil)
	if err != nil {
		t.Fatalf("license: %v", err)
	}
	wrapper := NewMemoryWrapper()
	wrapper.SetOwner("brand", ownerAddr)
	wrapper.SetApprovalForAll(ownerAddr, engineAddr, true)
	guard, err := NewAccessGuard(wrapper, engineAddr)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	svc, err := New(wrapper, guard, pricingSvc, licenseSvc, store, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	// License while the price is fresh, then let it go stale.
	licWei, _, err := pricingSvc.LicenseQuote(context.Background())
	if err != nil {
		t.Fatalf("LicenseQuote: %v", err)
	}
	if _, _, err := licenseSvc.Purchase(context.Background(), ownerAddr, "brand", licWei); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	source.Set(testPrice8, time.Now().Add(-2*time.Hour))

	// Unlicensed accounts cannot settle without a usable price.
	f2payment := big.NewInt(1)
	wrapper.SetOwner("other", strangerAddr)
	wrapper.SetApprovalForAll(strangerAddr, engineAddr, true)
	batch := registration.Batch{ParentLabel: "other", Labels: []string{"alpha"}}
	if _, _, err := svc.Register(context.Background(), strangerAddr, batch, f2payment); !errors.Is(err, oracle.ErrStalePrice) {
		t.Fatalf("err = %v, want ErrStalePrice", err)
	}

	// Licensed accounts still settle: no quote is needed.
	if _, _, err := svc.Register(context.Background(), ownerAddr, batchOf("alpha"), nil); err != nil {
		t.Fatalf("licensed registration during stale oracle: %v", err)
	}
}
