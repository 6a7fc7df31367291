package registrar

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/namedock/registrar/internal/chain"
)

// NameWrapper exposes the name registry the registrar settles against:
// parent ownership, operator approvals, and subname creation. Register must
// be atomic, either every subname in the batch is created or none are.
type NameWrapper interface {
	OwnerOf(ctx context.Context, parentLabel string) (string, error)
	IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error)
	Available(ctx context.Context, parentLabel, label string) (bool, error)
	Register(ctx context.Context, parentLabel string, labels []string, recipient, resolver string, ttl uint64) error
}

// ChainWrapper reads wrapper state over JSON-RPC. Subname creation is
// settled by the on-chain contract itself, so Register is not supported
// here; deployments that settle off-process use MemoryWrapper or a signing
// gateway.
type ChainWrapper struct {
	reader *chain.WrapperReader
}

// NewChainWrapper wraps an RPC client for the wrapper contract.
func NewChainWrapper(client *chain.Client, contract, tld string) (*ChainWrapper, error) {
	reader, err := chain.NewWrapperReader(client, contract, tld)
	if err != nil {
		return nil, err
	}
	return &ChainWrapper{reader: reader}, nil
}

func (w *ChainWrapper) OwnerOf(ctx context.Context, parentLabel string) (string, error) {
	return w.reader.OwnerOf(ctx, parentLabel)
}

func (w *ChainWrapper) IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error) {
	return w.reader.IsApprovedForAll(ctx, owner, operator)
}

func (w *ChainWrapper) Available(ctx context.Context, parentLabel, label string) (bool, error) {
	return w.reader.Available(ctx, parentLabel, label)
}

func (w *ChainWrapper) Register(context.Context, string, []string, string, string, uint64) error {
	return fmt.Errorf("chain wrapper is read-only: subname creation requires a signing gateway")
}

// MemoryWrapper is an in-process wrapper used by tests and local
// deployments. Ownership and approvals are seeded explicitly.
type MemoryWrapper struct {
	mu        sync.RWMutex
	owners    map[string]string          // parent label -> owner account
	approvals map[string]map[string]bool // owner -> operator -> approved
	names     map[string]string          // parent|label -> recipient

	// failAfter, when non-negative, makes Register fail once that many
	// labels of the current batch have been inspected. Used to exercise
	// the all-or-nothing guarantee.
	failAfter int
}

// NewMemoryWrapper returns an empty registry.
func NewMemoryWrapper() *MemoryWrapper {
	return &MemoryWrapper{
		owners:    make(map[string]string),
		approvals: make(map[string]map[string]bool),
		names:     make(map[string]string),
		failAfter: -1,
	}
}

// SetOwner records the owner of a parent name.
func (w *MemoryWrapper) SetOwner(parentLabel, owner string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.owners[strings.ToLower(parentLabel)] = strings.ToLower(owner)
}

// SetApprovalForAll grants or revokes an operator approval.
func (w *MemoryWrapper) SetApprovalForAll(owner, operator string, approved bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	owner = strings.ToLower(owner)
	ops, ok := w.approvals[owner]
	if !ok {
		ops = make(map[string]bool)
		w.approvals[owner] = ops
	}
	ops[strings.ToLower(operator)] = approved
}

// FailAfter arms a one-shot registration failure after n labels.
func (w *MemoryWrapper) FailAfter(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failAfter = n
}

func (w *MemoryWrapper) OwnerOf(_ context.Context, parentLabel string) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.owners[strings.ToLower(parentLabel)], nil
}

func (w *MemoryWrapper) IsApprovedForAll(_ context.Context, owner, operator string) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.approvals[strings.ToLower(owner)][strings.ToLower(operator)], nil
}

func (w *MemoryWrapper) Available(_ context.Context, parentLabel, label string) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, taken := w.names[nameKey(parentLabel, label)]
	return !taken, nil
}

// Register creates every subname in the batch or none. The state under the
// lock is only mutated after all labels pass the availability check.
func (w *MemoryWrapper) Register(_ context.Context, parentLabel string, labels []string, recipient, _ string, _ uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, label := range labels {
		if w.failAfter >= 0 && i >= w.failAfter {
			w.failAfter = -1
			return fmt.Errorf("wrapper rejected label %q", label)
		}
		if _, taken := w.names[nameKey(parentLabel, label)]; taken {
			return fmt.Errorf("label %q already registered under %q", label, parentLabel)
		}
	}
	for _, label := range labels {
		w.names[nameKey(parentLabel, label)] = strings.ToLower(recipient)
	}
	return nil
}

// RecipientOf reports who holds a registered subname, empty when free.
func (w *MemoryWrapper) RecipientOf(parentLabel, label string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.names[nameKey(parentLabel, label)]
}

func nameKey(parentLabel, label string) string {
	return strings.ToLower(parentLabel) + "|" + strings.ToLower(label)
}
