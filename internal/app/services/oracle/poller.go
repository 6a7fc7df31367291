package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/namedock/registrar/internal/app/domain/oracle"
	"github.com/namedock/registrar/internal/app/metrics"
	"github.com/namedock/registrar/internal/app/storage"
	"github.com/namedock/registrar/internal/app/system"
	"github.com/namedock/registrar/pkg/logger"
)

var _ system.Service = (*Poller)(nil)

// Poller periodically records oracle prices as snapshots so operators can
// audit what the engine charged against.
type Poller struct {
	adapter  *Adapter
	store    storage.SnapshotStore
	log      *logger.Logger
	interval time.Duration
	source   string

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPoller creates a lifecycle-managed price poller.
func NewPoller(adapter *Adapter, store storage.SnapshotStore, log *logger.Logger) *Poller {
	if log == nil {
		log = logger.NewDefault("oracle-poller")
	}
	return &Poller{
		adapter:  adapter,
		store:    store,
		log:      log,
		interval: time.Minute,
		source:   "feed",
	}
}

// WithInterval overrides the polling cadence.
func (p *Poller) WithInterval(interval time.Duration) {
	if interval > 0 {
		p.interval = interval
	}
}

func (p *Poller) Name() string { return "oracle-poller" }

func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.tick(runCtx)
			}
		}
	}()

	p.log.Info("oracle poller started")
	return nil
}

func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (p *Poller) tick(ctx context.Context) {
	if p.adapter == nil || p.store == nil {
		return
	}

	price, err := p.adapter.LatestPrice(ctx)
	if err != nil {
		reason := "unavailable"
		if errors.Is(err, ErrStalePrice) {
			reason = "stale"
		}
		metrics.RecordOracleError(reason)
		p.log.WithError(err).Warn("oracle poll failed")
		return
	}

	metrics.SetOraclePrice(price.Value)

	_, err = p.store.CreatePriceSnapshot(ctx, domain.Snapshot{
		Price8:      price.Value,
		Source:      p.source,
		CollectedAt: price.UpdatedAt,
	})
	if err != nil {
		p.log.WithError(err).Warn("record price snapshot failed")
	}
}
