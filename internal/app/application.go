// Package app wires the registrar's services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/namedock/registrar/internal/app/services/license"
	oraclesvc "github.com/namedock/registrar/internal/app/services/oracle"
	pricingsvc "github.com/namedock/registrar/internal/app/services/pricing"
	registrarsvc "github.com/namedock/registrar/internal/app/services/registrar"
	"github.com/namedock/registrar/internal/app/storage"
	"github.com/namedock/registrar/internal/app/storage/memory"
	"github.com/namedock/registrar/internal/app/system"
	"github.com/namedock/registrar/internal/chain"
	"github.com/namedock/registrar/internal/config"
	"github.com/namedock/registrar/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Licenses  storage.LicenseStore
	Receipts  storage.ReceiptStore
	Snapshots storage.SnapshotStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Pricing   *pricingsvc.Service
	Licenses  *license.Service
	Registrar *registrarsvc.Service
	Oracle    *oraclesvc.Adapter
	Wrapper   registrarsvc.NameWrapper
	Snapshots storage.SnapshotStore
	// Payouts is nil when no payout account is configured.
	Payouts *PayoutForwarder
	// Chain is nil when the oracle runs on a static price.
	Chain *chain.Client
}

// New builds a fully initialised application from configuration.
func New(cfg *config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Licenses == nil {
		stores.Licenses = mem
	}
	if stores.Receipts == nil {
		stores.Receipts = mem
	}
	if stores.Snapshots == nil {
		stores.Snapshots = mem
	}

	manager := system.NewManager()

	source, chainClient, err := buildOracleSource(cfg, log)
	if err != nil {
		return nil, err
	}
	adapter := oraclesvc.NewAdapter(source, log, oraclesvc.WithMaxAge(cfg.Oracle.MaxAge))

	tiers, err := buildTiers(cfg)
	if err != nil {
		return nil, err
	}
	pricingService, err := pricingsvc.New(tiers, adapter, cfg.Registrar.LicensePriceCents, log)
	if err != nil {
		return nil, fmt.Errorf("pricing service: %w", err)
	}

	var payouts *PayoutForwarder
	var forward license.Forwarder
	if cfg.Registrar.PayoutAccount != "" {
		payouts = NewPayoutForwarder(cfg.Registrar.PayoutAccount, log)
		forward = payouts
	} else {
		log.Warn("REGISTRAR_PAYOUT_ACCOUNT not set; settlements held for out-of-band payout")
	}

	licenseService, err := license.New(stores.Licenses, pricingService, forward, log)
	if err != nil {
		return nil, fmt.Errorf("license service: %w", err)
	}

	wrapper, err := buildWrapper(cfg, log)
	if err != nil {
		return nil, err
	}
	guard, err := registrarsvc.NewAccessGuard(wrapper, cfg.Registrar.Operator)
	if err != nil {
		return nil, fmt.Errorf("access guard: %w", err)
	}
	registrarOpts := []registrarsvc.Option{registrarsvc.WithMaxBatchSize(cfg.Registrar.MaxBatchSize)}
	if payouts != nil {
		registrarOpts = append(registrarOpts, registrarsvc.WithForwarder(payouts))
	}
	registrarService, err := registrarsvc.New(wrapper, guard, pricingService, licenseService, stores.Receipts, log, registrarOpts...)
	if err != nil {
		return nil, fmt.Errorf("registrar service: %w", err)
	}

	poller := oraclesvc.NewPoller(adapter, stores.Snapshots, log)
	poller.WithInterval(cfg.Oracle.PollInterval)
	if err := manager.Register(poller); err != nil {
		return nil, fmt.Errorf("register %s: %w", poller.Name(), err)
	}

	return &Application{
		manager:   manager,
		log:       log,
		Pricing:   pricingService,
		Licenses:  licenseService,
		Registrar: registrarService,
		Oracle:    adapter,
		Wrapper:   wrapper,
		Snapshots: stores.Snapshots,
		Payouts:   payouts,
		Chain:     chainClient,
	}, nil
}

func buildOracleSource(cfg *config.Config, log *logger.Logger) (oraclesvc.Source, *chain.Client, error) {
	if cfg.Oracle.RPCURL == "" {
		log.Warn("ORACLE_RPC_URL not set; using static oracle price")
		return oraclesvc.NewStaticSource(cfg.Oracle.StaticPrice8), nil, nil
	}
	client, err := chain.NewClient(chain.Config{RPCURL: cfg.Oracle.RPCURL})
	if err != nil {
		return nil, nil, fmt.Errorf("oracle rpc client: %w", err)
	}
	source, err := oraclesvc.NewChainSource(client, cfg.Oracle.FeedAddress, log)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle feed source: %w", err)
	}
	return source, client, nil
}

func buildWrapper(cfg *config.Config, log *logger.Logger) (registrarsvc.NameWrapper, error) {
	if cfg.Wrapper.RPCURL == "" {
		log.Warn("WRAPPER_RPC_URL not set; using in-memory name wrapper")
		return registrarsvc.NewMemoryWrapper(), nil
	}
	client, err := chain.NewClient(chain.Config{RPCURL: cfg.Wrapper.RPCURL})
	if err != nil {
		return nil, fmt.Errorf("wrapper rpc client: %w", err)
	}
	wrapper, err := registrarsvc.NewChainWrapper(client, cfg.Wrapper.Contract, cfg.Wrapper.TLD)
	if err != nil {
		return nil, fmt.Errorf("chain wrapper: %w", err)
	}
	return wrapper, nil
}

func buildTiers(cfg *config.Config) (*pricingsvc.TierTable, error) {
	if cfg.Registrar.TiersFile != "" {
		tiers, err := pricingsvc.LoadTiersFile(cfg.Registrar.TiersFile)
		if err != nil {
			return nil, fmt.Errorf("load tiers: %w", err)
		}
		return tiers, nil
	}
	return pricingsvc.NewTierTable(pricingsvc.DefaultTiers())
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
