package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andreweacott/poolstation-setup/pkg/account"
	"github.com/andreweacott/poolstation-setup/pkg/config"
	"github.com/andreweacott/poolstation-setup/pkg/entry"
	"github.com/andreweacott/poolstation-setup/pkg/flow"
	"github.com/andreweacott/poolstation-setup/pkg/logger"
	"github.com/andreweacott/poolstation-setup/pkg/metrics"
	"github.com/andreweacott/poolstation-setup/pkg/poolstation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	log.Info("poolstation-setup starting", "config", cfg.String())

	ctx := SetupGracefulShutdown(log)

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("poolstation-setup stopped")
		os.Exit(1)
	}
}

// run wires the store, account client, flow manager and HTTP server and blocks until ctx ends
func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	store.OnReload(func(ctx context.Context, e *entry.Entry) error {
		log.WithEntryID(e.ID).WithField("domain", e.Domain).Info("Config entry reloaded")
		return nil
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	fm, err := metrics.NewFlowMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	manager := flow.NewManager(store, log).WithMetrics(fm)
	poolstation.Register(manager, newAccountClient(cfg, log), log, fm)

	return StartServer(ctx, cfg, NewRouter(NewAPI(manager, store, log), registry), log)
}

// openStore opens the SQLite entry store, or an in-memory one when no path is configured
func openStore(cfg *config.Config, log *logger.Logger) (entry.Store, func(), error) {
	if cfg.DBPath == "" {
		log.Warn("No db-path configured, config entries are kept in memory")
		return entry.NewMemoryStore(), func() {}, nil
	}

	store, err := entry.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open entry store: %w", err)
	}
	log.Info("Entry store opened", "path", cfg.DBPath)

	return store, func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("Failed to close entry store")
		}
	}, nil
}

func newAccountClient(cfg *config.Config, log *logger.Logger) account.Client {
	opts := []account.Option{account.WithTimeout(time.Duration(cfg.LoginTimeout) * time.Second)}
	if cfg.ClientSecret != "" {
		opts = append(opts, account.WithClientSecret(cfg.ClientSecret))
	}

	breakerCfg := account.DefaultCircuitBreakerConfig()
	breakerCfg.MaxConsecutiveFailures = uint32(cfg.BreakerFailures)
	breakerCfg.OnStateChange = func(from, to account.CircuitBreakerState) {
		log.Warn("Account service circuit breaker changed state", "from", from.String(), "to", to.String())
	}

	return account.NewClientWithCircuitBreaker(account.NewOAuth2Client(cfg.TokenURL, cfg.ClientID, opts...), breakerCfg)
}
