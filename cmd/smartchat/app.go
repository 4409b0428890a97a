package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters/factory"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/catalog"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/cli"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/config"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/orchestrator"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/telemetry/health"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/telemetry/logging"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/telemetry/metrics"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

// app bundles the wired-up runtime shared by every subcommand: config,
// logger, transport, orchestrator, catalogs, and the optional metrics
// listener.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *transport.Client
	orch   *orchestrator.Orchestrator

	store      catalog.Store
	registry   *catalog.Registry
	refresher  *catalog.Refresher
	health     *health.Checker
	metricsSrv *http.Server
}

// newApp loads configuration and builds the adapter stack. A missing file at
// the default path is not an error; defaults plus environment overrides are
// used instead.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	logger := logging.Setup(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	})

	a := &app{
		cfg:    cfg,
		logger: logger,
		client: transport.NewClient(transport.ClientConfig{Timeout: cfg.HTTP.Timeout}),
		health: health.New(0),
	}

	var orchOpts []orchestrator.Option
	orchOpts = append(orchOpts, orchestrator.WithLogger(logger))
	if cfg.Telemetry.Metrics.Enabled {
		collector, srv := a.buildMetrics()
		orchOpts = append(orchOpts, orchestrator.WithMetrics(collector))
		a.metricsSrv = srv
	}
	a.orch = orchestrator.New(orchOpts...)

	if err := a.registerProviders(); err != nil {
		a.Close()
		return nil, err
	}
	a.orch.SetConfigured(cfg.ActiveProvider)

	if a.refresher != nil {
		a.refresher.Start()
	}
	return a, nil
}

func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, cli.NewConfigError("", err.Error())
		}
		if cfgFile != rootCmd.PersistentFlags().Lookup("config").DefValue {
			return nil, cli.NewConfigError("", fmt.Sprintf("config file %q not found", cfgFile))
		}
		cfg := config.Default()
		config.ApplyEnvOverrides(cfg)
		if err := config.Validate(cfg); err != nil {
			return nil, cli.NewConfigError("", err.Error())
		}
		return cfg, nil
	}

	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

// registerProviders builds an adapter and catalog for every configured
// provider. The active provider registers first so it doubles as the
// fallback adapter.
func (a *app) registerProviders() error {
	ids := a.providerIDs()
	if len(ids) == 0 {
		return cli.NewConfigError("providers", "no known providers configured")
	}

	if a.cfg.Catalog.StorePath != "" {
		store, err := catalog.NewSQLiteStore(a.cfg.Catalog.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open catalog store: %w", err)
		}
		a.store = store
	}

	if a.cfg.Catalog.RegistryURL != "" {
		a.registry = catalog.NewRegistry(a.cfg.Catalog.RegistryURL, a.client, nil)
	}
	if a.cfg.Catalog.RefreshSchedule != "" {
		a.refresher = catalog.NewRefresher(a.logger)
	}

	for _, id := range ids {
		adapter, err := a.buildAdapter(id, a.cfg.Providers[id])
		if err != nil {
			return err
		}
		cat := a.buildCatalog(adapter)

		a.orch.Register(adapter, cat)
		a.health.Register("catalog:"+cat.Provider(), func(ctx context.Context) error {
			_, err := cat.Models(ctx)
			return err
		})
		if a.refresher != nil {
			if err := a.refresher.Add(a.cfg.Catalog.RefreshSchedule, cat); err != nil {
				return cli.NewConfigError("catalog.refresh_schedule", err.Error())
			}
		}
	}
	return nil
}

func (a *app) buildAdapter(id string, p config.ProviderConfig) (*adapters.Adapter, error) {
	return factory.New(adapters.Settings{
		Provider: id,
		APIKey:   p.APIKey,
		BaseURL:  p.BaseURL,
		Model:    p.Model,
		Headers:  p.Headers,
	}, adapters.Deps{
		Transport: a.client,
		Streamer:  a.client,
		Logger:    a.logger,
	})
}

func (a *app) buildCatalog(adapter *adapters.Adapter) *catalog.Service {
	opts := []catalog.Option{
		catalog.WithTTL(a.cfg.Catalog.TTL),
		catalog.WithLogger(a.logger),
	}
	if a.store != nil {
		opts = append(opts, catalog.WithStore(a.store))
	}
	if a.registry != nil {
		opts = append(opts, catalog.WithRegistry(a.registry))
	}
	return catalog.New(adapter.Provider(), adapter.ListModels, opts...)
}

// applyConfigChange folds a watched-config reload into the running session:
// edited providers get rebuilt adapters (fresh keys, endpoints, models) and
// an active-provider edit re-routes subsequent requests.
func (a *app) applyConfigChange(cfg *config.Config, change config.Change) {
	a.cfg = cfg

	for _, id := range change.ChangedProviders {
		p, ok := cfg.Providers[id]
		if !ok {
			// Removed providers keep their last working adapter.
			continue
		}
		if _, builtin := adapters.Builtin(id); !builtin {
			continue
		}
		adapter, err := a.buildAdapter(id, p)
		if err != nil {
			a.logger.Warn("failed to rebuild provider after config change",
				"provider", id,
				"error", err,
			)
			continue
		}
		a.orch.Register(adapter, a.buildCatalog(adapter))
		a.logger.Info("provider rebuilt from config change", "provider", id)
	}

	if change.ActiveProviderChanged {
		a.orch.SetConfigured(cfg.ActiveProvider)
	}
}

// providerIDs returns the builtin providers the config names, active first.
func (a *app) providerIDs() []string {
	seen := make(map[string]bool)
	var ids []string

	add := func(id string) {
		if seen[id] {
			return
		}
		if _, ok := adapters.Builtin(id); !ok {
			a.logger.Warn("ignoring unknown provider in configuration", "provider", id)
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if _, ok := a.cfg.Providers[a.cfg.ActiveProvider]; ok {
		add(a.cfg.ActiveProvider)
	}
	rest := make([]string, 0, len(a.cfg.Providers))
	for id := range a.cfg.Providers {
		rest = append(rest, id)
	}
	sort.Strings(rest)
	for _, id := range rest {
		add(id)
	}

	// A bare config still gets the active builtin, unauthenticated.
	if len(ids) == 0 {
		add(a.cfg.ActiveProvider)
	}
	return ids
}

func (a *app) buildMetrics() (*metrics.Collector, *http.Server) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	mux := http.NewServeMux()
	mux.Handle(a.cfg.Telemetry.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", a.health.LivenessHandler())
	mux.Handle("/readyz", a.health.ReadinessHandler())
	srv := &http.Server{
		Addr:    a.cfg.Telemetry.Metrics.ListenAddress,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics listener failed", "error", err)
		}
	}()
	return collector, srv
}

// Close tears the runtime down in reverse construction order.
func (a *app) Close() {
	if a.refresher != nil {
		a.refresher.Stop()
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.metricsSrv.Shutdown(ctx)
		cancel()
	}
	if a.orch != nil {
		a.orch.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.client != nil {
		_ = a.client.Close()
	}
}
