// Package app assembles a Registry from configuration: one loader per
// configured source, the category table, probes, metrics, and the event
// bus, plus the config watcher that triggers refreshes.
package app

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/aggregate"
	"github.com/jin-never/logicworld-sub001/internal/category"
	"github.com/jin-never/logicworld-sub001/internal/config"
	"github.com/jin-never/logicworld-sub001/internal/domain"
	"github.com/jin-never/logicworld-sub001/internal/localstore"
	"github.com/jin-never/logicworld-sub001/internal/probe"
	"github.com/jin-never/logicworld-sub001/internal/registry"
	"github.com/jin-never/logicworld-sub001/internal/source"
	"github.com/jin-never/logicworld-sub001/internal/telemetry"
)

//go:embed categories.yaml
var defaultCategoryTable []byte

// App is a fully wired registry plus the resources it owns.
type App struct {
	Registry *registry.Registry
	Table    *category.Table

	store  *localstore.Store
	logger *zap.Logger
}

type Options struct {
	Config     config.Config
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	HTTPClient *http.Client
}

func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	table, err := loadTable(opts.Config.CategoryTablePath)
	if err != nil {
		return nil, err
	}

	var store *localstore.Store
	if path := opts.Config.LocalStorePath; path != "" {
		store, err = localstore.Open(path, logger)
		if err != nil {
			return nil, fmt.Errorf("open local tool store: %w", err)
		}
	}

	loaders, err := buildLoaders(opts.Config, table, store, httpClient, logger)
	if err != nil {
		closeStore(store, logger)
		return nil, err
	}

	metrics := telemetry.NewMetrics(opts.Registerer)
	agg, err := aggregate.New(loaders, metrics, logger)
	if err != nil {
		closeStore(store, logger)
		return nil, err
	}

	reg := registry.New(registry.Options{
		Aggregator: agg,
		Probes: probe.Set{
			MCP: &probe.MCPProbe{Timeout: opts.Config.ProbeTimeout, HTTPClient: httpClient, Logger: logger},
			API: &probe.APIProbe{Timeout: opts.Config.ProbeTimeout, Client: httpClient, Logger: logger},
		},
		Table:   table,
		Metrics: metrics,
		Logger:  logger,
	})

	return &App{
		Registry: reg,
		Table:    table,
		store:    store,
		logger:   logger.Named("app"),
	}, nil
}

// Watcher returns a config watcher that refreshes the registry when the
// config file or category table changes on disk.
func (a *App) Watcher(cfg config.Config, configPath string) *config.Watcher {
	paths := []string{configPath}
	if cfg.CategoryTablePath != "" {
		paths = append(paths, cfg.CategoryTablePath)
	}
	return config.NewWatcher(paths, cfg.ReloadDebounce, func(ctx context.Context) {
		if err := a.Registry.Refresh(ctx); err != nil {
			a.logger.Warn("refresh after config change failed", zap.Error(err))
		}
	}, a.logger)
}

// Close releases owned resources. The registry bus is closed via
// Registry.Shutdown.
func (a *App) Close() {
	a.Registry.Shutdown()
	closeStore(a.store, a.logger)
}

func loadTable(path string) (*category.Table, error) {
	if path == "" {
		return category.ParseTable(defaultCategoryTable)
	}
	return category.LoadTable(path)
}

func buildLoaders(cfg config.Config, table *category.Table, store *localstore.Store, client *http.Client, logger *zap.Logger) ([]source.Loader, error) {
	loaders := make([]source.Loader, 0, len(domain.SourceOrder))
	for _, src := range domain.SourceOrder {
		sourceCfg := cfg.Sources[src]
		if sourceCfg.Disabled {
			continue
		}

		var backend source.Backend
		if sourceCfg.BaseURL != "" {
			backend = source.NewHTTPBackend(sourceCfg.BaseURL, client, logger)
		} else {
			backend = emptyBackend{}
		}

		switch src {
		case domain.SourceSystem:
			loaders = append(loaders, source.NewSystemLoader(backend, table, sourceCfg.TTL, logger))
		case domain.SourceAI:
			loaders = append(loaders, source.NewAILoader(backend, table, sourceCfg.TTL, logger))
		case domain.SourceMCP:
			loaders = append(loaders, source.NewMCPLoader(backend, table, sourceCfg.TTL, logger))
		case domain.SourceAPI:
			loaders = append(loaders, source.NewAPILoader(backend, table, sourceCfg.TTL, logger))
		case domain.SourceUser:
			var local source.LocalList
			if store != nil {
				local = store
			}
			loaders = append(loaders, source.NewUserLoader(backend, local, table, sourceCfg.TTL, logger))
		default:
			return nil, fmt.Errorf("unknown source %q", src)
		}
	}
	return loaders, nil
}

func closeStore(store *localstore.Store, logger *zap.Logger) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Warn("closing local tool store failed", zap.Error(err))
	}
}

// emptyBackend serves sources with no configured endpoint.
type emptyBackend struct{}

func (emptyBackend) Fetch(context.Context) ([]json.RawMessage, error) { return nil, nil }
