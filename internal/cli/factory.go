package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/tollgate"
	"github.com/aretw0/tollgate/internal/config"
	httpAdapter "github.com/aretw0/tollgate/pkg/adapters/http"
	"github.com/aretw0/tollgate/pkg/adapters/file"
	"github.com/aretw0/tollgate/pkg/adapters/memory"
	"github.com/aretw0/tollgate/pkg/adapters/openai"
	"github.com/aretw0/tollgate/pkg/adapters/process"
	"github.com/aretw0/tollgate/pkg/adapters/redis"
	"github.com/aretw0/tollgate/pkg/adapters/rules"
	"github.com/aretw0/tollgate/pkg/adapters/sqlstore"
	"github.com/aretw0/tollgate/pkg/observability"
	"github.com/aretw0/tollgate/pkg/persistence/middleware"
	"github.com/aretw0/tollgate/pkg/ports"
	"github.com/aretw0/tollgate/pkg/registry"
	"github.com/aretw0/tollgate/pkg/tools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// redisPrefix namespaces both checkpoints and locks.
const redisPrefix = "tollgate:"

// App bundles the engine with the infrastructure built around it.
type App struct {
	Engine   *tollgate.Engine
	Store    ports.CheckpointStore
	Streams  *httpAdapter.StreamManager
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	closers []func() error
}

// Close releases store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// Build assembles an engine from configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Registry: prometheus.NewRegistry(),
		Streams:  httpAdapter.NewStreamManager(logger),
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = observability.NewMetrics(app.Registry)

	store, locker, err := app.buildStore(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	mws, err := buildMiddleware(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Store = middleware.Chain(store, mws...)

	model, err := buildModel(cfg, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	reg, err := buildTools(cfg, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	opts := []tollgate.Option{
		tollgate.WithStore(app.Store),
		tollgate.WithModel(model),
		tollgate.WithTools(reg),
		tollgate.WithLogger(logger),
		tollgate.WithLifecycleHooks(app.Metrics.Hooks()),
		tollgate.WithLifecycleHooks(observability.LoggingHooks(logger)),
		tollgate.WithCommitObserver(app.Streams.Observe),
		tollgate.WithMaxSteps(cfg.Engine.MaxSteps),
		tollgate.WithLockTTL(cfg.Lock.TTL),
	}
	if cfg.Engine.RejectAll {
		opts = append(opts, tollgate.WithRejectionPolicy(tollgate.RejectAll))
	}
	if locker != nil {
		opts = append(opts, tollgate.WithLocker(locker))
	}

	app.Engine = tollgate.New(opts...)

	logger.Debug("engine built",
		"store", cfg.Store.Backend,
		"model", cfg.Model.Provider,
		"tools", len(reg.Specs()),
		"distributed_lock", locker != nil,
	)
	return app, nil
}

func (a *App) buildStore(ctx context.Context, cfg *config.Config) (ports.CheckpointStore, ports.DistributedLocker, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil, nil

	case config.BackendFile:
		return file.New(cfg.Store.Path), nil, nil

	case config.BackendRedis:
		store := redis.New(cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB,
			redis.WithPrefix(redisPrefix+"conversation:"),
			redis.WithTTL(cfg.Store.TTL),
		)
		a.closers = append(a.closers, store.Close)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Store.RedisAddr, err)
		}
		if cfg.Lock.Distributed {
			return store, redis.NewLocker(store.Client(), redisPrefix), nil
		}
		return store, nil, nil

	case config.BackendSQLite:
		path := cfg.Store.DSN
		if path == "" {
			if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating store directory: %w", err)
			}
			path = filepath.Join(cfg.Store.Path, "tollgate.db")
		}
		store, err := sqlstore.Open(ctx, sqlstore.SQLite, path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil, nil

	case config.BackendPostgres:
		store, err := sqlstore.Open(ctx, sqlstore.Postgres, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildMiddleware orders redaction outside encryption so masking sees plaintext.
func buildMiddleware(cfg *config.Config) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Store.Redact) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Store.Redact))
	}
	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return mws, nil
}

func buildModel(cfg *config.Config, logger *slog.Logger) (ports.Model, error) {
	switch cfg.Model.Provider {
	case config.ProviderRules:
		return rules.New(), nil
	case config.ProviderOpenAI:
		return openai.New(cfg.Model.APIKey,
			openai.WithBaseURL(cfg.Model.BaseURL),
			openai.WithModel(cfg.Model.Name),
			openai.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

func buildTools(cfg *config.Config, logger *slog.Logger) (*registry.Registry, error) {
	reg := registry.NewRegistry()
	if err := tools.RegisterBuiltins(reg); err != nil {
		return nil, err
	}

	if cfg.Tools.File == "" {
		return reg, nil
	}
	procs, err := process.LoadTools(cfg.Tools.File)
	if err != nil {
		return nil, err
	}
	runner := process.NewRunner(
		process.WithRegistry(procs),
		process.WithBaseDir(filepath.Dir(cfg.Tools.File)),
	)
	if err := runner.Install(reg); err != nil {
		return nil, err
	}
	if names := runner.Names(); len(names) > 0 {
		logger.Info("process tools loaded", "file", cfg.Tools.File, "tools", names)
	}
	return reg, nil
}
