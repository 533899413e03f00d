package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dsemenov/blockquery/internal/config"
	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
	"github.com/dsemenov/blockquery/internal/core/usecase"
	"github.com/dsemenov/blockquery/internal/infrastructure/embedder/ollama"
	"github.com/dsemenov/blockquery/internal/infrastructure/queue/nats"
	"github.com/dsemenov/blockquery/internal/infrastructure/repository/postgres"
	"github.com/dsemenov/blockquery/internal/infrastructure/resilience"
	"github.com/dsemenov/blockquery/internal/infrastructure/vector"
	pgvectorindex "github.com/dsemenov/blockquery/internal/infrastructure/vector/pgvector"
	"github.com/dsemenov/blockquery/internal/infrastructure/vector/qdrant"
	"github.com/dsemenov/blockquery/internal/observability/logging"
	"github.com/dsemenov/blockquery/internal/observability/metrics"
)

const serviceName = "blockquery"

type App struct {
	Config config.Config
	Logger *slog.Logger

	Engine   *usecase.Engine
	Session  *usecase.Session
	States   ports.StateStore
	Catalog  *postgres.Catalog
	Notifier *nats.Notifier
	Metrics  *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	lib := domain.LibraryRef{Account: cfg.Account, Library: cfg.Library}
	if !lib.Valid() {
		return nil, fmt.Errorf("bootstrap: LIBRARY_ACCOUNT and LIBRARY_NAME are required: %w", domain.ErrInvalidInput)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewBlockStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	catalog := postgres.NewCatalog(db)
	states := postgres.NewStateStore(db)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	embedders := ollama.NewFactory(cfg.OllamaURL, executor, cfg.EmbedRatePerSecond, cfg.EmbedBurst)

	resolver := vector.NewResolver()
	resolver.Register("qdrant", qdrant.New(cfg.QdrantURL))
	pgv := pgvectorindex.New(db)
	if err := pgv.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure vector schema: %w", err)
	}
	resolver.Register("pgvector", pgv)

	notifier, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init reindex notifier: %w", err)
	}

	session := usecase.NewSession(states, logger)

	engine, err := usecase.NewEngine(ctx, usecase.EngineConfig{
		Library:        lib,
		Store:          store,
		Catalog:        catalog,
		VectorIndexes:  resolver,
		Embedders:      embedders,
		Session:        session,
		SaveHistory:    cfg.SaveHistory,
		EmbeddingModel: cfg.EmbeddingModel,
		VectorStore:    cfg.VectorStore,
		Logger:         logger,
	})
	if err != nil {
		notifier.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Engine:   engine,
		Session:  session,
		States:   states,
		Catalog:  catalog,
		Notifier: notifier,
		Metrics:  metrics.NewHTTPServerMetrics(serviceName),

		closeFn: func() {
			notifier.Close()
			_ = db.Close()
		},
	}, nil
}

// WatchReindex blocks on the reindex subject until ctx is cancelled. Events
// for the served library re-resolve the engine's embedding binding; others
// are ignored.
func (a *App) WatchReindex(ctx context.Context) error {
	return a.Notifier.SubscribeLibraryReindexed(ctx, func(ctx context.Context, lib domain.LibraryRef) error {
		if lib != a.Engine.Library() {
			return nil
		}
		if err := a.Engine.RefreshBinding(ctx); err != nil {
			a.Metrics.RecordBindingRefresh(serviceName, "error")
			return err
		}
		a.Metrics.RecordBindingRefresh(serviceName, "ok")
		return nil
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
