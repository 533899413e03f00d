package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
)

const (
	DefaultResultCount = 20

	// HybridSafetyCap bounds the reconciliation cost of a dual-pass query.
	// Requests above it are clamped unless the caller disables the check.
	HybridSafetyCap = 100

	// DefaultDistanceThreshold is the "no filtering" sentinel for semantic
	// queries; any real embedding distance sits far below it.
	DefaultDistanceThreshold = 1_000_000.0

	ModeText     = "text"
	ModeSemantic = "semantic"
	ModeHybrid   = "hybrid"
)

// EngineConfig wires one retrieval engine to one library.
type EngineConfig struct {
	Library domain.LibraryRef

	Store         ports.BlockStore
	Catalog       ports.LibraryCatalog
	VectorIndexes ports.VectorIndexResolver
	Embedders     ports.EmbedderFactory

	// Session receives query history when SaveHistory is set. Optional.
	Session     *Session
	SaveHistory bool

	// Projection is the output key set; zero value means DefaultProjection.
	Projection domain.Projection

	// EmbeddingModel / VectorStore optionally pin the semantic binding to an
	// explicit model and store instead of the most recent completed record.
	EmbeddingModel string
	VectorStore    string

	Logger *slog.Logger
}

// Engine answers queries against one indexed library using text, semantic,
// and dual-pass hybrid retrieval. Queries may run concurrently: the embedding
// binding is guarded for the background reindex-refresh path and the attached
// session synchronizes its own registration. SetOutputKeys is the exception
// and must happen before the engine starts serving.
type Engine struct {
	lib       domain.LibraryRef
	store     ports.BlockStore
	catalog   ports.LibraryCatalog
	vectors   ports.VectorIndexResolver
	embedders ports.EmbedderFactory

	session     *Session
	saveHistory bool
	projection  domain.Projection
	logger      *slog.Logger

	requestedModel string
	requestedStore string

	mu       sync.Mutex
	binding  domain.EmbeddingBinding
	index    ports.VectorIndex
	embedder ports.Embedder
}

// NewEngine binds to the library and resolves which embedding model/store
// pair serves semantic queries. Resolution is eager, model loading is lazy:
// the embedder itself is only instantiated on the first semantic call. A
// library without a completed embedding record comes up in text-only mode.
func NewEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	if !cfg.Library.Valid() {
		return nil, fmt.Errorf("new engine: account and library are required: %w", domain.ErrInvalidInput)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("new engine: block store is required: %w", domain.ErrInvalidInput)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Projection.IsZero() {
		cfg.Projection = domain.DefaultProjection()
	}

	e := &Engine{
		lib:            cfg.Library,
		store:          cfg.Store,
		catalog:        cfg.Catalog,
		vectors:        cfg.VectorIndexes,
		embedders:      cfg.Embedders,
		session:        cfg.Session,
		saveHistory:    cfg.SaveHistory,
		projection:     cfg.Projection,
		logger:         cfg.Logger,
		requestedModel: cfg.EmbeddingModel,
		requestedStore: cfg.VectorStore,
	}

	if err := e.resolveBinding(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) resolveBinding(ctx context.Context) error {
	if e.catalog == nil {
		return nil
	}
	records, err := e.catalog.GetEmbeddingStatus(ctx, e.lib)
	if err != nil {
		return fmt.Errorf("get embedding status: %w", err)
	}

	binding, err := resolveEmbeddingBinding(records, e.requestedModel, e.requestedStore)
	if err != nil {
		if e.requestedModel == "" && domain.IsKind(err, domain.ErrModelNotFound) {
			// No completed embedding yet: text-only until the library is
			// embedded and a reindex notification arrives.
			e.logger.Info("text_only_mode", "account", e.lib.Account, "library", e.lib.Library)
			return nil
		}
		return err
	}

	e.mu.Lock()
	e.binding = binding
	e.index = nil
	e.embedder = nil
	e.mu.Unlock()

	e.logger.Info("embedding_binding_resolved",
		"account", e.lib.Account,
		"library", e.lib.Library,
		"model", binding.Model,
		"vector_db", binding.VectorDB,
		"dims", binding.Dims,
	)
	return nil
}

// RefreshBinding re-runs embedding resolution against the catalog. Wired to
// library-reindexed notifications so a long-lived engine picks up a newly
// completed embedding without restart.
func (e *Engine) RefreshBinding(ctx context.Context) error {
	return e.resolveBinding(ctx)
}

// Binding reports the resolved embedding binding; the zero value means
// text-only mode.
func (e *Engine) Binding() domain.EmbeddingBinding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.binding
}

// Library returns the bound library identity.
func (e *Engine) Library() domain.LibraryRef {
	return e.lib
}

// FileSources lists the distinct source files indexed in the library.
func (e *Engine) FileSources(ctx context.Context) ([]string, error) {
	sources, err := e.store.DistinctList(ctx, e.lib, "file_source")
	if err != nil {
		return nil, fmt.Errorf("list file sources: %w", err)
	}
	return sources, nil
}

// OutputKeys returns the projection applied to every result record.
func (e *Engine) OutputKeys() []domain.Field {
	return e.projection.Fields()
}

// SetOutputKeys replaces the projection for subsequent queries. Minimum keys
// are re-added unconditionally.
func (e *Engine) SetOutputKeys(fields []domain.Field) {
	e.projection = domain.NewProjection(fields...)
}

// Session exposes the attached query session, if any.
func (e *Engine) Session() *Session {
	return e.session
}

func (e *Engine) packager() packager {
	return packager{lib: e.lib, projection: e.projection}
}

// semanticBackend returns the lazily loaded embedder and vector index for the
// current binding. Fails with ErrModelNotFound when the library is text-only
// and ErrUnsupportedVectorStore before any network call when the bound store
// has no driver.
func (e *Engine) semanticBackend(_ context.Context) (ports.Embedder, ports.VectorIndex, domain.EmbeddingBinding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.binding.Bound() {
		return nil, nil, domain.EmbeddingBinding{}, fmt.Errorf(
			"semantic query on library %s/%s: %w", e.lib.Account, e.lib.Library, domain.ErrModelNotFound)
	}
	if e.index == nil {
		if e.vectors == nil {
			return nil, nil, domain.EmbeddingBinding{}, fmt.Errorf(
				"vector store %q: %w", e.binding.VectorDB, domain.ErrUnsupportedVectorStore)
		}
		index, err := e.vectors.Resolve(e.binding.VectorDB)
		if err != nil {
			return nil, nil, domain.EmbeddingBinding{}, err
		}
		e.index = index
	}
	if e.embedder == nil {
		if e.embedders == nil {
			return nil, nil, domain.EmbeddingBinding{}, fmt.Errorf(
				"embedding model %q: %w", e.binding.Model, domain.ErrModelNotFound)
		}
		embedder, err := e.embedders.Resolve(e.binding.Model)
		if err != nil {
			return nil, nil, domain.EmbeddingBinding{}, err
		}
		e.embedder = embedder
	}
	return e.embedder, e.index, e.binding, nil
}

func (e *Engine) register(query string, records []domain.ResultRecord) {
	if !e.saveHistory || e.session == nil {
		return
	}
	e.session.Register(query, records)
}

// Query dispatches to one of the three retrieval modes. An empty mode means
// text search.
func (e *Engine) Query(ctx context.Context, query, mode string, resultCount int) (*domain.QueryEnvelope, error) {
	if resultCount <= 0 {
		resultCount = DefaultResultCount
	}

	switch mode {
	case "", ModeText:
		records, err := e.TextQuery(ctx, query, TextOptions{ResultCount: resultCount})
		if err != nil {
			return nil, err
		}
		return domain.NewQueryEnvelope(query, ModeText, records, resultCount, false), nil
	case ModeSemantic:
		records, err := e.SemanticQuery(ctx, query, SemanticOptions{ResultCount: resultCount})
		if err != nil {
			return nil, err
		}
		return domain.NewQueryEnvelope(query, ModeSemantic, records, resultCount, false), nil
	case ModeHybrid:
		res, err := e.DualPassQuery(ctx, query, DualPassOptions{ResultCount: resultCount})
		if err != nil {
			return nil, err
		}
		env := domain.NewQueryEnvelope(query, ModeHybrid, res.Records, res.EffectiveResultCount, res.Clamped)
		return env, nil
	default:
		return nil, fmt.Errorf("query mode %q: %w", mode, domain.ErrInvalidInput)
	}
}
