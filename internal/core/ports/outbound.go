package ports

import (
	"context"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// BlockCursor streams blocks from the store in the store's native relevance
// order. Next returns ok=false when the cursor is drained.
type BlockCursor interface {
	Next(ctx context.Context) (block *domain.Block, ok bool, err error)
	Close() error
}

// BlockStore is the queryable text-block collection. Implementations honor
// quote delimiters around the search text as a literal/phrase match signal;
// an empty search text matches every block.
type BlockStore interface {
	// BasicQuery runs a keyword match over block text.
	BasicQuery(ctx context.Context, lib domain.LibraryRef, text string) (BlockCursor, error)
	// TextSearchWithKeyValueRange restricts a keyword match to blocks whose
	// key column takes one of the given values.
	TextSearchWithKeyValueRange(ctx context.Context, lib domain.LibraryRef, text, key string, values []any) (BlockCursor, error)
	// TextSearchWithFilter restricts a keyword match to blocks matching a
	// conjunction of key=value constraints. Keys must be schema columns.
	TextSearchWithFilter(ctx context.Context, lib domain.LibraryRef, text string, filter map[string]any) (BlockCursor, error)
	// FilterByKeyDict is a direct key-value retrieval with no text matching.
	// Slice values are treated as key IN (...).
	FilterByKeyDict(ctx context.Context, lib domain.LibraryRef, filter map[string]any) ([]domain.Block, error)
	// WholeCollection scans every block in the library in document order.
	WholeCollection(ctx context.Context, lib domain.LibraryRef) (BlockCursor, error)
	// DistinctList returns the distinct values of one schema column.
	DistinctList(ctx context.Context, lib domain.LibraryRef, key string) ([]string, error)
}

// VectorMatch is one nearest-neighbor candidate. Lower distance means more
// similar; the semantics belong to the embedding space.
type VectorMatch struct {
	Block    domain.Block
	Distance float64
}

// VectorIndex answers nearest-neighbor searches for one vector store engine.
type VectorIndex interface {
	Search(ctx context.Context, lib domain.LibraryRef, model string, vector []float32, sampleCount int) ([]VectorMatch, error)
}

// VectorIndexResolver maps an embedding record's vector-store name to a
// driver. Unknown names fail with domain.ErrUnsupportedVectorStore before any
// network call.
type VectorIndexResolver interface {
	Resolve(name string) (VectorIndex, error)
}

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFactory resolves a model name from the model catalog. The engine
// calls this lazily, on the first semantic query.
type EmbedderFactory interface {
	Resolve(model string) (Embedder, error)
}

// LibraryCatalog reads library metadata owned by the indexing subsystem.
// GetEmbeddingStatus returns the library's embedding ledger in chronological
// order, oldest entry first.
type LibraryCatalog interface {
	GetEmbeddingStatus(ctx context.Context, lib domain.LibraryRef) ([]domain.EmbeddingRecord, error)
}

// StateStore persists query sessions keyed by query_id.
type StateStore interface {
	Save(ctx context.Context, state *domain.QueryState) error
	Load(ctx context.Context, queryID string) (*domain.QueryState, error)
	Delete(ctx context.Context, queryID string) error
}

// ReindexNotifier delivers library-reindexed events so long-lived engines can
// re-resolve their embedding binding.
type ReindexNotifier interface {
	PublishLibraryReindexed(ctx context.Context, lib domain.LibraryRef) error
	SubscribeLibraryReindexed(ctx context.Context, handler func(context.Context, domain.LibraryRef) error) error
}
