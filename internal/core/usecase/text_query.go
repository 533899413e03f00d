package usecase

import (
	"context"
	"fmt"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
)

// TextOptions controls one text-mode retrieval.
type TextOptions struct {
	// ExactMode wraps the query in quote delimiters, signaling a
	// literal/phrase match to the store instead of tokenized OR-matching.
	ExactMode bool
	// ResultCount caps the packaged results; 0 means DefaultResultCount.
	ResultCount int
	// ExhaustCursor drains the full store cursor regardless of ResultCount,
	// trading latency for complete doc/file coverage.
	ExhaustCursor bool

	// skipHistory keeps the pass out of the session. Set by internal
	// callers that register a derived result instead.
	skipHistory bool
}

func (o TextOptions) resultCount() int {
	if o.ResultCount <= 0 {
		return DefaultResultCount
	}
	return o.ResultCount
}

// TextQuery runs an exact/fuzzy keyword search over the library. Results
// follow the store cursor's native relevance order; each record carries the
// character offsets where query terms begin in its text.
func (e *Engine) TextQuery(ctx context.Context, query string, opts TextOptions) ([]domain.ResultRecord, error) {
	q := e.searchText(query, opts)
	cursor, err := e.store.BasicQuery(ctx, e.lib, q)
	if err != nil {
		return nil, fmt.Errorf("basic query: %w", err)
	}
	return e.collectText(ctx, query, cursor, opts, nil)
}

// TextQueryWithDocumentFilter restricts the search to a pre-computed set of
// documents, matching on doc_id when the filter carries ids and file_source
// otherwise.
func (e *Engine) TextQueryWithDocumentFilter(ctx context.Context, query string, filter domain.DocFilter, opts TextOptions) ([]domain.ResultRecord, error) {
	key := "doc_id"
	values := make([]any, 0, len(filter.DocIDs))
	for _, id := range filter.DocIDs {
		values = append(values, id)
	}
	if len(values) == 0 {
		key = "file_source"
		for _, fs := range filter.FileSources {
			values = append(values, fs)
		}
	}
	if len(values) == 0 {
		return []domain.ResultRecord{}, nil
	}

	cursor, err := e.store.TextSearchWithKeyValueRange(ctx, e.lib, e.searchText(query, opts), key, values)
	if err != nil {
		return nil, fmt.Errorf("text search with document filter: %w", err)
	}
	return e.collectText(ctx, query, cursor, opts, nil)
}

// TextQueryWithCustomFilter restricts the search to blocks matching a
// conjunction of key=value constraints. Unknown keys are dropped with a
// logged warning and the query still executes.
func (e *Engine) TextQueryWithCustomFilter(ctx context.Context, query string, filter map[string]any, opts TextOptions) ([]domain.ResultRecord, error) {
	cleaned := validateCustomFilter(e.logger, filter)
	if cleaned == nil {
		return e.TextQuery(ctx, query, opts)
	}

	cursor, err := e.store.TextSearchWithFilter(ctx, e.lib, e.searchText(query, opts), cleaned)
	if err != nil {
		return nil, fmt.Errorf("text search with custom filter: %w", err)
	}
	return e.collectText(ctx, query, cursor, opts, nil)
}

// TextSearchByPage constrains the search to one or more page numbers.
func (e *Engine) TextSearchByPage(ctx context.Context, query string, pages []int64, opts TextOptions) ([]domain.ResultRecord, error) {
	if len(pages) == 0 {
		return e.TextQuery(ctx, query, opts)
	}
	values := make([]any, 0, len(pages))
	for _, p := range pages {
		values = append(values, p)
	}
	cursor, err := e.store.TextSearchWithKeyValueRange(ctx, e.lib, e.searchText(query, opts), "page_num", values)
	if err != nil {
		return nil, fmt.Errorf("text search by page: %w", err)
	}
	return e.collectText(ctx, query, cursor, opts, nil)
}

// TextQueryByAuthorOrSpeaker restricts to blocks attributed to one author or
// speaker.
func (e *Engine) TextQueryByAuthorOrSpeaker(ctx context.Context, query, author string, opts TextOptions) ([]domain.ResultRecord, error) {
	return e.TextQueryWithCustomFilter(ctx, query, map[string]any{"author_or_speaker": author}, opts)
}

// TextQueryByContentType restricts to one block content type.
func (e *Engine) TextQueryByContentType(ctx context.Context, query string, ct domain.ContentType, opts TextOptions) ([]domain.ResultRecord, error) {
	return e.TextQueryWithCustomFilter(ctx, query, map[string]any{"content_type": string(ct)}, opts)
}

// ImageQuery searches only image blocks.
func (e *Engine) ImageQuery(ctx context.Context, query string, opts TextOptions) ([]domain.ResultRecord, error) {
	return e.TextQueryByContentType(ctx, query, domain.ContentImage, opts)
}

// TableQuery searches only table blocks.
func (e *Engine) TableQuery(ctx context.Context, query string, opts TextOptions) ([]domain.ResultRecord, error) {
	return e.TextQueryByContentType(ctx, query, domain.ContentTable, opts)
}

func (e *Engine) searchText(query string, opts TextOptions) string {
	if opts.ExactMode {
		return `"` + query + `"`
	}
	return query
}

// collectText drains a store cursor into packaged records, stopping at the
// requested count unless the caller asked for the full cursor. When collect
// is non-nil every matching document identity is added to it, including past
// the count cap.
func (e *Engine) collectText(ctx context.Context, query string, cursor ports.BlockCursor, opts TextOptions, collect *domain.DocFilter) ([]domain.ResultRecord, error) {
	defer func() { _ = cursor.Close() }()

	terms := queryTokens(query)
	pack := e.packager()
	count := opts.resultCount()
	records := make([]domain.ResultRecord, 0, count)

	for {
		block, ok, err := cursor.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("cursor next: %w", err)
		}
		if !ok {
			break
		}
		if collect != nil {
			collect.Add(block.DocID, block.FileSource)
		}
		if opts.ExhaustCursor || len(records) < count {
			records = append(records, pack.fromBlock(query, *block, findMatches(block.Text, terms)))
			continue
		}
		break
	}

	if !opts.skipHistory {
		e.register(query, records)
	}
	return records, nil
}
