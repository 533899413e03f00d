package usecase

import (
	"context"
	"fmt"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// SemanticOptions controls one semantic-mode retrieval.
type SemanticOptions struct {
	// ResultCount caps the packaged results; 0 means DefaultResultCount.
	ResultCount int
	// DistanceThreshold keeps only candidates with distance strictly below
	// it. 0 means the no-filtering sentinel DefaultDistanceThreshold.
	DistanceThreshold float64
	// CustomFilter is applied as an exact-equality post-filter on the
	// candidate blocks. Unknown keys are dropped with a logged warning.
	CustomFilter map[string]any

	// skipHistory keeps the pass out of the session. Set by internal
	// callers that register a derived result instead.
	skipHistory bool
}

func (o SemanticOptions) resultCount() int {
	if o.ResultCount <= 0 {
		return DefaultResultCount
	}
	return o.ResultCount
}

func (o SemanticOptions) threshold() float64 {
	if o.DistanceThreshold <= 0 {
		return DefaultDistanceThreshold
	}
	return o.DistanceThreshold
}

// SemanticQuery embeds the query and returns the nearest blocks in ascending
// distance order. Fails with ErrModelNotFound when no embedding record is
// bound rather than silently returning nothing.
func (e *Engine) SemanticQuery(ctx context.Context, query string, opts SemanticOptions) ([]domain.ResultRecord, error) {
	records, err := e.semanticSearch(ctx, query, query, opts, domain.DocFilter{})
	if err != nil {
		return nil, err
	}
	if !opts.skipHistory {
		e.register(query, records)
	}
	return records, nil
}

// SemanticQueryWithDocumentFilter post-filters the nearest-neighbor
// candidates against a document filter. The candidate pool is widened to at
// least 100 to compensate for filtering attrition.
func (e *Engine) SemanticQueryWithDocumentFilter(ctx context.Context, query string, filter domain.DocFilter, opts SemanticOptions) ([]domain.ResultRecord, error) {
	records, err := e.semanticSearch(ctx, query, query, opts, filter)
	if err != nil {
		return nil, err
	}
	if !opts.skipHistory {
		e.register(query, records)
	}
	return records, nil
}

// SimilarBlocks embeds the text of an existing block and searches for its
// nearest neighbors: a "more like this" expansion from a single hit.
func (e *Engine) SimilarBlocks(ctx context.Context, block domain.Block, opts SemanticOptions) ([]domain.ResultRecord, error) {
	records, err := e.semanticSearch(ctx, block.Text, block.Text, opts, domain.DocFilter{})
	if err != nil {
		return nil, err
	}
	if !opts.skipHistory {
		e.register(block.Text, records)
	}
	return records, nil
}

// semanticSearch is the shared semantic path: embed, nearest-neighbor
// search, threshold + filter, package. Candidate order from the index is
// preserved (ascending distance); no re-sorting happens here.
func (e *Engine) semanticSearch(ctx context.Context, query, embedText string, opts SemanticOptions, docFilter domain.DocFilter) ([]domain.ResultRecord, error) {
	embedder, index, binding, err := e.semanticBackend(ctx)
	if err != nil {
		return nil, err
	}

	vector, err := embedder.EmbedQuery(ctx, embedText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	count := opts.resultCount()
	threshold := opts.threshold()
	customFilter := validateCustomFilter(e.logger, opts.CustomFilter)

	sample := count
	if customFilter != nil || threshold < DefaultDistanceThreshold {
		// Over-fetch so post-filtering can still fill the requested count.
		sample = count * 5
	}
	if !docFilter.Empty() && sample < 100 {
		sample = 100
	}

	matches, err := index.Search(ctx, e.lib, binding.Model, vector, sample)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	pack := e.packager()
	records := make([]domain.ResultRecord, 0, count)
	for _, m := range matches {
		if len(records) >= count {
			break
		}
		if m.Distance >= threshold {
			continue
		}
		if customFilter != nil && !blockMatchesFilter(m.Block, customFilter) {
			continue
		}
		if !docFilter.Empty() && !docFilter.ContainsDoc(m.Block.DocID, m.Block.FileSource) {
			continue
		}
		records = append(records, pack.fromNeighbor(query, m.Block, m.Distance))
	}
	return records, nil
}
