package usecase

import (
	"context"
	"fmt"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
)

// DocumentFilter runs an uncapped query in the requested mode purely to
// harvest the matching document identity set, discarding per-block payloads.
// The result feeds two-stage narrow-then-search workflows. Nothing is
// registered into the session.
func (e *Engine) DocumentFilter(ctx context.Context, topic, mode string) (domain.DocFilter, error) {
	var filter domain.DocFilter

	switch mode {
	case "", ModeText:
		// An empty topic means the whole library; the store can walk it
		// without a text predicate.
		var (
			cursor ports.BlockCursor
			err    error
		)
		if topic == "" {
			cursor, err = e.store.WholeCollection(ctx, e.lib)
		} else {
			cursor, err = e.store.BasicQuery(ctx, e.lib, topic)
		}
		if err == nil {
			_, err = e.collectText(ctx, topic, cursor, TextOptions{ExhaustCursor: true, skipHistory: true}, &filter)
		}
		if err != nil {
			return domain.DocFilter{}, fmt.Errorf("document filter: %w", err)
		}
	case ModeSemantic:
		records, err := e.semanticSearch(ctx, topic, topic, SemanticOptions{ResultCount: HybridSafetyCap}, domain.DocFilter{})
		if err != nil {
			return domain.DocFilter{}, err
		}
		for _, rec := range records {
			filter.Add(rec.DocID, rec.FileSource)
		}
	default:
		return domain.DocFilter{}, fmt.Errorf("document filter mode %q: %w", mode, domain.ErrInvalidInput)
	}

	return filter, nil
}

// PageLookup retrieves blocks directly by page number and document id,
// bypassing text and semantic matching entirely. Useful for structural
// retrieval like "always check page 1 of every contract".
func (e *Engine) PageLookup(ctx context.Context, pages []int64, docIDs []int64) ([]domain.ResultRecord, error) {
	filter := make(map[string]any, 2)
	if len(pages) > 0 {
		filter["page_num"] = pages
	}
	if len(docIDs) > 0 {
		filter["doc_id"] = docIDs
	}
	if len(filter) == 0 {
		return []domain.ResultRecord{}, nil
	}

	blocks, err := e.store.FilterByKeyDict(ctx, e.lib, filter)
	if err != nil {
		return nil, fmt.Errorf("page lookup: %w", err)
	}

	pack := e.packager()
	records := make([]domain.ResultRecord, 0, len(blocks))
	for _, b := range blocks {
		records = append(records, pack.fromBlock("", b, nil))
	}
	e.register("", records)
	return records, nil
}
