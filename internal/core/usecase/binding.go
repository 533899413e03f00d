package usecase

import (
	"fmt"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// resolveEmbeddingBinding picks the model/vector-store pair a retrieval
// engine should use for semantic queries, scanning the library's embedding
// history newest-first:
//
//   - explicit model (and optionally store) requested: the newest completed
//     entry matching both wins; no match is a hard ErrModelNotFound.
//   - no model requested: the newest completed entry wins, optionally
//     restricted to a requested store; no completed entry at all also
//     returns ErrModelNotFound, which the engine treats as text-only mode.
func resolveEmbeddingBinding(records []domain.EmbeddingRecord, wantModel, wantStore string) (domain.EmbeddingBinding, error) {
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if !rec.Complete() {
			continue
		}
		if wantModel != "" && rec.Model != wantModel {
			continue
		}
		if wantStore != "" && rec.VectorDB != wantStore {
			continue
		}
		return domain.EmbeddingBinding{
			Model:    rec.Model,
			VectorDB: rec.VectorDB,
			Dims:     rec.Dims,
		}, nil
	}

	if wantModel != "" {
		return domain.EmbeddingBinding{}, fmt.Errorf(
			"resolve embedding binding: model %q (store %q): %w", wantModel, wantStore, domain.ErrModelNotFound)
	}
	return domain.EmbeddingBinding{}, fmt.Errorf(
		"resolve embedding binding: no completed embedding record: %w", domain.ErrModelNotFound)
}
