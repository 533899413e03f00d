package usecase

import (
	"context"
	"fmt"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// ExpandResultBefore walks adjacent blocks backward from a matched record,
// accumulating text until windowChars is reached or the document starts. The
// returned string is the surrounding text in document order, ending at the
// matched block's own text. Used to hand an LLM more context than a single
// block provides.
func (e *Engine) ExpandResultBefore(ctx context.Context, rec domain.ResultRecord, windowChars int) (string, error) {
	gathered := rec.Text
	blockID := rec.BlockID

	for len(gathered) < windowChars {
		blockID--
		block, ok, err := e.adjacentBlock(ctx, rec.DocID, blockID)
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		gathered = block.Text + "\n" + gathered
	}
	return gathered, nil
}

// ExpandResultAfter walks adjacent blocks forward, mirroring
// ExpandResultBefore.
func (e *Engine) ExpandResultAfter(ctx context.Context, rec domain.ResultRecord, windowChars int) (string, error) {
	gathered := rec.Text
	blockID := rec.BlockID

	for len(gathered) < windowChars {
		blockID++
		block, ok, err := e.adjacentBlock(ctx, rec.DocID, blockID)
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		gathered = gathered + "\n" + block.Text
	}
	return gathered, nil
}

func (e *Engine) adjacentBlock(ctx context.Context, docID, blockID int64) (*domain.Block, bool, error) {
	blocks, err := e.store.FilterByKeyDict(ctx, e.lib, map[string]any{
		"doc_id":   docID,
		"block_id": blockID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("adjacent block lookup: %w", err)
	}
	if len(blocks) == 0 {
		return nil, false, nil
	}
	return &blocks[0], true, nil
}
