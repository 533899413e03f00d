package usecase

import (
	"context"
	"testing"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
)

func TestApplySemanticRankingReorders(t *testing.T) {
	blocks := contractBlocks()
	// Semantic pass ranks the Delaware block above the salary block and
	// never sees the effective-date block.
	h := newSemanticHarness(t, []ports.VectorMatch{
		{Block: blocks[1], Distance: 0.05},
		{Block: blocks[0], Distance: 0.2},
	})

	original, err := h.engine.TextQuery(context.Background(), "", TextOptions{ResultCount: 10})
	if err != nil {
		t.Fatalf("TextQuery() error = %v", err)
	}
	if len(original) != 3 {
		t.Fatalf("expected 3 records, got %d", len(original))
	}

	ranked, err := h.engine.ApplySemanticRanking(context.Background(), original, "governing law")
	if err != nil {
		t.Fatalf("ApplySemanticRanking() error = %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected all records kept, got %d", len(ranked))
	}
	if ranked[0].BlockID != 2 || ranked[1].BlockID != 1 {
		t.Fatalf("expected semantic order first, got %+v", ranked)
	}
	if ranked[2].DocID != 2 {
		t.Fatalf("expected unranked entries appended in original order, got %+v", ranked[2])
	}
	if ranked[0].Distance != 0.05 {
		t.Fatalf("expected semantic distance attached, got %v", ranked[0].Distance)
	}
}

func TestApplySemanticRankingEmptyInput(t *testing.T) {
	h := newSemanticHarness(t, nil)
	out, err := h.engine.ApplySemanticRanking(context.Background(), nil, "q")
	if err != nil {
		t.Fatalf("ApplySemanticRanking() error = %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %v", out)
	}
}

func TestMoreLikeThisOrdersByOverlap(t *testing.T) {
	candidates := []domain.ResultRecord{
		{DocID: 1, BlockID: 1, Text: "annual base salary and bonus"},
		{DocID: 1, BlockID: 2, Text: "governing law"},
		{DocID: 2, BlockID: 1, Text: "base salary adjustment"},
	}

	out := MoreLikeThis("base salary", candidates, 0.5)
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates above threshold, got %v", out)
	}
	for _, rec := range out {
		if rec.Similarity < 0.5 {
			t.Fatalf("threshold violated: %+v", rec)
		}
	}
	if out[0].Similarity < out[1].Similarity {
		t.Fatalf("expected descending overlap, got %v then %v", out[0].Similarity, out[1].Similarity)
	}
}

func TestMoreLikeThisEmptyTarget(t *testing.T) {
	out := MoreLikeThis("  --  ", []domain.ResultRecord{{Text: "anything"}}, 0)
	if len(out) != 0 {
		t.Fatalf("expected no candidates for an empty target, got %v", out)
	}
}
