package usecase

import (
	"context"
	"testing"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

func TestQueryDispatchText(t *testing.T) {
	engine := newTextEngine(t, &fakeBlockStore{blocks: contractBlocks()})

	env, err := engine.Query(context.Background(), "salary", "", 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if env.Mode != ModeText {
		t.Fatalf("expected text mode for empty mode string, got %s", env.Mode)
	}
	if len(env.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(env.Records))
	}
	if env.EffectiveResultCount != DefaultResultCount {
		t.Fatalf("expected default result count, got %d", env.EffectiveResultCount)
	}
	if env.Clamped {
		t.Fatalf("text queries are never clamped")
	}
	if len(env.FileSources) != 1 || env.FileSources[0] != "A.pdf" {
		t.Fatalf("expected derived file sources, got %v", env.FileSources)
	}
}

func TestQueryDispatchSemantic(t *testing.T) {
	h := newSemanticHarness(t, neighborMatches())

	env, err := h.engine.Query(context.Background(), "compensation", ModeSemantic, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if env.Mode != ModeSemantic {
		t.Fatalf("expected semantic mode, got %s", env.Mode)
	}
	if len(env.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(env.Records))
	}
	if len(env.DocIDs) != 2 {
		t.Fatalf("expected 2 distinct docs, got %v", env.DocIDs)
	}
}

func TestQueryDispatchHybridClamp(t *testing.T) {
	h := newSemanticHarness(t, neighborMatches())

	env, err := h.engine.Query(context.Background(), "salary", ModeHybrid, HybridSafetyCap+50)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if !env.Clamped {
		t.Fatalf("expected envelope to report the clamp")
	}
	if env.EffectiveResultCount != HybridSafetyCap {
		t.Fatalf("expected effective count %d, got %d", HybridSafetyCap, env.EffectiveResultCount)
	}
}

func TestQueryDispatchUnknownMode(t *testing.T) {
	engine := newTextEngine(t, &fakeBlockStore{})
	_, err := engine.Query(context.Background(), "x", "graph", 5)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSetOutputKeysReAddsMinimum(t *testing.T) {
	engine := newTextEngine(t, &fakeBlockStore{blocks: contractBlocks()})
	engine.SetOutputKeys([]domain.Field{domain.FieldContentType})

	keys := engine.OutputKeys()
	want := map[domain.Field]bool{}
	for _, f := range domain.MinimumFields() {
		want[f] = true
	}
	for _, f := range keys {
		delete(want, f)
	}
	if len(want) != 0 {
		t.Fatalf("minimum fields missing from projection: %v", want)
	}
}
