package usecase

import (
	"testing"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

func TestResolveBindingPrefersNewestCompleted(t *testing.T) {
	records := []domain.EmbeddingRecord{
		completedRecord("mini-lm", "qdrant", 384),
		{Model: "industry-bert", VectorDB: "pgvector", Status: "in_progress", Dims: 768},
		completedRecord("industry-bert", "pgvector", 768),
	}

	binding, err := resolveEmbeddingBinding(records, "", "")
	if err != nil {
		t.Fatalf("resolveEmbeddingBinding() error = %v", err)
	}
	if binding.Model != "industry-bert" || binding.VectorDB != "pgvector" {
		t.Fatalf("expected newest completed record, got %+v", binding)
	}
	if binding.Dims != 768 {
		t.Fatalf("expected dims 768, got %d", binding.Dims)
	}
}

func TestResolveBindingByExplicitModel(t *testing.T) {
	records := []domain.EmbeddingRecord{
		completedRecord("mini-lm", "qdrant", 384),
		completedRecord("industry-bert", "pgvector", 768),
	}

	binding, err := resolveEmbeddingBinding(records, "mini-lm", "")
	if err != nil {
		t.Fatalf("resolveEmbeddingBinding() error = %v", err)
	}
	if binding.Model != "mini-lm" || binding.VectorDB != "qdrant" {
		t.Fatalf("expected mini-lm/qdrant, got %+v", binding)
	}
}

func TestResolveBindingByStoreFiltersHistory(t *testing.T) {
	records := []domain.EmbeddingRecord{
		completedRecord("mini-lm", "qdrant", 384),
		completedRecord("industry-bert", "pgvector", 768),
	}

	binding, err := resolveEmbeddingBinding(records, "", "qdrant")
	if err != nil {
		t.Fatalf("resolveEmbeddingBinding() error = %v", err)
	}
	if binding.Model != "mini-lm" {
		t.Fatalf("expected the newest qdrant entry, got %+v", binding)
	}
}

func TestResolveBindingExplicitModelMissing(t *testing.T) {
	records := []domain.EmbeddingRecord{
		completedRecord("mini-lm", "qdrant", 384),
	}

	_, err := resolveEmbeddingBinding(records, "industry-bert", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestResolveBindingIgnoresIncompleteRecords(t *testing.T) {
	records := []domain.EmbeddingRecord{
		{Model: "mini-lm", VectorDB: "qdrant", Status: "in_progress"},
	}

	_, err := resolveEmbeddingBinding(records, "", "")
	if !domain.IsKind(err, domain.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}
