package ports

import (
	"context"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// Retriever is the inbound contract consumed by the HTTP adapter and any
// downstream prompt composition.
type Retriever interface {
	Query(ctx context.Context, query, mode string, resultCount int) (*domain.QueryEnvelope, error)
}
