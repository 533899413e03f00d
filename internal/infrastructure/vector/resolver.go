package vector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
)

// Resolver maps the vector_db name recorded in the embedding ledger to a
// configured index driver.
type Resolver struct {
	indexes map[string]ports.VectorIndex
}

func NewResolver() *Resolver {
	return &Resolver{indexes: make(map[string]ports.VectorIndex)}
}

func (r *Resolver) Register(name string, index ports.VectorIndex) {
	r.indexes[strings.ToLower(name)] = index
}

func (r *Resolver) Resolve(name string) (ports.VectorIndex, error) {
	index, ok := r.indexes[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("vector store %q (have: %s): %w",
			name, strings.Join(r.names(), ","), domain.ErrUnsupportedVectorStore)
	}
	return index, nil
}

func (r *Resolver) names() []string {
	out := make([]string, 0, len(r.indexes))
	for name := range r.indexes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
