package ollama

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/dsemenov/blockquery/internal/core/ports"
	"github.com/dsemenov/blockquery/internal/infrastructure/resilience"
)

// Factory hands out one cached client per embedding model. All clients share
// the same endpoint, rate limit, and resilience policy.
type Factory struct {
	baseURL  string
	executor *resilience.Executor
	limit    rate.Limit
	burst    int

	mu      sync.Mutex
	clients map[string]*Client
}

// NewFactory builds a factory. ratePerSecond <= 0 disables rate limiting.
func NewFactory(baseURL string, executor *resilience.Executor, ratePerSecond float64, burst int) *Factory {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		if burst <= 0 {
			burst = 1
		}
	}
	return &Factory{
		baseURL:  baseURL,
		executor: executor,
		limit:    limit,
		burst:    burst,
		clients:  make(map[string]*Client),
	}
}

func (f *Factory) Resolve(model string) (ports.Embedder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[model]; ok {
		return client, nil
	}

	var limiter *rate.Limiter
	if f.limit != rate.Inf {
		limiter = rate.NewLimiter(f.limit, f.burst)
	}
	client := NewClient(f.baseURL, model, limiter, f.executor)
	f.clients[model] = client
	return client, nil
}
