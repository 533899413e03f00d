package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dsemenov/blockquery/internal/infrastructure/resilience"
)

// Client embeds query text through one ollama model. One client per model;
// the factory owns the cache.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func NewClient(baseURL, model string, limiter *rate.Limiter, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    limiter,
		executor:   executor,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embed rate limit: %w", err)
		}
	}

	var vector []float32
	embed := func(ctx context.Context) error {
		v, err := c.embed(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.embed", embed, classifyEmbedError)
	} else {
		err = embed(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama.embed", err)
	}
	return vector, nil
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.model,
		"input": []string{text},
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &HTTPStatusError{
			Operation:  "embed",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result for model %s", c.model)
	}
	return response.Embeddings[0], nil
}
