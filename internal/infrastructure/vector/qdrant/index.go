package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
)

// Index queries qdrant collections over its REST API. Retrieval is read-only
// here: the embedding pipeline writes the points, one collection per
// library/model pair.
type Index struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Index {
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// CollectionName derives the qdrant collection for a library/model pair.
// Must stay in sync with the naming used by the embedding pipeline.
func CollectionName(lib domain.LibraryRef, model string) string {
	sanitize := func(s string) string {
		var b strings.Builder
		for _, r := range strings.ToLower(s) {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
				b.WriteRune(r)
			default:
				b.WriteRune('_')
			}
		}
		return b.String()
	}
	return fmt.Sprintf("%s_%s_%s", sanitize(lib.Account), sanitize(lib.Library), sanitize(model))
}

func (x *Index) Search(ctx context.Context, lib domain.LibraryRef, model string, vector []float32, sampleCount int) ([]ports.VectorMatch, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        sampleCount,
		"with_payload": true,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", x.baseURL, CollectionName(lib, model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "qdrant search request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if m := strings.TrimSpace(string(msg)); m != "" {
			return nil, fmt.Errorf("qdrant search status: %s: %s", resp.Status, m)
		}
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]ports.VectorMatch, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, ports.VectorMatch{
			Block: blockFromPayload(r.Payload),
			// Collections are cosine-similarity scored; retrieval speaks
			// distances, smaller is closer.
			Distance: 1 - r.Score,
		})
	}
	return out, nil
}

func blockFromPayload(payload map[string]any) domain.Block {
	return domain.Block{
		ID:                payloadString(payload, "_id"),
		DocID:             payloadInt(payload, "doc_id"),
		BlockID:           payloadInt(payload, "block_id"),
		Text:              payloadString(payload, "text"),
		ContentType:       domain.ContentType(payloadString(payload, "content_type")),
		Table:             payloadString(payload, "table"),
		ExternalFiles:     payloadString(payload, "external_files"),
		PageNum:           payloadInt(payload, "page_num"),
		FileSource:        payloadString(payload, "file_source"),
		AuthorOrSpeaker:   payloadString(payload, "author_or_speaker"),
		AddedToCollection: payloadString(payload, "added_to_collection"),
		SpecialField1:     payloadString(payload, "special_field1"),
		SpecialField2:     payloadString(payload, "special_field2"),
		SpecialField3:     payloadString(payload, "special_field3"),
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}
