package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/usecase"
)

type fakeRetriever struct {
	envelope    *domain.QueryEnvelope
	err         error
	lastMode    string
	fileSources []string
	sourcesErr  error
}

func (f *fakeRetriever) Query(_ context.Context, query, mode string, _ int) (*domain.QueryEnvelope, error) {
	f.lastMode = mode
	if f.err != nil {
		return nil, f.err
	}
	if f.envelope != nil {
		return f.envelope, nil
	}
	return domain.NewQueryEnvelope(query, usecase.ModeText, nil, usecase.DefaultResultCount, false), nil
}

func (f *fakeRetriever) Library() domain.LibraryRef {
	return domain.LibraryRef{Account: "acct", Library: "contracts"}
}

func (f *fakeRetriever) Binding() domain.EmbeddingBinding {
	return domain.EmbeddingBinding{Model: "industry-bert", VectorDB: "qdrant", Dims: 768}
}

func (f *fakeRetriever) FileSources(context.Context) ([]string, error) {
	if f.sourcesErr != nil {
		return nil, f.sourcesErr
	}
	return f.fileSources, nil
}

type fakeStates struct {
	states map[string]domain.QueryState
}

func (f *fakeStates) Save(_ context.Context, state *domain.QueryState) error {
	f.states[state.QueryID] = *state
	return nil
}

func (f *fakeStates) Load(_ context.Context, queryID string) (*domain.QueryState, error) {
	state, ok := f.states[queryID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &state, nil
}

func (f *fakeStates) Delete(_ context.Context, queryID string) error {
	delete(f.states, queryID)
	return nil
}

type fakeRecorder struct {
	lastLib domain.LibraryRef
	lastRec domain.EmbeddingRecord
	calls   int
}

func (f *fakeRecorder) RecordEmbedding(_ context.Context, lib domain.LibraryRef, rec domain.EmbeddingRecord) error {
	f.calls++
	f.lastLib = lib
	f.lastRec = rec
	return nil
}

type fakeNotifier struct {
	published []domain.LibraryRef
}

func (f *fakeNotifier) PublishLibraryReindexed(_ context.Context, lib domain.LibraryRef) error {
	f.published = append(f.published, lib)
	return nil
}

func (f *fakeNotifier) SubscribeLibraryReindexed(context.Context, func(context.Context, domain.LibraryRef) error) error {
	return nil
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpointReturnsEnvelope(t *testing.T) {
	retriever := &fakeRetriever{
		envelope: domain.NewQueryEnvelope("salary", usecase.ModeText, []domain.ResultRecord{
			{Query: "salary", DocID: 1, BlockID: 1, Text: "base salary", FileSource: "A.pdf", PageNum: 2, Matches: []domain.Match{}},
		}, 20, false),
	}
	router := NewRouter(retriever, nil, nil, nil, nil, nil, "blockquery")

	rec := postJSON(t, router.Handler(), "/v1/query", map[string]any{"query": "salary", "mode": "text"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Query   string                `json:"query"`
		Mode    string                `json:"mode"`
		Records []domain.ResultRecord `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Mode != usecase.ModeText || len(resp.Records) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestQueryEndpointRejectsEmptySemanticQuery(t *testing.T) {
	router := NewRouter(&fakeRetriever{}, nil, nil, nil, nil, nil, "blockquery")

	rec := postJSON(t, router.Handler(), "/v1/query", map[string]any{"query": "  ", "mode": "semantic"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryEndpointMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid_input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"model_not_found", domain.ErrModelNotFound, http.StatusUnprocessableEntity},
		{"unsupported_store", domain.ErrUnsupportedVectorStore, http.StatusUnprocessableEntity},
		{"temporary", domain.ErrTemporary, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(&fakeRetriever{err: tc.err}, nil, nil, nil, nil, nil, "blockquery")
			rec := postJSON(t, router.Handler(), "/v1/query", map[string]any{"query": "x", "mode": "text"})
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestLibraryInfoEndpoint(t *testing.T) {
	retriever := &fakeRetriever{fileSources: []string{"A.pdf", "B.pdf"}}
	router := NewRouter(retriever, nil, nil, nil, nil, nil, "blockquery")

	req := httptest.NewRequest(http.MethodGet, "/v1/library", nil)
	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Account     string   `json:"account"`
		Library     string   `json:"library"`
		Model       string   `json:"embedding_model"`
		VectorDB    string   `json:"vector_db"`
		FileSources []string `json:"file_sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Account != "acct" || resp.Library != "contracts" {
		t.Fatalf("unexpected library identity: %+v", resp)
	}
	if resp.Model != "industry-bert" || resp.VectorDB != "qdrant" {
		t.Fatalf("unexpected binding: %+v", resp)
	}
	if len(resp.FileSources) != 2 {
		t.Fatalf("expected 2 file sources, got %v", resp.FileSources)
	}
}

func TestLibraryInfoEndpointSurfacesStoreError(t *testing.T) {
	retriever := &fakeRetriever{sourcesErr: domain.ErrTemporary}
	router := NewRouter(retriever, nil, nil, nil, nil, nil, "blockquery")

	req := httptest.NewRequest(http.MethodGet, "/v1/library", nil)
	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestSessionEndpointLoadsPersistedState(t *testing.T) {
	states := &fakeStates{states: map[string]domain.QueryState{
		"q-1": {QueryID: "q-1", QueryHistory: []string{"salary"}},
	}}
	router := NewRouter(&fakeRetriever{}, nil, states, nil, nil, nil, "blockquery")

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/q-1", nil)
	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "salary") {
		t.Fatalf("expected state payload, got %s", rec.Body.String())
	}
}

func TestSessionEndpointMissingStateIs404(t *testing.T) {
	states := &fakeStates{states: map[string]domain.QueryState{}}
	router := NewRouter(&fakeRetriever{}, nil, states, nil, nil, nil, "blockquery")

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/nope", nil)
	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSessionReportCSV(t *testing.T) {
	states := &fakeStates{states: map[string]domain.QueryState{
		"q-1": {QueryID: "q-1", QueryHistory: []string{"salary"}, Results: []domain.ResultRecord{
			{Query: "salary", DocID: 1, BlockID: 1, Text: "base salary", FileSource: "A.pdf", PageNum: 2},
		}},
	}}
	router := NewRouter(&fakeRetriever{}, nil, states, nil, nil, nil, "blockquery")

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/q-1/report.csv", nil)
	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected csv content type, got %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "base salary") {
		t.Fatalf("expected report rows, got %s", rec.Body.String())
	}
}

func TestRecordEmbeddingAppendsLedgerAndPublishes(t *testing.T) {
	recorder := &fakeRecorder{}
	notifier := &fakeNotifier{}
	router := NewRouter(&fakeRetriever{}, nil, nil, recorder, notifier, nil, "blockquery")

	rec := postJSON(t, router.Handler(), "/v1/admin/embeddings", map[string]any{
		"account":         "acct",
		"library":         "contracts",
		"embedding_model": "industry-bert",
		"vector_db":       "qdrant",
		"embedding_dims":  768,
		"block_count":     120,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if recorder.calls != 1 || recorder.lastLib.Library != "contracts" {
		t.Fatalf("ledger not written: %+v", recorder)
	}
	if recorder.lastRec.Status != domain.EmbeddingStatusComplete {
		t.Fatalf("expected default complete status, got %s", recorder.lastRec.Status)
	}
	if len(notifier.published) != 1 || notifier.published[0].Account != "acct" {
		t.Fatalf("reindex event not published: %+v", notifier.published)
	}
}

func TestRecordEmbeddingValidatesIdentity(t *testing.T) {
	router := NewRouter(&fakeRetriever{}, nil, nil, &fakeRecorder{}, nil, nil, "blockquery")

	rec := postJSON(t, router.Handler(), "/v1/admin/embeddings", map[string]any{
		"account": "acct",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
