package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
	"github.com/dsemenov/blockquery/internal/core/usecase"
	"github.com/dsemenov/blockquery/internal/observability/metrics"
)

// EmbeddingRecorder appends one row to the embedding ledger. The admin
// surface uses it when the indexing pipeline reports a finished job.
type EmbeddingRecorder interface {
	RecordEmbedding(ctx context.Context, lib domain.LibraryRef, rec domain.EmbeddingRecord) error
}

// Retriever is the engine surface the router consumes: query dispatch plus
// the library-info accessors.
type Retriever interface {
	ports.Retriever
	Library() domain.LibraryRef
	Binding() domain.EmbeddingBinding
	FileSources(ctx context.Context) ([]string, error)
}

type Router struct {
	retriever Retriever
	session   *usecase.Session
	states    ports.StateStore
	recorder  EmbeddingRecorder
	notifier  ports.ReindexNotifier
	metrics   *metrics.HTTPServerMetrics
	service   string
}

func NewRouter(
	retriever Retriever,
	session *usecase.Session,
	states ports.StateStore,
	recorder EmbeddingRecorder,
	notifier ports.ReindexNotifier,
	m *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		retriever: retriever,
		session:   session,
		states:    states,
		recorder:  recorder,
		notifier:  notifier,
		metrics:   m,
		service:   service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.query)
	mux.HandleFunc("/v1/library", rt.libraryInfo)
	mux.HandleFunc("/v1/sessions/", rt.sessions)
	mux.HandleFunc("/v1/admin/embeddings", rt.recordEmbedding)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query       string `json:"query"`
		Mode        string `json:"mode"`
		ResultCount int    `json:"result_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	// An empty query is a full-collection scan in text mode, but there is
	// nothing to embed for the vector passes.
	if strings.TrimSpace(req.Query) == "" && (req.Mode == usecase.ModeSemantic || req.Mode == usecase.ModeHybrid) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required for semantic and hybrid modes"})
		return
	}

	start := time.Now()
	envelope, err := rt.retriever.Query(r.Context(), req.Query, req.Mode, req.ResultCount)
	if err != nil {
		rt.recordQuery(req.Mode, "error", 0, time.Since(start))
		status := mapErrorToHTTPStatus(err)
		if status >= 500 {
			slog.Error("query_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	rt.recordQuery(envelope.Mode, "ok", len(envelope.Records), time.Since(start))
	if envelope.Clamped && rt.metrics != nil {
		rt.metrics.RecordHybridClamp(rt.service)
	}
	rt.persistSession(r.Context())

	response := struct {
		*domain.QueryEnvelope
		QueryID string `json:"query_id,omitempty"`
	}{QueryEnvelope: envelope}
	if rt.session != nil {
		response.QueryID = rt.session.QueryID()
	}
	writeJSON(w, http.StatusOK, response)
}

// libraryInfo reports the served library identity, its active embedding
// binding, and the distinct source files indexed behind it.
func (rt *Router) libraryInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sources, err := rt.retriever.FileSources(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	lib := rt.retriever.Library()
	binding := rt.retriever.Binding()
	writeJSON(w, http.StatusOK, map[string]any{
		"account":         lib.Account,
		"library":         lib.Library,
		"embedding_model": binding.Model,
		"vector_db":       binding.VectorDB,
		"file_sources":    sources,
	})
}

func (rt *Router) recordQuery(mode, status string, count int, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordQuery(rt.service, mode, status, count, duration)
}

func (rt *Router) persistSession(ctx context.Context) {
	if rt.session == nil || rt.states == nil {
		return
	}
	if err := rt.session.Save(ctx); err != nil {
		slog.Warn("session_save_failed", "query_id", rt.session.QueryID(), "error", err)
		if rt.metrics != nil {
			rt.metrics.RecordSessionPersist(rt.service, "error")
		}
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSessionPersist(rt.service, "ok")
	}
}

// sessions serves GET /v1/sessions/{query_id}, its report variants, and
// DELETE /v1/sessions/{query_id}.
func (rt *Router) sessions(w http.ResponseWriter, r *http.Request) {
	if rt.states == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session persistence is not configured"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	queryID, report, _ := strings.Cut(rest, "/")
	if queryID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query_id is required"})
		return
	}

	switch {
	case r.Method == http.MethodDelete && report == "":
		if err := rt.states.Delete(r.Context(), queryID); err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case r.Method == http.MethodGet && report == "":
		state, err := rt.states.Load(r.Context(), queryID)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, state)
	case r.Method == http.MethodGet && (report == "report.csv" || report == "report.xlsx"):
		rt.sessionReport(w, r, queryID, report)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) sessionReport(w http.ResponseWriter, r *http.Request, queryID, report string) {
	session := usecase.NewSession(rt.states, nil)
	if err := session.Load(r.Context(), queryID); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if report == "report.csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+queryID+`.csv"`)
		if err := session.WriteCSVReport(w); err != nil {
			slog.Error("csv_report_failed", "query_id", queryID, "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+queryID+`.xlsx"`)
	if err := session.WriteXLSXReport(w); err != nil {
		slog.Error("xlsx_report_failed", "query_id", queryID, "error", err)
	}
}

// recordEmbedding lets the indexing pipeline report a finished embedding job.
// The ledger row is written first; the reindex event is best-effort on top.
func (rt *Router) recordEmbedding(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.recorder == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "embedding ledger is not configured"})
		return
	}

	var req struct {
		Account    string `json:"account"`
		Library    string `json:"library"`
		Model      string `json:"embedding_model"`
		VectorDB   string `json:"vector_db"`
		Status     string `json:"embedding_status"`
		Dims       int    `json:"embedding_dims"`
		BlockCount int64  `json:"block_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	lib := domain.LibraryRef{Account: req.Account, Library: req.Library}
	if !lib.Valid() || req.Model == "" || req.VectorDB == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "account, library, embedding_model and vector_db are required"})
		return
	}
	if req.Status == "" {
		req.Status = domain.EmbeddingStatusComplete
	}

	rec := domain.EmbeddingRecord{
		Model:      req.Model,
		VectorDB:   req.VectorDB,
		Status:     req.Status,
		Dims:       req.Dims,
		BlockCount: req.BlockCount,
		CreatedAt:  time.Now().UTC(),
	}
	if err := rt.recorder.RecordEmbedding(r.Context(), lib, rec); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.notifier != nil {
		if err := rt.notifier.PublishLibraryReindexed(r.Context(), lib); err != nil {
			slog.Warn("reindex_publish_failed", "account", lib.Account, "library", lib.Library, "error", err)
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
