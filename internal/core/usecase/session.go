package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
)

// Session accumulates the history of a multi-query run: every query string,
// every result record, every document touched. It is an explicit handle
// threaded into the engine and persisted on demand. The underlying state is
// single-writer; the session serializes access so concurrent queries may
// share one handle.
type Session struct {
	mu     sync.Mutex
	state  domain.QueryState
	store  ports.StateStore
	logger *slog.Logger
}

// NewSession starts a fresh session with a generated query_id. The state
// store is optional; without one Save/Load/Delete fail with ErrInvalidInput.
func NewSession(store ports.StateStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		state:  domain.QueryState{QueryID: uuid.NewString()},
		store:  store,
		logger: logger,
	}
}

func (s *Session) QueryID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.QueryID
}

// State returns a copy of the accumulated session state.
func (s *Session) State() domain.QueryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Register folds one query's output into the session. Repeated query strings
// are deduplicated in history while their result records still append.
func (s *Session) Register(query string, records []domain.ResultRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Register(query, records)
}

// Save persists the session under its query_id. The lock is held across the
// store call so a concurrent Register cannot interleave with serialization.
func (s *Session) Save(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("save query state: no state store configured: %w", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, &s.state); err != nil {
		return fmt.Errorf("save query state: %w", err)
	}
	return nil
}

// Load replaces the in-memory state with a previously persisted session.
func (s *Session) Load(ctx context.Context, queryID string) error {
	if s.store == nil {
		return fmt.Errorf("load query state: no state store configured: %w", domain.ErrInvalidInput)
	}
	state, err := s.store.Load(ctx, queryID)
	if err != nil {
		return fmt.Errorf("load query state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = *state
	return nil
}

// Clear resets the in-memory state while keeping the same query_id and store
// connections.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Reset()
}

// Delete removes the persisted copy of this session.
func (s *Session) Delete(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("delete query state: no state store configured: %w", domain.ErrInvalidInput)
	}
	if err := s.store.Delete(ctx, s.QueryID()); err != nil {
		return fmt.Errorf("delete query state: %w", err)
	}
	return nil
}

// reportColumns is the tabular export layout: session metadata first, then
// the standard record fields.
func reportColumns() []string {
	return []string{
		"query_id", "query", "account_name", "library_name",
		"doc_id", "block_id", "file_source", "page_num",
		"content_type", "author_or_speaker", "text",
		"matches", "score", "similarity", "distance", "match_status",
	}
}

// reportSnapshot copies the fields the exporters need so serialization runs
// outside the lock.
func (s *Session) reportSnapshot() (string, []domain.ResultRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]domain.ResultRecord, len(s.state.Results))
	copy(results, s.state.Results)
	return s.state.QueryID, results
}

func reportRow(queryID string, rec domain.ResultRecord) []string {
	matches := make([]string, 0, len(rec.Matches))
	for _, m := range rec.Matches {
		matches = append(matches, fmt.Sprintf("%d:%s", m.Offset, m.Term))
	}
	return []string{
		queryID,
		rec.Query,
		rec.AccountName,
		rec.LibraryName,
		strconv.FormatInt(rec.DocID, 10),
		strconv.FormatInt(rec.BlockID, 10),
		rec.FileSource,
		strconv.FormatInt(rec.PageNum, 10),
		string(rec.ContentType),
		rec.AuthorOrSpeaker,
		rec.Text,
		strings.Join(matches, ";"),
		strconv.FormatFloat(rec.Score, 'f', -1, 64),
		strconv.FormatFloat(rec.Similarity, 'f', -1, 64),
		strconv.FormatFloat(rec.Distance, 'f', -1, 64),
		string(rec.MatchStatus),
	}
}

// WriteCSVReport serializes the session's accumulated results as CSV.
func (s *Session) WriteCSVReport(w io.Writer) error {
	queryID, results := s.reportSnapshot()
	cw := csv.NewWriter(w)
	if err := cw.Write(reportColumns()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range results {
		if err := cw.Write(reportRow(queryID, rec)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteXLSXReport serializes the session's accumulated results as a
// single-sheet workbook.
func (s *Session) WriteXLSXReport(w io.Writer) error {
	queryID, results := s.reportSnapshot()
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("close xlsx file", "error", err)
		}
	}()

	const sheet = "Results"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create xlsx sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	writeRow := func(rowIdx int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := writeRow(1, reportColumns()); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, rec := range results {
		if err := writeRow(i+2, reportRow(queryID, rec)); err != nil {
			return fmt.Errorf("write xlsx row: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
