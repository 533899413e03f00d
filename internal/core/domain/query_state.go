package domain

import "time"

// QueryState is the accumulated history of one retrieval session: every
// query issued, every result produced, and the distinct documents touched.
// QueryID is the sole persistence key. A state value is driven by a single
// caller sequentially; it is not safe for concurrent writers.
type QueryState struct {
	QueryID      string         `json:"query_id"`
	QueryHistory []string       `json:"query_history"`
	Results      []ResultRecord `json:"results"`
	DocIDs       []int64        `json:"doc_ids"`
	FileSources  []string       `json:"file_sources"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Register folds one query's output into the state. Query strings and
// document identities are deduplicated by containment; result records are
// append-only, so a repeated query still grows Results.
func (s *QueryState) Register(query string, records []ResultRecord) {
	if query != "" && !containsString(s.QueryHistory, query) {
		s.QueryHistory = append(s.QueryHistory, query)
	}
	for _, rec := range records {
		s.Results = append(s.Results, rec)
		if !containsInt64(s.DocIDs, rec.DocID) {
			s.DocIDs = append(s.DocIDs, rec.DocID)
		}
		if rec.FileSource != "" && !containsString(s.FileSources, rec.FileSource) {
			s.FileSources = append(s.FileSources, rec.FileSource)
		}
	}
}

// Reset clears accumulated history while keeping the session identity.
func (s *QueryState) Reset() {
	s.QueryHistory = nil
	s.Results = nil
	s.DocIDs = nil
	s.FileSources = nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt64(list []int64, v int64) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}
