package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// StateStore persists query sessions as one JSONB document per query_id.
type StateStore struct {
	db *sql.DB
}

func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) Save(ctx context.Context, state *domain.QueryState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal query state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO query_states (query_id, state, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (query_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
`, state.QueryID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert query state: %w", err)
	}
	return nil
}

func (s *StateStore) Load(ctx context.Context, queryID string) (*domain.QueryState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state FROM query_states WHERE query_id = $1`, queryID)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("query state %s: %w", queryID, domain.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("scan query state: %w", err)
	}

	var state domain.QueryState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal query state: %w", err)
	}
	return &state, nil
}

func (s *StateStore) Delete(ctx context.Context, queryID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM query_states WHERE query_id = $1`, queryID); err != nil {
		return fmt.Errorf("delete query state: %w", err)
	}
	return nil
}
