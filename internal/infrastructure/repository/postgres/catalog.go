package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dsemenov/blockquery/internal/core/domain"
)

// Catalog reads the embedding ledger for a library. Rows are appended by the
// indexing pipeline each time an embedding job runs; results are returned in
// append order so callers can scan from the newest end.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) GetEmbeddingStatus(ctx context.Context, lib domain.LibraryRef) ([]domain.EmbeddingRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT embedding_model, vector_db, embedding_status, embedding_dims, block_count, created_at
FROM library_embeddings
WHERE account_name = $1 AND library_name = $2
ORDER BY created_at ASC, id ASC
`, lib.Account, lib.Library)
	if err != nil {
		return nil, fmt.Errorf("query embedding status: %w", err)
	}
	defer rows.Close()

	var out []domain.EmbeddingRecord
	for rows.Next() {
		var rec domain.EmbeddingRecord
		if err := rows.Scan(&rec.Model, &rec.VectorDB, &rec.Status, &rec.Dims, &rec.BlockCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordEmbedding appends one ledger row. Used by the reindex admin surface;
// the newest completed row becomes the library's active binding.
func (c *Catalog) RecordEmbedding(ctx context.Context, lib domain.LibraryRef, rec domain.EmbeddingRecord) error {
	_, err := c.db.ExecContext(ctx, `
INSERT INTO library_embeddings (account_name, library_name, embedding_model, vector_db, embedding_status, embedding_dims, block_count, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, lib.Account, lib.Library, rec.Model, rec.VectorDB, rec.Status, rec.Dims, rec.BlockCount, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert embedding record: %w", err)
	}
	return nil
}
