package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
)

// Index serves nearest-neighbor search out of a block_vectors table living
// next to the blocks table. The embedding pipeline owns the writes; retrieval
// only orders by cosine distance.
type Index struct {
	db *sql.DB
}

func New(db *sql.DB) *Index {
	return &Index{db: db}
}

func (x *Index) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS block_vectors (
	account_name TEXT NOT NULL,
	library_name TEXT NOT NULL,
	embedding_model TEXT NOT NULL,
	block_ref TEXT NOT NULL,
	doc_id BIGINT NOT NULL,
	block_id BIGINT NOT NULL,
	embedding vector NOT NULL,
	PRIMARY KEY (account_name, library_name, embedding_model, block_ref)
);
`
	if _, err := x.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute vector schema ddl: %w", err)
	}
	return nil
}

func (x *Index) Search(ctx context.Context, lib domain.LibraryRef, model string, vector []float32, sampleCount int) ([]ports.VectorMatch, error) {
	rows, err := x.db.QueryContext(ctx, `
SELECT b.id, b.doc_id, b.block_id, b.content_type, b.text_block, b.table_block, b.external_files,
	b.page_num, b.coords_x, b.coords_y, b.coords_cx, b.coords_cy,
	b.file_source, b.author_or_speaker, b.added_to_collection,
	b.special_field1, b.special_field2, b.special_field3,
	v.embedding <=> $4 AS distance
FROM block_vectors v
JOIN blocks b ON b.id = v.block_ref
WHERE v.account_name = $1 AND v.library_name = $2 AND v.embedding_model = $3
ORDER BY distance
LIMIT $5
`, lib.Account, lib.Library, model, pgvector.NewVector(vector), sampleCount)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	var out []ports.VectorMatch
	for rows.Next() {
		var m ports.VectorMatch
		var contentType string
		err := rows.Scan(
			&m.Block.ID, &m.Block.DocID, &m.Block.BlockID, &contentType,
			&m.Block.Text, &m.Block.Table, &m.Block.ExternalFiles,
			&m.Block.PageNum, &m.Block.CoordX, &m.Block.CoordY, &m.Block.CoordCX, &m.Block.CoordCY,
			&m.Block.FileSource, &m.Block.AuthorOrSpeaker, &m.Block.AddedToCollection,
			&m.Block.SpecialField1, &m.Block.SpecialField2, &m.Block.SpecialField3,
			&m.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}
		m.Block.ContentType = domain.ContentType(contentType)
		out = append(out, m)
	}
	return out, rows.Err()
}
