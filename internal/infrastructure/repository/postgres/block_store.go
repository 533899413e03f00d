package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dsemenov/blockquery/internal/core/domain"
	"github.com/dsemenov/blockquery/internal/core/ports"
)

// BlockStore serves indexed text blocks out of a single shared table keyed by
// account and library. All text search happens server-side; only the cursor
// crosses the wire.
type BlockStore struct {
	db *sql.DB
}

func NewBlockStore(db *sql.DB) *BlockStore {
	return &BlockStore{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// columnFor whitelists block keys usable in WHERE clauses. Anything outside
// this map never reaches SQL text.
var columnFor = map[string]string{
	"_id":                 "id",
	"doc_id":              "doc_id",
	"block_id":            "block_id",
	"content_type":        "content_type",
	"text":                "text_block",
	"table":               "table_block",
	"external_files":      "external_files",
	"page_num":            "page_num",
	"coords_x":            "coords_x",
	"coords_y":            "coords_y",
	"coords_cx":           "coords_cx",
	"coords_cy":           "coords_cy",
	"file_source":         "file_source",
	"author_or_speaker":   "author_or_speaker",
	"added_to_collection": "added_to_collection",
	"special_field1":      "special_field1",
	"special_field2":      "special_field2",
	"special_field3":      "special_field3",
}

func (s *BlockStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent service startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS blocks (
	id TEXT PRIMARY KEY,
	account_name TEXT NOT NULL,
	library_name TEXT NOT NULL,
	doc_id BIGINT NOT NULL,
	block_id BIGINT NOT NULL,
	content_type TEXT NOT NULL DEFAULT 'text',
	text_block TEXT NOT NULL DEFAULT '',
	table_block TEXT NOT NULL DEFAULT '',
	external_files TEXT NOT NULL DEFAULT '',
	page_num BIGINT NOT NULL DEFAULT 0,
	coords_x DOUBLE PRECISION NOT NULL DEFAULT 0,
	coords_y DOUBLE PRECISION NOT NULL DEFAULT 0,
	coords_cx DOUBLE PRECISION NOT NULL DEFAULT 0,
	coords_cy DOUBLE PRECISION NOT NULL DEFAULT 0,
	file_source TEXT NOT NULL DEFAULT '',
	author_or_speaker TEXT NOT NULL DEFAULT '',
	added_to_collection TEXT NOT NULL DEFAULT '',
	special_field1 TEXT NOT NULL DEFAULT '',
	special_field2 TEXT NOT NULL DEFAULT '',
	special_field3 TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_blocks_library ON blocks(account_name, library_name);
CREATE INDEX IF NOT EXISTS idx_blocks_doc ON blocks(account_name, library_name, doc_id, block_id);
CREATE INDEX IF NOT EXISTS idx_blocks_text_fts ON blocks USING GIN (to_tsvector('english', text_block));

CREATE TABLE IF NOT EXISTS query_states (
	query_id TEXT PRIMARY KEY,
	state JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS library_embeddings (
	id BIGSERIAL PRIMARY KEY,
	account_name TEXT NOT NULL,
	library_name TEXT NOT NULL,
	embedding_model TEXT NOT NULL,
	vector_db TEXT NOT NULL,
	embedding_status TEXT NOT NULL,
	embedding_dims BIGINT NOT NULL DEFAULT 0,
	block_count BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_library_embeddings_library ON library_embeddings(account_name, library_name, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const blockColumns = `id, doc_id, block_id, content_type, text_block, table_block, external_files,
	page_num, coords_x, coords_y, coords_cx, coords_cy,
	file_source, author_or_speaker, added_to_collection,
	special_field1, special_field2, special_field3`

// textPredicate renders the search text into SQL. A double-quoted query is an
// exact phrase and goes through ILIKE; anything else goes through the
// full-text index, matching every token.
func textPredicate(text string, args *[]any) string {
	if strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && len(text) > 1 {
		phrase := strings.Trim(text, `"`)
		*args = append(*args, "%"+phrase+"%")
		return fmt.Sprintf("text_block ILIKE $%d", len(*args))
	}
	*args = append(*args, text)
	return fmt.Sprintf("to_tsvector('english', text_block) @@ plainto_tsquery('english', $%d)", len(*args))
}

func (s *BlockStore) query(ctx context.Context, where string, args []any) (ports.BlockCursor, error) {
	q := fmt.Sprintf(`SELECT %s FROM blocks WHERE %s ORDER BY doc_id, block_id`, blockColumns, where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	return &rowCursor{rows: rows}, nil
}

func libraryPredicate(lib domain.LibraryRef, args *[]any) string {
	*args = append(*args, lib.Account, lib.Library)
	return fmt.Sprintf("account_name = $%d AND library_name = $%d", len(*args)-1, len(*args))
}

func (s *BlockStore) BasicQuery(ctx context.Context, lib domain.LibraryRef, text string) (ports.BlockCursor, error) {
	var args []any
	where := libraryPredicate(lib, &args)
	if text != "" {
		where += " AND " + textPredicate(text, &args)
	}
	return s.query(ctx, where, args)
}

func (s *BlockStore) TextSearchWithKeyValueRange(ctx context.Context, lib domain.LibraryRef, text, key string, values []any) (ports.BlockCursor, error) {
	column, ok := columnFor[key]
	if !ok {
		return nil, fmt.Errorf("filter key %q: %w", key, domain.ErrInvalidInput)
	}
	if len(values) == 0 {
		return &rowCursor{done: true}, nil
	}

	var args []any
	where := libraryPredicate(lib, &args)
	if text != "" {
		where += " AND " + textPredicate(text, &args)
	}

	placeholders := make([]string, 0, len(values))
	for _, v := range values {
		args = append(args, v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	where += fmt.Sprintf(" AND %s IN (%s)", column, strings.Join(placeholders, ","))

	return s.query(ctx, where, args)
}

func (s *BlockStore) TextSearchWithFilter(ctx context.Context, lib domain.LibraryRef, text string, filter map[string]any) (ports.BlockCursor, error) {
	var args []any
	where := libraryPredicate(lib, &args)
	if text != "" {
		where += " AND " + textPredicate(text, &args)
	}

	clause, err := filterClause(filter, &args)
	if err != nil {
		return nil, err
	}
	if clause != "" {
		where += " AND " + clause
	}
	return s.query(ctx, where, args)
}

func (s *BlockStore) FilterByKeyDict(ctx context.Context, lib domain.LibraryRef, filter map[string]any) ([]domain.Block, error) {
	var args []any
	where := libraryPredicate(lib, &args)

	clause, err := filterClause(filter, &args)
	if err != nil {
		return nil, err
	}
	if clause != "" {
		where += " AND " + clause
	}

	cursor, err := s.query(ctx, where, args)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []domain.Block
	for {
		block, ok, err := cursor.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, *block)
	}
}

// filterClause ANDs the filter keys together; slice values become IN lists.
// Keys are rendered in sorted order so generated SQL is deterministic.
func filterClause(filter map[string]any, args *[]any) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var clauses []string
	for _, key := range keys {
		column, ok := columnFor[key]
		if !ok {
			return "", fmt.Errorf("filter key %q: %w", key, domain.ErrInvalidInput)
		}
		switch values := filter[key].(type) {
		case []int64:
			clauses = append(clauses, inClause(column, int64Args(values, args)))
		case []string:
			clauses = append(clauses, inClause(column, stringArgs(values, args)))
		case []any:
			placeholders := make([]string, 0, len(values))
			for _, v := range values {
				*args = append(*args, v)
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(*args)))
			}
			clauses = append(clauses, inClause(column, placeholders))
		default:
			*args = append(*args, values)
			clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(*args)))
		}
	}
	return strings.Join(clauses, " AND "), nil
}

func inClause(column string, placeholders []string) string {
	if len(placeholders) == 0 {
		return "FALSE"
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

func int64Args(values []int64, args *[]any) []string {
	placeholders := make([]string, 0, len(values))
	for _, v := range values {
		*args = append(*args, v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(*args)))
	}
	return placeholders
}

func stringArgs(values []string, args *[]any) []string {
	placeholders := make([]string, 0, len(values))
	for _, v := range values {
		*args = append(*args, v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(*args)))
	}
	return placeholders
}

func (s *BlockStore) WholeCollection(ctx context.Context, lib domain.LibraryRef) (ports.BlockCursor, error) {
	var args []any
	return s.query(ctx, libraryPredicate(lib, &args), args)
}

func (s *BlockStore) DistinctList(ctx context.Context, lib domain.LibraryRef, key string) ([]string, error) {
	column, ok := columnFor[key]
	if !ok {
		return nil, fmt.Errorf("filter key %q: %w", key, domain.ErrInvalidInput)
	}

	var args []any
	where := libraryPredicate(lib, &args)
	q := fmt.Sprintf(`SELECT DISTINCT %s::text FROM blocks WHERE %s ORDER BY 1`, column, where)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", key, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct value: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowCursor struct {
	rows *sql.Rows
	done bool
}

func (c *rowCursor) Next(_ context.Context) (*domain.Block, bool, error) {
	if c.done || c.rows == nil {
		return nil, false, nil
	}
	if !c.rows.Next() {
		c.done = true
		return nil, false, c.rows.Err()
	}

	var b domain.Block
	var contentType string
	err := c.rows.Scan(
		&b.ID, &b.DocID, &b.BlockID, &contentType, &b.Text, &b.Table, &b.ExternalFiles,
		&b.PageNum, &b.CoordX, &b.CoordY, &b.CoordCX, &b.CoordCY,
		&b.FileSource, &b.AuthorOrSpeaker, &b.AddedToCollection,
		&b.SpecialField1, &b.SpecialField2, &b.SpecialField3,
	)
	if err != nil {
		return nil, false, fmt.Errorf("scan block: %w", err)
	}
	b.ContentType = domain.ContentType(contentType)
	return &b, true, nil
}

func (c *rowCursor) Close() error {
	if c.rows == nil {
		return nil
	}
	return c.rows.Close()
}
