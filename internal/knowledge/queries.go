package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the common interface satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries implements passage persistence over PostgreSQL + pgvector.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries instance bound to the given connection.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// UpsertPassageParams holds the arguments for UpsertPassage.
type UpsertPassageParams struct {
	ID        string
	Content   string
	Embedding *pgvector.Vector
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
}

const upsertPassageSQL = `INSERT INTO passages (id, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, COALESCE($5, now()))
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata`

// UpsertPassage inserts a passage or replaces an existing one with the same ID.
func (q *Queries) UpsertPassage(ctx context.Context, arg UpsertPassageParams) error {
	_, err := q.db.Exec(ctx, upsertPassageSQL,
		arg.ID, arg.Content, arg.Embedding, arg.Metadata, arg.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert passage: %w", err)
	}
	return nil
}

// PassageRow is a passage as returned by search and list queries.
// Similarity is only populated by the search queries.
type PassageRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
	Similarity float32
}

// SearchPassagesParams holds the arguments for SearchPassages.
type SearchPassagesParams struct {
	QueryEmbedding *pgvector.Vector
	FilterMetadata []byte
	ResultLimit    int32
}

const searchPassagesSQL = `SELECT id, content, metadata, created_at,
       1 - (embedding <=> $1) AS similarity
FROM passages
WHERE metadata @> $2
ORDER BY embedding <=> $1
LIMIT $3`

// SearchPassages performs vector search restricted by a JSONB metadata filter.
func (q *Queries) SearchPassages(ctx context.Context, arg SearchPassagesParams) ([]PassageRow, error) {
	rows, err := q.db.Query(ctx, searchPassagesSQL,
		arg.QueryEmbedding, arg.FilterMetadata, arg.ResultLimit)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	defer rows.Close()
	return scanSimilarityRows(rows)
}

// SearchPassagesAllParams holds the arguments for SearchPassagesAll.
type SearchPassagesAllParams struct {
	QueryEmbedding *pgvector.Vector
	ResultLimit    int32
}

const searchPassagesAllSQL = `SELECT id, content, metadata, created_at,
       1 - (embedding <=> $1) AS similarity
FROM passages
ORDER BY embedding <=> $1
LIMIT $2`

// SearchPassagesAll performs unfiltered vector search.
func (q *Queries) SearchPassagesAll(ctx context.Context, arg SearchPassagesAllParams) ([]PassageRow, error) {
	rows, err := q.db.Query(ctx, searchPassagesAllSQL, arg.QueryEmbedding, arg.ResultLimit)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	defer rows.Close()
	return scanSimilarityRows(rows)
}

func scanSimilarityRows(rows pgx.Rows) ([]PassageRow, error) {
	var out []PassageRow
	for rows.Next() {
		var r PassageRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan passage row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passage rows: %w", err)
	}
	return out, nil
}

// CountPassages counts passages whose metadata contains the given filter.
func (q *Queries) CountPassages(ctx context.Context, filterMetadata []byte) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM passages WHERE metadata @> $1`, filterMetadata,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return count, nil
}

// CountPassagesAll counts every stored passage.
func (q *Queries) CountPassagesAll(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM passages`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return count, nil
}

// DeletePassage removes a passage by ID.
func (q *Queries) DeletePassage(ctx context.Context, id string) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM passages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete passage: %w", err)
	}
	return nil
}

// ListPassagesBySourceParams holds the arguments for ListPassagesBySource.
type ListPassagesBySourceParams struct {
	SourceType  string
	ResultLimit int32
}

const listPassagesBySourceSQL = `SELECT id, content, metadata, created_at,
       0::real AS similarity
FROM passages
WHERE metadata->>'source_type' = $1
ORDER BY created_at DESC
LIMIT $2`

// ListPassagesBySource lists passages of a given source type, newest first.
func (q *Queries) ListPassagesBySource(ctx context.Context, arg ListPassagesBySourceParams) ([]PassageRow, error) {
	rows, err := q.db.Query(ctx, listPassagesBySourceSQL, arg.SourceType, arg.ResultLimit)
	if err != nil {
		return nil, fmt.Errorf("list passages: %w", err)
	}
	defer rows.Close()
	return scanSimilarityRows(rows)
}
