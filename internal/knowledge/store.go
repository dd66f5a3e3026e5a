// Package knowledge stores and searches indexed passages with vector
// similarity over PostgreSQL + pgvector.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// Source type constants for indexed passages.
const (
	// SourceTypeWeb represents content scraped from a URL.
	SourceTypeWeb = "web"

	// SourceTypeFile represents indexed local file content.
	SourceTypeFile = "file"
)

// Querier defines the database operations the Store needs.
// The interface lives with the consumer so tests can supply a fake
// without a running database.
type Querier interface {
	UpsertPassage(ctx context.Context, arg UpsertPassageParams) error
	SearchPassages(ctx context.Context, arg SearchPassagesParams) ([]PassageRow, error)
	SearchPassagesAll(ctx context.Context, arg SearchPassagesAllParams) ([]PassageRow, error)
	CountPassages(ctx context.Context, filterMetadata []byte) (int64, error)
	CountPassagesAll(ctx context.Context) (int64, error)
	DeletePassage(ctx context.Context, id string) error
	ListPassagesBySource(ctx context.Context, arg ListPassagesBySourceParams) ([]PassageRow, error)
}

// Store manages indexed passages with vector search capabilities.
// It handles embedding generation and similarity search.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store.
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Add embeds a passage and upserts it into the store.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.Content == "" {
		return fmt.Errorf("document content is required")
	}

	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	createdAt := pgtype.Timestamptz{
		Time:  doc.CreateAt,
		Valid: !doc.CreateAt.IsZero(),
	}

	err = s.queries.UpsertPassage(ctx, UpsertPassageParams{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: &embedding,
		Metadata:  metadataJSON,
		CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("upserting passage %q: %w", doc.ID, err)
	}

	s.logger.Debug("added passage", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search performs semantic search over stored passages.
// It returns the most similar passages to the query, ordered by similarity.
// A timeout (default 10s) bounds the embedding call plus the vector query.
//
// Example:
//
//	results, err := store.Search(ctx, "gradient descent",
//	    knowledge.WithTopK(6),
//	    knowledge.WithFilter("source_type", "web"))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	queryEmbedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Filters arrive as json.Marshal output only; the JSONB @> comparison
	// runs with a bound parameter, never interpolated SQL.
	if len(cfg.filter) > 0 {
		filterJSON, marshalErr := json.Marshal(cfg.filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, searchErr := s.queries.SearchPassages(queryCtx, SearchPassagesParams{
			QueryEmbedding: &queryEmbedding,
			FilterMetadata: filterJSON,
			ResultLimit:    int32(cfg.topK),
		})
		if searchErr != nil {
			if errors.Is(searchErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("search query timeout: %w", searchErr)
			}
			return nil, fmt.Errorf("search failed: %w", searchErr)
		}
		return s.rowsToResults(rows), nil
	}

	rows, err := s.queries.SearchPassagesAll(queryCtx, SearchPassagesAllParams{
		QueryEmbedding: &queryEmbedding,
		ResultLimit:    int32(cfg.topK),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return s.rowsToResults(rows), nil
}

// Count returns the number of passages matching the given filter.
// A nil or empty filter counts all passages.
func (s *Store) Count(ctx context.Context, filter map[string]string) (int, error) {
	var count int64
	var err error

	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return 0, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		count, err = s.queries.CountPassages(ctx, filterJSON)
	} else {
		count, err = s.queries.CountPassagesAll(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}

	if count > math.MaxInt {
		return 0, fmt.Errorf("passage count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// Delete removes a passage from the store.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := s.queries.DeletePassage(ctx, docID); err != nil {
		return fmt.Errorf("deleting passage %q: %w", docID, err)
	}
	s.logger.Debug("deleted passage", "id", docID)
	return nil
}

// ListBySource lists passages of a given source type, newest first,
// without any similarity calculation.
func (s *Store) ListBySource(ctx context.Context, sourceType string, limit int32) ([]Document, error) {
	const maxListLimit = 1000
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxListLimit, limit)
	}
	switch sourceType {
	case SourceTypeWeb, SourceTypeFile:
	default:
		return nil, fmt.Errorf("invalid source type %q, must be %q or %q",
			sourceType, SourceTypeWeb, SourceTypeFile)
	}

	rows, err := s.queries.ListPassagesBySource(ctx, ListPassagesBySourceParams{
		SourceType:  sourceType,
		ResultLimit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing passages: %w", err)
	}

	documents := make([]Document, 0, len(rows))
	for _, row := range rows {
		documents = append(documents, s.rowToDocument(row))
	}
	return documents, nil
}

func (s *Store) rowsToResults(rows []PassageRow) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Document:   s.rowToDocument(row),
			Similarity: row.Similarity,
		})
	}
	return results
}

func (s *Store) rowToDocument(row PassageRow) Document {
	var metadata map[string]string
	if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
		s.logger.Warn("failed to parse metadata", "passage_id", row.ID, "error", err)
		metadata = make(map[string]string)
	}

	var createAt time.Time
	if row.CreatedAt.Valid {
		createAt = row.CreatedAt.Time
	}

	return Document{
		ID:       row.ID,
		Content:  row.Content,
		Metadata: metadata,
		CreateAt: createAt,
	}
}
