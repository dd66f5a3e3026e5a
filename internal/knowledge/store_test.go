package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/jackc/pgx/v5/pgtype"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	delay         time.Duration
	embedErr      error
	returnEmpty   bool
	embeddings    []float32
	callCount     int
	lastInputText string
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++

	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInputText = req.Input[0].Content[0].Text
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{Embeddings: nil}, nil
	}

	embeddings := m.embeddings
	if embeddings == nil {
		embeddings = []float32{0.1, 0.2, 0.3}
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: embeddings}},
	}, nil
}

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	upsertErr    error
	searchErr    error
	searchAllErr error
	countErr     error
	countAllErr  error
	deleteErr    error
	listErr      error

	searchResults    []PassageRow
	searchAllResults []PassageRow
	countResult      int64
	countAllResult   int64
	listResults      []PassageRow

	upsertCalls         int
	searchCalls         int
	searchAllCalls      int
	deleteCalls         int
	lastDeletedID       string
	lastUpsertParams    UpsertPassageParams
	lastSearchParams    SearchPassagesParams
	lastSearchAllParams SearchPassagesAllParams
	lastListParams      ListPassagesBySourceParams
}

func (m *mockQuerier) UpsertPassage(ctx context.Context, arg UpsertPassageParams) error {
	m.upsertCalls++
	m.lastUpsertParams = arg
	return m.upsertErr
}

func (m *mockQuerier) SearchPassages(ctx context.Context, arg SearchPassagesParams) ([]PassageRow, error) {
	m.searchCalls++
	m.lastSearchParams = arg
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults, nil
}

func (m *mockQuerier) SearchPassagesAll(ctx context.Context, arg SearchPassagesAllParams) ([]PassageRow, error) {
	m.searchAllCalls++
	m.lastSearchAllParams = arg
	if m.searchAllErr != nil {
		return nil, m.searchAllErr
	}
	return m.searchAllResults, nil
}

func (m *mockQuerier) CountPassages(ctx context.Context, filterMetadata []byte) (int64, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.countResult, nil
}

func (m *mockQuerier) CountPassagesAll(ctx context.Context) (int64, error) {
	if m.countAllErr != nil {
		return 0, m.countAllErr
	}
	return m.countAllResult, nil
}

func (m *mockQuerier) DeletePassage(ctx context.Context, id string) error {
	m.deleteCalls++
	m.lastDeletedID = id
	return m.deleteErr
}

func (m *mockQuerier) ListPassagesBySource(ctx context.Context, arg ListPassagesBySourceParams) ([]PassageRow, error) {
	m.lastListParams = arg
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResults, nil
}

func mustMetadata(t *testing.T, md map[string]string) []byte {
	t.Helper()
	data, err := json.Marshal(md)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	return data
}

func TestStoreAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("embeds and upserts", func(t *testing.T) {
		querier := &mockQuerier{}
		embedder := &mockEmbedder{}
		store := New(querier, embedder, slog.Default())

		doc := Document{
			ID:       "doc-1",
			Content:  "neural networks learn representations",
			Metadata: map[string]string{"source_type": SourceTypeWeb},
		}
		if err := store.Add(ctx, doc); err != nil {
			t.Fatalf("Add() error: %v", err)
		}

		if embedder.lastInputText != doc.Content {
			t.Errorf("embedded %q, want document content", embedder.lastInputText)
		}
		if querier.upsertCalls != 1 {
			t.Errorf("upsert calls = %d, want 1", querier.upsertCalls)
		}
		if querier.lastUpsertParams.ID != "doc-1" {
			t.Errorf("upsert ID = %q", querier.lastUpsertParams.ID)
		}
		var md map[string]string
		if err := json.Unmarshal(querier.lastUpsertParams.Metadata, &md); err != nil {
			t.Fatalf("metadata not valid JSON: %v", err)
		}
		if md["source_type"] != SourceTypeWeb {
			t.Errorf("metadata source_type = %q", md["source_type"])
		}
	})

	t.Run("rejects empty ID", func(t *testing.T) {
		store := New(&mockQuerier{}, &mockEmbedder{}, nil)
		if err := store.Add(ctx, Document{Content: "text"}); err == nil {
			t.Error("expected error for empty ID")
		}
	})

	t.Run("rejects empty content", func(t *testing.T) {
		store := New(&mockQuerier{}, &mockEmbedder{}, nil)
		if err := store.Add(ctx, Document{ID: "doc-1"}); err == nil {
			t.Error("expected error for empty content")
		}
	})

	t.Run("embedding failure surfaces", func(t *testing.T) {
		querier := &mockQuerier{}
		embedder := &mockEmbedder{embedErr: errors.New("quota exceeded")}
		store := New(querier, embedder, nil)

		err := store.Add(ctx, Document{ID: "doc-1", Content: "text"})
		if err == nil {
			t.Fatal("expected error from failing embedder")
		}
		if querier.upsertCalls != 0 {
			t.Error("upsert should not run when embedding fails")
		}
	})

	t.Run("empty embedding response rejected", func(t *testing.T) {
		store := New(&mockQuerier{}, &mockEmbedder{returnEmpty: true}, nil)
		if err := store.Add(ctx, Document{ID: "doc-1", Content: "text"}); err == nil {
			t.Error("expected error for empty embedding response")
		}
	})
}

func TestStoreSearch(t *testing.T) {
	ctx := context.Background()

	row := PassageRow{
		ID:         "p-1",
		Content:    "backpropagation computes gradients",
		Metadata:   []byte(`{"source_type":"web","source":"https://example.com"}`),
		CreatedAt:  pgtype.Timestamptz{Time: time.Now(), Valid: true},
		Similarity: 0.91,
	}

	t.Run("unfiltered search", func(t *testing.T) {
		querier := &mockQuerier{searchAllResults: []PassageRow{row}}
		store := New(querier, &mockEmbedder{}, nil)

		results, err := store.Search(ctx, "how do gradients flow")
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if querier.searchAllCalls != 1 || querier.searchCalls != 0 {
			t.Errorf("calls: all=%d filtered=%d, want unfiltered path",
				querier.searchAllCalls, querier.searchCalls)
		}
		if querier.lastSearchAllParams.ResultLimit != 6 {
			t.Errorf("default limit = %d, want 6", querier.lastSearchAllParams.ResultLimit)
		}
		if len(results) != 1 || results[0].Document.ID != "p-1" {
			t.Fatalf("results = %+v", results)
		}
		if results[0].Similarity != 0.91 {
			t.Errorf("similarity = %f", results[0].Similarity)
		}
		if results[0].Document.Metadata["source"] != "https://example.com" {
			t.Errorf("metadata = %v", results[0].Document.Metadata)
		}
	})

	t.Run("filtered search", func(t *testing.T) {
		querier := &mockQuerier{searchResults: []PassageRow{row}}
		store := New(querier, &mockEmbedder{}, nil)

		_, err := store.Search(ctx, "query",
			WithTopK(3), WithFilter("source_type", SourceTypeWeb))
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if querier.searchCalls != 1 || querier.searchAllCalls != 0 {
			t.Error("filter should route to the filtered query")
		}
		if querier.lastSearchParams.ResultLimit != 3 {
			t.Errorf("limit = %d, want 3", querier.lastSearchParams.ResultLimit)
		}
		want := mustMetadata(t, map[string]string{"source_type": SourceTypeWeb})
		if string(querier.lastSearchParams.FilterMetadata) != string(want) {
			t.Errorf("filter = %s, want %s", querier.lastSearchParams.FilterMetadata, want)
		}
	})

	t.Run("embedder timeout", func(t *testing.T) {
		embedder := &mockEmbedder{delay: 200 * time.Millisecond}
		store := New(&mockQuerier{}, embedder, nil)

		_, err := store.Search(ctx, "query", WithTimeout(20*time.Millisecond))
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("error = %v, want deadline exceeded", err)
		}
	})

	t.Run("malformed metadata does not fail the search", func(t *testing.T) {
		bad := row
		bad.Metadata = []byte(`{not json`)
		querier := &mockQuerier{searchAllResults: []PassageRow{bad}}
		store := New(querier, &mockEmbedder{}, nil)

		results, err := store.Search(ctx, "query")
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("results = %d, want 1", len(results))
		}
		if results[0].Document.Metadata == nil {
			t.Error("metadata should fall back to empty map")
		}
	})
}

func TestStoreCount(t *testing.T) {
	ctx := context.Background()

	t.Run("no filter counts all", func(t *testing.T) {
		store := New(&mockQuerier{countAllResult: 42}, &mockEmbedder{}, nil)
		count, err := store.Count(ctx, nil)
		if err != nil {
			t.Fatalf("Count() error: %v", err)
		}
		if count != 42 {
			t.Errorf("count = %d, want 42", count)
		}
	})

	t.Run("filter counts matching", func(t *testing.T) {
		store := New(&mockQuerier{countResult: 7}, &mockEmbedder{}, nil)
		count, err := store.Count(ctx, map[string]string{"source_type": SourceTypeFile})
		if err != nil {
			t.Fatalf("Count() error: %v", err)
		}
		if count != 7 {
			t.Errorf("count = %d, want 7", count)
		}
	})
}

func TestStoreDelete(t *testing.T) {
	querier := &mockQuerier{}
	store := New(querier, &mockEmbedder{}, nil)

	if err := store.Delete(context.Background(), "p-9"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if querier.lastDeletedID != "p-9" {
		t.Errorf("deleted ID = %q, want p-9", querier.lastDeletedID)
	}
}

func TestStoreListBySource(t *testing.T) {
	ctx := context.Background()

	t.Run("lists documents", func(t *testing.T) {
		querier := &mockQuerier{listResults: []PassageRow{{
			ID:       "p-1",
			Content:  "chapter one",
			Metadata: []byte(`{"source_type":"file"}`),
		}}}
		store := New(querier, &mockEmbedder{}, nil)

		docs, err := store.ListBySource(ctx, SourceTypeFile, 10)
		if err != nil {
			t.Fatalf("ListBySource() error: %v", err)
		}
		if len(docs) != 1 || docs[0].ID != "p-1" {
			t.Fatalf("docs = %+v", docs)
		}
		if querier.lastListParams.SourceType != SourceTypeFile {
			t.Errorf("source type = %q", querier.lastListParams.SourceType)
		}
	})

	t.Run("rejects unknown source type", func(t *testing.T) {
		store := New(&mockQuerier{}, &mockEmbedder{}, nil)
		if _, err := store.ListBySource(ctx, "conversation", 10); err == nil {
			t.Error("expected error for unknown source type")
		}
	})

	t.Run("rejects invalid limit", func(t *testing.T) {
		store := New(&mockQuerier{}, &mockEmbedder{}, nil)
		if _, err := store.ListBySource(ctx, SourceTypeWeb, 0); err == nil {
			t.Error("expected error for zero limit")
		}
	})
}
