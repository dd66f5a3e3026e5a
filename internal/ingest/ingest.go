// Package ingest populates the knowledge store from web pages and local
// files: fetch, split into overlapping chunks, embed, persist.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sidekick-cli/sidekick/internal/knowledge"
)

// MaxFileSizeForEmbedding caps the size of files indexed whole. Embedding
// models truncate beyond roughly 2048 tokens, which breaks retrieval for
// the tail of the file.
const MaxFileSizeForEmbedding = 8 * 1024

// DefaultListLimit bounds list queries.
const DefaultListLimit = 1000

// defaultSupportedExtensions are the file types indexed by default.
var defaultSupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".go":   true,
	".py":   true,
	".json": true,
	".yaml": true,
	".yml":  true,
}

// Store is the persistence surface the Ingestor needs; knowledge.Store
// satisfies it.
type Store interface {
	Add(ctx context.Context, doc knowledge.Document) error
	ListBySource(ctx context.Context, sourceType string, limit int32) ([]knowledge.Document, error)
	Delete(ctx context.Context, docID string) error
}

// PageFetcher downloads a URL and extracts its readable text; Fetcher
// satisfies it.
type PageFetcher interface {
	Fetch(rawURL string) (*Page, error)
}

// IndexResult summarizes a directory indexing run.
type IndexResult struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	TotalSize    int64
	Duration     time.Duration
}

// Ingestor indexes web pages and local files into the knowledge store.
type Ingestor struct {
	store               Store
	fetcher             PageFetcher
	splitter            *Splitter
	supportedExtensions map[string]bool
	logger              *slog.Logger
}

// NewIngestor creates an Ingestor. extensions overrides the default file
// type allow-list when non-empty.
func NewIngestor(store Store, fetcher PageFetcher, splitter *Splitter, extensions []string, logger *slog.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if splitter == nil {
		var err error
		splitter, err = NewSplitter(0, 0)
		if err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	extMap := make(map[string]bool, len(defaultSupportedExtensions))
	if len(extensions) > 0 {
		for _, ext := range extensions {
			extMap[strings.ToLower(ext)] = true
		}
	} else {
		for k, v := range defaultSupportedExtensions {
			extMap[k] = v
		}
	}

	return &Ingestor{
		store:               store,
		fetcher:             fetcher,
		splitter:            splitter,
		supportedExtensions: extMap,
		logger:              logger,
	}, nil
}

// IndexURL fetches a page, splits it into overlapping chunks, and stores
// each chunk. Returns the number of chunks indexed.
func (ing *Ingestor) IndexURL(ctx context.Context, rawURL string) (int, error) {
	if ing.fetcher == nil {
		return 0, fmt.Errorf("no fetcher configured")
	}

	page, err := ing.fetcher.Fetch(rawURL)
	if err != nil {
		return 0, err
	}

	chunks := ing.splitter.Split(page.Text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no indexable text at %s", rawURL)
	}

	now := time.Now()
	for _, chunk := range chunks {
		doc := knowledge.Document{
			ID:      uuid.NewString(),
			Content: chunk.Text,
			Metadata: map[string]string{
				"source_type": knowledge.SourceTypeWeb,
				"source":      page.URL,
				"title":       page.Title,
				// Pseudo-page derived from the chunk's offset, so page
				// filters work on unpaginated web content.
				"page":       strconv.Itoa(chunk.Start/DefaultChunkSize + 1),
				"indexed_at": now.Format(time.RFC3339),
			},
			CreateAt: now,
		}
		if err := ing.store.Add(ctx, doc); err != nil {
			return 0, fmt.Errorf("storing chunk at offset %d: %w", chunk.Start, err)
		}
	}

	ing.logger.Info("indexed URL", "url", page.URL, "chunks", len(chunks))
	return len(chunks), nil
}

// IndexFile adds a single local file to the store.
func (ing *Ingestor) IndexFile(ctx context.Context, filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, use IndexDir instead")
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if !ing.supportedExtensions[ext] {
		return fmt.Errorf("unsupported file type: %s", ext)
	}
	if info.Size() > MaxFileSizeForEmbedding {
		return fmt.Errorf("file %s (%d bytes) exceeds embedding limit (%d bytes)",
			filepath.Base(absPath), info.Size(), MaxFileSizeForEmbedding)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	doc := knowledge.Document{
		ID:      fileDocID(absPath),
		Content: string(content),
		Metadata: map[string]string{
			"source_type": knowledge.SourceTypeFile,
			"source":      absPath,
			"file_name":   filepath.Base(absPath),
			"file_ext":    ext,
			"file_size":   strconv.FormatInt(info.Size(), 10),
			"indexed_at":  time.Now().Format(time.RFC3339),
		},
		CreateAt: time.Now(),
	}
	if err := ing.store.Add(ctx, doc); err != nil {
		return fmt.Errorf("storing file document: %w", err)
	}
	return nil
}

// IndexDir recursively indexes every supported file under dirPath.
// Individual file failures are counted, not fatal.
func (ing *Ingestor) IndexDir(ctx context.Context, dirPath string) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	absDir, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("resolving directory path: %w", err)
	}

	err = filepath.Walk(absDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			result.FilesFailed++
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != absDir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !ing.supportedExtensions[ext] || info.Size() > MaxFileSizeForEmbedding {
			result.FilesSkipped++
			return nil
		}

		if err := ing.IndexFile(ctx, path); err != nil {
			ing.logger.Warn("failed to index file", "path", path, "error", err)
			result.FilesFailed++
			return nil
		}
		result.FilesAdded++
		result.TotalSize += info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// ListDocuments returns indexed documents of the given source type.
func (ing *Ingestor) ListDocuments(ctx context.Context, sourceType string) ([]knowledge.Document, error) {
	docs, err := ing.store.ListBySource(ctx, sourceType, DefaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// RemoveDocument removes one document by ID.
func (ing *Ingestor) RemoveDocument(ctx context.Context, docID string) error {
	return ing.store.Delete(ctx, docID)
}

// fileDocID derives a stable document ID from the file's absolute path so
// re-indexing updates in place.
func fileDocID(absPath string) string {
	hash := sha256.Sum256([]byte(absPath))
	return "file_" + hex.EncodeToString(hash[:16])
}
