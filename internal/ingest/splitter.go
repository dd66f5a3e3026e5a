package ingest

import "fmt"

// Defaults tuned for embedding models with a ~2048 token window.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Chunk is one split of a larger text, with its byte offset into the
// original so callers can derive positional metadata.
type Chunk struct {
	Text  string
	Start int
}

// Splitter cuts text into fixed-size overlapping chunks.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates a Splitter. Zero values select the defaults.
func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap == 0 {
		overlap = DefaultOverlap
	}
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split cuts text into chunks of at most chunkSize bytes, each starting
// overlap bytes before the previous chunk ended. Empty input yields no
// chunks.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	step := s.chunkSize - s.overlap
	var chunks []Chunk
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, Chunk{Text: text[start:end], Start: start})
		if end == len(text) {
			break
		}
	}
	return chunks
}
