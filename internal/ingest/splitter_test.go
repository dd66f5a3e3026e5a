package ingest

import (
	"strings"
	"testing"
)

func TestNewSplitterValidation(t *testing.T) {
	if _, err := NewSplitter(100, 100); err == nil {
		t.Error("overlap equal to chunk size should be rejected")
	}
	if _, err := NewSplitter(100, -1); err == nil {
		t.Error("negative overlap should be rejected")
	}
	if _, err := NewSplitter(-5, 0); err == nil {
		t.Error("negative chunk size should be rejected")
	}
}

func TestSplitDefaults(t *testing.T) {
	s, err := NewSplitter(0, 0)
	if err != nil {
		t.Fatalf("NewSplitter() error: %v", err)
	}
	if s.chunkSize != DefaultChunkSize || s.overlap != DefaultOverlap {
		t.Errorf("defaults = %d/%d", s.chunkSize, s.overlap)
	}
}

func TestSplit(t *testing.T) {
	s, err := NewSplitter(10, 3)
	if err != nil {
		t.Fatalf("NewSplitter() error: %v", err)
	}

	t.Run("empty input", func(t *testing.T) {
		if chunks := s.Split(""); chunks != nil {
			t.Errorf("chunks = %v, want nil", chunks)
		}
	})

	t.Run("short input single chunk", func(t *testing.T) {
		chunks := s.Split("hello")
		if len(chunks) != 1 || chunks[0].Text != "hello" || chunks[0].Start != 0 {
			t.Errorf("chunks = %+v", chunks)
		}
	})

	t.Run("overlapping chunks cover the text", func(t *testing.T) {
		text := "abcdefghijklmnopqrstuvwxyz"
		chunks := s.Split(text)

		for i, c := range chunks {
			if len(c.Text) > 10 {
				t.Errorf("chunk %d length %d exceeds chunk size", i, len(c.Text))
			}
			if c.Start != i*7 {
				t.Errorf("chunk %d start = %d, want %d", i, c.Start, i*7)
			}
			if text[c.Start:c.Start+len(c.Text)] != c.Text {
				t.Errorf("chunk %d does not match source at its offset", i)
			}
		}

		last := chunks[len(chunks)-1]
		if last.Start+len(last.Text) != len(text) {
			t.Error("last chunk must reach the end of the text")
		}

		// Consecutive chunks share exactly the overlap region.
		if !strings.HasPrefix(chunks[1].Text, chunks[0].Text[7:]) {
			t.Error("second chunk should start with the first chunk's tail")
		}
	})

	t.Run("exact multiple has no empty trailing chunk", func(t *testing.T) {
		chunks := s.Split("0123456789")
		if len(chunks) != 1 {
			t.Errorf("chunks = %+v, want one full chunk", chunks)
		}
	})
}
