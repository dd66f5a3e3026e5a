// Package assistant routes free-text questions through a fixed pipeline:
// calendar lookup, course tagging, query analysis, passage retrieval, and
// answer generation. Every external dependency may fail without taking the
// interaction down; each stage degrades to a usable answer instead.
package assistant

import (
	"context"
	"time"

	"github.com/sidekick-cli/sidekick/internal/calendar"
)

// Section values a structured extraction may assign.
const (
	SectionBeginning = "beginning"
	SectionMiddle    = "middle"
	SectionEnd       = "end"
)

// Search is the structured descriptor extracted from a question.
// Query is always non-empty; the remaining fields are optional filters.
type Search struct {
	Query    string `json:"query" jsonschema_description:"Short semantic query"`
	Course   string `json:"course,omitempty" jsonschema_description:"Course name, empty if not mentioned"`
	PageFrom *int   `json:"page_from,omitempty" jsonschema_description:"First page of a page range"`
	PageTo   *int   `json:"page_to,omitempty" jsonschema_description:"Last page of a page range"`
	Section  string `json:"section,omitempty" jsonschema:"enum=beginning,enum=middle,enum=end" jsonschema_description:"Optional document section"`
}

// Passage is one retrieved unit of context text with source metadata.
type Passage struct {
	Content string
	Source  string
	Page    string
}

// Searcher retrieves passages ranked by semantic similarity.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Passage, error)
}

// EventSource returns calendar events for a single day.
type EventSource interface {
	EventsForDate(ctx context.Context, day time.Time) ([]calendar.Event, error)
}

// Generator produces a grounded answer from a question and a context block.
type Generator interface {
	Generate(ctx context.Context, question, contextBlock string) (string, error)
}

// Extractor performs structured extraction of a Search from a question.
// Implementations may fail; callers must have a fallback.
type Extractor interface {
	ExtractSearch(ctx context.Context, question string) (*Search, error)
}

// State is the mutable record threaded through one pipeline run.
// Stages only set fields, never clear them. Context distinguishes unset
// (nil) from deliberately empty (non-nil, zero length): the calendar stage
// sets an empty slice to keep retrieval from running.
type State struct {
	Question  string
	Query     *Search
	QueryType string
	Context   []Passage
	Answer    string
}
