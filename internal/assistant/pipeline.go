package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sidekick-cli/sidekick/internal/calendar"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 6

const fallbackAnswer = "Sorry, I couldn't find an answer."

// Config assembles a Pipeline's collaborators. Analyzer and Generator are
// required; Searcher and Events may be nil when the corresponding backend
// is not configured.
type Config struct {
	Analyzer  *Analyzer
	Searcher  Searcher
	Events    EventSource
	Generator Generator
	TopK      int
	Logger    *slog.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline is the five-stage state machine that answers one question.
// It is a strict linear flow; no stage re-invokes an earlier one, and once
// a stage sets State.Answer all later stages are no-ops.
type Pipeline struct {
	analyzer  *Analyzer
	searcher  Searcher
	events    EventSource
	generator Generator
	topK      int
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline creates a Pipeline from the given configuration.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		analyzer:  cfg.Analyzer,
		searcher:  cfg.Searcher,
		events:    cfg.Events,
		generator: cfg.Generator,
		topK:      cfg.TopK,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}, nil
}

// Ask answers a single question. It always returns a non-empty string;
// backend failures surface as readable error text, never as a panic or a
// raw error to the caller.
func (p *Pipeline) Ask(ctx context.Context, question string) string {
	state := &State{Question: question}

	p.checkCalendar(ctx, state)
	p.checkCourse(state)
	p.analyze(ctx, state)
	p.retrieve(ctx, state)
	p.generate(ctx, state)

	if state.Answer == "" {
		return fallbackAnswer
	}
	return state.Answer
}

// checkCalendar handles calendar questions entirely: resolve the date,
// fetch the day's events, and format them as the final answer. Setting
// Context to an empty slice keeps the retrieval stage from running.
func (p *Pipeline) checkCalendar(ctx context.Context, s *State) {
	if !Classify(s.Question).Calendar {
		return
	}

	s.Context = []Passage{}

	date, err := ResolveDate(s.Question, p.now())
	if err != nil {
		s.Answer = "Sorry, I couldn't understand the date."
		return
	}

	if p.events == nil {
		s.Answer = "Error: calendar lookup failed: calendar is not configured"
		return
	}

	events, err := p.events.EventsForDate(ctx, date)
	if err != nil {
		// Gateway failures surface as a visible error rather than
		// masquerading as an empty calendar.
		p.logger.Warn("calendar lookup failed", "error", err)
		s.Answer = fmt.Sprintf("Error: calendar lookup failed: %v", err)
		return
	}

	s.Answer = formatEvents(date, events)
}

// checkCourse tags course questions. The tag currently only annotates the
// run; retrieval does not branch on it.
// TODO: filter retrieval by course metadata when QueryType is "course".
func (p *Pipeline) checkCourse(s *State) {
	if Classify(s.Question).Course {
		s.QueryType = "course"
	}
}

// analyze fills in the search descriptor unless an earlier stage already
// answered or a descriptor is present.
func (p *Pipeline) analyze(ctx context.Context, s *State) {
	if s.Answer != "" || s.Query != nil {
		return
	}
	query := p.analyzer.Analyze(ctx, s.Question)
	s.Query = &query
}

// retrieve fetches passages for the semantic query. Retrieval failures are
// recoverable: they log a warning and degrade to zero passages.
func (p *Pipeline) retrieve(ctx context.Context, s *State) {
	if s.Context != nil {
		return
	}

	semantic := s.Question
	if s.Query != nil && strings.TrimSpace(s.Query.Query) != "" {
		semantic = s.Query.Query
	}

	if p.searcher == nil {
		s.Context = []Passage{}
		return
	}

	passages, err := p.searcher.SimilaritySearch(ctx, semantic, p.topK)
	if err != nil {
		p.logger.Warn("retrieval failed, continuing with empty context", "error", err)
		passages = nil
	}
	if passages == nil {
		passages = []Passage{}
	}
	s.Context = passages
}

// generate produces the final answer from the question and retrieved
// context. Generator failures become a visible error message.
func (p *Pipeline) generate(ctx context.Context, s *State) {
	if s.Answer != "" {
		return
	}

	parts := make([]string, 0, len(s.Context))
	for _, passage := range s.Context {
		parts = append(parts, passage.Content)
	}
	contextBlock := strings.Join(parts, "\n\n")

	answer, err := p.generator.Generate(ctx, s.Question, contextBlock)
	if err != nil {
		p.logger.Warn("generation failed", "error", err)
		s.Answer = fmt.Sprintf("Error generating response: %v", err)
		return
	}
	s.Answer = answer
}

// formatEvents renders a day's events as the final calendar answer.
func formatEvents(date time.Time, events []calendar.Event) string {
	day := date.Format("2006-01-02")
	if len(events) == 0 {
		return fmt.Sprintf("No events found for %s.", day)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Events for %s:\n", day)
	for _, e := range events {
		fmt.Fprintf(&b, "- %s (%s → %s)\n", e.Summary, e.Start, e.End)
	}
	return b.String()
}
