package assistant

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// pageRangeRe matches "page 3 to 7", "pages 3-7" and similar phrasings.
var pageRangeRe = regexp.MustCompile(`(?i)pages?\s*(\d+)\s*(?:-|to)\s*(\d+)`)

// Analyzer converts a free-text question into a Search descriptor.
// It prefers model-based structured extraction and falls back to a
// deterministic heuristic whenever the extractor fails, so analysis never
// blocks on the model being available.
type Analyzer struct {
	extractor Extractor
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer. extractor may be nil, in which case only
// the heuristic path runs.
func NewAnalyzer(extractor Extractor, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{extractor: extractor, logger: logger}
}

// Analyze produces a Search for the question. The returned descriptor
// always has a non-empty Query.
func (a *Analyzer) Analyze(ctx context.Context, question string) Search {
	if a.extractor != nil {
		extracted, err := a.extractor.ExtractSearch(ctx, question)
		if err == nil && extracted != nil {
			return sanitizeSearch(*extracted, question)
		}
		if err != nil {
			a.logger.Warn("structured extraction failed, using heuristic fallback", "error", err)
		}
	}
	return heuristicSearch(question)
}

// sanitizeSearch enforces descriptor invariants on model output.
func sanitizeSearch(s Search, question string) Search {
	if strings.TrimSpace(s.Query) == "" {
		s.Query = question
	}
	switch s.Section {
	case "", SectionBeginning, SectionMiddle, SectionEnd:
	default:
		s.Section = ""
	}
	return s
}

// heuristicSearch is the deterministic fallback: page ranges by regex,
// course by substring vocabulary, section never inferred.
func heuristicSearch(question string) Search {
	s := Search{Query: question}

	if m := pageRangeRe.FindStringSubmatch(question); m != nil {
		if from, err := strconv.Atoi(m[1]); err == nil {
			s.PageFrom = &from
		}
		if to, err := strconv.Atoi(m[2]); err == nil {
			s.PageTo = &to
		}
	}

	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "machine learning") || strings.Contains(q, "ml course"):
		s.Course = "ML"
	case strings.Contains(q, "computer vision") || strings.Contains(q, "cv course"):
		s.Course = "CV"
	}

	return s
}
