package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// ragPromptTemplate conditions the model on retrieved passages. Kept close
// to the widely used question/context/answer layout so answers stay short
// and grounded.
const ragPromptTemplate = `You are an assistant for question-answering tasks. Use the following pieces of retrieved context to answer the question. If you don't know the answer, just say that you don't know. Use three sentences maximum and keep the answer concise.
Question: %s
Context: %s
Answer:`

const extractionPromptTemplate = `Extract a structured search descriptor from the user's question. The semantic query should be a short rephrasing suited to similarity search. Only fill course, page range, or section when the question mentions them explicitly.
Question: %s`

// ModelConfig configures a Model.
type ModelConfig struct {
	ModelName string
	Timeout   time.Duration

	// RateLimiter caps outgoing model calls (nil = default 5 req/s, burst 10).
	RateLimiter *rate.Limiter
	Logger      *slog.Logger
}

// Model implements Generator and Extractor on top of a Genkit instance.
// It is safe for concurrent use.
type Model struct {
	g         *genkit.Genkit
	modelName string
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewModel creates a Model bound to a provider-qualified model name
// (e.g. "googleai/gemini-2.5-flash").
func NewModel(g *genkit.Genkit, cfg ModelConfig) (*Model, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = rate.NewLimiter(5, 10)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Model{
		g:         g,
		modelName: cfg.ModelName,
		timeout:   cfg.Timeout,
		limiter:   cfg.RateLimiter,
		logger:    cfg.Logger,
	}, nil
}

// Generate produces a grounded answer for the question. contextBlock may be
// empty; the prompt still instructs the model to admit when it does not know.
func (m *Model) Generate(ctx context.Context, question, contextBlock string) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	resp, err := genkit.Generate(ctx, m.g,
		ai.WithModelName(m.modelName),
		ai.WithPrompt(fmt.Sprintf(ragPromptTemplate, question, contextBlock)),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}

	m.logger.Debug("generated answer",
		"model", m.modelName, "duration", time.Since(start))
	return resp.Text(), nil
}

// ExtractSearch asks the model for a structured Search descriptor. A
// response that fails schema validation is an error; the caller falls back
// to the heuristic analyzer.
func (m *Model) ExtractSearch(ctx context.Context, question string) (*Search, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := genkit.Generate(ctx, m.g,
		ai.WithModelName(m.modelName),
		ai.WithPrompt(fmt.Sprintf(extractionPromptTemplate, question)),
		ai.WithOutputType(Search{}),
	)
	if err != nil {
		return nil, fmt.Errorf("extracting search descriptor: %w", err)
	}

	var search Search
	if err := resp.Output(&search); err != nil {
		return nil, fmt.Errorf("parsing search descriptor: %w", err)
	}

	switch search.Section {
	case "", SectionBeginning, SectionMiddle, SectionEnd:
	default:
		return nil, fmt.Errorf("invalid section %q in extracted descriptor", search.Section)
	}
	return &search, nil
}
