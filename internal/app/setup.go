package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/sidekick-cli/sidekick/db"
	"github.com/sidekick-cli/sidekick/internal/assistant"
	"github.com/sidekick-cli/sidekick/internal/calendar"
	"github.com/sidekick-cli/sidekick/internal/config"
	"github.com/sidekick-cli/sidekick/internal/ingest"
	"github.com/sidekick-cli/sidekick/internal/knowledge"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Store = knowledge.New(knowledge.NewQueries(pool), embedder, logger)

	a.Ingestor, err = provideIngestor(a.Store, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Calendar = provideCalendar(ctx, cfg, logger)

	a.Pipeline, err = providePipeline(a, cfg, logger)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Ollama embedders are keyed by server address (registered in provideGenkit).
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool runs migrations and creates a pgx connection pool with
// pgvector types registered on every connection.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideCalendar creates the calendar client when credential files exist.
// The calendar is optional; without it, calendar questions answer with a
// visible configuration error instead of failing startup.
func provideCalendar(ctx context.Context, cfg *config.Config, logger *slog.Logger) *calendar.Client {
	cal := cfg.Calendar
	if cal.CredentialsPath == "" || cal.TokenPath == "" {
		logger.Debug("calendar not configured, skipping")
		return nil
	}
	if _, err := os.Stat(cal.CredentialsPath); err != nil {
		logger.Info("calendar credentials not found, calendar disabled",
			"path", cal.CredentialsPath)
		return nil
	}

	client, err := calendar.New(ctx, calendar.Config{
		CredentialsPath: cal.CredentialsPath,
		TokenPath:       cal.TokenPath,
		CalendarID:      cal.CalendarID,
		MaxResults:      cal.MaxResults,
		Timeout:         time.Duration(cal.TimeoutMs) * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Warn("calendar setup failed, calendar disabled", "error", err)
		return nil
	}
	return client
}

// provideIngestor assembles the web fetcher, splitter, and ingestor.
func provideIngestor(store *knowledge.Store, cfg *config.Config, logger *slog.Logger) (*ingest.Ingestor, error) {
	fetcher, err := ingest.NewFetcher(ingest.FetcherConfig{
		Timeout:     time.Duration(cfg.Scraper.TimeoutMs) * time.Millisecond,
		Parallelism: cfg.Scraper.Parallelism,
		Delay:       time.Duration(cfg.Scraper.DelayMs) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}

	splitter, err := ingest.NewSplitter(0, 0)
	if err != nil {
		return nil, err
	}

	return ingest.NewIngestor(store, fetcher, splitter, nil, logger)
}

// providePipeline assembles the question pipeline from the initialized
// collaborators.
func providePipeline(a *App, cfg *config.Config, logger *slog.Logger) (*assistant.Pipeline, error) {
	model, err := assistant.NewModel(a.Genkit, assistant.ModelConfig{
		ModelName: cfg.FullModelName(),
		Timeout:   time.Duration(cfg.ModelTimeoutMs) * time.Millisecond,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model: %w", err)
	}

	pipelineCfg := assistant.Config{
		Analyzer:  assistant.NewAnalyzer(model, logger),
		Searcher:  &storeSearcher{store: a.Store},
		Generator: model,
		TopK:      cfg.TopK,
		Logger:    logger,
	}
	if a.Calendar != nil {
		pipelineCfg.Events = a.Calendar
	}

	return assistant.NewPipeline(pipelineCfg)
}

// storeSearcher adapts knowledge.Store to the pipeline's Searcher interface.
type storeSearcher struct {
	store *knowledge.Store
}

func (s *storeSearcher) SimilaritySearch(ctx context.Context, query string, k int) ([]assistant.Passage, error) {
	results, err := s.store.Search(ctx, query, knowledge.WithTopK(k))
	if err != nil {
		return nil, err
	}

	passages := make([]assistant.Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, assistant.Passage{
			Content: r.Document.Content,
			Source:  r.Document.Metadata["source"],
			Page:    r.Document.Metadata["page"],
		})
	}
	return passages, nil
}
