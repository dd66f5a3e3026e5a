// Package app wires configuration, the model provider, storage, and the
// question pipeline into one application container.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sidekick-cli/sidekick/internal/assistant"
	"github.com/sidekick-cli/sidekick/internal/calendar"
	"github.com/sidekick-cli/sidekick/internal/config"
	"github.com/sidekick-cli/sidekick/internal/ingest"
	"github.com/sidekick-cli/sidekick/internal/knowledge"
)

// App holds every initialized component for the process lifetime.
// Construct with Setup and release with Close.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Genkit   *genkit.Genkit
	DBPool   *pgxpool.Pool
	Embedder ai.Embedder

	Store    *knowledge.Store
	Ingestor *ingest.Ingestor
	Calendar *calendar.Client
	Pipeline *assistant.Pipeline

	dbCleanup func()
}

// Close releases all resources owned by the App. Safe to call on a
// partially initialized App.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	return nil
}
