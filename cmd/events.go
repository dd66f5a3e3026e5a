package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sidekick-cli/sidekick/internal/assistant"
)

var eventsCmd = &cobra.Command{
	Use:   "events [phrase]",
	Short: "List calendar events for a date phrase (default: today)",
	Args:  cobra.ArbitraryArgs,
	RunE:  runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	a, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if a.Calendar == nil {
		return fmt.Errorf("calendar is not configured; set calendar credentials in config.yaml")
	}

	phrase := strings.TrimSpace(strings.Join(args, " "))
	if phrase == "" {
		phrase = "today"
	}

	date, err := assistant.ResolveDate(phrase, time.Now())
	if err != nil {
		return fmt.Errorf("resolving date %q: %w", phrase, err)
	}

	events, err := a.Calendar.EventsForDate(cmd.Context(), date)
	if err != nil {
		return fmt.Errorf("fetching events: %w", err)
	}

	out := cmd.OutOrStdout()
	day := date.Format("2006-01-02")
	if len(events) == 0 {
		fmt.Fprintf(out, "No events found for %s.\n", day)
		return nil
	}
	fmt.Fprintf(out, "Events for %s:\n", day)
	for _, e := range events {
		fmt.Fprintf(out, "- %s (%s → %s)\n", e.Summary, e.Start, e.End)
	}
	return nil
}
