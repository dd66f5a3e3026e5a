package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sidekick-cli/sidekick/internal/knowledge"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the indexed knowledge base",
}

var indexURLCmd = &cobra.Command{
	Use:   "url [url]",
	Short: "Fetch a web page and index its content",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexURL,
}

var indexAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Index a local file or directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexAdd,
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runIndexList,
}

var indexRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove an indexed document by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexRemove,
}

var listSourceType string

func init() {
	indexListCmd.Flags().StringVar(&listSourceType, "source", knowledge.SourceTypeWeb,
		"source type to list (web or file)")
	indexCmd.AddCommand(indexURLCmd, indexAddCmd, indexListCmd, indexRemoveCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexURL(cmd *cobra.Command, args []string) error {
	a, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	chunks, err := a.Ingestor.IndexURL(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("indexing URL: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks from %s\n", chunks, args[0])
	return nil
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	a, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("stat path: %w", err)
	}

	out := cmd.OutOrStdout()
	if info.IsDir() {
		result, err := a.Ingestor.IndexDir(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("indexing directory: %w", err)
		}
		fmt.Fprintf(out, "Indexed %d files (%d skipped, %d failed) in %s\n",
			result.FilesAdded, result.FilesSkipped, result.FilesFailed, result.Duration.Round(time.Millisecond))
		return nil
	}

	if err := a.Ingestor.IndexFile(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("indexing file: %w", err)
	}
	fmt.Fprintf(out, "Indexed %s\n", args[0])
	return nil
}

func runIndexList(cmd *cobra.Command, _ []string) error {
	a, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	docs, err := a.Ingestor.ListDocuments(cmd.Context(), listSourceType)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No indexed documents.")
		return nil
	}
	for _, doc := range docs {
		source := doc.Metadata["source"]
		fmt.Fprintf(out, "%s  %s\n", doc.ID, source)
	}
	return nil
}

func runIndexRemove(cmd *cobra.Command, args []string) error {
	a, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Ingestor.RemoveDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("removing document: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}
