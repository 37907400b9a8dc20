package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lectern/lectern/internal/app"
	"github.com/lectern/lectern/internal/config"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index course documents into the vector store",
	Long: `Ingest parses every course document in the given directory (default:
the configured docs_dir), chunks the lesson content, and writes the
embeddings to the vector index. With a persistent index_dir configured the
result survives restarts; otherwise this is a dry run of what serve does
at startup.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dir := cfg.DocsDir
	if len(args) > 0 {
		dir = args[0]
	}

	ctx := context.Background()
	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	result, err := a.System.Ingest(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Indexed %d courses (%d chunks) from %s\n", result.Courses, result.Chunks, dir)
	if len(result.Failures) > 0 {
		fmt.Printf("Skipped %d files:\n", len(result.Failures))
		for _, f := range result.Failures {
			fmt.Printf("  %s: %v\n", f.Path, f.Err)
		}
	}
	return nil
}
