// Package cmd implements the lectern command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lectern/lectern/internal/log"
)

var (
	verbose bool
	logJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Lectern answers questions about course materials",
	Long: `Lectern indexes course documents into a vector store and answers
questions about them with a tool-using language model.

Run 'lectern serve' to start the HTTP API, 'lectern ingest' to index a
document directory, or 'lectern ask' for a one-shot question.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation starts the server.
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: logJSON})
}
