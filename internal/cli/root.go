package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "moviesadm",
	Short: "Transfer the movie catalogue from SQLite to PostgreSQL",
	Long: `moviesadm copies the legacy SQLite movie catalogue (genres, persons,
film works and their links) into PostgreSQL and verifies that the copy
matches the source. Transfers are idempotent: rows whose id already
exists in the destination are skipped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which commands use for
// cancellation of database work.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("sqlite", "", "Path to the source SQLite file (overrides SQLITE_DB)")
	rootCmd.PersistentFlags().String("dest-sqlite", "", "Use a SQLite file as destination instead of Postgres (overrides DEST_SQLITE)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}
