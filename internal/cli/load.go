package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/moviesdb/internal/cli/appctx"
	"github.com/lherron/moviesdb/internal/etl"
	"github.com/lherron/moviesdb/internal/render"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Copy every table from the SQLite source into the destination",
	Long: `Transfers genre, person, film_work, genre_film_work and person_film_work
in that order, committing once per table. Rows whose id already exists in
the destination are skipped, so load can be re-run safely. A failing table
is rolled back and the run stops; tables before it stay committed.`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runLoad),
}

var (
	loadJSON bool
	loadYAML bool
)

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().Int("batch-size", 0, "Rows per batch (overrides BATCH_SIZE)")
	loadCmd.Flags().BoolVar(&loadJSON, "json", false, "Output report as JSON")
	loadCmd.Flags().BoolVar(&loadYAML, "yaml", false, "Output report as YAML")
}

func runLoad(app *appctx.App, cmd *cobra.Command, args []string) error {
	format, err := render.FormatFromFlags(loadJSON, loadYAML)
	if err != nil {
		return exitError(ExitSetup, err)
	}

	app.Log.Info("load started", "source", app.Source.Target(), "destination", app.Dest.Target(),
		"batch_size", app.Config.BatchSize)

	m := etl.NewMigrator(app.Source, app.Dest, etl.MigratorConfig{
		BatchSize: app.Config.BatchSize,
		Logger:    app.Log,
	})
	report, runErr := m.Run(cmd.Context())

	if report != nil {
		if err := renderRunReport(cmd, format, report); err != nil {
			return err
		}
	}
	if runErr != nil {
		return exitError(ExitFailure, fmt.Errorf("load failed: %w", runErr))
	}

	app.Log.Info("load finished", "inserted", report.Inserted(), "skipped", report.Skipped(),
		"duration", report.Duration)
	return nil
}

func renderRunReport(cmd *cobra.Command, format render.Format, report *etl.RunReport) error {
	headers := []string{"TABLE", "READ", "INSERTED", "SKIPPED", "BATCHES"}
	var rows [][]string
	for _, t := range report.Tables {
		rows = append(rows, []string{
			t.Table.String(),
			formatCount(t.Read),
			formatCount(t.Inserted),
			formatCount(t.Skipped),
			fmt.Sprintf("%d", t.Batches),
		})
	}

	r := render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format})
	if err := r.Render(report, headers, rows); err != nil {
		return err
	}
	if format == render.FormatTable {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d inserted, %d skipped in %s\n",
			report.Inserted(), report.Skipped(), report.Duration.Round(time.Millisecond))
	}
	return nil
}
