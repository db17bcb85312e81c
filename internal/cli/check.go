package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/moviesdb/internal/cli/appctx"
	"github.com/lherron/moviesdb/internal/etl"
	"github.com/lherron/moviesdb/internal/render"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the destination holds the same rows as the source",
	Long: `Compares row counts of every table, then every record field by field
(mode full) or only created_at of the first record (mode spot). Rows are
matched by id. The check stops at the first inconsistent table unless
--all is given.

Exit status is 0 when consistent, 1 on a mismatch and 2 when a store
cannot be reached.`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runCheck),
}

var (
	checkMode string
	checkAll  bool
	checkJSON bool
	checkYAML bool
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkMode, "mode", string(etl.CheckFull), "Comparison mode: full or spot")
	checkCmd.Flags().BoolVar(&checkAll, "all", false, "Check every table even after a mismatch")
	checkCmd.Flags().Int("batch-size", 0, "Rows per batch (overrides BATCH_SIZE)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output report as JSON")
	checkCmd.Flags().BoolVar(&checkYAML, "yaml", false, "Output report as YAML")
}

func runCheck(app *appctx.App, cmd *cobra.Command, args []string) error {
	format, err := render.FormatFromFlags(checkJSON, checkYAML)
	if err != nil {
		return exitError(ExitSetup, err)
	}
	mode, err := etl.ParseCheckMode(checkMode)
	if err != nil {
		return exitError(ExitSetup, err)
	}

	checker := etl.NewChecker(app.Source, app.Dest, etl.CheckerConfig{
		BatchSize:          app.Config.BatchSize,
		Mode:               mode,
		ContinueOnMismatch: checkAll,
		Logger:             app.Log,
	})
	report, err := checker.Check(cmd.Context())
	if err != nil {
		return exitError(ExitFailure, fmt.Errorf("check failed: %w", err))
	}

	if err := renderCheckReport(cmd, format, report); err != nil {
		return err
	}
	if !report.Consistent {
		return exitError(ExitFailure, ErrInconsistent)
	}
	return nil
}

func renderCheckReport(cmd *cobra.Command, format render.Format, report *etl.CheckReport) error {
	headers := []string{"TABLE", "STATUS", "SOURCE", "DESTINATION", "COMPARED"}
	var rows [][]string
	for _, t := range report.Tables {
		rows = append(rows, []string{
			t.Table.String(),
			strings.ToUpper(string(t.Status)),
			formatCount(t.SourceCount),
			formatCount(t.DestinationCount),
			fmt.Sprintf("%d", t.Compared),
		})
	}

	out := cmd.OutOrStdout()
	if err := render.NewRenderer(out, render.Options{Format: format}).Render(report, headers, rows); err != nil {
		return err
	}
	if format != render.FormatTable {
		return nil
	}

	for _, m := range report.Mismatches() {
		fmt.Fprintf(out, "\n%s\n", m.Error())
		if m.Diff != "" {
			fmt.Fprint(out, m.Diff)
		}
	}
	if report.Consistent {
		fmt.Fprintf(out, "\nConsistent (%s mode)\n", report.Mode)
	}
	return nil
}
