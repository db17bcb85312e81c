package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/moviesdb/internal/cli/appctx"
	"github.com/lherron/moviesdb/internal/config"
	"github.com/lherron/moviesdb/internal/db"
	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/etl"
	"github.com/lherron/moviesdb/internal/render"
	"github.com/lherron/moviesdb/internal/schema"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, source and destination before a transfer",
	Long: `Verifies the configuration, that the source file opens and has the
expected tables and columns, that its rows satisfy the destination
constraints, and that the destination is reachable with the schema in place.`,
	RunE: runDoctor,
}

var (
	doctorJSON    bool
	doctorVerbose bool
)

// maxDetails caps the per-check detail lines
const maxDetails = 10

type checkResult struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"` // "ok", "warning", "error"
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

type doctorReport struct {
	Version       string        `json:"version"`
	Source        string        `json:"source"`
	Destination   string        `json:"destination"`
	Checks        []checkResult `json:"checks"`
	Warnings      int           `json:"warnings"`
	Errors        int           `json:"errors"`
	OverallStatus string        `json:"overall_status"`
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output JSON")
	doctorCmd.Flags().BoolVar(&doctorVerbose, "verbose", false, "Verbose output")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := appctx.LoadConfig(cmd)
	if err != nil {
		return err
	}

	report := &doctorReport{
		Version:       Version,
		Source:        cfg.SQLitePath,
		Destination:   destinationLabel(cfg),
		Checks:        []checkResult{},
		OverallStatus: "ok",
	}
	cat := schema.Default()

	report.Checks = append(report.Checks, checkConfig(cfg))

	report.Checks = append(report.Checks, checkSourceFile(cfg.SQLitePath))
	source, err := db.OpenSource(ctx, cfg.SQLitePath)
	if err == nil {
		defer source.Close()
		tables := checkTables(ctx, source, cat, "source_tables", "error")
		report.Checks = append(report.Checks, tables)
		if tables.Status == "ok" {
			report.Checks = append(report.Checks, checkSourceRecords(ctx, source, cat))
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		report.Checks = append(report.Checks, checkResult{
			Name:    "source_open",
			Status:  "error",
			Message: fmt.Sprintf("Failed to open source: %v", err),
		})
	}

	dest, err := appctx.OpenDestination(ctx, cfg)
	if err == nil {
		defer dest.Close()
		report.Checks = append(report.Checks, checkResult{
			Name:    "destination_connect",
			Status:  "ok",
			Message: fmt.Sprintf("Connected to %s (%s)", dest.Target(), dest.Dialect()),
		})
		report.Checks = append(report.Checks, checkTables(ctx, dest, cat, "destination_tables", "warning"))
	} else {
		report.Checks = append(report.Checks, checkResult{
			Name:    "destination_connect",
			Status:  "error",
			Message: fmt.Sprintf("Failed to connect to destination: %v", err),
		})
	}

	// Count warnings and errors
	for _, check := range report.Checks {
		if check.Status == "warning" {
			report.Warnings++
		} else if check.Status == "error" {
			report.Errors++
			report.OverallStatus = "error"
		}
	}

	if report.Warnings > 0 && report.OverallStatus == "ok" {
		report.OverallStatus = "warning"
	}

	if doctorJSON {
		if err := render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: render.FormatJSON}).RenderJSON(report); err != nil {
			return err
		}
	} else {
		printDoctorReport(cmd, report)
	}

	if report.Errors > 0 {
		return exitError(ExitFailure, fmt.Errorf("doctor found %d error(s)", report.Errors))
	}
	return nil
}

func destinationLabel(cfg *config.Config) string {
	if cfg.DestinationSQLite != "" {
		return cfg.DestinationSQLite
	}
	return cfg.Postgres.Redacted()
}

func checkConfig(cfg *config.Config) checkResult {
	if err := cfg.Validate(); err != nil {
		return checkResult{
			Name:    "config_valid",
			Status:  "error",
			Message: "Configuration is incomplete",
			Details: strings.Split(err.Error(), "\n"),
		}
	}
	return checkResult{Name: "config_valid", Status: "ok", Message: "Configuration is complete"}
}

func checkSourceFile(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			Name:    "source_file",
			Status:  "error",
			Message: fmt.Sprintf("Source file not found: %s", path),
		}
	}
	return checkResult{
		Name:    "source_file",
		Status:  "ok",
		Message: fmt.Sprintf("Source file: %s (%.1f MB)", path, float64(info.Size())/(1024*1024)),
	}
}

// checkTables compares every table's columns with the catalogue. Missing
// tables are reported with missingStatus.
func checkTables(ctx context.Context, database *db.DB, cat *schema.Catalog, name, missingStatus string) checkResult {
	res := checkResult{Name: name, Status: "ok"}
	var missing []string
	for _, table := range domain.Tables() {
		cols, err := database.TableColumns(ctx, table.String())
		if err != nil {
			missing = append(missing, table.String())
			continue
		}
		want := cat.Table(table).ColumnNames()
		slices.Sort(cols)
		slices.Sort(want)
		if !slices.Equal(cols, want) {
			res.Status = "error"
			res.Details = append(res.Details, fmt.Sprintf("%s: columns %s, want %s",
				table, strings.Join(cols, ", "), strings.Join(want, ", ")))
		}
	}

	if len(missing) > 0 {
		if res.Status == "ok" {
			res.Status = missingStatus
		}
		res.Details = append(res.Details, "missing tables: "+strings.Join(missing, ", "))
		if name == "destination_tables" {
			res.Details = append(res.Details, "Run 'moviesadm schema apply' to create them")
		}
	}

	switch res.Status {
	case "ok":
		res.Message = fmt.Sprintf("All %d tables present with expected columns", domain.TableCount)
	default:
		res.Message = fmt.Sprintf("%d table problem(s)", len(res.Details))
	}
	return res
}

// checkSourceRecords decodes every source row and validates it against the
// destination constraints.
func checkSourceRecords(ctx context.Context, source *db.DB, cat *schema.Catalog) checkResult {
	res := checkResult{Name: "source_records", Status: "ok"}
	reader := etl.NewReader(source, etl.ReaderOptions{Catalog: cat})

	var total, invalid int64
	for _, table := range domain.Tables() {
		cur, err := reader.Open(ctx, table, 0)
		if err != nil {
			res.Status = "error"
			res.Details = append(res.Details, err.Error())
			continue
		}
		for cur.Next() {
			for _, rec := range cur.Batch() {
				total++
				if err := domain.Validate(rec); err != nil {
					invalid++
					if len(res.Details) < maxDetails {
						res.Details = append(res.Details, err.Error())
					}
				}
			}
		}
		if err := cur.Err(); err != nil {
			res.Status = "error"
			res.Details = append(res.Details, err.Error())
		}
		cur.Close()
	}

	switch {
	case res.Status == "error":
		res.Message = "Source rows could not be decoded"
	case invalid > 0:
		res.Status = "warning"
		res.Message = fmt.Sprintf("%d of %d rows violate destination constraints", invalid, total)
	default:
		res.Message = fmt.Sprintf("%d rows decoded and valid", total)
	}
	return res
}

func printDoctorReport(cmd *cobra.Command, report *doctorReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "moviesadm doctor %s\n\n", report.Version)
	fmt.Fprintf(out, "Source:      %s\n", report.Source)
	fmt.Fprintf(out, "Destination: %s\n\n", report.Destination)

	// Group checks by category
	categories := map[string][]checkResult{}
	for _, check := range report.Checks {
		var category string
		switch check.Name {
		case "config_valid":
			category = "Configuration"
		case "source_file", "source_open", "source_tables", "source_records":
			category = "Source"
		default:
			category = "Destination"
		}
		categories[category] = append(categories[category], check)
	}

	for _, category := range []string{"Configuration", "Source", "Destination"} {
		checks := categories[category]
		if len(checks) == 0 {
			continue
		}

		fmt.Fprintf(out, "%s\n", category)
		for _, check := range checks {
			icon := "✓"
			if check.Status == "warning" {
				icon = "⚠"
			} else if check.Status == "error" {
				icon = "✗"
			}

			fmt.Fprintf(out, "  %s %s\n", icon, check.Message)

			if doctorVerbose && len(check.Details) > 0 {
				for _, detail := range check.Details {
					fmt.Fprintf(out, "      %s\n", detail)
				}
			}
		}
		fmt.Fprintln(out)
	}

	// Summary
	if report.Errors > 0 {
		fmt.Fprintf(out, "Summary: %d error(s), %d warning(s)\n", report.Errors, report.Warnings)
	} else if report.Warnings > 0 {
		fmt.Fprintf(out, "Summary: %d warning(s)\n", report.Warnings)
	} else {
		fmt.Fprintf(out, "Summary: All checks passed ✓\n")
	}

	if !doctorVerbose && (report.Warnings > 0 || report.Errors > 0) {
		fmt.Fprintf(out, "\nRun with --verbose for detailed information\n")
	}
}
