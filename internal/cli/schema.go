package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/moviesdb/internal/cli/appctx"
	"github.com/lherron/moviesdb/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the destination schema",
	Long:  `Renders or applies the destination tables, indexes and constraints.`,
}

var schemaApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create missing destination tables and indexes",
	Long: `Creates the content schema, tables and indexes in the destination if
they do not exist yet. Existing tables are left untouched.`,
	RunE: appctx.WithApp(appctx.DestOnly(), runSchemaApply),
}

var schemaPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the destination DDL",
	RunE:  runSchemaPrint,
}

var (
	schemaApplyVerbose bool
	schemaDialect      string
	schemaNamespace    string
)

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaApplyCmd)
	schemaCmd.AddCommand(schemaPrintCmd)

	schemaApplyCmd.Flags().BoolVarP(&schemaApplyVerbose, "verbose", "v", false, "Print executed statements")
	schemaPrintCmd.Flags().StringVar(&schemaDialect, "dialect", string(schema.DialectPostgres), "SQL dialect: postgres or sqlite")
	schemaPrintCmd.Flags().StringVar(&schemaNamespace, "namespace", "content", "Postgres schema to qualify tables with (empty for none)")
}

func runSchemaApply(app *appctx.App, cmd *cobra.Command, args []string) error {
	namespace := ""
	if app.Dest.Dialect() == schema.DialectPostgres {
		namespace = app.Config.Postgres.Schema
	}

	stmts, err := app.Dest.ApplySchema(cmd.Context(), schema.Default(), namespace)
	if err != nil {
		return exitError(ExitFailure, err)
	}

	out := cmd.OutOrStdout()
	if schemaApplyVerbose {
		fmt.Fprint(out, joinStatements(stmts))
	}
	fmt.Fprintf(out, "Applied %d statements to %s\n", len(stmts), app.Dest.Target())
	return nil
}

func runSchemaPrint(cmd *cobra.Command, args []string) error {
	dialect, err := schema.ParseDialect(schemaDialect)
	if err != nil {
		return exitError(ExitSetup, err)
	}
	fmt.Fprint(cmd.OutOrStdout(), joinStatements(schema.Default().CreateStatements(dialect, schemaNamespace)))
	return nil
}

func joinStatements(stmts []string) string {
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(s)
		b.WriteString(";\n\n")
	}
	return b.String()
}
