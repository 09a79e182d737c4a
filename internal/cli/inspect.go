package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avkonst/automodel/internal/introspect"
	"github.com/avkonst/automodel/internal/parser"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <query>",
	Short: "Show the analysis of a single query",
	Long: `Inspect one query: its variants, positional SQL, resolved parameter and
column types, mutation classification, and harvested constraints.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		queryName := args[0]

		dbURL, err := cfg.GetDatabaseURL(&flags)
		if err != nil {
			return err
		}

		defs, err := loadQueries()
		if err != nil {
			return err
		}

		var def *parser.QueryDefinition
		for i := range defs {
			if defs[i].Name == queryName {
				def = &defs[i]
				break
			}
		}
		if def == nil {
			return fmt.Errorf("query %q not found", queryName)
		}

		analyses, err := introspect.AnalyzeQueries(ctx, dbURL, []parser.QueryDefinition{*def}, introspect.Options{
			Overrides:     cfg.Types,
			DefaultSchema: cfg.GetDefaultSchema(),
		})
		if err != nil {
			return err
		}
		a := analyses[0]

		fmt.Printf("Query: %s\n", a.Definition.Name)
		if a.Definition.Module != "" {
			fmt.Printf("Module: %s\n", a.Definition.Module)
		}
		if a.Definition.SourceFile != "" {
			fmt.Printf("Source: %s\n", a.Definition.SourceFile)
		}
		fmt.Printf("Expect: %s\n", a.Definition.Expect.OrDefault())

		fmt.Printf("\nVariants:\n")
		for _, v := range a.Parsed.Variants() {
			fmt.Printf("  %s\n", v.Label)
		}

		fmt.Printf("\nPositional SQL:\n  %s\n", a.PositionalSQL)

		if len(a.Params) > 0 {
			fmt.Printf("\nParameters:\n")
			for _, p := range a.Params {
				optional := ""
				if p.Type.Optional {
					optional = " (diffable)"
				}
				fmt.Printf("  %s: %s [%s]%s\n", p.Name, p.Type.GoType, p.Type.PgType, optional)
			}
		}

		if a.TypeInfo != nil && len(a.TypeInfo.Columns) > 0 {
			fmt.Printf("\nColumns:\n")
			for _, col := range a.TypeInfo.Columns {
				unknown := ""
				if col.Type.Unknown {
					unknown = " (unknown database type)"
				}
				fmt.Printf("  %s: %s [%s]%s\n", col.Name, col.Type.GoType, col.Type.PgType, unknown)
			}
		}

		if len(a.ExplainParams) > 0 {
			fmt.Printf("\nExplain SQL (psql-ready):\n  EXPLAIN %s\n",
				introspect.ApplyExplainParams(a.PositionalSQL, a.ExplainParams))
		}

		fmt.Printf("\nMutation (heuristic): %v\n", a.IsMutation)

		if len(a.Constraints) > 0 {
			fmt.Printf("\nConstraints:\n")
			for _, c := range a.Constraints {
				fmt.Printf("  %s on %s (%s)\n", c.Name, c.Table, c.Kind)
			}
		}

		for _, w := range a.PlanWarnings {
			fmt.Printf("\nwarning: %s\n", w)
		}

		return nil
	},
}
