package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avkonst/automodel/internal/codegen"
	_ "github.com/avkonst/automodel/internal/codegen/golang"
	"github.com/avkonst/automodel/internal/introspect"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate typed accessor functions from annotated SQL queries",
	Long: `Generate typed accessor functions for every annotated query.

Each query is prepared against the configured database so the server
describes its parameter and column types; nothing is executed. One source
file is written per query module.

Example:
  automodel generate --url postgres://localhost/mydb --out ./internal/db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dbURL, err := cfg.GetDatabaseURL(&flags)
		if err != nil {
			return err
		}

		language := cfg.GetLanguage(&flags)
		outDir := cfg.GetOutDir(&flags)
		pkg := cfg.GetPackage(&flags)

		generator, err := codegen.Get(language)
		if err != nil {
			return fmt.Errorf("failed to get generator: %w (available: %v)", err, codegen.Languages())
		}

		defs, err := loadQueries()
		if err != nil {
			return err
		}

		fmt.Printf("Analyzing %d queries...\n", len(defs))
		analyses, err := introspect.AnalyzeQueries(ctx, dbURL, defs, introspect.Options{
			Overrides:     cfg.Types,
			DefaultSchema: cfg.GetDefaultSchema(),
			Jobs:          cfg.GetJobs(&flags),
		})
		if err != nil {
			return err
		}

		for _, a := range analyses {
			for _, w := range a.PlanWarnings {
				fmt.Printf("warning: query %s: %s\n", a.Definition.Name, w)
			}
			if a.TypeInfo == nil {
				continue
			}
			for _, col := range a.TypeInfo.Columns {
				if col.Type.Unknown {
					fmt.Printf("warning: query %s: column %s has unknown database type %q, using string\n",
						a.Definition.Name, col.Name, col.Type.PgType)
				}
			}
		}

		fmt.Printf("Generating %s code to %s...\n", language, outDir)
		if err := generator.Generate(pkg, analyses, outDir); err != nil {
			return fmt.Errorf("failed to generate: %w", err)
		}

		modules := make(map[string]int)
		var order []string
		for _, a := range analyses {
			module := a.Definition.Module
			if module == "" {
				module = "queries"
			}
			if _, seen := modules[module]; !seen {
				order = append(order, module)
			}
			modules[module]++
		}
		for _, module := range order {
			fmt.Printf("  %s.go: %d queries\n", module, modules[module])
		}
		fmt.Printf("Generated %d queries in %d modules\n", len(analyses), len(order))

		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&flags.OutDir, "out", "", "output directory for generated files")
	generateCmd.Flags().StringVar(&flags.Package, "package", "", "package name for generated files (default: db)")
	generateCmd.Flags().StringVar(&flags.Language, "language", "", "target language (default: go)")
	generateCmd.Flags().IntVar(&flags.Jobs, "jobs", 0, "number of queries to analyze concurrently")
}
