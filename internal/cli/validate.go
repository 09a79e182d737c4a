package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avkonst/automodel/internal/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate query files without touching the database",
	Long: `Validate all annotated query files: metadata blocks, template markers,
conditional fences, and identifier rules. No database connection is made,
so type resolution is not checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := loadQueries()
		if err != nil {
			return err
		}

		for i := range defs {
			if err := defs[i].Validate(); err != nil {
				return err
			}
			parsed := parser.ParseTemplate(defs[i].SQL)
			if len(parsed.ParamNames) == 0 && len(parsed.Conditionals) == 0 {
				continue
			}
			for _, name := range parsed.ParamNames {
				if !parser.IsValidIdentifier(name) {
					return fmt.Errorf("query %s: parameter name %q is not a valid identifier", defs[i].Name, name)
				}
			}
		}

		fmt.Printf("%d queries are valid\n", len(defs))
		return nil
	},
}
