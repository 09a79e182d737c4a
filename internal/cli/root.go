package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avkonst/automodel/internal/config"
	"github.com/avkonst/automodel/internal/parser"
)

var (
	cfgFile string
	cfg     *config.Config
	flags   config.Flags
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "automodel",
	Short: "Compile annotated SQL into typed Go accessors",
	Long: `Automodel compiles annotated SQL queries into strongly typed Go accessor
functions. Each query is prepared against a live PostgreSQL database and its
parameter and result types are described by the server; queries are never
executed during generation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		if _, statErr := os.Stat(cfgFile); os.IsNotExist(statErr) {
			cfg = &config.Config{}
		} else {
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("automodel %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "automodel.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.URL, "url", "", "database connection URL")
	rootCmd.PersistentFlags().StringVar(&flags.QueriesDir, "queries-dir", "", "directory with annotated .sql query files")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

func SetVersion(v string) {
	version = v
}

func Execute() error {
	return rootCmd.Execute()
}

func Root() *cobra.Command {
	return rootCmd
}

// loadQueries gathers query definitions from the queries directory and the
// inline queries section of the config.
func loadQueries() ([]parser.QueryDefinition, error) {
	queriesDir := cfg.GetQueriesDir(&flags)

	var defs []parser.QueryDefinition
	if _, err := os.Stat(queriesDir); err == nil {
		defs, err = parser.ParseQueryDirectory(queriesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load queries from %s: %w", queriesDir, err)
		}
	}

	for _, def := range cfg.Queries {
		if def.SourceFile == "" {
			def.SourceFile = cfgFile
		}
		defs = append(defs, def)
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("no queries found in %s or in the config", queriesDir)
	}
	return defs, nil
}
