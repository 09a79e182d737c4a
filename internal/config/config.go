package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/avkonst/automodel/internal/parser"
)

type Config struct {
	DatabaseURL   string                   `yaml:"database_url"`
	QueriesDir    string                   `yaml:"queries_dir"`
	OutDir        string                   `yaml:"out_dir"`
	Package       string                   `yaml:"package"`
	DefaultSchema string                   `yaml:"default_schema"`
	Language      string                   `yaml:"language"`
	Jobs          int                      `yaml:"jobs"`
	Types         map[string]string        `yaml:"types"`
	Queries       []parser.QueryDefinition `yaml:"queries"`
}

type Flags struct {
	URL        string
	QueriesDir string
	OutDir     string
	Package    string
	Language   string
	Jobs       int
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.DatabaseURL = expandEnv(cfg.DatabaseURL)
	cfg.QueriesDir = expandEnv(cfg.QueriesDir)
	cfg.OutDir = expandEnv(cfg.OutDir)
	cfg.Package = expandEnv(cfg.Package)
	cfg.DefaultSchema = expandEnv(cfg.DefaultSchema)
	cfg.Language = expandEnv(cfg.Language)

	return &cfg, nil
}

func (c *Config) GetDatabaseURL(flags *Flags) (string, error) {
	if flags != nil && flags.URL != "" {
		return flags.URL, nil
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	return "", fmt.Errorf("database_url is required (set in config or pass --url flag)")
}

func (c *Config) GetQueriesDir(flags *Flags) string {
	if flags != nil && flags.QueriesDir != "" {
		return flags.QueriesDir
	}
	if c.QueriesDir != "" {
		return c.QueriesDir
	}
	return "queries"
}

func (c *Config) GetOutDir(flags *Flags) string {
	if flags != nil && flags.OutDir != "" {
		return flags.OutDir
	}
	if c.OutDir != "" {
		return c.OutDir
	}
	return "db"
}

func (c *Config) GetPackage(flags *Flags) string {
	if flags != nil && flags.Package != "" {
		return flags.Package
	}
	if c.Package != "" {
		return c.Package
	}
	return "db"
}

func (c *Config) GetDefaultSchema() string {
	if c.DefaultSchema != "" {
		return c.DefaultSchema
	}
	return "public"
}

func (c *Config) GetLanguage(flags *Flags) string {
	if flags != nil && flags.Language != "" {
		return flags.Language
	}
	if c.Language != "" {
		return c.Language
	}
	return "go"
}

func (c *Config) GetJobs(flags *Flags) int {
	if flags != nil && flags.Jobs > 0 {
		return flags.Jobs
	}
	if c.Jobs > 0 {
		return c.Jobs
	}
	return 1
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return os.ExpandEnv(s)
}
