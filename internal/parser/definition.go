package parser

import (
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Expect is the result cardinality a query promises.
type Expect string

const (
	ExpectExactlyOne  Expect = "exactly_one"
	ExpectPossibleOne Expect = "possible_one"
	ExpectAtLeastOne  Expect = "at_least_one"
	ExpectMultiple    Expect = "multiple"
)

func (e Expect) Valid() bool {
	switch e {
	case ExpectExactlyOne, ExpectPossibleOne, ExpectAtLeastOne, ExpectMultiple:
		return true
	}
	return false
}

// OrDefault returns the cardinality to use when none was configured.
func (e Expect) OrDefault() Expect {
	if e == "" {
		return ExpectExactlyOne
	}
	return e
}

type TelemetryLevel string

const (
	TelemetryNone  TelemetryLevel = "none"
	TelemetryInfo  TelemetryLevel = "info"
	TelemetryDebug TelemetryLevel = "debug"
	TelemetryTrace TelemetryLevel = "trace"
)

type Telemetry struct {
	Level         TelemetryLevel `yaml:"level"`
	IncludeParams bool           `yaml:"include_params"`
	IncludeSQL    bool           `yaml:"include_sql"`
}

func (t Telemetry) Enabled() bool {
	return t.Level != "" && t.Level != TelemetryNone
}

type typeFlagKind int

const (
	flagDisabled typeFlagKind = iota
	flagEnabled
	flagNamed
)

// TypeFlag is a config value that is either a boolean switch or a name
// string: false, true, or "CustomTypeName".
type TypeFlag struct {
	kind typeFlagKind
	name string
}

func FlagEnabled() TypeFlag {
	return TypeFlag{kind: flagEnabled}
}

func FlagNamed(name string) TypeFlag {
	return TypeFlag{kind: flagNamed, name: name}
}

func (f TypeFlag) Enabled() bool {
	return f.kind != flagDisabled
}

// TypeName returns the configured name, or fallback when the flag was
// enabled without one.
func (f TypeFlag) TypeName(fallback string) string {
	if f.kind == flagNamed {
		return f.name
	}
	return fallback
}

func (f *TypeFlag) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected a boolean or a type name, got %s", value.Tag)
	}

	switch value.Tag {
	case "!!bool":
		var enabled bool
		if err := value.Decode(&enabled); err != nil {
			return err
		}
		if enabled {
			*f = TypeFlag{kind: flagEnabled}
		} else {
			*f = TypeFlag{kind: flagDisabled}
		}
	case "!!str":
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		if name == "" {
			*f = TypeFlag{kind: flagDisabled}
		} else {
			*f = TypeFlag{kind: flagNamed, name: name}
		}
	default:
		return fmt.Errorf("expected a boolean or a type name, got %s", value.Tag)
	}

	return nil
}

func (f TypeFlag) MarshalYAML() (interface{}, error) {
	switch f.kind {
	case flagNamed:
		return f.name, nil
	case flagEnabled:
		return true, nil
	}
	return false, nil
}

// QueryDefinition is one query to compile: its SQL template plus generation
// policy. Built once when a query source is loaded and immutable afterwards.
type QueryDefinition struct {
	Name          string            `yaml:"name"`
	SQL           string            `yaml:"sql"`
	Description   string            `yaml:"description"`
	Module        string            `yaml:"module"`
	Expect        Expect            `yaml:"expect"`
	Types         map[string]string `yaml:"types"`
	Telemetry     Telemetry         `yaml:"telemetry"`
	EnsureIndexes []string          `yaml:"ensure_indexes"`
	Multiunzip    bool              `yaml:"multiunzip"`
	Conditions    TypeFlag          `yaml:"conditions_type"`
	Parameters    TypeFlag          `yaml:"parameters_type"`
	ReturnType    string            `yaml:"return_type"`
	ErrorType     string            `yaml:"error_type"`

	SourceFile string `yaml:"-"`
}

func (d *QueryDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("query has no name (source %s)", d.SourceFile)
	}
	if !IsValidIdentifier(d.Name) {
		return fmt.Errorf("query name %q is not a valid identifier", d.Name)
	}
	if d.Module != "" && !IsValidIdentifier(d.Module) {
		return fmt.Errorf("module name %q is not a valid identifier (query %s)", d.Module, d.Name)
	}
	if strings.TrimSpace(d.SQL) == "" {
		return fmt.Errorf("query %s has an empty SQL body", d.Name)
	}
	if d.Expect != "" && !d.Expect.Valid() {
		return fmt.Errorf("query %s has invalid expect value %q", d.Name, d.Expect)
	}
	switch d.Telemetry.Level {
	case "", TelemetryNone, TelemetryInfo, TelemetryDebug, TelemetryTrace:
	default:
		return fmt.Errorf("query %s has invalid telemetry level %q", d.Name, d.Telemetry.Level)
	}
	return nil
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
}

// IsValidIdentifier reports whether s can be used as a generated identifier:
// letters, digits, and underscores, not starting with a digit, and not a
// language keyword.
func IsValidIdentifier(s string) bool {
	if s == "" || goKeywords[s] {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if unicode.IsDigit(r) && i > 0 {
			continue
		}
		return false
	}
	return true
}
