package parser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	metadataStart = "@automodel"
	metadataEnd   = "@end"
)

var orderingPrefixRegex = regexp.MustCompile(`^\d+_`)

// ParseSQLFile loads one annotated .sql file. The file starts with a
// metadata block carried in line comments:
//
//	-- @automodel
//	-- description: Look up a user by id.
//	-- expect: possible_one
//	-- @end
//	SELECT ...
//
// The file name (minus an optional NN_ ordering prefix) becomes the query
// name; module names the group the query is generated into.
func ParseSQLFile(path string, module string) (*QueryDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file %s: %w", path, err)
	}

	def, err := parseSQLContent(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse query file %s: %w", path, err)
	}

	def.Name = QueryNameFromPath(path)
	def.Module = module
	def.SourceFile = path

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query file %s: %w", path, err)
	}

	return def, nil
}

// QueryNameFromPath derives the query name from a file path: base name
// without the .sql extension, with a leading numeric ordering prefix
// (e.g. 01_) stripped.
func QueryNameFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".sql")
	return orderingPrefixRegex.ReplaceAllString(name, "")
}

func parseSQLContent(content string) (*QueryDefinition, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var metaLines []string
	var sqlBuilder strings.Builder
	inMeta := false
	sawMeta := false
	metaClosed := false

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if !sawMeta && isMetaMarker(trimmed, metadataStart) {
			inMeta = true
			sawMeta = true
			continue
		}
		if inMeta {
			if isMetaMarker(trimmed, metadataEnd) {
				inMeta = false
				metaClosed = true
				continue
			}
			if !strings.HasPrefix(trimmed, "--") {
				// The comments stopped before @end, so the block was
				// never closed.
				return nil, fmt.Errorf("metadata block is missing the %s marker before %q", metadataEnd, line)
			}
			metaLines = append(metaLines, stripCommentPrefix(trimmed))
			continue
		}

		if sqlBuilder.Len() > 0 {
			sqlBuilder.WriteString("\n")
		}
		sqlBuilder.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}

	if !sawMeta {
		return nil, fmt.Errorf("missing %s metadata block", metadataStart)
	}
	if !metaClosed {
		return nil, fmt.Errorf("metadata block is missing the %s marker", metadataEnd)
	}

	var def QueryDefinition
	if len(metaLines) > 0 {
		if err := yaml.Unmarshal([]byte(strings.Join(metaLines, "\n")), &def); err != nil {
			return nil, fmt.Errorf("failed to parse metadata block: %w", err)
		}
	}

	def.SQL = strings.TrimSpace(sqlBuilder.String())
	return &def, nil
}

func isMetaMarker(line, marker string) bool {
	if !strings.HasPrefix(line, "--") {
		return false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, "--"))
	return rest == marker
}

func stripCommentPrefix(line string) string {
	rest := strings.TrimPrefix(line, "--")
	rest = strings.TrimPrefix(rest, " ")
	return rest
}

// ParseQueryDirectory loads every .sql file under root. Files directly under
// root belong to a module named after root's base directory; files in a
// subdirectory belong to a module named after that subdirectory. Files are
// sorted by path so generation order never depends on filesystem iteration
// order.
func ParseQueryDirectory(root string) ([]QueryDefinition, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("query directory not found: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("query path %s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan query directory %s: %w", root, err)
	}

	sort.Strings(paths)

	var defs []QueryDefinition
	for _, path := range paths {
		module := filepath.Base(filepath.Dir(path))
		if filepath.Dir(path) == filepath.Clean(root) {
			module = filepath.Base(filepath.Clean(root))
		}
		def, err := ParseSQLFile(path, module)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}

	return defs, nil
}
