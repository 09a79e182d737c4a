package golang

import (
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// exportName converts a snake_case query or column name into an exported Go
// identifier, upgrading common initialisms the way hand-written Go does
// (user_id becomes UserID, not UserId).
func exportName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})

	var result strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		upper := strings.ToUpper(part)
		if isCommonInitialism(upper) {
			result.WriteString(upper)
		} else {
			result.WriteString(strcase.ToCamel(part))
		}
	}
	if result.Len() == 0 {
		return "X"
	}
	return result.String()
}

// argName converts a parameter name into an unexported Go identifier,
// dodging keywords and predeclared names that would shadow badly.
func argName(s string) string {
	name := strcase.ToLowerCamel(s)
	if name == "" {
		return "arg"
	}
	switch name {
	case "type", "func", "range", "map", "select", "new", "len", "cap", "ctx", "q":
		return name + "Arg"
	}
	return name
}

func snakeName(s string) string {
	return strcase.ToSnake(s)
}

// enumTypeName must agree with the type name the analyzer assigns to enum
// descriptors, so it skips the initialism upgrade exportName applies.
func enumTypeName(s string) string {
	return strcase.ToCamel(s)
}

func isCommonInitialism(s string) bool {
	initialisms := map[string]bool{
		"ID": true, "URL": true, "API": true, "HTTP": true, "HTTPS": true,
		"JSON": true, "XML": true, "UUID": true, "SQL": true, "SSH": true,
		"TCP": true, "UDP": true, "IP": true, "HTML": true, "CSS": true,
		"DNS": true, "RPC": true, "TLS": true, "SSL": true, "EOF": true,
		"ASCII": true, "CPU": true, "RAM": true, "OS": true,
	}
	return initialisms[s]
}

// sqlLiteral renders sql as a Go string literal: a raw backquoted literal
// when possible, falling back to a quoted literal that escapes backslashes,
// quotes, and control characters.
func sqlLiteral(sql string) string {
	if rawStringSafe(sql) {
		return "`" + sql + "`"
	}
	return strconv.Quote(sql)
}

// rawStringSafe reports whether sql survives a raw literal unchanged. A raw
// literal cannot hold a backquote, and it silently drops carriage returns,
// so anything with control characters beyond newline and tab is quoted
// instead.
func rawStringSafe(sql string) bool {
	for _, r := range sql {
		if r == '`' {
			return false
		}
		if r == '\n' || r == '\t' {
			continue
		}
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// baseType strips a leading pointer or slice marker off a Go type name.
func baseType(goType string) string {
	goType = strings.TrimPrefix(goType, "*")
	goType = strings.TrimPrefix(goType, "[]")
	return goType
}
