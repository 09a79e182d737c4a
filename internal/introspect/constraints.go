package introspect

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConstraintInfo is one schema constraint attached to a table a mutation
// touches; used downstream for error-type generation.
type ConstraintInfo struct {
	Name  string
	Table string
	Kind  string
}

const (
	ConstraintUnique     = "unique"
	ConstraintPrimaryKey = "primary_key"
	ConstraintForeignKey = "foreign_key"
	ConstraintCheck      = "check"
	ConstraintNotNull    = "not_null"
)

// Classifier decides whether a statement mutates data. The default is an
// explain-probe heuristic; a driver with a real statement-kind API can
// replace it without touching the analyzer.
type Classifier interface {
	Classify(ctx context.Context, conn Conn, positionalSQL string, params []Param) (bool, error)
}

// ExplainClassifier treats failure to EXPLAIN a statement as evidence that
// it mutates data. This is a heuristic: a query that fails to explain for an
// unrelated reason is misclassified as a mutation.
type ExplainClassifier struct{}

func (ExplainClassifier) Classify(ctx context.Context, conn Conn, positionalSQL string, params []Param) (bool, error) {
	explainSQL := "EXPLAIN " + InlineNullParams(positionalSQL, params)
	if _, err := conn.Exec(ctx, explainSQL); err != nil {
		return true, nil
	}
	return false, nil
}

// InlineNullParams replaces every $N slot with a NULL cast to the slot's
// declared type, producing SQL that can be explained without bind values.
func InlineNullParams(sql string, params []Param) string {
	for i := len(params); i >= 1; i-- {
		cast := "NULL"
		if pg := params[i-1].Type.PgType; pg != "" && pg != "unknown" {
			cast = "NULL::" + pg
		}
		sql = replaceSlot(sql, i, cast)
	}
	return sql
}

var tablePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)INSERT\s+INTO\s+([\w.]+)`),
	regexp.MustCompile(`(?i)UPDATE\s+([\w.]+)\s+SET`),
	regexp.MustCompile(`(?i)\bFROM\s+([\w.]+)`),
	regexp.MustCompile(`(?i)\bJOIN\s+([\w.]+)`),
}

// TableNamesFromSQL recovers candidate table names from raw SQL text. Only
// used when the statement metadata carries no table identifiers.
func TableNamesFromSQL(sql string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, re := range tablePatterns {
		for _, m := range re.FindAllStringSubmatch(sql, -1) {
			name := strings.ToLower(m[1])
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// HarvestConstraints collects the uniqueness, key, check, and not-null
// constraints for every table the statement touches. Table identity comes
// from the statement's column metadata, falling back to a scan of the raw
// SQL when the statement exposes none.
func HarvestConstraints(ctx context.Context, conn Conn, sd *pgconn.StatementDescription, sql string) ([]ConstraintInfo, error) {
	oids := tableOIDs(sd)

	if len(oids) == 0 {
		names := TableNamesFromSQL(sql)
		for _, name := range names {
			oid, err := tableOIDByName(ctx, conn, name)
			if err != nil {
				return nil, err
			}
			if oid != 0 {
				oids = append(oids, oid)
			}
		}
	}

	var constraints []ConstraintInfo
	seen := make(map[string]bool)
	for _, oid := range oids {
		tableConstraints, err := queryTableConstraints(ctx, conn, oid)
		if err != nil {
			return nil, err
		}
		for _, c := range tableConstraints {
			key := c.Name + "." + c.Table
			if seen[key] {
				continue
			}
			seen[key] = true
			constraints = append(constraints, c)
		}
	}

	return constraints, nil
}

func tableOIDs(sd *pgconn.StatementDescription) []uint32 {
	if sd == nil {
		return nil
	}
	var oids []uint32
	seen := make(map[uint32]bool)
	for _, field := range sd.Fields {
		if field.TableOID == 0 || seen[field.TableOID] {
			continue
		}
		seen[field.TableOID] = true
		oids = append(oids, field.TableOID)
	}
	return oids
}

func tableOIDByName(ctx context.Context, conn Conn, name string) (uint32, error) {
	relname := name
	nspname := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		nspname = name[:i]
		relname = name[i+1:]
	}

	query := `
		SELECT c.oid
		FROM pg_class c
		JOIN pg_namespace n ON c.relnamespace = n.oid
		WHERE c.relname = $1 AND c.relkind IN ('r', 'p', 'v', 'm')
	`
	args := []any{relname}
	if nspname != "" {
		query += " AND n.nspname = $2"
		args = append(args, nspname)
	}
	query += " LIMIT 1"

	var oid uint32
	if err := conn.QueryRow(ctx, query, args...).Scan(&oid); err != nil {
		// Not every recovered name is a real table; CTE names and
		// aliases simply miss.
		return 0, nil
	}
	return oid, nil
}

func queryTableConstraints(ctx context.Context, conn Conn, oid uint32) ([]ConstraintInfo, error) {
	var constraints []ConstraintInfo

	var table string
	if err := conn.QueryRow(ctx, `SELECT relname FROM pg_class WHERE oid = $1`, oid).Scan(&table); err != nil {
		return nil, fmt.Errorf("failed to resolve table name for oid %d: %w", oid, err)
	}

	rows, err := conn.Query(ctx, `
		SELECT conname, contype
		FROM pg_constraint
		WHERE conrelid = $1 AND contype IN ('u', 'p', 'f', 'c')
		ORDER BY conname
	`, oid)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraints for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, contype string
		if err := rows.Scan(&name, &contype); err != nil {
			return nil, err
		}
		constraints = append(constraints, ConstraintInfo{
			Name:  name,
			Table: table,
			Kind:  constraintKind(contype),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	nnRows, err := conn.Query(ctx, `
		SELECT attname
		FROM pg_attribute
		WHERE attrelid = $1 AND attnotnull AND attnum > 0 AND NOT attisdropped
		ORDER BY attnum
	`, oid)
	if err != nil {
		return nil, fmt.Errorf("failed to query not-null columns for %s: %w", table, err)
	}
	defer nnRows.Close()

	for nnRows.Next() {
		var column string
		if err := nnRows.Scan(&column); err != nil {
			return nil, err
		}
		constraints = append(constraints, ConstraintInfo{
			Name:  fmt.Sprintf("%s_%s_not_null", table, column),
			Table: table,
			Kind:  ConstraintNotNull,
		})
	}

	return constraints, nnRows.Err()
}

func constraintKind(contype string) string {
	switch contype {
	case "u":
		return ConstraintUnique
	case "p":
		return ConstraintPrimaryKey
	case "f":
		return ConstraintForeignKey
	case "c":
		return ConstraintCheck
	}
	return contype
}
