package introspect

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/iancoleman/strcase"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avkonst/automodel/internal/parser"
)

// Conn is the slice of a pgx connection the resolver needs: prepare without
// executing, plus read-only catalog queries. *pgx.Conn satisfies it.
type Conn interface {
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

var stmtCounter atomic.Uint64

// NewTypeMap loads the oid-to-type-name map from pg_type. The static oid
// table covers the built-ins; this catches enums, domains, and extension
// types.
func NewTypeMap(ctx context.Context, conn Conn) (map[uint32]string, error) {
	typeMap := make(map[uint32]string)

	rows, err := conn.Query(ctx, `
		SELECT t.oid, t.typname
		FROM pg_type t
		JOIN pg_namespace n ON t.typnamespace = n.oid
		WHERE n.nspname NOT IN ('pg_catalog', 'information_schema')
		   OR t.typtype IN ('b', 'e', 'd', 'r')
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load pg_type map: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var oid uint32
		var typname string
		if err := rows.Scan(&oid, &typname); err != nil {
			return nil, err
		}
		typeMap[oid] = typname
	}

	return typeMap, rows.Err()
}

// QueryEnumInfo reads the enum definition for oid from the catalog, with
// labels in declared order. Returns nil when oid is not an enum type.
func QueryEnumInfo(ctx context.Context, conn Conn, oid uint32) (*EnumTypeInfo, error) {
	rows, err := conn.Query(ctx, `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		WHERE t.oid = $1
		ORDER BY e.enumsortorder
	`, oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var info *EnumTypeInfo
	for rows.Next() {
		var typname, label string
		if err := rows.Scan(&typname, &label); err != nil {
			return nil, err
		}
		if info == nil {
			info = &EnumTypeInfo{Name: typname}
		}
		info.Variants = append(info.Variants, label)
	}
	return info, rows.Err()
}

type tableIdent struct {
	Schema string
	Name   string
}

// Resolver turns prepared statements into typed signatures for one database
// connection. The enum cache may be shared across resolvers; everything else
// is connection-local.
type Resolver struct {
	conn          Conn
	typeMap       map[uint32]string
	enums         *EnumCache
	overrides     map[string]string
	defaultSchema string

	tables map[uint32]tableIdent
}

func NewResolver(conn Conn, typeMap map[uint32]string, enums *EnumCache, overrides map[string]string, defaultSchema string) *Resolver {
	if defaultSchema == "" {
		defaultSchema = "public"
	}
	return &Resolver{
		conn:          conn,
		typeMap:       typeMap,
		enums:         enums,
		overrides:     overrides,
		defaultSchema: defaultSchema,
		tables:        make(map[uint32]tableIdent),
	}
}

// ResolvedVariant is the outcome of preparing one query variant: the
// positional SQL that was prepared, the named-marker occurrences behind each
// slot, the typed signature, and the raw statement description for the
// analyzer.
type ResolvedVariant struct {
	Variant       parser.QueryVariant
	PositionalSQL string
	Occurrences   []parser.ParamOccurrence
	TypeInfo      *QueryTypeInfo
	Statement     *pgconn.StatementDescription
}

// Resolve prepares variant against the live database and reads back the
// declared parameter and column types. The statement is described, never
// executed.
func (r *Resolver) Resolve(ctx context.Context, variant parser.QueryVariant, types map[string]string) (*ResolvedVariant, error) {
	positionalSQL, occs := parser.ToPositional(variant.SQL)

	stmtName := fmt.Sprintf("automodel_introspect_%d", stmtCounter.Add(1))
	sd, err := r.conn.Prepare(ctx, stmtName, positionalSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %s variant: %w", variant.Label, err)
	}
	defer func() {
		_, _ = r.conn.Exec(ctx, fmt.Sprintf("DEALLOCATE %s", stmtName))
	}()

	info := &QueryTypeInfo{}

	for i, oid := range sd.ParamOIDs {
		name := parser.SyntheticParamName(i + 1)
		optional := false
		if i < len(occs) {
			name = occs[i].Name
			optional = occs[i].Optional
		}

		desc, err := r.descriptorFor(ctx, oid, false)
		if err != nil {
			return nil, err
		}
		desc.Optional = optional
		if override, ok := r.paramOverride(name, types); ok {
			desc.GoType = override
			desc.NeedsWrapper = true
			desc.Unknown = false
			desc.Import = ""
		}
		info.Params = append(info.Params, Param{Name: name, Type: desc})
	}

	for _, field := range sd.Fields {
		nullable, err := r.columnNullability(ctx, field)
		if err != nil {
			return nil, err
		}

		desc, err := r.descriptorFor(ctx, field.DataTypeOID, nullable)
		if err != nil {
			return nil, err
		}
		if override, ok := r.columnOverride(ctx, field, types); ok {
			// The override replaces the type name; nullability still
			// follows the base analysis.
			desc.GoType = override
			if nullable {
				desc.GoType = "*" + override
			}
			desc.NeedsWrapper = true
			desc.Unknown = false
			desc.Import = ""
		}
		info.Columns = append(info.Columns, OutputColumn{Name: field.Name, Type: desc})
	}

	return &ResolvedVariant{
		Variant:       variant,
		PositionalSQL: positionalSQL,
		Occurrences:   occs,
		TypeInfo:      info,
		Statement:     sd,
	}, nil
}

func (r *Resolver) typeName(oid uint32) string {
	if name := oidToTypeName(oid); name != "unknown" {
		return name
	}
	if name, ok := r.typeMap[oid]; ok {
		return name
	}
	return "unknown"
}

func (r *Resolver) descriptorFor(ctx context.Context, oid uint32, nullable bool) (TypeDescriptor, error) {
	pgType := r.typeName(oid)

	if goType, imp, ok := pgTypeToGo(pgType, nullable); ok {
		return TypeDescriptor{
			GoType:   goType,
			PgType:   pgType,
			Import:   imp,
			Nullable: nullable,
		}, nil
	}

	enum, err := r.enums.LoadOrQuery(ctx, oid)
	if err != nil {
		return TypeDescriptor{}, err
	}
	if enum != nil {
		goType := strcase.ToCamel(enum.Name)
		if nullable {
			goType = "*" + goType
		}
		return TypeDescriptor{
			GoType:   goType,
			PgType:   enum.Name,
			Nullable: nullable,
			Enum:     enum,
		}, nil
	}

	// Opaque fallback: keep generation going, leave the type visibly
	// flagged in the output for review.
	goType := "string"
	if nullable {
		goType = "*string"
	}
	return TypeDescriptor{
		GoType:   goType,
		PgType:   pgType,
		Nullable: nullable,
		Unknown:  true,
	}, nil
}

// columnNullability refines the driver's optimistic default by consulting
// pg_attribute for the column's owning table. Columns with no owning table
// (expressions, aggregates) stay nullable.
func (r *Resolver) columnNullability(ctx context.Context, field pgconn.FieldDescription) (bool, error) {
	if field.TableOID == 0 || field.TableAttributeNumber == 0 {
		return true, nil
	}

	var notNull bool
	err := r.conn.QueryRow(ctx, `
		SELECT attnotnull
		FROM pg_attribute
		WHERE attrelid = $1 AND attnum = $2
	`, field.TableOID, field.TableAttributeNumber).Scan(&notNull)
	if err != nil {
		if err == pgx.ErrNoRows {
			return true, nil
		}
		return true, fmt.Errorf("failed to read column nullability: %w", err)
	}

	return !notNull, nil
}

func (r *Resolver) tableIdent(ctx context.Context, oid uint32) (tableIdent, error) {
	if ident, ok := r.tables[oid]; ok {
		return ident, nil
	}

	var ident tableIdent
	err := r.conn.QueryRow(ctx, `
		SELECT n.nspname, c.relname
		FROM pg_class c
		JOIN pg_namespace n ON c.relnamespace = n.oid
		WHERE c.oid = $1
	`, oid).Scan(&ident.Schema, &ident.Name)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.tables[oid] = tableIdent{}
			return tableIdent{}, nil
		}
		return tableIdent{}, fmt.Errorf("failed to resolve table for oid %d: %w", oid, err)
	}

	r.tables[oid] = ident
	return ident, nil
}

// columnOverride looks up a field-type override for an output column. The
// schema-qualified key is checked before the bare table.column form.
func (r *Resolver) columnOverride(ctx context.Context, field pgconn.FieldDescription, types map[string]string) (string, bool) {
	if field.TableOID == 0 {
		return "", false
	}
	ident, err := r.tableIdent(ctx, field.TableOID)
	if err != nil || ident.Name == "" {
		return "", false
	}

	keys := []string{
		ident.Schema + "." + ident.Name + "." + field.Name,
		ident.Name + "." + field.Name,
	}
	for _, key := range keys {
		if t, ok := types[key]; ok {
			return t, true
		}
		if t, ok := r.overrides[key]; ok {
			return t, true
		}
	}
	return "", false
}

// paramOverride looks up an override for a named parameter. Parameters have
// no owning table, so a qualified key such as users.profile applies to any
// parameter whose bare name matches the last segment.
func (r *Resolver) paramOverride(name string, types map[string]string) (string, bool) {
	for _, m := range []map[string]string{types, r.overrides} {
		if t, ok := m[name]; ok {
			return t, true
		}
		for key, t := range m {
			if strings.HasSuffix(key, "."+name) {
				return t, true
			}
		}
	}
	return "", false
}
