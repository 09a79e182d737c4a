package introspect

import (
	"strings"
)

// EnumTypeInfo describes a database enum type: its name and the ordered
// labels it accepts.
type EnumTypeInfo struct {
	Name     string
	Variants []string
}

// TypeDescriptor is the resolved Go-side type for one parameter or column.
type TypeDescriptor struct {
	GoType string
	PgType string
	Import string

	// Nullable follows the catalog, not the driver's optimistic default.
	Nullable bool
	// Optional marks a parameter tagged with the ? suffix; distinct from
	// SQL nullability, it feeds the diff-based conditions shaping.
	Optional bool
	// NeedsWrapper is set when the type came from a user override and the
	// value must round-trip through the JSON interop wrapper.
	NeedsWrapper bool
	// Unknown marks the opaque fallback for a type with no mapping; the
	// generated output keeps it visibly flagged for review.
	Unknown bool

	Enum *EnumTypeInfo
}

// Param is one positional parameter slot of a prepared statement.
type Param struct {
	Name string
	Type TypeDescriptor
}

// OutputColumn is one result column; order matches the statement's field
// order and the generated scan order.
type OutputColumn struct {
	Name string
	Type TypeDescriptor
}

// QueryTypeInfo is the typed signature of one query: ordered parameter slots
// and ordered output columns.
type QueryTypeInfo struct {
	Params  []Param
	Columns []OutputColumn
}

func oidToTypeName(oid uint32) string {
	switch oid {
	case 16:
		return "boolean"
	case 17:
		return "bytea"
	case 18:
		return "char"
	case 19:
		return "name"
	case 20:
		return "bigint"
	case 21:
		return "smallint"
	case 23:
		return "integer"
	case 25:
		return "text"
	case 26:
		return "oid"
	case 114:
		return "json"
	case 142:
		return "xml"
	case 600:
		return "point"
	case 601:
		return "lseg"
	case 602:
		return "path"
	case 603:
		return "box"
	case 604:
		return "polygon"
	case 628:
		return "line"
	case 650:
		return "cidr"
	case 700:
		return "real"
	case 701:
		return "double precision"
	case 718:
		return "circle"
	case 790:
		return "money"
	case 829:
		return "macaddr"
	case 869:
		return "inet"
	case 1000:
		return "boolean[]"
	case 1001:
		return "bytea[]"
	case 1005:
		return "smallint[]"
	case 1007:
		return "integer[]"
	case 1009:
		return "text[]"
	case 1014:
		return "character[]"
	case 1015:
		return "character varying[]"
	case 1016:
		return "bigint[]"
	case 1021:
		return "real[]"
	case 1022:
		return "double precision[]"
	case 1028:
		return "oid[]"
	case 1042:
		return "character"
	case 1043:
		return "character varying"
	case 1082:
		return "date"
	case 1083:
		return "time"
	case 1114:
		return "timestamp"
	case 1115:
		return "timestamp[]"
	case 1182:
		return "date[]"
	case 1184:
		return "timestamp with time zone"
	case 1185:
		return "timestamp with time zone[]"
	case 1186:
		return "interval"
	case 1231:
		return "numeric[]"
	case 1266:
		return "time with time zone"
	case 1560:
		return "bit"
	case 1562:
		return "bit varying"
	case 1700:
		return "numeric"
	case 2950:
		return "uuid"
	case 2951:
		return "uuid[]"
	case 3614:
		return "tsvector"
	case 3615:
		return "tsquery"
	case 3802:
		return "jsonb"
	case 3807:
		return "jsonb[]"
	case 3904:
		return "int4range"
	case 3906:
		return "numrange"
	case 3908:
		return "tsrange"
	case 3910:
		return "tstzrange"
	case 3912:
		return "daterange"
	case 3926:
		return "int8range"
	default:
		return "unknown"
	}
}

// pgTypeToGo maps a Postgres type name to a Go type and the import it needs.
// ok is false for names with no static mapping (enums, extension types);
// those go through the enum probe before the opaque fallback.
func pgTypeToGo(pgType string, nullable bool) (goType string, importPath string, ok bool) {
	pgType = strings.ToLower(strings.TrimSpace(pgType))

	if strings.HasSuffix(pgType, "[]") {
		elemGo, imp, elemOK := pgTypeToGo(strings.TrimSuffix(pgType, "[]"), false)
		if !elemOK {
			return "", "", false
		}
		return "[]" + elemGo, imp, true
	}
	// pgx spells array type names with a leading underscore.
	if strings.HasPrefix(pgType, "_") {
		elemGo, imp, elemOK := pgTypeToGo(strings.TrimPrefix(pgType, "_"), false)
		if !elemOK {
			return "", "", false
		}
		return "[]" + elemGo, imp, true
	}

	if strings.HasPrefix(pgType, "character varying") {
		pgType = "character varying"
	}
	if strings.HasPrefix(pgType, "character(") {
		pgType = "character"
	}
	if strings.HasPrefix(pgType, "numeric") {
		pgType = "numeric"
	}

	var baseType string
	switch pgType {
	case "boolean", "bool":
		baseType = "bool"
	case "smallint", "int2":
		baseType = "int16"
	case "integer", "int", "int4":
		baseType = "int32"
	case "bigint", "int8":
		baseType = "int64"
	case "real", "float4":
		baseType = "float32"
	case "double precision", "float8":
		baseType = "float64"
	case "text", "character varying", "varchar", "character", "char", "name":
		baseType = "string"
	case "bytea":
		return "[]byte", "", true
	case "uuid":
		baseType = "string"
	case "json", "jsonb":
		return "json.RawMessage", "encoding/json", true
	case "timestamp", "timestamp without time zone", "timestamp with time zone", "timestamptz", "date", "time", "time with time zone", "timetz":
		if nullable {
			return "*time.Time", "time", true
		}
		return "time.Time", "time", true
	case "interval":
		baseType = "string"
	case "numeric", "decimal", "money":
		baseType = "string"
	case "inet", "cidr", "macaddr", "macaddr8":
		baseType = "string"
	case "bit", "bit varying", "varbit":
		baseType = "string"
	case "xml":
		baseType = "string"
	case "point", "line", "lseg", "box", "path", "polygon", "circle":
		baseType = "string"
	case "tsvector", "tsquery":
		baseType = "string"
	case "int4range", "int8range", "numrange", "tsrange", "tstzrange", "daterange":
		baseType = "string"
	case "oid":
		baseType = "uint32"
	default:
		return "", "", false
	}

	if nullable {
		return "*" + baseType, "", true
	}
	return baseType, "", true
}
