package golang

import (
	"fmt"
	"strings"

	"github.com/avkonst/automodel/internal/introspect"
)

// renderEnum emits a string-backed type for a database enum with conversion
// in both directions and the Scan/Value glue that binds it to the database's
// text representation.
func renderEnum(enum *introspect.EnumTypeInfo) string {
	typeName := enumTypeName(enum.Name)
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("// %s mirrors the database enum %s.\n", typeName, enum.Name))
	sb.WriteString(fmt.Sprintf("type %s string\n\n", typeName))

	sb.WriteString("const (\n")
	for _, v := range enum.Variants {
		sb.WriteString(fmt.Sprintf("\t%s%s %s = %q\n", typeName, exportName(v), typeName, v))
	}
	sb.WriteString(")\n\n")

	sb.WriteString(fmt.Sprintf("func (e %s) String() string {\n", typeName))
	sb.WriteString("\treturn string(e)\n")
	sb.WriteString("}\n\n")

	sb.WriteString(fmt.Sprintf("// Parse%s converts a database label into a %s.\n", typeName, typeName))
	sb.WriteString(fmt.Sprintf("func Parse%s(s string) (%s, error) {\n", typeName, typeName))
	sb.WriteString("\tswitch s {\n")
	for _, v := range enum.Variants {
		sb.WriteString(fmt.Sprintf("\tcase %q:\n", v))
		sb.WriteString(fmt.Sprintf("\t\treturn %s%s, nil\n", typeName, exportName(v)))
	}
	sb.WriteString("\t}\n")
	sb.WriteString(fmt.Sprintf("\treturn \"\", fmt.Errorf(\"invalid %s value: %%q\", s)\n", enum.Name))
	sb.WriteString("}\n\n")

	sb.WriteString(fmt.Sprintf("func (e *%s) Scan(src any) error {\n", typeName))
	sb.WriteString("\tswitch s := src.(type) {\n")
	sb.WriteString("\tcase string:\n")
	sb.WriteString(fmt.Sprintf("\t\tv, err := Parse%s(s)\n", typeName))
	sb.WriteString("\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n")
	sb.WriteString("\t\t*e = v\n")
	sb.WriteString("\t\treturn nil\n")
	sb.WriteString("\tcase []byte:\n")
	sb.WriteString(fmt.Sprintf("\t\tv, err := Parse%s(string(s))\n", typeName))
	sb.WriteString("\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n")
	sb.WriteString("\t\t*e = v\n")
	sb.WriteString("\t\treturn nil\n")
	sb.WriteString("\tcase nil:\n")
	sb.WriteString("\t\t*e = \"\"\n")
	sb.WriteString("\t\treturn nil\n")
	sb.WriteString("\t}\n")
	sb.WriteString(fmt.Sprintf("\treturn fmt.Errorf(\"cannot scan %%T into %s\", src)\n", typeName))
	sb.WriteString("}\n\n")

	sb.WriteString(fmt.Sprintf("func (e %s) Value() (driver.Value, error) {\n", typeName))
	sb.WriteString("\treturn string(e), nil\n")
	sb.WriteString("}\n")

	return sb.String()
}

// renderResultStruct emits the named record type for a multi-column query.
func renderResultStruct(name string, cols []introspect.OutputColumn, queryName string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("// %s is one row of %s.\n", name, exportName(queryName)))
	sb.WriteString(fmt.Sprintf("type %s struct {\n", name))
	for _, col := range cols {
		fieldName := exportName(col.Name)
		jsonTag := snakeName(col.Name)
		if col.Type.Nullable {
			jsonTag += ",omitempty"
		}
		sb.WriteString(fmt.Sprintf("\t%s %s `json:%q`%s\n", fieldName, col.Type.GoType, jsonTag, typeComment(col.Type)))
	}
	sb.WriteString("}\n")
	return sb.String()
}

// renderRecordStruct emits the batch element record for a multiunzip query;
// each field is the element type of the corresponding slice parameter.
func renderRecordStruct(name string, params []introspect.Param, queryName string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("// %s is one batch element for %s.\n", name, exportName(queryName)))
	sb.WriteString(fmt.Sprintf("type %s struct {\n", name))
	for _, p := range params {
		elemType := strings.TrimPrefix(p.Type.GoType, "[]")
		if p.Type.NeedsWrapper {
			elemType = baseType(p.Type.GoType)
		}
		sb.WriteString(fmt.Sprintf("\t%s %s%s\n", exportName(p.Name), elemType, typeComment(p.Type)))
	}
	sb.WriteString("}\n")
	return sb.String()
}

// renderParamsStruct emits the parameter record used by the conditions and
// structured-parameters shapings.
func renderParamsStruct(name string, params []introspect.Param, queryName string, diff bool) string {
	var sb strings.Builder
	if diff {
		sb.WriteString(fmt.Sprintf("// %s carries the diffable fields of %s.\n", name, exportName(queryName)))
	} else {
		sb.WriteString(fmt.Sprintf("// %s bundles the parameters of %s.\n", name, exportName(queryName)))
	}
	sb.WriteString(fmt.Sprintf("type %s struct {\n", name))
	for _, p := range params {
		goType := p.Type.GoType
		if p.Type.NeedsWrapper {
			goType = baseType(p.Type.GoType)
		}
		sb.WriteString(fmt.Sprintf("\t%s %s%s\n", exportName(p.Name), goType, typeComment(p.Type)))
	}
	sb.WriteString("}\n")
	return sb.String()
}

// renderErrorType emits the named error a mutation query wraps database
// failures in, carrying the violated constraint name when the database
// reports one.
func renderErrorType(name string, queryName string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("// %s wraps database failures from %s.\n", name, exportName(queryName)))
	sb.WriteString(fmt.Sprintf("type %s struct {\n", name))
	sb.WriteString("\tConstraint string\n")
	sb.WriteString("\tErr        error\n")
	sb.WriteString("}\n\n")

	sb.WriteString(fmt.Sprintf("func (e *%s) Error() string {\n", name))
	sb.WriteString("\tif e.Constraint != \"\" {\n")
	sb.WriteString(fmt.Sprintf("\t\treturn \"%s: constraint \" + e.Constraint + \": \" + e.Err.Error()\n", queryName))
	sb.WriteString("\t}\n")
	sb.WriteString(fmt.Sprintf("\treturn \"%s: \" + e.Err.Error()\n", queryName))
	sb.WriteString("}\n\n")

	sb.WriteString(fmt.Sprintf("func (e *%s) Unwrap() error {\n", name))
	sb.WriteString("\treturn e.Err\n")
	sb.WriteString("}\n\n")

	sb.WriteString(fmt.Sprintf("func new%s(err error) error {\n", name))
	sb.WriteString("\tvar pgErr *pgconn.PgError\n")
	sb.WriteString("\tif errors.As(err, &pgErr) {\n")
	sb.WriteString(fmt.Sprintf("\t\treturn &%s{Constraint: pgErr.ConstraintName, Err: err}\n", name))
	sb.WriteString("\t}\n")
	sb.WriteString(fmt.Sprintf("\treturn &%s{Err: err}\n", name))
	sb.WriteString("}\n")

	return sb.String()
}

// renderConstraintConsts emits the constraint names a mutation can violate.
func renderConstraintConsts(queryName string, constraints []introspect.ConstraintInfo) string {
	if len(constraints) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("// Constraints %s can violate.\n", exportName(queryName)))
	sb.WriteString("const (\n")
	for _, c := range constraints {
		sb.WriteString(fmt.Sprintf("\t%s%sConstraint = %q\n", argName(queryName), exportName(c.Name), c.Name))
	}
	sb.WriteString(")\n")
	return sb.String()
}

func typeComment(desc introspect.TypeDescriptor) string {
	if desc.Unknown {
		return fmt.Sprintf(" // unknown database type %q", desc.PgType)
	}
	return ""
}
