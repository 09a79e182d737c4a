package golang

import (
	"fmt"
	"strings"

	"github.com/avkonst/automodel/internal/introspect"
	"github.com/avkonst/automodel/internal/parser"
)

type shaping int

const (
	shapePlain shaping = iota
	shapeMultiunzip
	shapeConditions
	shapeStructured
)

type resultKind int

const (
	resultVoid resultKind = iota
	resultScalar
	resultStruct
)

// queryModel is one query's rendering plan: names, shaping policy, and
// result shape, all derived from the analysis before any text is emitted.
type queryModel struct {
	analysis introspect.QueryAnalysis

	funcName   string
	constName  string
	resultName string
	recordName string
	paramsName string
	errorName  string

	shaping     shaping
	result      resultKind
	cardinality parser.Expect
	cols        []introspect.OutputColumn

	// conditional is set when the query carries #[...] fences and the
	// generated body assembles SQL at run time.
	conditional bool
}

func buildQueryModel(a introspect.QueryAnalysis) (*queryModel, error) {
	def := a.Definition

	m := &queryModel{
		analysis:    a,
		funcName:    exportName(def.Name),
		cardinality: def.Expect.OrDefault(),
	}
	m.constName = argName(def.Name) + "SQL"
	m.resultName = def.ReturnType
	if m.resultName == "" {
		m.resultName = m.funcName + "Result"
	}
	m.recordName = m.funcName + "Record"
	m.errorName = def.ErrorType

	enabled := 0
	if def.Multiunzip {
		enabled++
		m.shaping = shapeMultiunzip
	}
	if def.Conditions.Enabled() {
		enabled++
		m.shaping = shapeConditions
		m.paramsName = def.Conditions.TypeName(m.funcName + "Params")
	}
	if def.Parameters.Enabled() {
		enabled++
		m.shaping = shapeStructured
		m.paramsName = def.Parameters.TypeName(m.funcName + "Params")
	}
	if enabled > 1 {
		return nil, fmt.Errorf("query %s: multiunzip, conditions_type, and parameters_type are mutually exclusive", def.Name)
	}

	hasFences := len(a.Parsed.Conditionals) > 0
	if hasFences && m.shaping != shapeConditions {
		return nil, fmt.Errorf("query %s has conditional #[...] blocks; enable conditions_type to generate it", def.Name)
	}
	if m.shaping == shapeConditions {
		if !hasFences {
			return nil, fmt.Errorf("query %s: conditions_type requires conditional #[...] blocks", def.Name)
		}
		if len(m.diffParams()) == 0 {
			return nil, fmt.Errorf("query %s: conditions_type requires parameters tagged with ?", def.Name)
		}
		m.conditional = true
	}

	if a.TypeInfo != nil {
		m.cols = a.TypeInfo.Columns
	}
	switch len(m.cols) {
	case 0:
		m.result = resultVoid
	case 1:
		m.result = resultScalar
	default:
		m.result = resultStruct
	}

	return m, nil
}

// diffParams returns the ?-tagged parameters, the fields of the conditions
// diff pair.
func (m *queryModel) diffParams() []introspect.Param {
	var out []introspect.Param
	for _, p := range m.analysis.Params {
		if p.Type.Optional {
			out = append(out, p)
		}
	}
	return out
}

func (m *queryModel) plainParams() []introspect.Param {
	if m.shaping != shapeConditions {
		return m.analysis.Params
	}
	var out []introspect.Param
	for _, p := range m.analysis.Params {
		if !p.Type.Optional {
			out = append(out, p)
		}
	}
	return out
}

func (m *queryModel) paramByName(name string) (introspect.Param, bool) {
	for _, p := range m.analysis.Params {
		if p.Name == name {
			return p, true
		}
	}
	return introspect.Param{}, false
}

func paramGoType(p introspect.Param) string {
	if p.Type.NeedsWrapper {
		return baseType(p.Type.GoType)
	}
	return p.Type.GoType
}

// scalarType is the single output column's Go type.
func (m *queryModel) scalarType() string {
	col := m.cols[0]
	if col.Type.NeedsWrapper {
		goType := baseType(col.Type.GoType)
		if col.Type.Nullable {
			return "*" + goType
		}
		return goType
	}
	return col.Type.GoType
}

func nilable(goType string) bool {
	return strings.HasPrefix(goType, "*") || strings.HasPrefix(goType, "[]") || goType == "json.RawMessage"
}

func (m *queryModel) returnType() string {
	switch m.result {
	case resultVoid:
		return "error"
	case resultScalar:
		t := m.scalarType()
		switch m.cardinality {
		case parser.ExpectExactlyOne:
			return fmt.Sprintf("(%s, error)", t)
		case parser.ExpectPossibleOne:
			if nilable(t) {
				return fmt.Sprintf("(%s, error)", t)
			}
			return fmt.Sprintf("(*%s, error)", t)
		default:
			return fmt.Sprintf("([]%s, error)", t)
		}
	default:
		switch m.cardinality {
		case parser.ExpectExactlyOne, parser.ExpectPossibleOne:
			return fmt.Sprintf("(*%s, error)", m.resultName)
		default:
			return fmt.Sprintf("([]%s, error)", m.resultName)
		}
	}
}

// zeroReturn is the value paired with an error on failure paths.
func (m *queryModel) zeroReturn() string {
	if m.result == resultScalar && m.cardinality == parser.ExpectExactlyOne {
		return "result"
	}
	return "nil"
}

// errExpr wraps a database error in the query's named error type when one
// was configured.
func (m *queryModel) errExpr(expr string) string {
	if m.errorName == "" {
		return expr
	}
	return fmt.Sprintf("new%s(%s)", m.errorName, expr)
}

func (m *queryModel) signatureParams() []string {
	params := []string{"ctx context.Context"}
	switch m.shaping {
	case shapeMultiunzip:
		params = append(params, "records []"+m.recordName)
	case shapeStructured:
		params = append(params, "params "+m.paramsName)
	case shapeConditions:
		params = append(params, "before, after *"+m.paramsName)
		for _, p := range m.plainParams() {
			params = append(params, argName(p.Name)+" "+paramGoType(p))
		}
	default:
		for _, p := range m.analysis.Params {
			params = append(params, argName(p.Name)+" "+paramGoType(p))
		}
	}
	return params
}

// argExpr is the value passed for one named parameter.
func (m *queryModel) argExpr(name string) string {
	p, ok := m.paramByName(name)
	if !ok {
		return argName(name)
	}

	var expr string
	switch m.shaping {
	case shapeMultiunzip:
		expr = argName(p.Name) + "s"
		return expr // the unzipped slice, already wrapped if needed
	case shapeStructured:
		expr = "params." + exportName(p.Name)
	case shapeConditions:
		if p.Type.Optional {
			expr = "after." + exportName(p.Name)
		} else {
			expr = argName(p.Name)
		}
	default:
		expr = argName(p.Name)
	}

	if p.Type.NeedsWrapper {
		return fmt.Sprintf("JSONValue[%s]{V: %s, Valid: true}", baseType(p.Type.GoType), expr)
	}
	return expr
}

// callArgs renders the trailing arguments of the db call, one per positional
// slot in slot order; repeated names pass the same value once per slot.
func (m *queryModel) callArgs() string {
	var sb strings.Builder
	for _, name := range m.analysis.SlotNames {
		sb.WriteString(", ")
		sb.WriteString(m.argExpr(name))
	}
	return sb.String()
}

func (m *queryModel) sqlExpr() string {
	if m.conditional {
		return "sqlBuilder.String()"
	}
	return m.constName
}

func (m *queryModel) argsCallSuffix() string {
	if m.conditional {
		return ", args..."
	}
	return m.callArgs()
}

func renderQueryConstant(m *queryModel) string {
	if m.conditional {
		return ""
	}
	return fmt.Sprintf("const %s = %s\n", m.constName, sqlLiteral("\n"+m.analysis.PositionalSQL))
}

func renderDocComment(m *queryModel) string {
	var sb strings.Builder
	def := m.analysis.Definition

	if def.Description != "" {
		sb.WriteString(fmt.Sprintf("// %s %s\n", m.funcName, strings.TrimSpace(def.Description)))
	} else {
		sb.WriteString(fmt.Sprintf("// %s executes the %s query.\n", m.funcName, def.Name))
	}
	sb.WriteString("//\n// Generated from:\n//\n")
	for _, line := range strings.Split(def.SQL, "\n") {
		sb.WriteString("//\t" + line + "\n")
	}

	switch {
	case m.result == resultVoid:
	case m.cardinality == parser.ExpectExactlyOne:
		sb.WriteString("//\n// It expects exactly one row.\n")
	case m.cardinality == parser.ExpectPossibleOne:
		sb.WriteString("//\n// It returns nil when no row matches.\n")
	case m.cardinality == parser.ExpectAtLeastOne:
		sb.WriteString("//\n// It expects at least one row and fails with pgx.ErrNoRows on an empty result.\n")
	case m.cardinality == parser.ExpectMultiple:
		sb.WriteString("//\n// It returns an empty slice when no rows match.\n")
	}
	return sb.String()
}

func renderQueryFunction(m *queryModel) string {
	var sb strings.Builder

	sb.WriteString(renderDocComment(m))
	sb.WriteString(fmt.Sprintf("func (q *Queries) %s(%s) %s {\n",
		m.funcName, strings.Join(m.signatureParams(), ", "), m.returnType()))

	if m.shaping == shapeMultiunzip {
		sb.WriteString(renderUnzipPrologue(m))
	}
	if m.conditional {
		sb.WriteString(renderSQLBuilder(m))
	}
	sb.WriteString(renderTelemetry(m))

	switch {
	case m.result == resultVoid:
		sb.WriteString(renderExecBody(m))
	case m.result == resultScalar:
		sb.WriteString(renderScalarBody(m))
	default:
		sb.WriteString(renderStructBody(m))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func renderTelemetry(m *queryModel) string {
	t := m.analysis.Definition.Telemetry
	if !t.Enabled() {
		return ""
	}

	attrs := []string{fmt.Sprintf("%q", m.analysis.Definition.Name)}
	if t.IncludeSQL {
		attrs = append(attrs, `"sql"`, m.sqlExpr())
	}
	if t.IncludeParams {
		switch m.shaping {
		case shapeMultiunzip:
			attrs = append(attrs, `"records"`, "len(records)")
		case shapeStructured:
			attrs = append(attrs, `"params"`, "params")
		case shapeConditions:
			attrs = append(attrs, `"before"`, "before", `"after"`, "after")
			for _, p := range m.plainParams() {
				attrs = append(attrs, fmt.Sprintf("%q", p.Name), argName(p.Name))
			}
		default:
			for _, p := range m.analysis.Params {
				attrs = append(attrs, fmt.Sprintf("%q", p.Name), argName(p.Name))
			}
		}
	}

	joined := strings.Join(attrs, ", ")
	switch t.Level {
	case parser.TelemetryInfo:
		return fmt.Sprintf("\tslog.InfoContext(ctx, %s)\n", joined)
	case parser.TelemetryDebug:
		return fmt.Sprintf("\tslog.DebugContext(ctx, %s)\n", joined)
	case parser.TelemetryTrace:
		return fmt.Sprintf("\tslog.Log(ctx, slog.LevelDebug-4, %s)\n", joined)
	}
	return ""
}

// renderUnzipPrologue unzips the batch records into one parallel slice per
// parameter so the statement can bind them as arrays.
func renderUnzipPrologue(m *queryModel) string {
	var sb strings.Builder
	for _, p := range m.analysis.Params {
		sb.WriteString(fmt.Sprintf("\t%ss := make(%s, len(records))\n", argName(p.Name), unzipSliceType(p)))
	}
	sb.WriteString("\tfor i, r := range records {\n")
	for _, p := range m.analysis.Params {
		field := "r." + exportName(p.Name)
		if p.Type.NeedsWrapper {
			field = fmt.Sprintf("JSONValue[%s]{V: %s, Valid: true}", baseType(p.Type.GoType), field)
		}
		sb.WriteString(fmt.Sprintf("\t\t%ss[i] = %s\n", argName(p.Name), field))
	}
	sb.WriteString("\t}\n")
	return sb.String()
}

func unzipSliceType(p introspect.Param) string {
	if p.Type.NeedsWrapper {
		return "[]JSONValue[" + baseType(p.Type.GoType) + "]"
	}
	if strings.HasPrefix(p.Type.GoType, "[]") {
		return p.Type.GoType
	}
	return "[]" + p.Type.GoType
}

// renderSQLBuilder assembles the statement text at run time: literal
// segments are appended as-is, conditional segments only when one of their
// diffable fields changed, and every bound value takes the next positional
// slot.
func renderSQLBuilder(m *queryModel) string {
	var sb strings.Builder
	sb.WriteString("\tvar sqlBuilder strings.Builder\n")
	sb.WriteString(fmt.Sprintf("\targs := make([]any, 0, %d)\n", len(m.analysis.Params)))

	for _, seg := range m.analysis.Parsed.Segments() {
		if seg.Conditional == -1 {
			renderSQLFragments(&sb, m, seg.Text, "\t")
			continue
		}
		cond := m.analysis.Parsed.Conditionals[seg.Conditional]
		guard := m.conditionGuard(cond)
		sb.WriteString(fmt.Sprintf("\tif %s {\n", guard))
		renderSQLFragments(&sb, m, cond.SQL, "\t\t")
		sb.WriteString("\t}\n")
	}

	return sb.String()
}

func renderSQLFragments(sb *strings.Builder, m *queryModel, text string, indent string) {
	for _, frag := range parser.SplitMarkers(text) {
		if frag.Param == nil {
			sb.WriteString(fmt.Sprintf("%ssqlBuilder.WriteString(%s)\n", indent, sqlLiteral(frag.Text)))
			continue
		}
		sb.WriteString(fmt.Sprintf("%sargs = append(args, %s)\n", indent, m.argExpr(frag.Param.Name)))
		sb.WriteString(fmt.Sprintf("%ssqlBuilder.WriteString(\"$\" + strconv.Itoa(len(args)))\n", indent))
	}
}

// conditionGuard is the change test that decides whether a fence's content
// joins the statement.
func (m *queryModel) conditionGuard(cond parser.Conditional) string {
	var terms []string
	for _, name := range cond.ParamNames {
		p, ok := m.paramByName(name)
		if !ok || !p.Type.Optional {
			continue
		}
		field := exportName(p.Name)
		goType := paramGoType(p)
		switch {
		case strings.HasPrefix(goType, "*"):
			terms = append(terms, fmt.Sprintf("!ptrEq(before.%s, after.%s)", field, field))
		case strings.HasPrefix(goType, "[]") || goType == "json.RawMessage":
			terms = append(terms, fmt.Sprintf("!slices.Equal(before.%s, after.%s)", field, field))
		default:
			terms = append(terms, fmt.Sprintf("before.%s != after.%s", field, field))
		}
	}
	if len(terms) == 0 {
		return "false"
	}
	return strings.Join(terms, " || ")
}

func renderExecBody(m *queryModel) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\t_, err := q.db.Exec(ctx, %s%s)\n", m.sqlExpr(), m.argsCallSuffix()))
	if m.errorName != "" {
		sb.WriteString("\tif err != nil {\n")
		sb.WriteString(fmt.Sprintf("\t\treturn %s\n", m.errExpr("err")))
		sb.WriteString("\t}\n")
		sb.WriteString("\treturn nil\n")
	} else {
		sb.WriteString("\treturn err\n")
	}
	return sb.String()
}

func renderScalarBody(m *queryModel) string {
	col := m.cols[0]
	t := m.scalarType()
	zero := m.zeroReturn()

	var sb strings.Builder
	queryCall := fmt.Sprintf("q.db.Query(ctx, %s%s)", m.sqlExpr(), m.argsCallSuffix())

	switch m.cardinality {
	case parser.ExpectExactlyOne:
		sb.WriteString(fmt.Sprintf("\tvar result %s%s\n", t, typeComment(col.Type)))
		sb.WriteString(fmt.Sprintf("\trows, err := %s\n", queryCall))
		sb.WriteString(fmt.Sprintf("\tif err != nil {\n\t\treturn %s, %s\n\t}\n", zero, m.errExpr("err")))
		sb.WriteString("\tdefer rows.Close()\n")
		sb.WriteString("\tcount := 0\n")
		sb.WriteString("\tfor rows.Next() {\n")
		sb.WriteString(fmt.Sprintf("\t\tif count > 0 {\n\t\t\treturn %s, pgx.ErrTooManyRows\n\t\t}\n", zero))
		sb.WriteString(renderScalarScan(m, col, "result", "\t\t", zero))
		sb.WriteString("\t\tcount++\n")
		sb.WriteString("\t}\n")
		sb.WriteString(fmt.Sprintf("\tif err := rows.Err(); err != nil {\n\t\treturn %s, %s\n\t}\n", zero, m.errExpr("err")))
		sb.WriteString(fmt.Sprintf("\tif count == 0 {\n\t\treturn %s, pgx.ErrNoRows\n\t}\n", zero))
		sb.WriteString("\treturn result, nil\n")

	case parser.ExpectPossibleOne:
		sb.WriteString(fmt.Sprintf("\trows, err := %s\n", queryCall))
		sb.WriteString(fmt.Sprintf("\tif err != nil {\n\t\treturn nil, %s\n\t}\n", m.errExpr("err")))
		sb.WriteString("\tdefer rows.Close()\n")
		sb.WriteString("\tif !rows.Next() {\n")
		sb.WriteString(fmt.Sprintf("\t\tif err := rows.Err(); err != nil {\n\t\t\treturn nil, %s\n\t\t}\n", m.errExpr("err")))
		sb.WriteString("\t\treturn nil, nil\n")
		sb.WriteString("\t}\n")
		sb.WriteString(fmt.Sprintf("\tvar item %s%s\n", t, typeComment(col.Type)))
		sb.WriteString(renderScalarScan(m, col, "item", "\t", "nil"))
		if nilable(t) {
			sb.WriteString("\treturn item, nil\n")
		} else {
			sb.WriteString("\treturn &item, nil\n")
		}

	default:
		sb.WriteString(fmt.Sprintf("\trows, err := %s\n", queryCall))
		sb.WriteString(fmt.Sprintf("\tif err != nil {\n\t\treturn nil, %s\n\t}\n", m.errExpr("err")))
		sb.WriteString("\tdefer rows.Close()\n")
		sb.WriteString(fmt.Sprintf("\tvar result []%s%s\n", t, typeComment(col.Type)))
		sb.WriteString("\tfor rows.Next() {\n")
		sb.WriteString(fmt.Sprintf("\t\tvar item %s\n", t))
		sb.WriteString(renderScalarScan(m, col, "item", "\t\t", "nil"))
		sb.WriteString("\t\tresult = append(result, item)\n")
		sb.WriteString("\t}\n")
		sb.WriteString(fmt.Sprintf("\tif err := rows.Err(); err != nil {\n\t\treturn nil, %s\n\t}\n", m.errExpr("err")))
		if m.cardinality == parser.ExpectAtLeastOne {
			sb.WriteString("\tif len(result) == 0 {\n\t\treturn nil, pgx.ErrNoRows\n\t}\n")
		}
		sb.WriteString("\treturn result, nil\n")
	}

	return sb.String()
}

// renderScalarScan scans the single column into target, unwrapping the JSON
// interop wrapper and decoding nullable enums through their labels.
func renderScalarScan(m *queryModel, col introspect.OutputColumn, target, indent, zero string) string {
	var sb strings.Builder
	errReturn := func(extraIndent string) string {
		return fmt.Sprintf("%sreturn %s, %s\n", indent+extraIndent+"\t", zero, m.errExpr("err"))
	}

	switch {
	case col.Type.NeedsWrapper:
		wrapped := baseType(col.Type.GoType)
		sb.WriteString(fmt.Sprintf("%svar wrapper JSONValue[%s]\n", indent, wrapped))
		sb.WriteString(fmt.Sprintf("%sif err := rows.Scan(&wrapper); err != nil {\n%s%s}\n", indent, errReturn(""), indent))
		if col.Type.Nullable {
			sb.WriteString(fmt.Sprintf("%sif wrapper.Valid {\n", indent))
			sb.WriteString(fmt.Sprintf("%s\tv := wrapper.V\n", indent))
			sb.WriteString(fmt.Sprintf("%s\t%s = &v\n", indent, target))
			sb.WriteString(fmt.Sprintf("%s}\n", indent))
		} else {
			sb.WriteString(fmt.Sprintf("%s%s = wrapper.V\n", indent, target))
		}

	case col.Type.Enum != nil && col.Type.Nullable:
		enumType := baseType(col.Type.GoType)
		sb.WriteString(fmt.Sprintf("%svar label *string\n", indent))
		sb.WriteString(fmt.Sprintf("%sif err := rows.Scan(&label); err != nil {\n%s%s}\n", indent, errReturn(""), indent))
		sb.WriteString(fmt.Sprintf("%sif label != nil {\n", indent))
		sb.WriteString(fmt.Sprintf("%s\tv, err := Parse%s(*label)\n", indent, enumType))
		sb.WriteString(fmt.Sprintf("%s\tif err != nil {\n%s\t%s}\n", indent, errReturn("\t"), indent))
		sb.WriteString(fmt.Sprintf("%s\t%s = &v\n", indent, target))
		sb.WriteString(fmt.Sprintf("%s}\n", indent))

	default:
		sb.WriteString(fmt.Sprintf("%sif err := rows.Scan(&%s); err != nil {\n%s%s}\n", indent, target, errReturn(""), indent))
	}

	return sb.String()
}

func renderStructBody(m *queryModel) string {
	zero := m.zeroReturn()
	var sb strings.Builder
	queryCall := fmt.Sprintf("q.db.Query(ctx, %s%s)", m.sqlExpr(), m.argsCallSuffix())

	switch m.cardinality {
	case parser.ExpectExactlyOne:
		sb.WriteString(fmt.Sprintf("\trows, err := %s\n", queryCall))
		sb.WriteString(fmt.Sprintf("\tif err != nil {\n\t\treturn %s, %s\n\t}\n", zero, m.errExpr("err")))
		sb.WriteString("\tdefer rows.Close()\n")
		sb.WriteString(fmt.Sprintf("\tvar result %s\n", m.resultName))
		sb.WriteString("\tcount := 0\n")
		sb.WriteString("\tfor rows.Next() {\n")
		sb.WriteString(fmt.Sprintf("\t\tif count > 0 {\n\t\t\treturn %s, pgx.ErrTooManyRows\n\t\t}\n", zero))
		sb.WriteString(renderStructScan(m, "result", "\t\t", zero))
		sb.WriteString("\t\tcount++\n")
		sb.WriteString("\t}\n")
		sb.WriteString(fmt.Sprintf("\tif err := rows.Err(); err != nil {\n\t\treturn %s, %s\n\t}\n", zero, m.errExpr("err")))
		sb.WriteString(fmt.Sprintf("\tif count == 0 {\n\t\treturn %s, pgx.ErrNoRows\n\t}\n", zero))
		sb.WriteString("\treturn &result, nil\n")

	case parser.ExpectPossibleOne:
		sb.WriteString(fmt.Sprintf("\trows, err := %s\n", queryCall))
		sb.WriteString(fmt.Sprintf("\tif err != nil {\n\t\treturn nil, %s\n\t}\n", m.errExpr("err")))
		sb.WriteString("\tdefer rows.Close()\n")
		sb.WriteString("\tif !rows.Next() {\n")
		sb.WriteString(fmt.Sprintf("\t\tif err := rows.Err(); err != nil {\n\t\t\treturn nil, %s\n\t\t}\n", m.errExpr("err")))
		sb.WriteString("\t\treturn nil, nil\n")
		sb.WriteString("\t}\n")
		sb.WriteString(fmt.Sprintf("\tvar result %s\n", m.resultName))
		sb.WriteString(renderStructScan(m, "result", "\t", "nil"))
		sb.WriteString("\treturn &result, nil\n")

	default:
		sb.WriteString(fmt.Sprintf("\trows, err := %s\n", queryCall))
		sb.WriteString(fmt.Sprintf("\tif err != nil {\n\t\treturn nil, %s\n\t}\n", m.errExpr("err")))
		sb.WriteString("\tdefer rows.Close()\n")
		sb.WriteString(fmt.Sprintf("\tvar result []%s\n", m.resultName))
		sb.WriteString("\tfor rows.Next() {\n")
		sb.WriteString(fmt.Sprintf("\t\tvar item %s\n", m.resultName))
		sb.WriteString(renderStructScan(m, "item", "\t\t", "nil"))
		sb.WriteString("\t\tresult = append(result, item)\n")
		sb.WriteString("\t}\n")
		sb.WriteString(fmt.Sprintf("\tif err := rows.Err(); err != nil {\n\t\treturn nil, %s\n\t}\n", m.errExpr("err")))
		if m.cardinality == parser.ExpectAtLeastOne {
			sb.WriteString("\tif len(result) == 0 {\n\t\treturn nil, pgx.ErrNoRows\n\t}\n")
		}
		sb.WriteString("\treturn result, nil\n")
	}

	return sb.String()
}

// renderStructScan scans one row into target, routing wrapper and nullable
// enum columns through their intermediates.
func renderStructScan(m *queryModel, target, indent, zero string) string {
	var sb strings.Builder
	var scanArgs []string
	var epilogue strings.Builder
	errReturn := func(extraIndent string) string {
		return fmt.Sprintf("%sreturn %s, %s\n", indent+extraIndent+"\t", zero, m.errExpr("err"))
	}

	for _, col := range m.cols {
		field := exportName(col.Name)
		switch {
		case col.Type.NeedsWrapper:
			wrapped := baseType(col.Type.GoType)
			varName := argName(col.Name) + "Wrapper"
			sb.WriteString(fmt.Sprintf("%svar %s JSONValue[%s]\n", indent, varName, wrapped))
			scanArgs = append(scanArgs, "&"+varName)
			if col.Type.Nullable {
				epilogue.WriteString(fmt.Sprintf("%sif %s.Valid {\n", indent, varName))
				epilogue.WriteString(fmt.Sprintf("%s\tv := %s.V\n", indent, varName))
				epilogue.WriteString(fmt.Sprintf("%s\t%s.%s = &v\n", indent, target, field))
				epilogue.WriteString(fmt.Sprintf("%s}\n", indent))
			} else {
				epilogue.WriteString(fmt.Sprintf("%s%s.%s = %s.V\n", indent, target, field, varName))
			}

		case col.Type.Enum != nil && col.Type.Nullable:
			enumType := baseType(col.Type.GoType)
			varName := argName(col.Name) + "Label"
			sb.WriteString(fmt.Sprintf("%svar %s *string\n", indent, varName))
			scanArgs = append(scanArgs, "&"+varName)
			epilogue.WriteString(fmt.Sprintf("%sif %s != nil {\n", indent, varName))
			epilogue.WriteString(fmt.Sprintf("%s\tv, err := Parse%s(*%s)\n", indent, enumType, varName))
			epilogue.WriteString(fmt.Sprintf("%s\tif err != nil {\n%s\t%s}\n", indent, errReturn("\t"), indent))
			epilogue.WriteString(fmt.Sprintf("%s\t%s.%s = &v\n", indent, target, field))
			epilogue.WriteString(fmt.Sprintf("%s}\n", indent))

		default:
			scanArgs = append(scanArgs, fmt.Sprintf("&%s.%s", target, field))
		}
	}

	sb.WriteString(fmt.Sprintf("%sif err := rows.Scan(%s); err != nil {\n%s%s}\n",
		indent, strings.Join(scanArgs, ", "), errReturn(""), indent))
	sb.WriteString(epilogue.String())
	return sb.String()
}
