package golang

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/avkonst/automodel/internal/codegen"
	"github.com/avkonst/automodel/internal/introspect"
)

func init() {
	codegen.Register(&GoGenerator{})
}

type GoGenerator struct{}

func (g *GoGenerator) Language() string {
	return "go"
}

// Generate writes one source file per query module plus a shared querier.go
// into outDir. Output is deterministic: modules keep the order their queries
// were analyzed in, and types are emitted the first time a query needs them.
func (g *GoGenerator) Generate(pkg string, analyses []introspect.QueryAnalysis, outDir string) error {
	if pkg == "" {
		pkg = "db"
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var moduleOrder []string
	byModule := make(map[string][]*queryModel)
	for _, a := range analyses {
		m, err := buildQueryModel(a)
		if err != nil {
			return err
		}
		module := a.Definition.Module
		if module == "" {
			module = "queries"
		}
		if _, seen := byModule[module]; !seen {
			moduleOrder = append(moduleOrder, module)
		}
		byModule[module] = append(byModule[module], m)
	}

	emittedTypes := make(map[string]bool)
	needJSON := false
	needPtrEq := false

	for _, module := range moduleOrder {
		models := byModule[module]
		for _, m := range models {
			if usesWrapper(m) {
				needJSON = true
			}
			if m.shaping == shapeConditions {
				needPtrEq = true
			}
		}
		content := renderModuleFile(pkg, models, emittedTypes)
		path := filepath.Join(outDir, module+".go")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	querier := renderQuerierFile(pkg, needJSON, needPtrEq)
	path := filepath.Join(outDir, "querier.go")
	if err := os.WriteFile(path, []byte(querier), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func usesWrapper(m *queryModel) bool {
	for _, p := range m.analysis.Params {
		if p.Type.NeedsWrapper {
			return true
		}
	}
	for _, col := range m.cols {
		if col.Type.NeedsWrapper {
			return true
		}
	}
	return false
}

func renderModuleFile(pkg string, models []*queryModel, emittedTypes map[string]bool) string {
	var body strings.Builder

	for _, m := range models {
		renderQueryTypes(&body, m, emittedTypes)

		if c := renderQueryConstant(m); c != "" {
			body.WriteString(c)
			body.WriteString("\n")
		}
		body.WriteString(renderQueryFunction(m))
		body.WriteString("\n")
	}

	content := strings.TrimRight(body.String(), "\n") + "\n"

	var sb strings.Builder
	sb.WriteString(generatedHeader)
	sb.WriteString(fmt.Sprintf("package %s\n\n", pkg))
	sb.WriteString(renderImports(content))
	sb.WriteString(content)
	return sb.String()
}

// renderQueryTypes emits the declarations a query depends on, skipping any
// already emitted by an earlier query in the package.
func renderQueryTypes(body *strings.Builder, m *queryModel, emittedTypes map[string]bool) {
	emit := func(name, text string) {
		if name != "" && emittedTypes[name] {
			return
		}
		if name != "" {
			emittedTypes[name] = true
		}
		body.WriteString(text)
		body.WriteString("\n")
	}

	for _, enum := range collectEnums(m) {
		emit(enum.Name, renderEnum(enum))
	}

	if len(m.analysis.Constraints) > 0 {
		emit("", renderConstraintConsts(m.analysis.Definition.Name, m.analysis.Constraints))
	}
	if m.errorName != "" {
		emit(m.errorName, renderErrorType(m.errorName, m.analysis.Definition.Name))
	}

	switch m.shaping {
	case shapeMultiunzip:
		emit(m.recordName, renderRecordStruct(m.recordName, m.analysis.Params, m.analysis.Definition.Name))
	case shapeConditions:
		emit(m.paramsName, renderParamsStruct(m.paramsName, m.diffParams(), m.analysis.Definition.Name, true))
	case shapeStructured:
		emit(m.paramsName, renderParamsStruct(m.paramsName, m.analysis.Params, m.analysis.Definition.Name, false))
	}

	if m.result == resultStruct {
		emit(m.resultName, renderResultStruct(m.resultName, m.cols, m.analysis.Definition.Name))
	}
}

func collectEnums(m *queryModel) []*introspect.EnumTypeInfo {
	var out []*introspect.EnumTypeInfo
	seen := make(map[string]bool)
	add := func(e *introspect.EnumTypeInfo) {
		if e == nil || seen[e.Name] {
			return
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	for _, p := range m.analysis.Params {
		add(p.Type.Enum)
	}
	for _, col := range m.cols {
		add(col.Type.Enum)
	}
	return out
}

const generatedHeader = "// Code generated by automodel. DO NOT EDIT.\n\n"

// renderImports derives the import block from the rendered body. The
// generator controls every identifier it emits, so a token scan is exact.
func renderImports(body string) string {
	type candidate struct {
		path  string
		token string
	}
	std := []candidate{
		{"context", "context.Context"},
		{"database/sql/driver", "driver.Value"},
		{"encoding/json", "json."},
		{"errors", "errors."},
		{"fmt", "fmt."},
		{"log/slog", "slog."},
		{"slices", "slices."},
		{"strconv", "strconv."},
		{"strings", "strings.Builder"},
		{"time", "time.Time"},
	}
	third := []candidate{
		{"github.com/jackc/pgx/v5", "pgx."},
		{"github.com/jackc/pgx/v5/pgconn", "pgconn."},
	}

	match := func(cands []candidate) []string {
		var out []string
		for _, c := range cands {
			if strings.Contains(body, c.token) {
				out = append(out, c.path)
			}
		}
		return out
	}

	stdHits := match(std)
	thirdHits := match(third)
	if len(stdHits) == 0 && len(thirdHits) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("import (\n")
	for _, p := range stdHits {
		sb.WriteString(fmt.Sprintf("\t%q\n", p))
	}
	if len(stdHits) > 0 && len(thirdHits) > 0 {
		sb.WriteString("\n")
	}
	for _, p := range thirdHits {
		sb.WriteString(fmt.Sprintf("\t%q\n", p))
	}
	sb.WriteString(")\n\n")
	return sb.String()
}

func renderQuerierFile(pkg string, withJSON, withPtrEq bool) string {
	var sb strings.Builder
	sb.WriteString(generatedHeader)
	sb.WriteString(fmt.Sprintf("package %s\n\n", pkg))

	sb.WriteString("import (\n\t\"context\"\n")
	if withJSON {
		sb.WriteString("\t\"database/sql/driver\"\n\t\"encoding/json\"\n\t\"fmt\"\n")
	}
	sb.WriteString("\n\t\"github.com/jackc/pgx/v5\"\n\t\"github.com/jackc/pgx/v5/pgconn\"\n)\n\n")

	sb.WriteString(`// Querier is the database surface the generated functions use. It is
// satisfied by *pgx.Conn, pgx.Tx, and *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db Querier
}

func New(db Querier) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
`)

	if withJSON {
		sb.WriteString(`
// JSONValue carries a value through the driver as JSON text. Valid is false
// when the database returned NULL.
type JSONValue[T any] struct {
	V     T
	Valid bool
}

func (j JSONValue[T]) Value() (driver.Value, error) {
	if !j.Valid {
		return nil, nil
	}
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value as JSON: %w", err)
	}
	return string(b), nil
}

func (j *JSONValue[T]) Scan(src any) error {
	if src == nil {
		var zero T
		j.V = zero
		j.Valid = false
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot decode %T as JSON", src)
	}
	if err := json.Unmarshal(data, &j.V); err != nil {
		return err
	}
	j.Valid = true
	return nil
}
`)
	}

	if withPtrEq {
		sb.WriteString(`
func ptrEq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
`)
	}

	return sb.String()
}
