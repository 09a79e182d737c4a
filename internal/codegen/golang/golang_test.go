package golang

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avkonst/automodel/internal/introspect"
	"github.com/avkonst/automodel/internal/parser"
)

func getUserAnalysis() introspect.QueryAnalysis {
	sql := "SELECT id, name FROM users WHERE id = ${id}"
	return introspect.QueryAnalysis{
		Definition: parser.QueryDefinition{
			Name:   "get_user",
			SQL:    sql,
			Module: "users",
			Expect: parser.ExpectExactlyOne,
		},
		Parsed:        parser.ParseTemplate(sql),
		PositionalSQL: "SELECT id, name FROM users WHERE id = $1",
		SlotNames:     []string{"id"},
		Params: []introspect.Param{
			{Name: "id", Type: introspect.TypeDescriptor{GoType: "int64", PgType: "bigint"}},
		},
		TypeInfo: &introspect.QueryTypeInfo{
			Columns: []introspect.OutputColumn{
				{Name: "id", Type: introspect.TypeDescriptor{GoType: "int64", PgType: "bigint"}},
				{Name: "name", Type: introspect.TypeDescriptor{GoType: "*string", PgType: "text", Nullable: true}},
			},
		},
	}
}

func TestBuildQueryModelShapingConflicts(t *testing.T) {
	base := getUserAnalysis()

	t.Run("multiunzip and parameters_type", func(t *testing.T) {
		a := base
		a.Definition.Multiunzip = true
		a.Definition.Parameters = parser.FlagEnabled()
		if _, err := buildQueryModel(a); err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
			t.Fatalf("expected mutual exclusion error, got %v", err)
		}
	})

	t.Run("fences without conditions_type", func(t *testing.T) {
		a := base
		sql := "SELECT id FROM users WHERE true #[AND name = ${name?}]"
		a.Definition.SQL = sql
		a.Parsed = parser.ParseTemplate(sql)
		if _, err := buildQueryModel(a); err == nil || !strings.Contains(err.Error(), "conditions_type") {
			t.Fatalf("expected conditions_type error, got %v", err)
		}
	})

	t.Run("conditions_type without fences", func(t *testing.T) {
		a := base
		a.Definition.Conditions = parser.FlagEnabled()
		if _, err := buildQueryModel(a); err == nil {
			t.Fatal("expected error for conditions_type without conditional blocks")
		}
	})
}

func TestRenderQueryFunctionExactlyOne(t *testing.T) {
	m, err := buildQueryModel(getUserAnalysis())
	if err != nil {
		t.Fatal(err)
	}
	got := renderQueryFunction(m)

	for _, want := range []string{
		"func (q *Queries) GetUser(ctx context.Context, id int64) (*GetUserResult, error)",
		"q.db.Query(ctx, getUserSQL, id)",
		"pgx.ErrTooManyRows",
		"pgx.ErrNoRows",
		"rows.Scan(&result.ID, &result.Name)",
		"defer rows.Close()",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("generated function missing %q:\n%s", want, got)
		}
	}
}

func TestRenderQueryConstant(t *testing.T) {
	m, err := buildQueryModel(getUserAnalysis())
	if err != nil {
		t.Fatal(err)
	}
	got := renderQueryConstant(m)
	if !strings.Contains(got, "const getUserSQL = `") {
		t.Errorf("unexpected constant: %q", got)
	}
	if !strings.Contains(got, "WHERE id = $1") {
		t.Errorf("constant should carry positional SQL: %q", got)
	}
}

func TestRenderQueryFunctionCardinalities(t *testing.T) {
	tests := []struct {
		expect      parser.Expect
		wantSig     string
		wantBody    string
		rejectsBody string
	}{
		{parser.ExpectPossibleOne, "(*GetUserResult, error)", "return nil, nil", "pgx.ErrNoRows"},
		{parser.ExpectAtLeastOne, "([]GetUserResult, error)", "pgx.ErrNoRows", "pgx.ErrTooManyRows"},
		{parser.ExpectMultiple, "([]GetUserResult, error)", "result = append(result, item)", "pgx.ErrNoRows"},
	}
	for _, tt := range tests {
		t.Run(string(tt.expect), func(t *testing.T) {
			a := getUserAnalysis()
			a.Definition.Expect = tt.expect
			m, err := buildQueryModel(a)
			if err != nil {
				t.Fatal(err)
			}
			got := renderQueryFunction(m)
			if !strings.Contains(got, tt.wantSig) {
				t.Errorf("missing signature %q:\n%s", tt.wantSig, got)
			}
			if !strings.Contains(got, tt.wantBody) {
				t.Errorf("missing %q:\n%s", tt.wantBody, got)
			}
			if tt.rejectsBody != "" && strings.Contains(got, tt.rejectsBody) {
				t.Errorf("should not contain %q:\n%s", tt.rejectsBody, got)
			}
		})
	}
}

func TestRenderQueryFunctionExec(t *testing.T) {
	sql := "DELETE FROM users WHERE id = ${id}"
	a := introspect.QueryAnalysis{
		Definition: parser.QueryDefinition{
			Name:   "delete_user",
			SQL:    sql,
			Module: "users",
		},
		Parsed:        parser.ParseTemplate(sql),
		PositionalSQL: "DELETE FROM users WHERE id = $1",
		SlotNames:     []string{"id"},
		Params: []introspect.Param{
			{Name: "id", Type: introspect.TypeDescriptor{GoType: "int64", PgType: "bigint"}},
		},
		IsMutation: true,
	}
	m, err := buildQueryModel(a)
	if err != nil {
		t.Fatal(err)
	}
	got := renderQueryFunction(m)
	if !strings.Contains(got, "func (q *Queries) DeleteUser(ctx context.Context, id int64) error") {
		t.Errorf("wrong signature:\n%s", got)
	}
	if !strings.Contains(got, "_, err := q.db.Exec(ctx, deleteUserSQL, id)") {
		t.Errorf("expected Exec call:\n%s", got)
	}
}

func TestRenderQueryFunctionConditional(t *testing.T) {
	sql := "UPDATE users SET name = ${name}#[, bio = ${bio?}] WHERE id = ${id}"
	a := introspect.QueryAnalysis{
		Definition: parser.QueryDefinition{
			Name:       "update_user",
			SQL:        sql,
			Module:     "users",
			Conditions: parser.FlagEnabled(),
		},
		Parsed:        parser.ParseTemplate(sql),
		PositionalSQL: "UPDATE users SET name = $1 WHERE id = $2",
		SlotNames:     []string{"name", "id"},
		Params: []introspect.Param{
			{Name: "name", Type: introspect.TypeDescriptor{GoType: "string", PgType: "text"}},
			{Name: "id", Type: introspect.TypeDescriptor{GoType: "int64", PgType: "bigint"}},
			{Name: "bio", Type: introspect.TypeDescriptor{GoType: "*string", PgType: "text", Nullable: true, Optional: true}},
		},
		IsMutation: true,
	}
	m, err := buildQueryModel(a)
	if err != nil {
		t.Fatal(err)
	}
	got := renderQueryFunction(m)

	for _, want := range []string{
		"func (q *Queries) UpdateUser(ctx context.Context, before, after *UpdateUserParams, name string, id int64) error",
		"var sqlBuilder strings.Builder",
		"if !ptrEq(before.Bio, after.Bio) {",
		"args = append(args, after.Bio)",
		"strconv.Itoa(len(args))",
		"q.db.Exec(ctx, sqlBuilder.String(), args...)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("conditional function missing %q:\n%s", want, got)
		}
	}
	if c := renderQueryConstant(m); c != "" {
		t.Errorf("conditional query should not emit a SQL constant, got %q", c)
	}
}

func TestRenderQueryFunctionMultiunzip(t *testing.T) {
	sql := "INSERT INTO tags (name, weight) SELECT unnest(${name}), unnest(${weight})"
	a := introspect.QueryAnalysis{
		Definition: parser.QueryDefinition{
			Name:       "create_tags",
			SQL:        sql,
			Module:     "tags",
			Multiunzip: true,
		},
		Parsed:        parser.ParseTemplate(sql),
		PositionalSQL: "INSERT INTO tags (name, weight) SELECT unnest($1), unnest($2)",
		SlotNames:     []string{"name", "weight"},
		Params: []introspect.Param{
			{Name: "name", Type: introspect.TypeDescriptor{GoType: "[]string", PgType: "text[]"}},
			{Name: "weight", Type: introspect.TypeDescriptor{GoType: "[]int32", PgType: "integer[]"}},
		},
		IsMutation: true,
	}
	m, err := buildQueryModel(a)
	if err != nil {
		t.Fatal(err)
	}
	got := renderQueryFunction(m)

	for _, want := range []string{
		"func (q *Queries) CreateTags(ctx context.Context, records []CreateTagsRecord) error",
		"names := make([]string, len(records))",
		"weights := make([]int32, len(records))",
		"for i, r := range records {",
		"names[i] = r.Name",
		"q.db.Exec(ctx, createTagsSQL, names, weights)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("multiunzip function missing %q:\n%s", want, got)
		}
	}
}

func TestRenderTelemetry(t *testing.T) {
	a := getUserAnalysis()
	a.Definition.Telemetry = parser.Telemetry{Level: parser.TelemetryDebug, IncludeParams: true}
	m, err := buildQueryModel(a)
	if err != nil {
		t.Fatal(err)
	}
	got := renderTelemetry(m)
	want := "slog.DebugContext(ctx, \"get_user\", \"id\", id)"
	if !strings.Contains(got, want) {
		t.Errorf("got %q, want it to contain %q", got, want)
	}

	a.Definition.Telemetry = parser.Telemetry{Level: parser.TelemetryTrace, IncludeSQL: true}
	m, err = buildQueryModel(a)
	if err != nil {
		t.Fatal(err)
	}
	got = renderTelemetry(m)
	if !strings.Contains(got, "slog.Log(ctx, slog.LevelDebug-4,") {
		t.Errorf("trace level should log below debug: %q", got)
	}
	if !strings.Contains(got, `"sql", getUserSQL`) {
		t.Errorf("include_sql should attach the statement: %q", got)
	}
}

func TestRenderImports(t *testing.T) {
	body := "var t time.Time\nreturn nil, pgx.ErrNoRows\n"
	got := renderImports(body)
	for _, want := range []string{`"time"`, `"github.com/jackc/pgx/v5"`} {
		if !strings.Contains(got, want) {
			t.Errorf("imports missing %s:\n%s", want, got)
		}
	}
	if strings.Contains(got, `"strconv"`) {
		t.Errorf("unexpected strconv import:\n%s", got)
	}
}

func TestGenerateWritesModuleFiles(t *testing.T) {
	dir := t.TempDir()
	g := &GoGenerator{}

	if err := g.Generate("db", []introspect.QueryAnalysis{getUserAnalysis()}, dir); err != nil {
		t.Fatal(err)
	}

	users, err := os.ReadFile(filepath.Join(dir, "users.go"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(users)
	for _, want := range []string{
		"// Code generated by automodel. DO NOT EDIT.",
		"package db",
		"type GetUserResult struct {",
		"func (q *Queries) GetUser(",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("users.go missing %q", want)
		}
	}

	querier, err := os.ReadFile(filepath.Join(dir, "querier.go"))
	if err != nil {
		t.Fatal(err)
	}
	qc := string(querier)
	for _, want := range []string{
		"type Querier interface {",
		"func New(db Querier) *Queries",
		"func (q *Queries) WithTx(tx pgx.Tx) *Queries",
	} {
		if !strings.Contains(qc, want) {
			t.Errorf("querier.go missing %q", want)
		}
	}
	if strings.Contains(qc, "JSONValue") {
		t.Error("querier.go should not define JSONValue when no query needs it")
	}
}

func TestGenerateEmitsSharedTypesOnce(t *testing.T) {
	dir := t.TempDir()
	g := &GoGenerator{}

	role := &introspect.EnumTypeInfo{Name: "user_role", Variants: []string{"admin", "member"}}
	roleCol := introspect.OutputColumn{
		Name: "role",
		Type: introspect.TypeDescriptor{GoType: "UserRole", PgType: "user_role", Enum: role},
	}

	first := getUserAnalysis()
	first.TypeInfo.Columns = append(first.TypeInfo.Columns, roleCol)

	second := getUserAnalysis()
	second.Definition.Name = "find_user"
	second.Definition.Expect = parser.ExpectPossibleOne
	second.TypeInfo.Columns = []introspect.OutputColumn{
		{Name: "id", Type: introspect.TypeDescriptor{GoType: "int64", PgType: "bigint"}},
		{Name: "name", Type: introspect.TypeDescriptor{GoType: "*string", PgType: "text", Nullable: true}},
		roleCol,
	}

	if err := g.Generate("db", []introspect.QueryAnalysis{first, second}, dir); err != nil {
		t.Fatal(err)
	}

	users, err := os.ReadFile(filepath.Join(dir, "users.go"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(users), "type UserRole string"); got != 1 {
		t.Errorf("enum should be declared exactly once, found %d", got)
	}
	if !strings.Contains(string(users), "func ParseUserRole(") {
		t.Error("missing enum parser")
	}
}
