package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSQLContent_FullMetadata(t *testing.T) {
	content := `-- @automodel
-- description: Look up a user by id.
-- expect: possible_one
-- types:
--   users.profile: UserProfile
-- telemetry:
--   level: debug
--   include_sql: true
-- conditions_type: UserChanges
-- multiunzip: false
-- @end
SELECT id, name, profile FROM users WHERE id = ${id}`

	def, err := parseSQLContent(content)
	if err != nil {
		t.Fatalf("parseSQLContent() error = %v", err)
	}

	if def.Description != "Look up a user by id." {
		t.Errorf("description = %q", def.Description)
	}
	if def.Expect != ExpectPossibleOne {
		t.Errorf("expect = %q, want possible_one", def.Expect)
	}
	if def.Types["users.profile"] != "UserProfile" {
		t.Errorf("types = %v, want users.profile override", def.Types)
	}
	if def.Telemetry.Level != TelemetryDebug || !def.Telemetry.IncludeSQL {
		t.Errorf("telemetry = %+v", def.Telemetry)
	}
	if !def.Conditions.Enabled() || def.Conditions.TypeName("x") != "UserChanges" {
		t.Errorf("conditions flag = %+v", def.Conditions)
	}
	if !strings.HasPrefix(def.SQL, "SELECT id, name, profile") {
		t.Errorf("SQL = %q, want body after metadata block", def.SQL)
	}
}

func TestParseSQLContent_MissingBlock(t *testing.T) {
	_, err := parseSQLContent("SELECT 1")
	if err == nil || !strings.Contains(err.Error(), "missing @automodel") {
		t.Errorf("error = %v, want missing metadata block", err)
	}
}

func TestParseSQLContent_UnterminatedBlock(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"sql follows the block", "-- @automodel\n-- expect: multiple\nSELECT 1"},
		{"file ends inside the block", "-- @automodel\n-- expect: multiple"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSQLContent(tt.content)
			if err == nil || !strings.Contains(err.Error(), "@end") {
				t.Errorf("error = %v, want missing @end marker", err)
			}
		})
	}
}

func TestParseSQLContent_MalformedYAML(t *testing.T) {
	content := `-- @automodel
-- expect: [broken
-- @end
SELECT 1`
	_, err := parseSQLContent(content)
	if err == nil || !strings.Contains(err.Error(), "metadata block") {
		t.Errorf("error = %v, want metadata parse failure", err)
	}
}

func TestQueryNameFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"queries/users/get_user_by_id.sql", "get_user_by_id"},
		{"queries/users/01_get_user_by_id.sql", "get_user_by_id"},
		{"queries/users/007_list_users.sql", "list_users"},
		{"no_prefix.sql", "no_prefix"},
	}

	for _, tt := range tests {
		if got := QueryNameFromPath(tt.path); got != tt.want {
			t.Errorf("QueryNameFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseSQLFile_InvalidName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "get-user.sql")
	content := "-- @automodel\n-- @end\nSELECT 1"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ParseSQLFile(path, "users")
	if err == nil || !strings.Contains(err.Error(), "not a valid identifier") {
		t.Errorf("error = %v, want identifier rejection", err)
	}
}

func TestParseSQLFile_EmptyBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.sql")
	content := "-- @automodel\n-- expect: multiple\n-- @end\n\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ParseSQLFile(path, "users")
	if err == nil || !strings.Contains(err.Error(), "empty SQL body") {
		t.Errorf("error = %v, want empty body rejection", err)
	}
}

func TestParseQueryDirectory_SortedAndModuleNamed(t *testing.T) {
	root := t.TempDir()
	usersDir := filepath.Join(root, "users")
	ordersDir := filepath.Join(root, "orders")
	for _, d := range []string{usersDir, ordersDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	write := func(path, name string) {
		content := "-- @automodel\n-- expect: multiple\n-- @end\nSELECT 1"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		_ = name
	}
	write(filepath.Join(usersDir, "02_list_users.sql"), "list_users")
	write(filepath.Join(usersDir, "01_get_user.sql"), "get_user")
	write(filepath.Join(ordersDir, "list_orders.sql"), "list_orders")

	defs, err := ParseQueryDirectory(root)
	if err != nil {
		t.Fatalf("ParseQueryDirectory() error = %v", err)
	}

	if len(defs) != 3 {
		t.Fatalf("expected 3 queries, got %d", len(defs))
	}

	// orders sorts before users; within users the numeric prefix orders files.
	wantNames := []string{"list_orders", "get_user", "list_users"}
	wantModules := []string{"orders", "users", "users"}
	for i := range defs {
		if defs[i].Name != wantNames[i] {
			t.Errorf("query %d name = %q, want %q", i, defs[i].Name, wantNames[i])
		}
		if defs[i].Module != wantModules[i] {
			t.Errorf("query %d module = %q, want %q", i, defs[i].Module, wantModules[i])
		}
	}
}

func TestParseQueryDirectory_FilesAtRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "misc")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	content := "-- @automodel\n-- @end\nSELECT 1"
	if err := os.WriteFile(filepath.Join(root, "ping.sql"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	defs, err := ParseQueryDirectory(root)
	if err != nil {
		t.Fatalf("ParseQueryDirectory() error = %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 query, got %d", len(defs))
	}
	if defs[0].Module != filepath.Base(root) {
		t.Errorf("module = %q, want root directory name %q", defs[0].Module, filepath.Base(root))
	}
}
