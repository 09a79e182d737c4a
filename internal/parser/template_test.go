package parser

import (
	"strings"
	"testing"
)

func TestToPositional_SingleParam(t *testing.T) {
	sql, occs := ToPositional("SELECT id, name FROM users WHERE id = ${id}")

	if sql != "SELECT id, name FROM users WHERE id = $1" {
		t.Errorf("positional SQL = %q, want ${id} replaced with $1", sql)
	}
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if occs[0].Name != "id" {
		t.Errorf("occurrence name = %q, want %q", occs[0].Name, "id")
	}
	if occs[0].Optional {
		t.Errorf("occurrence marked optional without ? suffix")
	}
}

func TestToPositional_RepeatedNameConsumesDistinctSlots(t *testing.T) {
	sql, occs := ToPositional("SELECT * FROM users WHERE age >= ${min_age} OR score >= ${min_age}")

	if !strings.Contains(sql, "$1") || !strings.Contains(sql, "$2") {
		t.Errorf("positional SQL = %q, want distinct $1 and $2 slots", sql)
	}
	if strings.Contains(sql, "${") {
		t.Errorf("positional SQL = %q, still contains named markers", sql)
	}
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(occs))
	}
	if occs[0].Name != "min_age" || occs[1].Name != "min_age" {
		t.Errorf("occurrence names = %q, %q, want min_age twice", occs[0].Name, occs[1].Name)
	}
}

func TestToPositional_OptionalSuffix(t *testing.T) {
	sql, occs := ToPositional("UPDATE users SET name = ${name?} WHERE id = ${id}")

	if sql != "UPDATE users SET name = $1 WHERE id = $2" {
		t.Errorf("positional SQL = %q", sql)
	}
	if !occs[0].Optional {
		t.Errorf("name should be optional")
	}
	if occs[0].Name != "name" {
		t.Errorf("optional occurrence name = %q, want suffix stripped", occs[0].Name)
	}
	if occs[1].Optional {
		t.Errorf("id should not be optional")
	}
}

func TestToPositional_EmptyMarkerDropped(t *testing.T) {
	sql, occs := ToPositional("SELECT ${}, id FROM users WHERE id = ${id}")

	if sql != "SELECT , id FROM users WHERE id = $1" {
		t.Errorf("positional SQL = %q, want empty marker dropped and id at $1", sql)
	}
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
}

func TestToPositional_UnterminatedMarkerIsLiteral(t *testing.T) {
	sql, occs := ToPositional("SELECT * FROM users WHERE id = ${id")

	if sql != "SELECT * FROM users WHERE id = ${id" {
		t.Errorf("positional SQL = %q, want unterminated marker kept as literal text", sql)
	}
	if len(occs) != 0 {
		t.Errorf("expected 0 occurrences, got %d", len(occs))
	}
}

func TestToPositional_MarkerCountMatchesOccurrences(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want int
	}{
		{"no params", "SELECT 1", 0},
		{"three distinct", "SELECT ${a}, ${b}, ${c}", 3},
		{"two of one name", "SELECT ${a}, ${a}", 2},
		{"mixed optional", "SELECT ${a?}, ${b}, ${a?}", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, occs := ToPositional(tt.sql)
			if len(occs) != tt.want {
				t.Errorf("occurrences = %d, want %d", len(occs), tt.want)
			}
			if got := strings.Count(sql, "$"); got != tt.want {
				t.Errorf("positional markers = %d, want %d (sql %q)", got, tt.want, sql)
			}
		})
	}
}

func TestParseTemplate_NoConditionals(t *testing.T) {
	p := ParseTemplate("SELECT id FROM users WHERE id = ${id}")

	if len(p.Conditionals) != 0 {
		t.Fatalf("expected 0 conditionals, got %d", len(p.Conditionals))
	}
	variants := p.Variants()
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(variants))
	}
	if variants[0].Label != "base" {
		t.Errorf("variant label = %q, want %q", variants[0].Label, "base")
	}
	if variants[0].SQL != p.Raw {
		t.Errorf("base variant = %q, want unchanged SQL", variants[0].SQL)
	}
}

func TestParseTemplate_VariantCount(t *testing.T) {
	sql := "UPDATE users SET updated_at = now() #[, name = ${name?}] #[, email = ${email?}] WHERE id = ${id}"
	p := ParseTemplate(sql)

	if len(p.Conditionals) != 2 {
		t.Fatalf("expected 2 conditionals, got %d", len(p.Conditionals))
	}

	variants := p.Variants()
	if len(variants) != 3 {
		t.Fatalf("expected 1 + 2 variants, got %d", len(variants))
	}
	if strings.Contains(variants[0].SQL, "#[") || strings.Contains(variants[0].SQL, "name =") {
		t.Errorf("base variant = %q, want all fences removed", variants[0].SQL)
	}
	if !strings.Contains(variants[1].SQL, "name = ${name?}") {
		t.Errorf("variant 1 = %q, want first fence content included", variants[1].SQL)
	}
	if strings.Contains(variants[1].SQL, "email") {
		t.Errorf("variant 1 = %q, want second fence removed", variants[1].SQL)
	}
	if !strings.Contains(variants[2].SQL, "email = ${email?}") {
		t.Errorf("variant 2 = %q, want second fence content included", variants[2].SQL)
	}
}

func TestParseTemplate_NestedBracketsInsideFence(t *testing.T) {
	sql := "SELECT * FROM events #[WHERE tags @> ARRAY[${tag}]] ORDER BY id"
	p := ParseTemplate(sql)

	if len(p.Conditionals) != 1 {
		t.Fatalf("expected 1 conditional, got %d", len(p.Conditionals))
	}
	if p.Conditionals[0].SQL != "WHERE tags @> ARRAY[${tag}]" {
		t.Errorf("conditional SQL = %q, want nested brackets kept intact", p.Conditionals[0].SQL)
	}
	if base := p.BaseSQL(); strings.Contains(base, "tags") {
		t.Errorf("base SQL = %q, want fence removed", base)
	}
}

func TestParseTemplate_UnterminatedFenceIsLiteral(t *testing.T) {
	sql := "SELECT * FROM users #[WHERE id = ${id}"
	p := ParseTemplate(sql)

	if len(p.Conditionals) != 0 {
		t.Fatalf("expected 0 conditionals, got %d", len(p.Conditionals))
	}
	if p.BaseSQL() != sql {
		t.Errorf("base SQL = %q, want unterminated fence kept as literal text", p.BaseSQL())
	}
}

func TestParseTemplate_ParamNamesUnion(t *testing.T) {
	sql := "UPDATE users SET a = ${a} #[, b = ${b?}] WHERE id = ${id} AND a <> ${a}"
	p := ParseTemplate(sql)

	want := []string{"a", "b", "id"}
	if len(p.ParamNames) != len(want) {
		t.Fatalf("param names = %v, want %v", p.ParamNames, want)
	}
	for i, name := range want {
		if p.ParamNames[i] != name {
			t.Errorf("param name %d = %q, want %q", i, p.ParamNames[i], name)
		}
	}
	if len(p.Conditionals[0].ParamNames) != 1 || p.Conditionals[0].ParamNames[0] != "b" {
		t.Errorf("conditional params = %v, want [b]", p.Conditionals[0].ParamNames)
	}
}

func TestDedupOccurrences(t *testing.T) {
	occs := []ParamOccurrence{
		{Name: "a"},
		{Name: "b", Optional: true},
		{Name: "a", Optional: true},
		{Name: "c"},
	}

	out := DedupOccurrences(occs)
	if len(out) != 3 {
		t.Fatalf("expected 3 distinct names, got %d", len(out))
	}
	if out[0].Name != "a" || !out[0].Optional {
		t.Errorf("a should be optional once any occurrence is tagged, got %+v", out[0])
	}
	if out[1].Name != "b" || out[2].Name != "c" {
		t.Errorf("order not preserved: %+v", out)
	}
}
