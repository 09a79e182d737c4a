package introspect

import (
	"testing"
)

func TestTableNamesFromSQL(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			"insert",
			"INSERT INTO users (email) VALUES ($1)",
			[]string{"users"},
		},
		{
			"update",
			"UPDATE orders SET status = $1 WHERE id = $2",
			[]string{"orders"},
		},
		{
			"select with join",
			"SELECT * FROM users u JOIN orders o ON o.user_id = u.id",
			[]string{"users", "orders"},
		},
		{
			"schema qualified",
			"insert into billing.invoices (total) values ($1)",
			[]string{"billing.invoices"},
		},
		{
			"duplicates collapsed",
			"SELECT * FROM users WHERE id IN (SELECT id FROM users)",
			[]string{"users"},
		},
		{
			"no tables",
			"SELECT now()",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TableNamesFromSQL(tt.sql)
			if len(got) != len(tt.want) {
				t.Fatalf("TableNamesFromSQL() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("name %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestConstraintKind(t *testing.T) {
	tests := []struct {
		contype string
		want    string
	}{
		{"u", ConstraintUnique},
		{"p", ConstraintPrimaryKey},
		{"f", ConstraintForeignKey},
		{"c", ConstraintCheck},
	}
	for _, tt := range tests {
		if got := constraintKind(tt.contype); got != tt.want {
			t.Errorf("constraintKind(%q) = %q, want %q", tt.contype, got, tt.want)
		}
	}
}
