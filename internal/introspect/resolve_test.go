package introspect

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avkonst/automodel/internal/parser"
)

// fakeRow satisfies pgx.Row with a canned Scan.
type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeConn satisfies Conn for tests that never reach a real database.
type fakeConn struct {
	prepare  func(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	queryRow func(sql string, args ...any) pgx.Row
}

func (c *fakeConn) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return c.prepare(ctx, name, sql)
}

func (c *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.queryRow(sql, args...)
}

func (c *fakeConn) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func boolRow(value bool) pgx.Row {
	return fakeRow{scan: func(dest ...any) error {
		*(dest[0].(*bool)) = value
		return nil
	}}
}

func noRow() pgx.Row {
	return fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
}

func TestColumnNullability(t *testing.T) {
	tests := []struct {
		name  string
		field pgconn.FieldDescription
		row   pgx.Row
		want  bool
	}{
		{
			name:  "not null column",
			field: pgconn.FieldDescription{TableOID: 16400, TableAttributeNumber: 1},
			row:   boolRow(true),
			want:  false,
		},
		{
			name:  "plain nullable column",
			field: pgconn.FieldDescription{TableOID: 16400, TableAttributeNumber: 2},
			row:   boolRow(false),
			want:  true,
		},
		{
			name:  "expression column without owning table",
			field: pgconn.FieldDescription{TableOID: 0, TableAttributeNumber: 0},
			want:  true,
		},
		{
			name:  "system column without attribute number",
			field: pgconn.FieldDescription{TableOID: 16400, TableAttributeNumber: 0},
			want:  true,
		},
		{
			name:  "attribute missing from catalog",
			field: pgconn.FieldDescription{TableOID: 16400, TableAttributeNumber: 9},
			row:   noRow(),
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{queryRow: func(sql string, args ...any) pgx.Row {
				if tt.row == nil {
					t.Fatal("catalog queried for a column with no owning table")
				}
				return tt.row
			}}
			r := NewResolver(conn, nil, nil, nil, "")

			got, err := r.columnNullability(context.Background(), tt.field)
			if err != nil {
				t.Fatalf("columnNullability() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("columnNullability() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParamOverride(t *testing.T) {
	overrides := map[string]string{"orders.total": "Money"}
	types := map[string]string{
		"profile":               "BareProfile",
		"users.profile":         "UserProfile",
		"public.users.metadata": "UserMetadata",
	}

	tests := []struct {
		name  string
		param string
		want  string
		found bool
	}{
		{"bare key wins over qualified", "profile", "BareProfile", true},
		{"schema qualified key", "metadata", "UserMetadata", true},
		{"global qualified key", "total", "Money", true},
		{"no match", "created_at", "", false},
	}

	r := NewResolver(nil, nil, nil, overrides, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.paramOverride(tt.param, types)
			if ok != tt.found || got != tt.want {
				t.Errorf("paramOverride(%q) = %q, %v, want %q, %v", tt.param, got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestResolve_QualifiedParamOverride(t *testing.T) {
	conn := &fakeConn{
		prepare: func(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
			return &pgconn.StatementDescription{ParamOIDs: []uint32{25}}, nil
		},
	}
	r := NewResolver(conn, nil, nil, map[string]string{"users.profile": "UserProfile"}, "")

	rv, err := r.Resolve(context.Background(), parser.QueryVariant{
		Label: "base",
		SQL:   "UPDATE users SET profile = ${profile}",
	}, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if len(rv.TypeInfo.Params) != 1 {
		t.Fatalf("params = %+v, want 1", rv.TypeInfo.Params)
	}
	p := rv.TypeInfo.Params[0]
	if p.Name != "profile" {
		t.Errorf("param name = %q", p.Name)
	}
	if p.Type.GoType != "UserProfile" || !p.Type.NeedsWrapper {
		t.Errorf("param type = %+v, want UserProfile with wrapper", p.Type)
	}
}
