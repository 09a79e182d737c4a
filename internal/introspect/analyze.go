package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/avkonst/automodel/internal/parser"
)

// QueryAnalysis is the fully resolved, database-independent bundle the code
// generator consumes. Once a run's analyses exist, generation needs no
// further database access.
type QueryAnalysis struct {
	Definition parser.QueryDefinition
	Parsed     *parser.ParsedSQL

	// PositionalSQL is the base variant rewritten to $N form; this is what
	// generated code embeds and executes.
	PositionalSQL string
	// SlotNames names each base positional slot in occurrence order.
	// Repeated names occupy one slot per occurrence.
	SlotNames []string

	// Params is the merged distinct parameter list across all variants,
	// base parameters first, then fence-only parameters in first-seen
	// order.
	Params []Param

	TypeInfo *QueryTypeInfo

	IsMutation    bool
	Constraints   []ConstraintInfo
	ExplainParams []ExplainParam
	PlanWarnings  []string
}

// Options configures a generation run's analysis phase.
type Options struct {
	// Overrides is the global field-type override table,
	// "schema.table.field" or "table.field" to type name.
	Overrides     map[string]string
	DefaultSchema string
	// Jobs caps concurrent query analysis; 1 analyzes sequentially over a
	// single connection.
	Jobs       int
	Classifier Classifier
}

// AnalyzeQueries resolves every definition against the live database.
// Output order matches input order regardless of concurrency, and the first
// fatal error aborts the run. Queries are independent of each other; the
// enum cache is the only shared state.
func AnalyzeQueries(ctx context.Context, databaseURL string, defs []parser.QueryDefinition, opts Options) ([]QueryAnalysis, error) {
	for i := range defs {
		if err := defs[i].Validate(); err != nil {
			return nil, err
		}
	}

	classifier := opts.Classifier
	if classifier == nil {
		classifier = ExplainClassifier{}
	}

	if opts.Jobs <= 1 {
		return analyzeSequential(ctx, databaseURL, defs, opts, classifier)
	}
	return analyzeConcurrent(ctx, databaseURL, defs, opts, classifier)
}

func analyzeSequential(ctx context.Context, databaseURL string, defs []parser.QueryDefinition, opts Options, classifier Classifier) ([]QueryAnalysis, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	typeMap, err := NewTypeMap(ctx, conn)
	if err != nil {
		return nil, err
	}

	cache := NewEnumCache(func(ctx context.Context, oid uint32) (*EnumTypeInfo, error) {
		return QueryEnumInfo(ctx, conn, oid)
	})
	resolver := NewResolver(conn, typeMap, cache, opts.Overrides, opts.DefaultSchema)

	results := make([]QueryAnalysis, len(defs))
	for i, def := range defs {
		analysis, err := analyzeQuery(ctx, conn, resolver, classifier, def)
		if err != nil {
			return nil, fmt.Errorf("failed to analyze query %s: %w", def.Name, err)
		}
		results[i] = *analysis
	}

	return results, nil
}

func analyzeConcurrent(ctx context.Context, databaseURL string, defs []parser.QueryDefinition, opts Options, classifier Classifier) ([]QueryAnalysis, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	// Enum lookups acquire their own connection while workers hold theirs.
	poolCfg.MaxConns = int32(opts.Jobs) + 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	setupConn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	typeMap, err := NewTypeMap(ctx, setupConn.Conn())
	setupConn.Release()
	if err != nil {
		return nil, err
	}

	cache := NewEnumCache(func(ctx context.Context, oid uint32) (*EnumTypeInfo, error) {
		c, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer c.Release()
		return QueryEnumInfo(ctx, c.Conn(), oid)
	})

	results := make([]QueryAnalysis, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)

	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			c, err := pool.Acquire(gctx)
			if err != nil {
				return fmt.Errorf("failed to acquire connection for query %s: %w", def.Name, err)
			}
			defer c.Release()

			resolver := NewResolver(c.Conn(), typeMap, cache, opts.Overrides, opts.DefaultSchema)
			analysis, err := analyzeQuery(gctx, c.Conn(), resolver, classifier, def)
			if err != nil {
				return fmt.Errorf("failed to analyze query %s: %w", def.Name, err)
			}
			results[i] = *analysis
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// analyzeQuery runs the whole pipeline for one definition: template parse,
// variant resolution, mutation classification, constraint harvest, and the
// explain-parameter plan.
func analyzeQuery(ctx context.Context, conn Conn, resolver *Resolver, classifier Classifier, def parser.QueryDefinition) (*QueryAnalysis, error) {
	parsed := parser.ParseTemplate(def.SQL)
	variants := parsed.Variants()

	base, err := resolver.Resolve(ctx, variants[0], def.Types)
	if err != nil {
		return nil, fmt.Errorf("%w (sql: %s)", err, variants[0].SQL)
	}

	slotNames := make([]string, len(base.TypeInfo.Params))
	for i, p := range base.TypeInfo.Params {
		slotNames[i] = p.Name
	}

	// The base variant is authoritative for columns and for the
	// parameters it carries; conditional variants only contribute the
	// parameters that exist inside their fences.
	merged := make([]Param, 0, len(base.TypeInfo.Params))
	index := make(map[string]int)
	for _, p := range base.TypeInfo.Params {
		if i, ok := index[p.Name]; ok {
			if p.Type.Optional {
				merged[i].Type.Optional = true
			}
			continue
		}
		index[p.Name] = len(merged)
		merged = append(merged, p)
	}

	for _, variant := range variants[1:] {
		rv, err := resolver.Resolve(ctx, variant, def.Types)
		if err != nil {
			return nil, fmt.Errorf("%w (sql: %s)", err, variant.SQL)
		}
		for _, p := range rv.TypeInfo.Params {
			if i, ok := index[p.Name]; ok {
				if p.Type.Optional {
					merged[i].Type.Optional = true
				}
				continue
			}
			index[p.Name] = len(merged)
			merged = append(merged, p)
		}
	}

	isMutation, err := classifier.Classify(ctx, conn, base.PositionalSQL, base.TypeInfo.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to classify query: %w", err)
	}

	var constraints []ConstraintInfo
	if isMutation {
		constraints, err = HarvestConstraints(ctx, conn, base.Statement, def.SQL)
		if err != nil {
			return nil, err
		}
	}

	analysis := &QueryAnalysis{
		Definition:    def,
		Parsed:        parsed,
		PositionalSQL: base.PositionalSQL,
		SlotNames:     slotNames,
		Params:        merged,
		TypeInfo:      base.TypeInfo,
		IsMutation:    isMutation,
		Constraints:   constraints,
		ExplainParams: BuildExplainParams(base.TypeInfo.Params),
	}

	if len(def.EnsureIndexes) > 0 && !isMutation {
		warnings, err := checkIndexUsage(ctx, conn, base.PositionalSQL, base.TypeInfo.Params, def.EnsureIndexes)
		if err != nil {
			return nil, err
		}
		analysis.PlanWarnings = warnings
	}

	return analysis, nil
}

// checkIndexUsage explains the query and reports every listed table the
// planner reads with a sequential scan.
func checkIndexUsage(ctx context.Context, conn Conn, positionalSQL string, params []Param, tables []string) ([]string, error) {
	explainSQL := "EXPLAIN " + InlineNullParams(positionalSQL, params)
	rows, err := conn.Query(ctx, explainSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to explain query for index check: %w", err)
	}
	defer rows.Close()

	var plan strings.Builder
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		plan.WriteString(line)
		plan.WriteString("\n")
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var warnings []string
	for _, table := range tables {
		if strings.Contains(plan.String(), "Seq Scan on "+table) {
			warnings = append(warnings, fmt.Sprintf("table %s is read with a sequential scan; expected an index", table))
		}
	}
	return warnings, nil
}
