package parser

import (
	"fmt"
	"strings"
)

// Conditional is one #[...] block: the SQL inside the fence and the
// parameter names it references.
type Conditional struct {
	SQL        string
	ParamNames []string
}

// QueryVariant is one concrete SQL form derived from a template. Variants
// are only ever prepared against the database to read types, never executed.
type QueryVariant struct {
	Label string
	SQL   string
}

type segment struct {
	text string
	cond int // index into Conditionals, -1 for literal text
}

// ParsedSQL is the parsed form of a query template: literal text interleaved
// with conditional blocks, plus the union of all parameter names in
// first-seen order.
type ParsedSQL struct {
	Raw          string
	Conditionals []Conditional
	ParamNames   []string

	segments []segment
}

// ParamOccurrence records one named-marker occurrence, in the order the
// markers appear in the SQL. Repeated names appear once per occurrence.
type ParamOccurrence struct {
	Name     string
	Optional bool
}

// ParseTemplate scans sql for #[...] conditional fences. Unterminated fences
// are absorbed as literal text rather than rejected; existing inputs rely on
// that.
func ParseTemplate(sql string) *ParsedSQL {
	p := &ParsedSQL{Raw: sql}

	var literal strings.Builder
	i := 0
	for i < len(sql) {
		if sql[i] == '#' && i+1 < len(sql) && sql[i+1] == '[' {
			end := findFenceEnd(sql, i+2)
			if end == -1 {
				literal.WriteString(sql[i:])
				break
			}
			if literal.Len() > 0 {
				p.segments = append(p.segments, segment{text: literal.String(), cond: -1})
				literal.Reset()
			}
			content := sql[i+2 : end]
			p.segments = append(p.segments, segment{cond: len(p.Conditionals)})
			p.Conditionals = append(p.Conditionals, Conditional{
				SQL:        content,
				ParamNames: markerNames(content),
			})
			i = end + 1
			continue
		}
		literal.WriteByte(sql[i])
		i++
	}
	if literal.Len() > 0 {
		p.segments = append(p.segments, segment{text: literal.String(), cond: -1})
	}

	p.ParamNames = markerNames(sql)
	return p
}

// findFenceEnd returns the index of the ] closing a fence whose content
// starts at start, tracking nested [ and ] so bracketed SQL inside the
// fragment does not terminate it early. Returns -1 if the fence never closes.
func findFenceEnd(sql string, start int) int {
	depth := 1
	for i := start; i < len(sql); i++ {
		switch sql[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// markerNames returns the distinct parameter names referenced by sql, in
// first-seen order, with the optional ? suffix stripped.
func markerNames(sql string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, occ := range scanMarkers(sql) {
		if seen[occ.Name] {
			continue
		}
		seen[occ.Name] = true
		names = append(names, occ.Name)
	}
	return names
}

func scanMarkers(sql string) []ParamOccurrence {
	var occs []ParamOccurrence
	i := 0
	for i < len(sql) {
		if sql[i] == '$' && i+1 < len(sql) && sql[i+1] == '{' {
			end := strings.IndexByte(sql[i+2:], '}')
			if end == -1 {
				break
			}
			name := sql[i+2 : i+2+end]
			i += end + 3
			if name == "" {
				continue
			}
			optional := strings.HasSuffix(name, "?")
			occs = append(occs, ParamOccurrence{
				Name:     strings.TrimSuffix(name, "?"),
				Optional: optional,
			})
			continue
		}
		i++
	}
	return occs
}

// BaseSQL returns the template with every conditional fence removed.
func (p *ParsedSQL) BaseSQL() string {
	return p.render(-1)
}

// Variants returns the SQL forms needed to introspect the template: the base
// form with all conditionals removed, then one form per conditional with that
// block's content included and all others removed.
func (p *ParsedSQL) Variants() []QueryVariant {
	variants := []QueryVariant{{Label: "base", SQL: p.BaseSQL()}}
	for i := range p.Conditionals {
		variants = append(variants, QueryVariant{
			Label: fmt.Sprintf("conditional_%d", i),
			SQL:   p.render(i),
		})
	}
	return variants
}

// Segment is one top-level piece of a template: literal text, or a
// reference to a conditional block by index.
type Segment struct {
	Text        string
	Conditional int // index into Conditionals, -1 for literal text
}

// Segments returns the template's top-level structure in order.
func (p *ParsedSQL) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	for i, seg := range p.segments {
		out[i] = Segment{Text: seg.text, Conditional: seg.cond}
	}
	return out
}

func (p *ParsedSQL) render(include int) string {
	var sb strings.Builder
	for _, seg := range p.segments {
		if seg.cond == -1 {
			sb.WriteString(seg.text)
		} else if seg.cond == include {
			sb.WriteString(p.Conditionals[seg.cond].SQL)
		}
	}
	return sb.String()
}

// ToPositional rewrites every ${name} marker in sql to a 1-based $N marker in
// first-seen order and returns the occurrence list alongside. Every
// occurrence consumes its own slot even when a name repeats; deduplication
// happens only when a function's parameter list is built. Empty ${} markers
// are dropped, and an unterminated ${ passes through as literal text.
func ToPositional(sql string) (string, []ParamOccurrence) {
	var sb strings.Builder
	var occs []ParamOccurrence

	i := 0
	for i < len(sql) {
		if sql[i] == '$' && i+1 < len(sql) && sql[i+1] == '{' {
			end := strings.IndexByte(sql[i+2:], '}')
			if end == -1 {
				sb.WriteString(sql[i:])
				break
			}
			name := sql[i+2 : i+2+end]
			i += end + 3
			if name == "" {
				continue
			}
			optional := strings.HasSuffix(name, "?")
			occs = append(occs, ParamOccurrence{
				Name:     strings.TrimSuffix(name, "?"),
				Optional: optional,
			})
			sb.WriteString(fmt.Sprintf("$%d", len(occs)))
			continue
		}
		sb.WriteByte(sql[i])
		i++
	}

	return sb.String(), occs
}

// DedupOccurrences collapses occurrences into one entry per distinct name,
// keeping first-seen order. A name is optional if any of its occurrences
// carried the ? suffix.
func DedupOccurrences(occs []ParamOccurrence) []ParamOccurrence {
	var out []ParamOccurrence
	index := make(map[string]int)
	for _, occ := range occs {
		if i, ok := index[occ.Name]; ok {
			if occ.Optional {
				out[i].Optional = true
			}
			continue
		}
		index[occ.Name] = len(out)
		out = append(out, occ)
	}
	return out
}

// SyntheticParamName names a positional slot that had no named marker, e.g.
// SQL that already carries $N placeholders.
func SyntheticParamName(slot int) string {
	return fmt.Sprintf("param_%d", slot)
}

// Fragment is one piece of a marker-bearing SQL string: literal text, or a
// single named-marker occurrence.
type Fragment struct {
	Text  string
	Param *ParamOccurrence
}

// SplitMarkers cuts sql into literal fragments and marker fragments, with
// the same lenient rules as ToPositional: empty markers vanish and an
// unterminated marker stays literal text.
func SplitMarkers(sql string) []Fragment {
	var frags []Fragment
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			frags = append(frags, Fragment{Text: literal.String()})
			literal.Reset()
		}
	}

	i := 0
	for i < len(sql) {
		if sql[i] == '$' && i+1 < len(sql) && sql[i+1] == '{' {
			end := strings.IndexByte(sql[i+2:], '}')
			if end == -1 {
				literal.WriteString(sql[i:])
				break
			}
			name := sql[i+2 : i+2+end]
			i += end + 3
			if name == "" {
				continue
			}
			flush()
			optional := strings.HasSuffix(name, "?")
			frags = append(frags, Fragment{Param: &ParamOccurrence{
				Name:     strings.TrimSuffix(name, "?"),
				Optional: optional,
			}})
			continue
		}
		literal.WriteByte(sql[i])
		i++
	}
	flush()

	return frags
}
