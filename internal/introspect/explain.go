package introspect

import (
	"fmt"
	"strings"
)

// ExplainParam is the pre-computed plan for one positional slot when
// re-running EXPLAIN: special parameters (wrapper-typed or unresolved) are
// inlined as typed NULLs and the rest renumbered to close the gaps.
type ExplainParam struct {
	Slot       int
	Inline     string
	Renumbered int
}

func (p ExplainParam) Inlined() bool {
	return p.Inline != ""
}

// BuildExplainParams computes the explain plan for a parameter list, so
// generation-time consumers never repeat the SQL analysis.
func BuildExplainParams(params []Param) []ExplainParam {
	plan := make([]ExplainParam, len(params))
	next := 0
	for i, p := range params {
		plan[i] = ExplainParam{Slot: i + 1}
		if p.Type.NeedsWrapper || p.Type.Unknown {
			cast := "NULL"
			if p.Type.PgType != "" && p.Type.PgType != "unknown" {
				cast = "NULL::" + p.Type.PgType
			}
			plan[i].Inline = cast
			continue
		}
		next++
		plan[i].Renumbered = next
	}
	return plan
}

// ApplyExplainParams rewrites sql's $N slots per the plan: inlined slots
// become their literal text, kept slots take their renumbered position.
func ApplyExplainParams(sql string, plan []ExplainParam) string {
	return rewriteSlots(sql, func(slot int) string {
		if slot < 1 || slot > len(plan) {
			return fmt.Sprintf("$%d", slot)
		}
		p := plan[slot-1]
		if p.Inlined() {
			return p.Inline
		}
		return fmt.Sprintf("$%d", p.Renumbered)
	})
}

func replaceSlot(sql string, slot int, text string) string {
	return rewriteSlots(sql, func(s int) string {
		if s == slot {
			return text
		}
		return fmt.Sprintf("$%d", s)
	})
}

// rewriteSlots rewrites every $N token in sql through replace. Tokens are
// matched whole, so $1 never aliases a prefix of $10.
func rewriteSlots(sql string, replace func(slot int) string) string {
	var sb strings.Builder
	i := 0
	for i < len(sql) {
		if sql[i] == '$' && i+1 < len(sql) && isDigit(sql[i+1]) {
			j := i + 1
			slot := 0
			for j < len(sql) && isDigit(sql[j]) {
				slot = slot*10 + int(sql[j]-'0')
				j++
			}
			sb.WriteString(replace(slot))
			i = j
			continue
		}
		sb.WriteByte(sql[i])
		i++
	}
	return sb.String()
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
