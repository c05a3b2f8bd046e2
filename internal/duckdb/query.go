package duckdb

import (
	"strings"

	"github.com/oncomatch/matchengine/internal/normalize"
	"github.com/oncomatch/matchengine/internal/store"
)

// clinicalColumns and genomicColumns list the queryable columns of each
// table. Filter fields come from the normalizer, so anything outside these
// sets is treated as absent on every row.
var clinicalColumns = map[string]bool{
	normalize.FieldSampleID:    true,
	normalize.FieldMRN:         true,
	normalize.FieldDiagnosis:   true,
	normalize.FieldBirthDate:   true,
	normalize.FieldGender:      true,
	normalize.FieldVitalStatus: true,
}

var genomicColumns = map[string]bool{
	normalize.FieldSampleID:              true,
	normalize.FieldHugoSymbol:            true,
	normalize.FieldProteinChange:         true,
	normalize.FieldVariantClassification: true,
	normalize.FieldVariantCategory:       true,
	normalize.FieldCNVCall:               true,
	normalize.FieldWildtype:              true,
	normalize.FieldTranscriptExon:        true,
	normalize.FieldMMRStatus:             true,
	normalize.FieldSVComment:             true,
}

// whereClause renders a filter into a WHERE clause and its arguments. An
// unconstrained filter renders to the empty string.
func whereClause(f store.Filter, cols map[string]bool) (string, []any) {
	parts := make([]string, 0, len(f.Conds)+1)
	var args []any
	for _, c := range f.Conds {
		frag, a := renderCond(c, cols)
		parts = append(parts, frag)
		args = append(args, a...)
	}
	if f.WildtypeDefault && cols[normalize.FieldWildtype] {
		parts = append(parts, "(wildtype = FALSE OR wildtype IS NULL)")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// renderCond renders one condition. A field the table does not carry is
// absent on every row: Ne, Nin and Exists(false) match, everything else
// fails.
func renderCond(c store.Cond, cols map[string]bool) (string, []any) {
	if !cols[c.Field] {
		switch c.Op {
		case store.OpNe, store.OpNin:
			return "TRUE", nil
		case store.OpExists:
			if !c.Bool {
				return "TRUE", nil
			}
		}
		return "FALSE", nil
	}

	switch c.Op {
	case store.OpEq:
		return c.Field + " = ?", []any{condValue(c)}
	case store.OpNe:
		return "(" + c.Field + " IS NULL OR " + c.Field + " <> ?)", []any{condValue(c)}
	case store.OpIn:
		if len(c.Strs) == 0 {
			return "FALSE", nil
		}
		return c.Field + " IN (" + placeholders(len(c.Strs)) + ")", strArgs(c.Strs)
	case store.OpNin:
		if len(c.Strs) == 0 {
			return "TRUE", nil
		}
		return "(" + c.Field + " IS NULL OR " + c.Field + " NOT IN (" + placeholders(len(c.Strs)) + "))", strArgs(c.Strs)
	case store.OpRegex:
		// DuckDB regexes are RE2 like Go's, so the compiled pattern
		// text carries over, inline (?i) flags included.
		parts := make([]string, len(c.Regex))
		args := make([]any, len(c.Regex))
		for i, re := range c.Regex {
			parts[i] = "regexp_matches(" + c.Field + ", ?)"
			args[i] = re.String()
		}
		return "(" + strings.Join(parts, " OR ") + ")", args
	case store.OpLT:
		return c.Field + " < ?", []any{c.Time}
	case store.OpLTE:
		return c.Field + " <= ?", []any{c.Time}
	case store.OpGT:
		return c.Field + " > ?", []any{c.Time}
	case store.OpGTE:
		return c.Field + " >= ?", []any{c.Time}
	case store.OpExists:
		if c.Bool {
			return c.Field + " IS NOT NULL", nil
		}
		return c.Field + " IS NULL", nil
	}
	return "FALSE", nil
}

func condValue(c store.Cond) any {
	switch c.Kind {
	case store.KindInt:
		return c.Int
	case store.KindBool:
		return c.Bool
	case store.KindTime:
		return c.Time
	default:
		return c.Str
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func strArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}
