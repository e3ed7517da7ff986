package pgindex

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
)

// buildWhere renders a filter expression as a parameterized predicate over the
// payload JSONB column. Placeholders start at $next. Keys are bound as
// parameters too, so field names never reach the SQL text.
func buildWhere(expr filter.Expression, next int) (string, []any) {
	if expr.IsEmpty() {
		return "TRUE", nil
	}

	w := &whereBuilder{next: next}
	parts := make([]string, len(expr.Conditions()))
	for i, c := range expr.Conditions() {
		parts[i] = w.condition(c)
	}
	return strings.Join(parts, " AND "), w.args
}

type whereBuilder struct {
	next int
	args []any
}

func (w *whereBuilder) bind(v any) string {
	w.args = append(w.args, v)
	p := fmt.Sprintf("$%d", w.next)
	w.next++
	return p
}

func (w *whereBuilder) condition(c filter.Condition) string {
	switch c.Kind() {
	case filter.KindEquals:
		return fmt.Sprintf("(payload->>%s = %s)", w.bind(c.Key()), w.bind(c.Match()))
	case filter.KindBool:
		return fmt.Sprintf("((payload->>%s)::boolean = %s)", w.bind(c.Key()), w.bind(c.Bool()))
	case filter.KindRange:
		key := w.bind(c.Key())
		col := fmt.Sprintf("(payload->>%s)::float8", key)
		r := c.Range()
		var bounds []string
		if r.Min() != nil {
			bounds = append(bounds, fmt.Sprintf("%s >= %s", col, w.bind(*r.Min())))
		}
		if r.Max() != nil {
			bounds = append(bounds, fmt.Sprintf("%s <= %s", col, w.bind(*r.Max())))
		}
		if len(bounds) == 0 {
			return "TRUE"
		}
		return "(" + strings.Join(bounds, " AND ") + ")"
	default:
		return "TRUE"
	}
}
