package filter

import (
	"sort"
	"strconv"
	"strings"
)

// Kind enumerates the constraint types a condition can carry.
type Kind int

const (
	// KindEquals is an exact value match (TAG semantics).
	KindEquals Kind = iota + 1
	// KindRange is a numeric range with optional inclusive bounds.
	KindRange
	// KindBool is an exact boolean match.
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindEquals:
		return "eq"
	case KindRange:
		return "range"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Expression is a conjunction of conditions, at most one per field.
// The zero value is NoFilter.
type Expression struct {
	conds []Condition
}

// NoFilter means "skip predicate evaluation", never "match nothing".
var NoFilter = Expression{}

// Conditions returns the conditions every match must satisfy.
func (e Expression) Conditions() []Condition { return e.conds }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conds) == 0 }

// Canonical renders the expression deterministically, independent of condition order.
// Used as cache key material: two expressions with the same conditions render identically.
func (e Expression) Canonical() string {
	if e.IsEmpty() {
		return ""
	}
	parts := make([]string, len(e.conds))
	for i, c := range e.conds {
		parts[i] = c.canonical()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Condition is a single filter clause on one field.
type Condition struct {
	key       string
	kind      Kind
	match     string
	boolean   bool
	rangeExpr *Range
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Kind returns the constraint type.
func (c Condition) Kind() Kind { return c.kind }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Bool returns the boolean match value.
func (c Condition) Bool() bool { return c.boolean }

// Range returns the numeric range, nil unless Kind is KindRange.
func (c Condition) Range() *Range { return c.rangeExpr }

// MatchValue renders the value compared by equality conditions ("true"/"false" for booleans).
func (c Condition) MatchValue() string {
	if c.kind == KindBool {
		return strconv.FormatBool(c.boolean)
	}
	return c.match
}

func (c Condition) canonical() string {
	switch c.kind {
	case KindEquals, KindBool:
		return strconv.Quote(c.key) + "=" + c.kind.String() + ":" + strconv.Quote(c.MatchValue())
	case KindRange:
		return strconv.Quote(c.key) + "=range:" + c.rangeExpr.canonical()
	default:
		return strconv.Quote(c.key) + "=?"
	}
}

// Range is a numeric interval; a nil bound is open.
type Range struct {
	min *float64
	max *float64
}

// Min returns the inclusive lower bound.
func (r Range) Min() *float64 { return r.min }

// Max returns the inclusive upper bound.
func (r Range) Max() *float64 { return r.max }

func (r Range) canonical() string {
	return "[" + fmtBound(r.min) + ";" + fmtBound(r.max) + "]"
}

func fmtBound(v *float64) string {
	if v == nil {
		return "_"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
