package filter

import (
	"sort"

	"github.com/kailas-cloud/lumina/internal/domain/catalog/field"
)

// Params are the structured constraints a caller can attach to a query.
// Nil pointers and empty strings mean "absent".
type Params struct {
	Category *string
	MinPrice *float64
	MaxPrice *float64
	InStock  *bool
	Brand    *string
	// Attributes holds exact-match constraints on extra tag fields.
	Attributes map[string]string
}

// Build translates Params into an Expression: one condition per present
// parameter, both price bounds folded into a single range. Zero params yield NoFilter.
// Build never validates; bound ordering is checked at the request boundary.
func Build(p Params) Expression {
	var conds []Condition

	if p.Category != nil && *p.Category != "" {
		conds = append(conds, Condition{key: field.Category, kind: KindEquals, match: *p.Category})
	}
	if p.MinPrice != nil || p.MaxPrice != nil {
		r := Range{min: p.MinPrice, max: p.MaxPrice}
		conds = append(conds, Condition{key: field.Price, kind: KindRange, rangeExpr: &r})
	}
	if p.InStock != nil {
		conds = append(conds, Condition{key: field.InStock, kind: KindBool, boolean: *p.InStock})
	}
	if p.Brand != nil && *p.Brand != "" {
		conds = append(conds, Condition{key: field.Brand, kind: KindEquals, match: *p.Brand})
	}

	keys := make([]string, 0, len(p.Attributes))
	for k, v := range p.Attributes {
		if k != "" && v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		conds = append(conds, Condition{key: k, kind: KindEquals, match: p.Attributes[k]})
	}

	if len(conds) == 0 {
		return NoFilter
	}
	return Expression{conds: conds}
}
