package redis

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
)

// filterQuery renders an expression in the FT.SEARCH query dialect, where
// space-separated clauses intersect. NoFilter renders as "".
func filterQuery(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	clauses := make([]string, len(expr.Conditions()))
	for i, c := range expr.Conditions() {
		clauses[i] = clause(c)
	}
	return strings.Join(clauses, " ")
}

func clause(c filter.Condition) string {
	if c.Kind() == filter.KindRange {
		return numericClause(c.Key(), *c.Range())
	}
	return "@" + c.Key() + ":{" + escapeTag(c.MatchValue()) + "}"
}

// numericClause renders [min max]; an open bound becomes -inf or +inf.
func numericClause(key string, r filter.Range) string {
	lo, hi := "-inf", "+inf"
	if r.Min() != nil {
		lo = formatBound(*r.Min())
	}
	if r.Max() != nil {
		hi = formatBound(*r.Max())
	}
	return "@" + key + ":[" + lo + " " + hi + "]"
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// escapeTag backslash-escapes every rune the tag tokenizer treats as a separator
// or operator, which is anything except letters, digits and underscore.
func escapeTag(v string) string {
	var b strings.Builder
	b.Grow(len(v) + 4)
	for _, r := range v {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// vectorBlob encodes v as little-endian FLOAT32 for the $BLOB param.
func vectorBlob(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}
