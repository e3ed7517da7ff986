package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/catalog/field"
)

// buildHashFields flattens an item for HSET: the full payload as JSON plus one
// string per filterable field so the FT index can evaluate predicates on it.
func buildHashFields(item catalog.Item, schema catalog.Schema) (map[string]string, error) {
	payload, err := json.Marshal(item.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	m := make(map[string]string, 3+len(schema.Fields()))
	m[idField] = item.ID()
	m[payloadField] = string(payload)
	m[vectorField] = vectorToBytes(item.Vector())

	for _, f := range schema.FilterableFields() {
		v, ok := item.Payload()[f.Name()]
		if !ok || v == nil {
			continue
		}
		switch f.FieldType() {
		case field.Tag:
			if s, ok := v.(string); ok && s != "" {
				m[f.Name()] = s
			}
		case field.Numeric:
			if n, ok := field.ToFloat(v); ok {
				m[f.Name()] = strconv.FormatFloat(n, 'f', -1, 64)
			}
		case field.Bool:
			if b, ok := v.(bool); ok {
				m[f.Name()] = strconv.FormatBool(b)
			}
		}
	}
	return m, nil
}

// parseHashFields rebuilds an item from its hash.
func parseHashFields(id string, m map[string]string) (catalog.Item, error) {
	var payload map[string]any
	if raw := m[payloadField]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return catalog.Item{}, fmt.Errorf("unmarshal payload of %s: %w", id, err)
		}
	}
	return catalog.NewItem(id, bytesToVector(m[vectorField]), payload), nil
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
