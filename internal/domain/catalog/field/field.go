package field

import (
	"fmt"
	"math"
)

// Type is the indexing type of a catalog field.
type Type string

// Field type constants.
const (
	// Tag is an exact match field.
	Tag     Type = "tag"
	Numeric Type = "numeric"
	Bool    Type = "bool"
	// Text is stored in the payload and used for reranking, never filtered on.
	Text Type = "text"
)

// Well-known catalog fields.
const (
	Category = "category"
	Price    = "price"
	InStock  = "in_stock"
	Brand    = "brand"
	Title    = "title"
)

var reservedFieldNames = map[string]bool{
	"id": true, "score": true, "vector": true, "payload": true,
}

// Field is an immutable value object describing a catalog payload field.
type Field struct {
	name      string
	fieldType Type
}

// New validates and creates a Field.
// Name must be non-empty, max 64 chars, and not reserved.
func New(name string, ft Type) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if reservedFieldNames[name] {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	switch ft {
	case Tag, Numeric, Bool, Text:
	default:
		return Field{}, fmt.Errorf("invalid field type %q for %q", ft, name)
	}
	return Field{name: name, fieldType: ft}, nil
}

// Reconstruct creates a Field without validation (config hydration).
func Reconstruct(name string, ft Type) Field {
	return Field{name: name, fieldType: ft}
}

// Defaults returns the product catalog fields.
func Defaults() []Field {
	return []Field{
		{name: Category, fieldType: Tag},
		{name: Brand, fieldType: Tag},
		{name: Price, fieldType: Numeric},
		{name: InStock, fieldType: Bool},
		{name: Title, fieldType: Text},
	}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// FieldType returns the field's indexing type.
func (f Field) FieldType() Type { return f.fieldType }

// Filterable reports whether the index can evaluate predicates on this field.
func (f Field) Filterable() bool { return f.fieldType != Text }

// CheckValue verifies that a payload value matches the field type.
// Nil values are accepted and treated as absent.
func (f Field) CheckValue(v any) error {
	if v == nil {
		return nil
	}
	switch f.fieldType {
	case Tag, Text:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("field %q must be a string, got %T", f.name, v)
		}
	case Numeric:
		n, ok := ToFloat(v)
		if !ok {
			return fmt.Errorf("field %q must be a number, got %T", f.name, v)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("field %q must be finite", f.name)
		}
		if f.name == Price && n < 0 {
			return fmt.Errorf("field %q must not be negative", f.name)
		}
	case Bool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean, got %T", f.name, v)
		}
	}
	return nil
}

// ToFloat converts a decoded payload number to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
