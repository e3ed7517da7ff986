package catalog

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/catalog/field"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Schema describes the product collection: its name, payload fields and vector size.
type Schema struct {
	collection string
	fields     []field.Field
	vectorDim  int
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

func validateFields(fields []field.Field) error {
	if len(fields) > 64 {
		return fmt.Errorf("too many fields (max 64)")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			return fmt.Errorf("duplicate field name: %s", f.Name())
		}
		seen[f.Name()] = true
	}
	return nil
}

// NewSchema validates and creates a Schema.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars. Fields: unique names, max 64. VectorDim: > 0.
func NewSchema(collection string, fields []field.Field, vectorDim int) (Schema, error) {
	if err := validateName(collection); err != nil {
		return Schema{}, err
	}
	if vectorDim <= 0 {
		return Schema{}, fmt.Errorf("vector dimension must be positive")
	}
	if err := validateFields(fields); err != nil {
		return Schema{}, err
	}
	return Schema{collection: collection, fields: fields, vectorDim: vectorDim}, nil
}

// Collection returns the collection (index) name.
func (s Schema) Collection() string { return s.collection }

// Fields returns the payload field definitions.
func (s Schema) Fields() []field.Field { return s.fields }

// VectorDim returns the vector dimension.
func (s Schema) VectorDim() int { return s.vectorDim }

// FieldByName looks up a field by name.
func (s Schema) FieldByName(name string) (field.Field, bool) {
	for _, f := range s.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// FilterableFields returns the fields the index evaluates predicates on.
func (s Schema) FilterableFields() []field.Field {
	out := make([]field.Field, 0, len(s.fields))
	for _, f := range s.fields {
		if f.Filterable() {
			out = append(out, f)
		}
	}
	return out
}

// ValidateFilter checks that every condition targets a filterable field
// with a constraint kind that fits its type.
func (s Schema) ValidateFilter(expr filter.Expression) error {
	for _, c := range expr.Conditions() {
		f, ok := s.FieldByName(c.Key())
		if !ok || !f.Filterable() {
			return domain.NewInvalidInput(c.Key(), "unknown filter field")
		}
		if !kindFits(f.FieldType(), c.Kind()) {
			return domain.NewInvalidInput(c.Key(),
				fmt.Sprintf("%s filter not allowed on %s field", c.Kind(), f.FieldType()))
		}
	}
	return nil
}

func kindFits(ft field.Type, k filter.Kind) bool {
	switch ft {
	case field.Tag:
		return k == filter.KindEquals
	case field.Numeric:
		return k == filter.KindRange
	case field.Bool:
		return k == filter.KindBool
	default:
		return false
	}
}

// ValidatePayload type-checks the known fields of a payload. Unknown keys are kept as is.
func (s Schema) ValidatePayload(payload map[string]any) error {
	for _, f := range s.fields {
		v, ok := payload[f.Name()]
		if !ok {
			continue
		}
		if err := f.CheckValue(v); err != nil {
			return domain.NewInvalidInput("payload."+f.Name(), err.Error())
		}
	}
	return nil
}
