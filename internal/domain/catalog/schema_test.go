package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/catalog/field"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
)

func defaultSchema(t *testing.T) Schema {
	t.Helper()
	s, err := NewSchema("products", field.Defaults(), 4)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func TestNewSchema_Valid(t *testing.T) {
	s := defaultSchema(t)
	if s.Collection() != "products" {
		t.Errorf("Collection() = %q", s.Collection())
	}
	if s.VectorDim() != 4 {
		t.Errorf("VectorDim() = %d, want 4", s.VectorDim())
	}
	if len(s.FilterableFields()) != 4 {
		t.Errorf("FilterableFields() len = %d, want 4 (title is text)", len(s.FilterableFields()))
	}
}

func TestNewSchema_InvalidName(t *testing.T) {
	for _, name := range []string{"", "has space", "col.name", strings.Repeat("a", 65)} {
		if _, err := NewSchema(name, nil, 4); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}

func TestNewSchema_NonPositiveDim(t *testing.T) {
	if _, err := NewSchema("products", nil, 0); err == nil {
		t.Fatal("expected error for zero dim")
	}
}

func TestNewSchema_DuplicateFields(t *testing.T) {
	fields := []field.Field{field.Reconstruct("a", field.Tag), field.Reconstruct("a", field.Numeric)}
	_, err := NewSchema("products", fields, 4)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("error = %v, want 'duplicate'", err)
	}
}

func TestValidateFilter(t *testing.T) {
	s := defaultSchema(t)
	f := filter.Build(filter.Params{
		Category: ptr("shoes"),
		MinPrice: ptr(10.0),
		InStock:  ptr(true),
	})
	if err := s.ValidateFilter(f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.ValidateFilter(filter.NoFilter); err != nil {
		t.Fatalf("NoFilter must validate: %v", err)
	}
}

func TestValidateFilter_UnknownField(t *testing.T) {
	s := defaultSchema(t)
	expr := filter.Build(filter.Params{Attributes: map[string]string{"color": "red"}})
	err := s.ValidateFilter(expr)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestValidateFilter_TextFieldRejected(t *testing.T) {
	s := defaultSchema(t)
	expr := filter.Build(filter.Params{Attributes: map[string]string{field.Title: "shoe"}})
	if err := s.ValidateFilter(expr); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestValidateFilter_KindMismatch(t *testing.T) {
	s := defaultSchema(t)
	expr := filter.Build(filter.Params{Attributes: map[string]string{field.Price: "10"}})
	err := s.ValidateFilter(expr)
	if err == nil || !strings.Contains(err.Error(), "not allowed") {
		t.Fatalf("error = %v, want 'not allowed'", err)
	}
}

func TestValidatePayload(t *testing.T) {
	s := defaultSchema(t)
	ok := map[string]any{
		"title": "Red sneakers", "category": "shoes", "price": 49.0,
		"in_stock": true, "color": "red",
	}
	if err := s.ValidatePayload(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := map[string]any{"price": "cheap"}
	err := s.ValidatePayload(bad)
	var inv *domain.InvalidInputError
	if !errors.As(err, &inv) {
		t.Fatalf("error = %v, want *InvalidInputError", err)
	}
	if inv.Field != "payload.price" {
		t.Errorf("Field = %q, want payload.price", inv.Field)
	}
}

func TestStringField(t *testing.T) {
	p := map[string]any{"title": "  Blue shirt ", "price": 3.0}
	if got := StringField(p, "title"); got != "Blue shirt" {
		t.Errorf("StringField(title) = %q", got)
	}
	if got := StringField(p, "price"); got != "" {
		t.Errorf("StringField(price) = %q, want empty", got)
	}
	if got := StringField(p, "missing"); got != "" {
		t.Errorf("StringField(missing) = %q, want empty", got)
	}
}

func ptr[T any](v T) *T { return &v }
