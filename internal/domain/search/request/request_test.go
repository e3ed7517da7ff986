package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string    { return &v }

func TestNew_Valid(t *testing.T) {
	r, err := New("  Red   Running SHOES ", filter.Params{Category: str("shoes")}, 5, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Text() != "red running shoes" {
		t.Errorf("Text() = %q", r.Text())
	}
	if r.TopK() != 5 || !r.Rerank() {
		t.Errorf("TopK()=%d Rerank()=%v", r.TopK(), r.Rerank())
	}
	if len(r.Filters().Conditions()) != 1 {
		t.Errorf("Filters() conditions = %d, want 1", len(r.Filters().Conditions()))
	}
	if r.IsEmpty() || !r.HasText() {
		t.Error("request with text must not be empty")
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		params filter.Params
		topK   int
		field  string
	}{
		{"zero top_k", "q", filter.Params{}, 0, "top_k"},
		{"negative top_k", "q", filter.Params{}, -1, "top_k"},
		{"top_k too large", "q", filter.Params{}, MaxTopK + 1, "top_k"},
		{"query too long", strings.Repeat("a", MaxQueryLength+1), filter.Params{}, 5, "query"},
		{"min > max", "q", filter.Params{MinPrice: f64(50), MaxPrice: f64(10)}, 5, "min_price"},
		{"negative min", "q", filter.Params{MinPrice: f64(-1)}, 5, "min_price"},
		{"negative max", "q", filter.Params{MaxPrice: f64(-1)}, 5, "max_price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.text, tt.params, tt.topK, false)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("error = %v, want ErrInvalidInput", err)
			}
			var inv *domain.InvalidInputError
			if errors.As(err, &inv) && inv.Field != tt.field {
				t.Errorf("Field = %q, want %q", inv.Field, tt.field)
			}
		})
	}
}

func TestNew_EqualBoundsAllowed(t *testing.T) {
	if _, err := New("", filter.Params{MinPrice: f64(10), MaxPrice: f64(10)}, 5, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsEmpty(t *testing.T) {
	empty, _ := New("   ", filter.Params{}, 5, false)
	if !empty.IsEmpty() {
		t.Error("whitespace-only query without filters must be empty")
	}
	browse, _ := New("", filter.Params{Brand: str("acme")}, 5, false)
	if browse.IsEmpty() || browse.HasText() {
		t.Error("filter-only query is not empty and has no text")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"Shoes":            "shoes",
		"  red\tshoes\n":   "red shoes",
		"RED  SHOES  ":     "red shoes",
		"black leather bag": "black leather bag",
	}
	for in, want := range tests {
		if got := NormalizeText(in); got != want {
			t.Errorf("NormalizeText(%q) = %q, want %q", in, got, want)
		}
	}
}
