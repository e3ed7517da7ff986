package search

import (
	"testing"

	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
)

func boolPtr(b bool) *bool { return &b }

func TestCacheKey_Deterministic(t *testing.T) {
	params := filter.Params{
		Category:   strPtr("dress"),
		MaxPrice:   floatPtr(100),
		Attributes: map[string]string{"color": "red", "size": "m"},
	}
	a := CacheKey(makeRequest(t, "  Red   Dress ", params, 5, true), true)
	b := CacheKey(makeRequest(t, "red dress", params, 5, true), true)
	if a != b {
		t.Errorf("normalized-equal queries hash differently: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestCacheKey_Distinct(t *testing.T) {
	base := CacheKey(makeRequest(t, "dress", filter.Params{MaxPrice: floatPtr(50)}, 5, true), true)
	inStock := filter.Params{MaxPrice: floatPtr(50), InStock: boolPtr(true)}

	variants := map[string]string{
		"text":      CacheKey(makeRequest(t, "dresses", filter.Params{MaxPrice: floatPtr(50)}, 5, true), true),
		"top_k":     CacheKey(makeRequest(t, "dress", filter.Params{MaxPrice: floatPtr(50)}, 6, true), true),
		"rerank":    CacheKey(makeRequest(t, "dress", filter.Params{MaxPrice: floatPtr(50)}, 5, true), false),
		"max_price": CacheKey(makeRequest(t, "dress", filter.Params{MaxPrice: floatPtr(51)}, 5, true), true),
		"min_price": CacheKey(makeRequest(t, "dress", filter.Params{MinPrice: floatPtr(50)}, 5, true), true),
		"in_stock":  CacheKey(makeRequest(t, "dress", inStock, 5, true), true),
		"no filter": CacheKey(makeRequest(t, "dress", filter.Params{}, 5, true), true),
	}
	seen := map[string]string{base: "base"}
	for name, k := range variants {
		if other, dup := seen[k]; dup {
			t.Errorf("%s collides with %s", name, other)
		}
		seen[k] = name
	}
}
