package index

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/lumina/internal/db"
	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
	"github.com/kailas-cloud/lumina/internal/metrics"
)

func TestEnsureCollection_BuildsSchemaIndex(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		return nil
	}

	if err := repo.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "lumina:products" {
		t.Errorf("index name = %q", got.Name)
	}
	if got.Prefix != "lumina:products:" {
		t.Errorf("prefix = %q", got.Prefix)
	}

	kinds := map[string]db.AttributeKind{}
	for _, a := range got.Attributes {
		kinds[a.Name] = a.Kind
	}
	want := map[string]db.AttributeKind{
		"__id":     db.KindTag,
		"category": db.KindTag,
		"brand":    db.KindTag,
		"in_stock": db.KindTag,
		"price":    db.KindNumeric,
	}
	if len(kinds) != len(want) {
		t.Fatalf("attributes = %v, want %v", kinds, want)
	}
	for name, k := range want {
		if kinds[name] != k {
			t.Errorf("attribute %s kind = %v, want %v", name, kinds[name], k)
		}
	}
	if got.Vector.Name != "__vector" || got.Vector.Dim != 3 || got.Vector.Distance != db.DistanceCosine {
		t.Errorf("vector = %+v", got.Vector)
	}
	if _, ok := kinds["title"]; ok {
		t.Error("text fields must not be indexed")
	}
}

func TestEnsureCollection_ExistingIsSuccess(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return db.ErrIndexExists
	}
	if err := repo.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("ErrIndexExists must be treated as success, got %v", err)
	}
}

func TestEnsureCollection_StoreDown(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return &db.Error{Op: db.OpCreateIndex, Err: errors.New("connection refused")}
	}
	err := repo.EnsureCollection(context.Background())
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestSearch_OrdersAndDecodes(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotQ *db.KNNQuery
	ms.knnFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		gotQ = q
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			{Key: "lumina:products:c", Score: 0.5, Fields: map[string]string{"__id": "c", "__payload": `{"title":"C"}`}},
			{Key: "lumina:products:b", Score: 0.9, Fields: map[string]string{"__id": "b", "__payload": `{"title":"B"}`}},
			{Key: "lumina:products:a", Score: 0.5, Fields: map[string]string{"__payload": `{"title":"A"}`}},
		}}, nil
	}

	cat := "shoes"
	expr := filter.Build(filter.Params{Category: &cat})
	got, err := repo.Search(context.Background(), []float32{1, 0, 0}, expr, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQ.K != 20 || gotQ.IndexName != "lumina:products" || len(gotQ.Filters.Conditions()) != 1 {
		t.Errorf("unexpected query %+v", gotQ)
	}

	wantIDs := []string{"b", "a", "c"}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, id := range wantIDs {
		if got[i].ID() != id {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID(), id)
		}
	}
	if got[1].Payload()["title"] != "A" {
		t.Errorf("payload not decoded: %v", got[1].Payload())
	}
}

func TestSearch_DropsCorruptPayload(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.knnFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			{Key: "lumina:products:a", Score: 0.9, Fields: map[string]string{"__id": "a", "__payload": `{"title":`}},
			{Key: "lumina:products:b", Score: 0.8, Fields: map[string]string{"__id": "b", "__payload": `{}`}},
			{Key: "lumina:products:c", Score: 0.7, Fields: map[string]string{"__id": "c"}},
		}}, nil
	}
	corrupt := metrics.IndexCorruptPayloadsTotal.WithLabelValues("ft")
	before := testutil.ToFloat64(corrupt)

	got, err := repo.Search(context.Background(), []float32{1, 0, 0}, filter.NoFilter, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID() != "b" || got[1].ID() != "c" {
		t.Fatalf("got %+v, want b and c", got)
	}
	if got[0].Payload() == nil {
		t.Error("empty payload must decode to an empty map")
	}
	if n := testutil.ToFloat64(corrupt) - before; n != 1 {
		t.Errorf("corrupt payload counter grew by %v, want 1", n)
	}
}

func TestSearch_DimMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Search(context.Background(), []float32{1}, filter.NoFilter, 5)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		notWant error
	}{
		{"missing index", db.ErrIndexNotFound, domain.ErrCollectionMissing, nil},
		{"store down", &db.Error{Op: db.OpSearch, Err: errors.New("refused")}, domain.ErrIndexUnavailable, nil},
		{"deadline", context.DeadlineExceeded, context.DeadlineExceeded, domain.ErrIndexUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, ms := newTestRepo(t)
			ms.knnFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
				return nil, tt.err
			}
			_, err := repo.Search(context.Background(), []float32{1, 2, 3}, filter.NoFilter, 5)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if tt.notWant != nil && errors.Is(err, tt.notWant) {
				t.Errorf("did not expect %v in %v", tt.notWant, err)
			}
		})
	}
}

func TestBrowse_Unsupported(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.filterOnly = false

	_, err := repo.Browse(context.Background(), filter.NoFilter, 5)
	if !errors.Is(err, domain.ErrFilterOnlyNotSupported) {
		t.Fatalf("expected ErrFilterOnlyNotSupported, got %v", err)
	}
	if ms.filterCalls != 0 {
		t.Error("store must not be queried when filter-only search is unsupported")
	}
}

func TestBrowse_SortsByID(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotQ *db.FilterQuery
	ms.filterFn = func(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
		gotQ = q
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: "lumina:products:z", Fields: map[string]string{"__id": "z"}},
			{Key: "lumina:products:m", Fields: map[string]string{"__id": "m"}},
		}}, nil
	}

	got, err := repo.Browse(context.Background(), filter.NoFilter, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQ.SortBy != "__id" || gotQ.Limit != 5 {
		t.Errorf("unexpected query %+v", gotQ)
	}
	if len(got) != 2 || got[0].ID() != "m" || got[0].VectorScore() != 0 {
		t.Errorf("unexpected candidates %+v", got)
	}
}

func TestUpsert_AssignsFreshIDs(t *testing.T) {
	repo, ms := newTestRepo(t)
	item := catalog.NewItem("", []float32{1, 2, 3}, map[string]any{
		"title": "Runner", "category": "shoes", "price": 59.5, "in_stock": true, "color": "red",
	})

	id1, err := repo.Upsert(context.Background(), item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := repo.Upsert(context.Background(), item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 == "" || id1 == id2 {
		t.Fatalf("expected distinct fresh ids, got %q and %q", id1, id2)
	}
	if len(ms.hashes) != 2 {
		t.Errorf("expected two points, got %d", len(ms.hashes))
	}

	h := ms.hashes["lumina:products:"+id1]
	if h["category"] != "shoes" || h["price"] != "59.5" || h["in_stock"] != "true" {
		t.Errorf("indexed fields not flattened: %v", h)
	}
	if h["__id"] != id1 {
		t.Errorf("__id = %q, want %q", h["__id"], id1)
	}
	if _, ok := h["color"]; ok {
		t.Error("unknown fields live only in the payload")
	}
}

func TestUpsert_CallerIDIsIdempotent(t *testing.T) {
	repo, ms := newTestRepo(t)
	item := catalog.NewItem("sku-1", []float32{1, 2, 3}, nil)

	for range 2 {
		id, err := repo.Upsert(context.Background(), item)
		if err != nil || id != "sku-1" {
			t.Fatalf("id=%q err=%v", id, err)
		}
	}
	if len(ms.hashes) != 1 {
		t.Errorf("expected one point, got %d", len(ms.hashes))
	}
}

func TestUpsert_DimMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Upsert(context.Background(), catalog.NewItem("", []float32{1}, nil))
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestGet_RoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Upsert(ctx, catalog.NewItem("sku-2", []float32{0.5, 1, -1}, map[string]any{"title": "Hat"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Payload()["title"] != "Hat" || len(item.Vector()) != 3 || item.Vector()[2] != -1 {
		t.Errorf("unexpected item %+v", item)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	ms.hashes["lumina:products:x"] = map[string]string{"__id": "x"}

	if err := repo.Delete(ctx, "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(ctx, "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.pingErr = errors.New("refused")
	if err := repo.HealthCheck(context.Background()); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}
