package index

import (
	"context"
	"testing"

	"github.com/kailas-cloud/lumina/internal/db"
	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/catalog/field"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hashes        map[string]map[string]string
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	knnFn         func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	filterFn      func(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
	pingErr       error
	hsetErr       error
	filterOnly    bool
	filterCalls   int
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}, filterOnly: true}
}

func (m *mockStore) Ping(_ context.Context) error { return m.pingErr }

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if m.hsetErr != nil {
		return m.hsetErr
	}
	m.hashes[key] = fields
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	h, ok := m.hashes[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return h, nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.hashes, key)
	return nil
}

func (m *mockStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.hashes[key]
	return ok, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) SupportsFilterOnlySearch(_ context.Context) bool { return m.filterOnly }

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.knnFn != nil {
		return m.knnFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	m.filterCalls++
	if m.filterFn != nil {
		return m.filterFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func testSchema(t *testing.T) catalog.Schema {
	t.Helper()
	s, err := catalog.NewSchema("products", field.Defaults(), 3)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms, testSchema(t)), ms
}
