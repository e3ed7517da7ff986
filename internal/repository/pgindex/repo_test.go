package pgindex

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/catalog/field"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
	"github.com/kailas-cloud/lumina/internal/metrics"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs   []execCall
	execTag pgconn.CommandTag
	execErr error
	row     pgx.Row
	rows    pgx.Rows
	pingErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return f.execTag, f.execErr
}

func (f *fakeDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if f.rows == nil {
		return nil, errors.New("not used")
	}
	return f.rows, nil
}

type candidateRow struct {
	id      string
	payload string
	score   float64
}

// fakeRows serves candidate rows in order; only Next, Scan, Err and Close are exercised.
type fakeRows struct {
	pgx.Rows
	data   []candidateRow
	pos    int
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	*dest[0].(*string) = row.id
	*dest[1].(*[]byte) = []byte(row.payload)
	*dest[2].(*float64) = row.score
	return nil
}

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Close() { r.closed = true }

func (f *fakeDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return f.row }

func (f *fakeDB) Ping(_ context.Context) error { return f.pingErr }

type fakeRow struct {
	vec     string
	payload string
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.vec
	*dest[1].(*[]byte) = []byte(r.payload)
	return nil
}

func testSchema(t *testing.T) catalog.Schema {
	t.Helper()
	s, err := catalog.NewSchema("products", field.Defaults(), 3)
	require.NoError(t, err)
	return s
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }

func TestBuildWhere_Empty(t *testing.T) {
	where, args := buildWhere(filter.NoFilter, 3)
	assert.Equal(t, "TRUE", where)
	assert.Empty(t, args)
}

func TestBuildWhere_CatalogParams(t *testing.T) {
	expr := filter.Build(filter.Params{
		Category: strPtr("shoes"),
		MinPrice: floatPtr(10),
		MaxPrice: floatPtr(100),
		InStock:  boolPtr(false),
	})

	where, args := buildWhere(expr, 3)

	assert.Equal(t,
		"(payload->>$3 = $4) AND ((payload->>$5)::float8 >= $6 AND (payload->>$5)::float8 <= $7) AND ((payload->>$8)::boolean = $9)",
		where)
	assert.Equal(t, []any{"category", "shoes", "price", 10.0, 100.0, "in_stock", false}, args)
}

func TestBuildWhere_OpenPriceBound(t *testing.T) {
	where, args := buildWhere(filter.Build(filter.Params{MaxPrice: floatPtr(50)}), 1)

	assert.Equal(t, "((payload->>$1)::float8 <= $2)", where)
	assert.Equal(t, []any{"price", 50.0}, args)
}

func TestBuildWhere_ValuesNeverInlined(t *testing.T) {
	expr := filter.Build(filter.Params{Brand: strPtr("x'); DROP TABLE products; --")})
	where, _ := buildWhere(expr, 1)
	assert.NotContains(t, where, "DROP")
}

func TestVectorLiteral_RoundTrip(t *testing.T) {
	in := []float32{0.5, -1, 0.125}
	lit := vectorLiteral(in)
	assert.Equal(t, "[0.5,-1,0.125]", lit)

	out, err := parseVectorLiteral(lit)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = parseVectorLiteral("[1,abc]")
	assert.Error(t, err)
}

func TestMapErr(t *testing.T) {
	missing := &pgconn.PgError{Code: "42P01", Message: `relation "products" does not exist`}
	assert.ErrorIs(t, mapErr("knn", missing), domain.ErrCollectionMissing)

	timeout := mapErr("knn", context.DeadlineExceeded)
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)
	assert.NotErrorIs(t, timeout, domain.ErrIndexUnavailable)

	other := mapErr("knn", errors.New("connection refused"))
	assert.ErrorIs(t, other, domain.ErrIndexUnavailable)
}

func TestEnsureCollection_Statements(t *testing.T) {
	fdb := &fakeDB{}
	repo := New(fdb, testSchema(t)).WithHNSW(HNSWConfig{M: 8})

	require.NoError(t, repo.EnsureCollection(context.Background()))

	require.Len(t, fdb.execs, 3)
	assert.Contains(t, fdb.execs[0].sql, "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, fdb.execs[1].sql, `CREATE TABLE IF NOT EXISTS "products"`)
	assert.Contains(t, fdb.execs[1].sql, "vector(3)")
	assert.Contains(t, fdb.execs[2].sql, "m = 8, ef_construction = 64")
}

func TestSearch_DimMismatch(t *testing.T) {
	repo := New(&fakeDB{}, testSchema(t))
	_, err := repo.Search(context.Background(), []float32{1, 2}, filter.NoFilter, 5)
	assert.ErrorIs(t, err, domain.ErrVectorDimMismatch)
}

func TestUpsert_GeneratesID(t *testing.T) {
	fdb := &fakeDB{}
	repo := New(fdb, testSchema(t))

	id, err := repo.Upsert(context.Background(), catalog.NewItem("", []float32{1, 0, 0}, map[string]any{"title": "Boot"}))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, fdb.execs, 1)
	call := fdb.execs[0]
	assert.True(t, strings.Contains(call.sql, "ON CONFLICT (id) DO UPDATE"))
	assert.Equal(t, id, call.args[0])
	assert.Equal(t, "[1,0,0]", call.args[1])
	assert.JSONEq(t, `{"title":"Boot"}`, call.args[2].(string))
}

func TestGet(t *testing.T) {
	repo := New(&fakeDB{row: fakeRow{vec: "[1,2,3]", payload: `{"title":"Bag"}`}}, testSchema(t))

	item, err := repo.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", item.ID())
	assert.Equal(t, []float32{1, 2, 3}, item.Vector())
	assert.Equal(t, "Bag", item.Payload()["title"])
}

func TestGet_NotFound(t *testing.T) {
	repo := New(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}, testSchema(t))
	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	fdb := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 1")}
	repo := New(fdb, testSchema(t))
	require.NoError(t, repo.Delete(context.Background(), "p1"))

	fdb.execTag = pgconn.NewCommandTag("DELETE 0")
	assert.ErrorIs(t, repo.Delete(context.Background(), "p1"), domain.ErrNotFound)
}

func TestHealthCheck(t *testing.T) {
	fdb := &fakeDB{}
	repo := New(fdb, testSchema(t))
	assert.NoError(t, repo.HealthCheck(context.Background()))

	fdb.pingErr = errors.New("down")
	assert.ErrorIs(t, repo.HealthCheck(context.Background()), domain.ErrIndexUnavailable)
}

func TestWithSchemaName_QualifiesTable(t *testing.T) {
	fdb := &fakeDB{}
	repo := New(fdb, testSchema(t)).WithSchemaName("catalog")

	require.NoError(t, repo.EnsureCollection(context.Background()))
	assert.Contains(t, fdb.execs[1].sql, `CREATE TABLE IF NOT EXISTS "catalog"."products"`)
	assert.Contains(t, fdb.execs[2].sql, `ON "catalog"."products"`)
}

func TestSearch_DropsCorruptPayload(t *testing.T) {
	rows := &fakeRows{data: []candidateRow{
		{id: "a", payload: `{"title":`, score: 0.9},
		{id: "b", payload: `{"title":"Bag"}`, score: 0.8},
		{id: "c", payload: `{}`, score: 0.7},
	}}
	repo := New(&fakeDB{rows: rows}, testSchema(t))
	corrupt := metrics.IndexCorruptPayloadsTotal.WithLabelValues("pgvector")
	before := testutil.ToFloat64(corrupt)

	got, err := repo.Search(context.Background(), []float32{1, 0, 0}, filter.NoFilter, 10)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID())
	assert.Equal(t, "Bag", got[0].Payload()["title"])
	assert.Equal(t, "c", got[1].ID())
	assert.InDelta(t, 1, testutil.ToFloat64(corrupt)-before, 1e-9)
	assert.True(t, rows.closed)
}
