package pgindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
	"github.com/kailas-cloud/lumina/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/lumina/internal/logger"
	"github.com/kailas-cloud/lumina/internal/metrics"
)

// undefinedTable is the Postgres SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// querier is the subset of pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo is the pgvector implementation of the vector index client.
type Repo struct {
	db     querier
	schema catalog.Schema
	table  string
	hnsw   HNSWConfig
}

// Connect opens a pgx pool for the DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return pool, nil
}

// New creates a pgvector repository. The table is named after the collection.
func New(q querier, schema catalog.Schema) *Repo {
	return &Repo{
		db:     q,
		schema: schema,
		table:  pgx.Identifier{schema.Collection()}.Sanitize(),
		hnsw:   HNSWConfig{M: 16, EFConstruct: 64},
	}
}

// WithSchemaName places the table in a postgres schema other than the search path default.
func (r *Repo) WithSchemaName(name string) *Repo {
	if name != "" {
		r.table = pgx.Identifier{name, r.schema.Collection()}.Sanitize()
	}
	return r
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureCollection creates the extension, table and HNSW index when missing.
func (r *Repo) EnsureCollection(ctx context.Context) error {
	idxName := pgx.Identifier{r.schema.Collection() + "_embedding_hnsw"}.Sanitize()
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, r.table, r.schema.VectorDim()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d)`,
			idxName, r.table, r.hnsw.M, r.hnsw.EFConstruct),
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return mapErr("ensure collection", err)
		}
	}
	return nil
}

// Search returns at most limit candidates by cosine similarity desc, ties by id asc.
func (r *Repo) Search(
	ctx context.Context, vector []float32, expr filter.Expression, limit int,
) ([]result.Candidate, error) {
	if len(vector) != r.schema.VectorDim() {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(vector), r.schema.VectorDim())
	}
	if limit <= 0 {
		return nil, nil
	}

	where, args := buildWhere(expr, 3)
	sql := fmt.Sprintf(`
		SELECT id, payload, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1::vector, id
		LIMIT $2`, r.table, where)

	rows, err := r.db.Query(ctx, sql, append([]any{vectorLiteral(vector), limit}, args...)...)
	if err != nil {
		return nil, mapErr("knn search", err)
	}
	return scanCandidates(ctx, rows)
}

// Browse returns at most limit items satisfying the filter, ordered by id, with zero scores.
func (r *Repo) Browse(ctx context.Context, expr filter.Expression, limit int) ([]result.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	where, args := buildWhere(expr, 2)
	sql := fmt.Sprintf(`
		SELECT id, payload, 0::float8 AS score
		FROM %s
		WHERE %s
		ORDER BY id
		LIMIT $1`, r.table, where)

	rows, err := r.db.Query(ctx, sql, append([]any{limit}, args...)...)
	if err != nil {
		return nil, mapErr("filter search", err)
	}
	return scanCandidates(ctx, rows)
}

// Upsert stores an item and returns its id, generating a UUID when the item has none.
func (r *Repo) Upsert(ctx context.Context, item catalog.Item) (string, error) {
	if len(item.Vector()) != r.schema.VectorDim() {
		return "", fmt.Errorf("%w: got %d, want %d",
			domain.ErrVectorDimMismatch, len(item.Vector()), r.schema.VectorDim())
	}
	id := item.ID()
	if id == "" {
		id = uuid.NewString()
	}
	payload, err := json.Marshal(item.Payload())
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, payload) VALUES ($1, $2::vector, $3::jsonb)
		ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`, r.table)
	if _, err := r.db.Exec(ctx, sql, id, vectorLiteral(item.Vector()), string(payload)); err != nil {
		return "", mapErr("upsert", err)
	}
	return id, nil
}

// Get returns an item by id.
func (r *Repo) Get(ctx context.Context, id string) (catalog.Item, error) {
	sql := fmt.Sprintf(`SELECT embedding::text, payload FROM %s WHERE id = $1`, r.table)

	var vec string
	var raw []byte
	if err := r.db.QueryRow(ctx, sql, id).Scan(&vec, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Item{}, domain.ErrNotFound
		}
		return catalog.Item{}, mapErr("get", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return catalog.Item{}, fmt.Errorf("unmarshal payload of %s: %w", id, err)
	}
	vector, err := parseVectorLiteral(vec)
	if err != nil {
		return catalog.Item{}, err
	}
	return catalog.NewItem(id, vector, payload), nil
}

// Delete removes an item by id.
func (r *Repo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		return mapErr("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// HealthCheck pings the database.
func (r *Repo) HealthCheck(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

func scanCandidates(ctx context.Context, rows pgx.Rows) ([]result.Candidate, error) {
	defer rows.Close()

	var out []result.Candidate
	for rows.Next() {
		var (
			id    string
			raw   []byte
			score float64
		)
		if err := rows.Scan(&id, &raw, &score); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		var payload map[string]any
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				metrics.IndexCorruptPayloadsTotal.WithLabelValues("pgvector").Inc()
				logpkg.FromContext(ctx).Warn("dropping hit with corrupt payload",
					zap.String("id", id), zap.Error(err))
				continue
			}
		}
		out = append(out, result.NewCandidate(id, max(0, score), payload))
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("read rows", err)
	}
	result.SortCandidates(out)
	return out, nil
}

// mapErr translates driver errors into domain errors.
func mapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == undefinedTable:
		return fmt.Errorf("%s: %w", op, domain.ErrCollectionMissing)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrIndexUnavailable, err)
	}
}

// vectorLiteral formats a vector in pgvector text form: [1,2,3].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVectorLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
