package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/lumina/internal/db"
)

const (
	defaultVectorField = "__vector"
	scoreField         = "__vector_score"
)

// SearchKNN runs FT.SEARCH with a KNN clause, optionally pre-filtered.
// Entry scores are cosine similarities in [0,1].
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("vector is required")
	case q.K <= 0:
		return nil, errors.New("k must be positive")
	}

	field := q.VectorField
	if field == "" {
		field = defaultVectorField
	}
	pre := filterQuery(q.Filters)
	if pre == "" {
		pre = "*"
	} else {
		pre = "(" + pre + ")"
	}

	args := ftArgs{q.IndexName, fmt.Sprintf("%s=>[KNN %d @%s $BLOB]", pre, q.K, field)}
	if len(q.ReturnFields) > 0 {
		args = args.returning(append(slices.Clip(q.ReturnFields), scoreField))
	}
	args = append(args.limit(q.K), "PARAMS", "2", "BLOB", vectorBlob(q.Vector), "DIALECT", "2")

	return s.ftSearch(ctx, args, true)
}

// SearchFilter runs a predicate-only FT.SEARCH with zero scores.
// valkey-search only executes KNN queries, so the Valkey flavor returns db.ErrUnsupported.
func (s *Store) SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if s.flavor != FlavorRedis {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrUnsupported}
	}
	switch {
	case q.IndexName == "":
		return nil, errors.New("index name is required")
	case q.Limit <= 0:
		return nil, errors.New("limit must be positive")
	}

	query := filterQuery(q.Filters)
	if query == "" {
		query = "*"
	}

	args := ftArgs{q.IndexName, query}
	if len(q.ReturnFields) > 0 {
		args = args.returning(q.ReturnFields)
	}
	if q.SortBy != "" {
		args = append(args, "SORTBY", q.SortBy, "ASC")
	}
	args = append(args.limit(q.Limit), "DIALECT", "2")

	return s.ftSearch(ctx, args, false)
}

func (s *Store) ftSearch(ctx context.Context, args ftArgs, knn bool) (*db.SearchResult, error) {
	reply, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		if isMissingIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return decodeSearchReply(reply, knn)
}

// ftArgs accumulates FT.SEARCH arguments after the command name.
type ftArgs []string

func (a ftArgs) returning(fields []string) ftArgs {
	a = append(a, "RETURN", strconv.Itoa(len(fields)))
	return append(a, fields...)
}

func (a ftArgs) limit(n int) ftArgs {
	return append(a, "LIMIT", "0", strconv.Itoa(n))
}

// decodeSearchReply reads the RESP2 reply: total, then key and field-list pairs.
// Malformed pairs are skipped. For KNN replies the cosine distance in
// __vector_score becomes a similarity clamped at 0.
func decodeSearchReply(reply []rueidis.RedisMessage, knn bool) (*db.SearchResult, error) {
	out := &db.SearchResult{}
	if len(reply) == 0 {
		return out, nil
	}

	total, err := reply[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	out.Total = int(total)

	for i := 1; i+1 < len(reply); i += 2 {
		key, kerr := reply[i].ToString()
		pairs, ferr := reply[i+1].ToArray()
		if kerr != nil || ferr != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: make(map[string]string, len(pairs)/2)}
		for j := 0; j+1 < len(pairs); j += 2 {
			name, nerr := pairs[j].ToString()
			value, verr := pairs[j+1].ToString()
			if nerr == nil && verr == nil {
				entry.Fields[name] = value
			}
		}

		if raw, ok := entry.Fields[scoreField]; ok {
			delete(entry.Fields, scoreField)
			if dist, perr := strconv.ParseFloat(raw, 64); perr == nil && knn {
				entry.Score = max(0, 1-dist)
			}
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}
