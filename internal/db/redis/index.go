package redis

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/lumina/internal/db"
)

// CreateIndex runs FT.CREATE for the definition.
// An existing index with the same name yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("index definition: %w", err)
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(def.Args()...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if serverErrorMatches(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// SupportsFilterOnlySearch reports whether FT.SEARCH runs without a KNN clause.
// valkey-search rejects pure predicate queries.
func (s *Store) SupportsFilterOnlySearch(_ context.Context) bool {
	return s.flavor == FlavorRedis
}

// isMissingIndex matches Redis ("Unknown index name", "no such index") and
// valkey-search ("Index with name ... not found") replies.
func isMissingIndex(err error) bool {
	return serverErrorMatches(err, "unknown index name", "no such index") ||
		(serverErrorMatches(err, "index") && serverErrorMatches(err, "not found"))
}
