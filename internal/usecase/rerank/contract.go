package rerank

import "context"

// Scorer computes a relevance score for each (query, document) pair.
// Pairs are scored independently; scores[i] belongs to documents[i].
type Scorer interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)
}
