package rerank

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/catalog/field"
	"github.com/kailas-cloud/lumina/internal/domain/search/result"
)

// DefaultTextField is the payload field compared against the query.
const DefaultTextField = field.Title

// Service reorders recall-stage candidates by pairwise relevance to the query.
type Service struct {
	scorer    Scorer
	textField string
}

// New creates a reranker. An empty textField means DefaultTextField.
func New(scorer Scorer, textField string) *Service {
	if textField == "" {
		textField = DefaultTextField
	}
	return &Service{scorer: scorer, textField: textField}
}

// Rerank scores every candidate against query and returns at most topK results
// ordered by rerank score desc, ties by id asc. The vector score is carried
// through but does not affect the order. Truncation happens after sorting.
func (s *Service) Rerank(
	ctx context.Context, query string, candidates []result.Candidate, topK int,
) ([]result.Ranked, error) {
	if len(candidates) == 0 {
		return []result.Ranked{}, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = ComparisonText(c.Payload(), s.textField)
	}

	scores, err := s.scorer.Score(ctx, query, docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankUnavailable, err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: got %d scores for %d candidates",
			domain.ErrRerankUnavailable, len(scores), len(candidates))
	}

	out := make([]result.Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = result.NewRanked(c.ID(), scores[i], c.VectorScore(), c.Payload())
	}
	result.SortRanked(out)

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// ComparisonText joins the text field and the category, trimmed.
// Missing or non-string fields count as empty.
func ComparisonText(payload map[string]any, textField string) string {
	text := catalog.StringField(payload, textField)
	category := catalog.StringField(payload, field.Category)
	return strings.TrimSpace(text + " " + category)
}
