package inference

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/lumina/internal/domain"
)

// rerankRequest follows the Cohere/Jina /rerank shape.
type rerankRequest struct {
	Model           string   `json:"model,omitempty"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	ReturnDocuments bool     `json:"return_documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score calls POST /v1/rerank and returns one score per document, in input order.
// The server may return results in any order; they are mapped back by index.
func (c *Client) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	var resp rerankResponse
	err := c.do(ctx, "rerank", http.MethodPost, "/v1/rerank", rerankRequest{
		Model:     c.rerankModel,
		Query:     query,
		Documents: documents,
	}, &resp)
	if err != nil {
		return nil, wrap("rerank", domain.ErrRerankUnavailable, err)
	}

	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) || seen[r.Index] {
			return nil, fmt.Errorf("rerank: invalid result index %d: %w", r.Index, domain.ErrRerankUnavailable)
		}
		seen[r.Index] = true
		scores[r.Index] = r.RelevanceScore
	}
	if len(resp.Results) != len(documents) {
		return nil, fmt.Errorf("rerank: got %d scores for %d documents: %w",
			len(resp.Results), len(documents), domain.ErrRerankUnavailable)
	}
	return scores, nil
}
