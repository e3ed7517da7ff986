package chi

import (
	domdet "github.com/kailas-cloud/lumina/internal/domain/detection"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
	"github.com/kailas-cloud/lumina/internal/domain/search/result"
	searchuc "github.com/kailas-cloud/lumina/internal/usecase/search"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type filtersDTO struct {
	Category   *string           `json:"category,omitempty"`
	MinPrice   *float64          `json:"min_price,omitempty"`
	MaxPrice   *float64          `json:"max_price,omitempty"`
	InStock    *bool             `json:"in_stock,omitempty"`
	Brand      *string           `json:"brand,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (f filtersDTO) params() filter.Params {
	return filter.Params{
		Category:   f.Category,
		MinPrice:   f.MinPrice,
		MaxPrice:   f.MaxPrice,
		InStock:    f.InStock,
		Brand:      f.Brand,
		Attributes: f.Attributes,
	}
}

type searchRequest struct {
	Query   string     `json:"query"`
	TopK    *int       `json:"top_k,omitempty"`
	Filters filtersDTO `json:"filters"`
	Rerank  *bool      `json:"rerank,omitempty"`
}

type rankedDTO struct {
	ID          string         `json:"id"`
	Score       float64        `json:"score"`
	VectorScore float64        `json:"vector_score"`
	Payload     map[string]any `json:"payload"`
}

type searchMetaDTO struct {
	CacheHit bool `json:"cache_hit"`
	Reranked bool `json:"reranked"`
	Degraded bool `json:"degraded"`
}

type searchResponse struct {
	Results []rankedDTO   `json:"results"`
	Meta    searchMetaDTO `json:"meta"`
}

func newSearchResponse(rs []result.Ranked, meta searchuc.Meta) searchResponse {
	out := make([]rankedDTO, len(rs))
	for i, r := range rs {
		out[i] = rankedDTO{
			ID:          r.ID(),
			Score:       r.FinalScore(),
			VectorScore: r.VectorScore(),
			Payload:     r.Payload(),
		}
	}
	return searchResponse{
		Results: out,
		Meta:    searchMetaDTO{CacheHit: meta.CacheHit, Reranked: meta.Reranked, Degraded: meta.Degraded},
	}
}

type itemRequest struct {
	ID          string         `json:"id,omitempty"`
	Text        string         `json:"text,omitempty"`
	Vector      []float32      `json:"vector,omitempty"`
	ImageBase64 string         `json:"image_base64,omitempty"`
	Payload     map[string]any `json:"payload"`
}

type itemResponse struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type batchRequest struct {
	Items []itemRequest `json:"items"`
}

type batchItemResult struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type batchResponse struct {
	Results   []batchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

type detectMeta struct {
	Filename string `json:"filename"`
	Model    string `json:"model"`
}

type detectData struct {
	Detections []domdet.Detection `json:"detections"`
	Count      int                `json:"count"`
}

type detectResponse struct {
	Status string     `json:"status"`
	Meta   detectMeta `json:"meta"`
	Data   detectData `json:"data"`
}
