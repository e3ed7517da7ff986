package client

// Filters narrow a search. Nil fields are not applied.
type Filters struct {
	Category   *string           `json:"category,omitempty"`
	MinPrice   *float64          `json:"min_price,omitempty"`
	MaxPrice   *float64          `json:"max_price,omitempty"`
	InStock    *bool             `json:"in_stock,omitempty"`
	Brand      *string           `json:"brand,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SearchRequest is a text search. Zero TopK and nil Rerank use the server defaults.
type SearchRequest struct {
	Query   string
	TopK    int
	Filters Filters
	Rerank  *bool
}

type searchBody struct {
	Query   string  `json:"query"`
	TopK    *int    `json:"top_k,omitempty"`
	Filters Filters `json:"filters"`
	Rerank  *bool   `json:"rerank,omitempty"`
}

// Hit is one ranked catalog item.
type Hit struct {
	ID          string         `json:"id"`
	Score       float64        `json:"score"`
	VectorScore float64        `json:"vector_score"`
	Payload     map[string]any `json:"payload"`
}

// SearchMeta describes how a response was produced.
type SearchMeta struct {
	CacheHit bool `json:"cache_hit"`
	Reranked bool `json:"reranked"`
	Degraded bool `json:"degraded"`
}

// Usage reports the work billed to a request, read from response headers.
type Usage struct {
	EmbeddingTokens int
	RerankPairs     int
}

// SearchResponse is the answer to Search.
type SearchResponse struct {
	Results []Hit      `json:"results"`
	Meta    SearchMeta `json:"meta"`
	Usage   Usage      `json:"-"`
}

// Item is a catalog item to upsert. The vector comes from Vector, then
// ImageBase64, then Text (default: payload title). An empty ID lets the
// server assign one.
type Item struct {
	ID          string         `json:"id,omitempty"`
	Text        string         `json:"text,omitempty"`
	Vector      []float32      `json:"vector,omitempty"`
	ImageBase64 string         `json:"image_base64,omitempty"`
	Payload     map[string]any `json:"payload"`
}

// StoredItem is an item read back from the index.
type StoredItem struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// BatchItemResult is the outcome of one item in a batch, by position.
type BatchItemResult struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the item was stored.
func (r BatchItemResult) OK() bool { return r.Status == "ok" }

// BatchResponse is the answer to UpsertBatch.
type BatchResponse struct {
	Results   []BatchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// Health is the server readiness report.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every dependency answered.
func (h Health) Healthy() bool { return h.Status == "ok" }

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
