package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/lumina/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(&Config{
		BaseURL:     srv.URL + "/",
		APIKey:      "secret",
		ImageModel:  "siglip",
		DetectModel: "owlv2",
		RerankModel: "bge-reranker",
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestEmbedImage(t *testing.T) {
	img := []byte{0xff, 0xd8, 0xff}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embed/image", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embedImageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "siglip", req.Model)
		assert.Equal(t, base64.StdEncoding.EncodeToString(img), req.Image)

		writeJSON(t, w, map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	})

	res, err := c.EmbedImage(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, res.Embedding)
}

func TestEmbedImage_Errors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})
	_, err := c.EmbedImage(context.Background(), []byte{1})
	require.ErrorIs(t, err, domain.ErrEmbeddingProviderError)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "model not loaded", se.Body)

	empty := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"embedding": []float32{}})
	})
	_, err = empty.EmbedImage(context.Background(), []byte{1})
	assert.ErrorIs(t, err, domain.ErrEmbeddingProviderError)
}

func TestDetect(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/detect", r.URL.Path)
		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"bag", "hat"}, req.Labels)
		assert.Equal(t, "owlv2", req.Model)

		writeJSON(t, w, map[string]any{"detections": []map[string]any{
			{"label": "bag", "confidence": 0.8123, "box": []float64{1.111, 2, 3, 4}},
		}})
	})

	out, err := c.Detect(context.Background(), []byte{1}, []string{"bag", "hat"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "bag", out[0].Label)
	assert.InDelta(t, 0.8123, out[0].Confidence, 1e-9)
	assert.InDelta(t, 1.111, out[0].Box[0], 1e-9)
	assert.Equal(t, "owlv2", c.DetectModel())
}

func TestDetect_Error(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.Detect(context.Background(), []byte{1}, nil)
	assert.ErrorIs(t, err, domain.ErrDetectionUnavailable)
}

func TestScore_MapsResultsByIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "red dress", req.Query)
		assert.Equal(t, []string{"a", "b", "c"}, req.Documents)
		assert.Equal(t, "bge-reranker", req.Model)

		writeJSON(t, w, map[string]any{"results": []map[string]any{
			{"index": 2, "relevance_score": 0.9},
			{"index": 0, "relevance_score": 0.5},
			{"index": 1, "relevance_score": 0.1},
		}})
	})

	scores, err := c.Score(context.Background(), "red dress", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.1, 0.9}, scores)
}

func TestScore_Empty(t *testing.T) {
	called := false
	c := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) { called = true })
	scores, err := c.Score(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
	assert.False(t, called)
}

func TestScore_BadResponses(t *testing.T) {
	tests := []struct {
		name    string
		results []map[string]any
	}{
		{"missing", []map[string]any{{"index": 0, "relevance_score": 1}}},
		{"out of range", []map[string]any{{"index": 0, "relevance_score": 1}, {"index": 5, "relevance_score": 1}}},
		{"duplicate", []map[string]any{{"index": 0, "relevance_score": 1}, {"index": 0, "relevance_score": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, map[string]any{"results": tt.results})
			})
			_, err := c.Score(context.Background(), "q", []string{"a", "b"})
			assert.ErrorIs(t, err, domain.ErrRerankUnavailable)
		})
	}
}

func TestScore_ContextDeadline(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Score(ctx, "q", []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrRerankUnavailable)
}

func TestHealthCheck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, c.HealthCheck(context.Background()))

	down := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	assert.Error(t, down.HealthCheck(context.Background()))
}
