package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/metrics"
)

type embedImageRequest struct {
	Model string `json:"model,omitempty"`
	Image string `json:"image"`
}

type embedImageResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedImage calls POST /v1/embed/image and returns a vector in the text embedder's space.
func (c *Client) EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error) {
	call := metrics.StartEmbedding("inference", c.imageModel, "image")
	var resp embedImageResponse
	err := c.do(ctx, "embed_image", http.MethodPost, "/v1/embed/image", embedImageRequest{
		Model: c.imageModel,
		Image: base64.StdEncoding.EncodeToString(image),
	}, &resp)
	if err != nil {
		reason := metrics.ReasonTransportErr
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			reason = metrics.ReasonAPIError
		}
		call.Fail(reason)
		return domain.EmbeddingResult{}, wrap("embed image", domain.ErrEmbeddingProviderError, err)
	}
	if len(resp.Embedding) == 0 {
		call.Fail(metrics.ReasonEmpty)
		return domain.EmbeddingResult{}, fmt.Errorf("embed image: empty embedding: %w", domain.ErrEmbeddingProviderError)
	}
	call.Succeed(0)
	return domain.EmbeddingResult{Embedding: resp.Embedding}, nil
}
