package inference

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/kailas-cloud/lumina/internal/domain"
	domdet "github.com/kailas-cloud/lumina/internal/domain/detection"
)

type detectRequest struct {
	Model  string   `json:"model,omitempty"`
	Image  string   `json:"image"`
	Labels []string `json:"labels"`
}

type detectResponse struct {
	Detections []domdet.Detection `json:"detections"`
}

// Detect calls POST /v1/detect. Thresholding and rounding are left to the caller.
func (c *Client) Detect(ctx context.Context, image []byte, labels []string) ([]domdet.Detection, error) {
	var resp detectResponse
	err := c.do(ctx, "detect", http.MethodPost, "/v1/detect", detectRequest{
		Model:  c.detectModel,
		Image:  base64.StdEncoding.EncodeToString(image),
		Labels: labels,
	}, &resp)
	if err != nil {
		return nil, wrap("detect", domain.ErrDetectionUnavailable, err)
	}
	return resp.Detections, nil
}

// DetectModel returns the configured detection model name.
func (c *Client) DetectModel() string { return c.detectModel }
