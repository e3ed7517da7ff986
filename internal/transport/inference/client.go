// Package inference is the HTTP client for the model-serving sidecar that hosts
// the image embedder, the open-vocabulary detector and the cross-encoder reranker.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/internal/metrics"
)

const (
	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 512
)

// Config holds the inference service settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	ImageModel  string
	DetectModel string
	RerankModel string
	Logger      *zap.Logger
	HTTPClient  *http.Client
}

// Client talks to the inference service over JSON/HTTP.
type Client struct {
	baseURL     string
	apiKey      string
	imageModel  string
	detectModel string
	rerankModel string
	http        *http.Client
	logger      *zap.Logger
}

// New creates an inference client.
func New(cfg *Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		imageModel:  cfg.ImageModel,
		detectModel: cfg.DetectModel,
		rerankModel: cfg.RerankModel,
		http:        httpClient,
		logger:      logger,
	}
}

// StatusError is a non-2xx answer from the inference service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference service returned %d: %s", e.StatusCode, e.Body)
}

// HealthCheck calls GET /healthz.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/healthz", nil, nil)
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
// Every call is metered per operation.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.InferenceRequestsTotal.WithLabelValues(op, status).Inc()
		metrics.InferenceRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if in != nil {
		data, mErr := json.Marshal(in)
		if mErr != nil {
			return fmt.Errorf("marshal %s request: %w", op, mErr)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		c.logger.Warn("Inference request failed",
			zap.String("op", op), zap.Int("status", resp.StatusCode), zap.ByteString("body", raw))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// wrap tags err with sentinel unless err is a context error.
func wrap(op string, sentinel, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, err)
}
