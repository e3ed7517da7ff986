// Package openai adapts OpenAI-compatible /embeddings servers (hosted
// providers or a self-hosted SigLIP text tower) to domain.Embedder.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/metrics"
)

const defaultProvider = "openai"

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int // expected output size; 0 skips the check
	// SendDimensions passes Dimensions in the request. Servers with a fixed
	// output size often reject the parameter.
	SendDimensions bool
	User           string
	Provider       string // metrics label, default "openai"
	Logger         *zap.Logger
}

// Embedder embeds query and document text through the /embeddings endpoint.
type Embedder struct {
	client   *openai.Client
	cfg      Config
	model    openai.EmbeddingModel
	logger   *zap.Logger
	provider string
}

// NewEmbedder creates an embedding provider client.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	e := &Embedder{
		client:   openai.NewClientWithConfig(clientCfg),
		cfg:      *cfg,
		model:    openai.EmbeddingModel(cfg.Model),
		logger:   cfg.Logger,
		provider: cfg.Provider,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.provider == "" {
		e.provider = defaultProvider
	}
	return e
}

// Embed returns the vector for text along with the provider's token usage.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.cfg.User,
	}
	if e.cfg.SendDimensions && e.cfg.Dimensions > 0 {
		req.Dimensions = e.cfg.Dimensions
	}

	call := metrics.StartEmbedding(e.provider, e.cfg.Model, "text")
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			call.Fail(metrics.ReasonTransportErr)
			return domain.EmbeddingResult{}, fmt.Errorf("embedding request: %w", ctxErr)
		}
		reason, apiErr := classifyError(err)
		call.Fail(reason)
		return domain.EmbeddingResult{}, apiErr
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		call.Fail(metrics.ReasonEmpty)
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty embedding response", domain.ErrEmbeddingProviderError)
	}

	vec := resp.Data[0].Embedding
	if want := e.cfg.Dimensions; want > 0 && len(vec) != want {
		call.Fail(metrics.ReasonDimMismatch)
		e.logger.Warn("Embedding dimension mismatch",
			zap.String("model", e.cfg.Model), zap.Int("got", len(vec)), zap.Int("want", want))
		return domain.EmbeddingResult{}, fmt.Errorf("%w: model returned %d dimensions, index expects %d",
			domain.ErrEmbeddingProviderError, len(vec), want)
	}

	call.Succeed(resp.Usage.TotalTokens)
	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// classifyError turns a go-openai error into a metrics reason and a
// domain.ErrEmbeddingProviderError carrying the server's message.
func classifyError(err error) (string, error) {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := detailMessage(reqErr.Body)
		if msg == "" {
			msg = strings.TrimSpace(string(reqErr.Body))
		}
		return metrics.ReasonAPIError, fmt.Errorf("%w: status %d: %s",
			domain.ErrEmbeddingProviderError, reqErr.HTTPStatusCode, msg)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return metrics.ReasonAPIError, fmt.Errorf("%w: status %d: %s",
			domain.ErrEmbeddingProviderError, apiErr.HTTPStatusCode, apiErr.Message)
	}

	return metrics.ReasonTransportErr, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
}

// detailMessage reads the "detail" field FastAPI model servers put in error bodies.
func detailMessage(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	return parsed.Detail
}
