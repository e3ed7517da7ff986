package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/internal/domain"
)

// InstrumentedEmbedder wraps an embedder with request logging.
// Transport metrics (requests, duration, tokens) are recorded in the transport clients.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	images   domain.ImageEmbedder
	provider string
	model    string
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps a text embedder with logging.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{inner: inner, provider: provider, model: model, logger: logger}
}

// WithImages adds an image embedder that shares the text embedder's vector space.
func (p *InstrumentedEmbedder) WithImages(images domain.ImageEmbedder) *InstrumentedEmbedder {
	p.images = images
	return p
}

// Embed delegates to the inner embedder and logs the outcome.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	p.log("text", start, result, err)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return result, nil
}

// EmbedImage delegates to the image embedder and logs the outcome.
func (p *InstrumentedEmbedder) EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error) {
	if p.images == nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: no image embedder configured", domain.ErrEmbeddingProviderError)
	}
	start := time.Now()
	result, err := p.images.EmbedImage(ctx, image)
	p.log("image", start, result, err)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed image: %w", err)
	}
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (p *InstrumentedEmbedder) log(input string, start time.Time, result domain.EmbeddingResult, err error) {
	duration := time.Since(start)
	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.String("input", input),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.String("input", input),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
}
