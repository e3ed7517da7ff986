package detection

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/lumina/internal/domain"
	domdet "github.com/kailas-cloud/lumina/internal/domain/detection"
)

// Result is a post-processed detection response.
type Result struct {
	Model      string
	Detections []domdet.Detection
}

// Count returns the number of kept detections.
func (r Result) Count() int { return len(r.Detections) }

// Service finds fashion items in images.
type Service struct {
	detector  Detector
	model     string
	threshold float64
	defaults  []string
}

// New creates a detection service. A non-positive threshold means domdet.DefaultThreshold.
func New(detector Detector, model string, threshold float64) *Service {
	if threshold <= 0 {
		threshold = domdet.DefaultThreshold
	}
	return &Service{detector: detector, model: model, threshold: threshold, defaults: domdet.DefaultLabels}
}

// WithDefaultLabels replaces the labels queried when a request names none.
func (s *Service) WithDefaultLabels(labels []string) *Service {
	if l := domdet.LabelsOr(labels, nil); len(l) > 0 {
		s.defaults = l
	}
	return s
}

// Detect queries the detector with labels (defaults when empty) and filters the output.
func (s *Service) Detect(ctx context.Context, image []byte, labels []string) (Result, error) {
	if len(image) == 0 {
		return Result{}, domain.NewInvalidInput("file", "empty image")
	}

	raw, err := s.detector.Detect(ctx, image, domdet.LabelsOr(labels, s.defaults))
	if err != nil {
		if errors.Is(err, domain.ErrDetectionUnavailable) {
			return Result{}, fmt.Errorf("detect: %w", err)
		}
		return Result{}, fmt.Errorf("detect: %w: %w", domain.ErrDetectionUnavailable, err)
	}

	return Result{Model: s.model, Detections: domdet.Postprocess(raw, s.threshold)}, nil
}
