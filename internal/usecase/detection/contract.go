package detection

import (
	"context"

	domdet "github.com/kailas-cloud/lumina/internal/domain/detection"
)

// Detector runs open-vocabulary object detection on an image.
type Detector interface {
	Detect(ctx context.Context, image []byte, labels []string) ([]domdet.Detection, error)
}
