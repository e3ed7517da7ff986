package chi

import (
	"context"

	domcat "github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/search/request"
	"github.com/kailas-cloud/lumina/internal/domain/search/result"
	cataloguc "github.com/kailas-cloud/lumina/internal/usecase/catalog"
	detectionuc "github.com/kailas-cloud/lumina/internal/usecase/detection"
	healthuc "github.com/kailas-cloud/lumina/internal/usecase/health"
	searchuc "github.com/kailas-cloud/lumina/internal/usecase/search"
)

// Searcher runs text and image queries.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Ranked, searchuc.Meta, error)
	SearchByImage(ctx context.Context, image []byte, req *request.Request) ([]result.Ranked, error)
}

// Catalog stores and reads items.
type Catalog interface {
	Upsert(ctx context.Context, in cataloguc.Input) (string, error)
	UpsertBatch(ctx context.Context, items []cataloguc.Input) ([]cataloguc.Result, error)
	Get(ctx context.Context, id string) (domcat.Item, error)
	Delete(ctx context.Context, id string) error
}

// Detector finds labeled regions in an image.
type Detector interface {
	Detect(ctx context.Context, image []byte, labels []string) (detectionuc.Result, error)
}

// CachePurger drops every cached search response.
type CachePurger interface {
	Purge(ctx context.Context) (int, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
