package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks the availability of a collaborator (index backend,
// embedding provider, inference service).
type Checker interface {
	HealthCheck(ctx context.Context) error
}
