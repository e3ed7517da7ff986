package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const (
	// DefaultProbeTimeout bounds each individual probe.
	DefaultProbeTimeout = 2 * time.Second
	// DefaultParallelism is how many probes run at once.
	DefaultParallelism = 4
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type namedCheck struct {
	name  string
	check func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	checks      []namedCheck
	timeout     time.Duration
	parallelism int
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, embedding Checker) *Service {
	s := &Service{timeout: DefaultProbeTimeout, parallelism: DefaultParallelism}
	s.checks = append(s.checks, namedCheck{name: "database", check: db.Ping})
	return s.WithCheck("embedding", embedding)
}

// WithCheck registers an additional named probe. A nil checker is ignored.
func (s *Service) WithCheck(name string, c Checker) *Service {
	if c != nil {
		s.checks = append(s.checks, namedCheck{name: name, check: c.HealthCheck})
	}
	return s
}

// WithTimeout overrides the per-probe timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithParallelism caps how many probes run concurrently.
func (s *Service) WithParallelism(n int) *Service {
	if n > 0 {
		s.parallelism = n
	}
	return s
}

// Names returns the registered probe names, sorted.
func (s *Service) Names() []string {
	out := make([]string, len(s.checks))
	for i, c := range s.checks {
		out[i] = c.name
	}
	sort.Strings(out)
	return out
}

// Check runs the probes concurrently, at most parallelism at a time. A failing
// probe degrades the report but never cancels the others. Probes still queued
// when ctx ends are not started and report as errors.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.checks))
	)

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for _, c := range s.checks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := c.check(pctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[c.name] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, c := range s.checks {
			if _, ok := checks[c.name]; !ok {
				checks[c.name] = CheckError
			}
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
