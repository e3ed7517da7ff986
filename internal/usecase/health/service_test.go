package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type probe struct{ err error }

func (p probe) Ping(context.Context) error        { return p.err }
func (p probe) HealthCheck(context.Context) error { return p.err }

// hang blocks until the probe context expires.
type hang struct{}

func (hang) HealthCheck(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

var errDown = errors.New("down")

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		db        error
		embedding Checker
		status    Status
		checks    map[string]CheckResult
	}{
		{
			name:      "all healthy",
			embedding: probe{},
			status:    Healthy,
			checks:    map[string]CheckResult{"database": CheckOK, "embedding": CheckOK},
		},
		{
			name:      "database down",
			db:        errDown,
			embedding: probe{},
			status:    Degraded,
			checks:    map[string]CheckResult{"database": CheckError, "embedding": CheckOK},
		},
		{
			name:      "embedding down",
			embedding: probe{err: errDown},
			status:    Degraded,
			checks:    map[string]CheckResult{"database": CheckOK, "embedding": CheckError},
		},
		{
			name:   "no embedding probe",
			status: Healthy,
			checks: map[string]CheckResult{"database": CheckOK},
		},
		{
			name:   "no embedding probe, database down",
			db:     errDown,
			status: Degraded,
			checks: map[string]CheckResult{"database": CheckError},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(probe{err: tt.db}, tt.embedding).Check(context.Background())

			if r.Status != tt.status {
				t.Errorf("status = %q, want %q", r.Status, tt.status)
			}
			if len(r.Checks) != len(tt.checks) {
				t.Fatalf("checks = %v, want %v", r.Checks, tt.checks)
			}
			for name, want := range tt.checks {
				if r.Checks[name] != want {
					t.Errorf("%s = %q, want %q", name, r.Checks[name], want)
				}
			}
		})
	}
}

func TestCheck_ExtraProbes(t *testing.T) {
	svc := New(probe{}, probe{}).
		WithCheck("index", probe{}).
		WithCheck("inference", probe{err: errDown}).
		WithCheck("ignored", nil)

	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("status = %q, want %q", r.Status, Degraded)
	}
	if len(r.Checks) != 4 || r.Checks["index"] != CheckOK || r.Checks["inference"] != CheckError {
		t.Errorf("checks = %v", r.Checks)
	}
	want := []string{"database", "embedding", "index", "inference"}
	got := svc.Names()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestCheck_ProbeTimeout(t *testing.T) {
	svc := New(probe{}, nil).
		WithCheck("inference", hang{}).
		WithTimeout(10 * time.Millisecond)

	start := time.Now()
	r := svc.Check(context.Background())

	if time.Since(start) > time.Second {
		t.Error("hung probe was not bounded by the timeout")
	}
	if r.Checks["inference"] != CheckError || r.Checks["database"] != CheckOK {
		t.Errorf("checks = %v", r.Checks)
	}
}

// gauge records the peak number of probes running at once.
type gauge struct {
	running, peak atomic.Int32
}

func (g *gauge) HealthCheck(context.Context) error {
	n := g.running.Add(1)
	defer g.running.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return nil
}

func TestCheck_Parallelism(t *testing.T) {
	g := &gauge{}
	svc := New(probe{}, g).
		WithCheck("index", g).
		WithCheck("inference", g).
		WithParallelism(1)

	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("status = %q, want %q", r.Status, Healthy)
	}
	if p := g.peak.Load(); p != 1 {
		t.Errorf("peak concurrent probes = %d, want 1", p)
	}
}

func TestCheck_CallerGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(probe{}, probe{}).WithCheck("index", probe{}).Check(ctx)

	if r.Status != Degraded {
		t.Errorf("status = %q, want %q", r.Status, Degraded)
	}
	for _, name := range []string{"database", "embedding", "index"} {
		if r.Checks[name] != CheckError {
			t.Errorf("%s = %q, want %q", name, r.Checks[name], CheckError)
		}
	}
}
