package monitoring

import (
	"context"
	"sync"
	"time"
)

const defaultProbeTimeout = 2 * time.Second

// probe is one registered component check.
type probe struct {
	name    string
	run     func(ctx context.Context) error
	timeout time.Duration
}

// HealthChecker aggregates component probes behind the admin healthz
// endpoint. Components register a probe at startup; CheckAll runs them
// on demand.
type HealthChecker struct {
	mu     sync.RWMutex
	probes []probe
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// HealthStatus is the healthz response body. Checks maps each probe
// name to "healthy" or its failure text.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// AddCheck registers a named probe. Zero or negative timeouts get the
// default budget.
func (h *HealthChecker) AddCheck(name string, run func(ctx context.Context) error, timeout time.Duration) {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	h.mu.Lock()
	h.probes = append(h.probes, probe{name: name, run: run, timeout: timeout})
	h.mu.Unlock()
}

// CheckAll runs every probe in parallel, each under its own timeout,
// and reports "unhealthy" if any probe fails.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	probes := make([]probe, len(h.probes))
	copy(probes, h.probes)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(probes)),
	}

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(probes))

	var wg sync.WaitGroup
	for _, p := range probes {
		wg.Add(1)
		go func(p probe) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			results <- result{name: p.name, err: p.run(probeCtx)}
		}(p)
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			status.Status = "unhealthy"
			status.Checks[r.name] = r.err.Error()
			continue
		}
		status.Checks[r.name] = "healthy"
	}
	return status
}
