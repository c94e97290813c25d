// Package health runs named readiness probes for the /health/ready
// endpoint.
package health

import (
	"context"
	"time"
)

type CheckFunc func(ctx context.Context) error

type Check struct {
	Name  string
	Probe CheckFunc
}

type Result struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

type ProbeRunner struct {
	checks  []Check
	timeout time.Duration
}

func NewProbeRunner(timeout time.Duration, checks ...Check) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeRunner{checks: checks, timeout: timeout}
}

// Ready probes every dependency. One failed probe marks the whole process
// not ready; the per-check results go into the response body either way.
func (p *ProbeRunner) Ready(ctx context.Context) (bool, []Result) {
	ready := true
	results := make([]Result, 0, len(p.checks))
	for _, check := range p.checks {
		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		start := time.Now()
		err := check.Probe(probeCtx)
		cancel()

		result := Result{Name: check.Name, Status: "ok", Duration: time.Since(start).Round(time.Millisecond).String()}
		if err != nil {
			ready = false
			result.Status = "failed"
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return ready, results
}
