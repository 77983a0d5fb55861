// Package health aggregates liveness probes for the service's external
// dependencies.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Overall status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Component status values
const (
	ComponentUp   = "up"
	ComponentDown = "down"
)

// quickCheckMaxAge bounds how long a cached full check may serve quick
// health queries.
const quickCheckMaxAge = 30 * time.Second

// Probe checks one dependency. A failing critical probe makes the whole
// service unhealthy; a failing non-critical one only degrades it.
type Probe struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// ComponentHealth is the outcome of one probe.
type ComponentHealth struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	LastCheck string `json:"lastCheck"`
	Error     string `json:"error,omitempty"`
}

// Status is the aggregated health report.
type Status struct {
	Status    string                     `json:"status"`
	Timestamp string                     `json:"timestamp"`
	Uptime    int64                      `json:"uptime"`
	Version   string                     `json:"version"`
	Services  map[string]ComponentHealth `json:"services"`
}

// QuickStatus is the condensed report for liveness endpoints.
type QuickStatus struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
}

// Checker runs registered probes concurrently and caches the last report.
type Checker struct {
	probes    []Probe
	version   string
	startTime time.Time
	logger    *logrus.Logger

	mu        sync.Mutex
	lastCheck *Status
	lastAt    time.Time
}

// NewChecker creates a new health checker
func NewChecker(version string, logger *logrus.Logger, probes ...Probe) *Checker {
	return &Checker{
		probes:    probes,
		version:   version,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Check runs all probes concurrently and aggregates their results.
func (c *Checker) Check(ctx context.Context) *Status {
	results := make([]ComponentHealth, len(c.probes))

	var wg sync.WaitGroup
	for i, probe := range c.probes {
		wg.Add(1)
		go func(i int, probe Probe) {
			defer wg.Done()
			results[i] = runProbe(ctx, probe)
		}(i, probe)
	}
	wg.Wait()

	services := make(map[string]ComponentHealth, len(c.probes))
	criticalDown := false
	anyDown := false
	for i, probe := range c.probes {
		services[probe.Name] = results[i]
		if results[i].Status == ComponentDown {
			anyDown = true
			if probe.Critical {
				criticalDown = true
			}
		}
	}

	overall := StatusHealthy
	switch {
	case criticalDown:
		overall = StatusUnhealthy
	case anyDown:
		overall = StatusDegraded
	}

	status := &Status{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    int64(time.Since(c.startTime).Seconds()),
		Version:   c.version,
		Services:  services,
	}

	if overall != StatusHealthy {
		c.logger.WithField("status", overall).Warn("Health check found degraded dependencies")
	}

	c.mu.Lock()
	c.lastCheck = status
	c.lastAt = time.Now()
	c.mu.Unlock()

	return status
}

// Quick returns the cached status when it is fresh enough, otherwise runs a
// full check.
func (c *Checker) Quick(ctx context.Context) QuickStatus {
	c.mu.Lock()
	cached := c.lastCheck
	fresh := cached != nil && time.Since(c.lastAt) < quickCheckMaxAge
	c.mu.Unlock()

	if fresh {
		return QuickStatus{Status: cached.Status, Uptime: int64(time.Since(c.startTime).Seconds())}
	}

	status := c.Check(ctx)
	return QuickStatus{Status: status.Status, Uptime: status.Uptime}
}

// RunPeriodic refreshes the cached report until the context is cancelled.
func (c *Checker) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

func runProbe(ctx context.Context, probe Probe) ComponentHealth {
	start := time.Now()
	err := probe.Check(ctx)
	result := ComponentHealth{
		Status:    ComponentUp,
		LatencyMs: time.Since(start).Milliseconds(),
		LastCheck: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		result.Status = ComponentDown
		result.Error = err.Error()
	}
	return result
}
