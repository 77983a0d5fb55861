package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func okProbe(name string, critical bool) Probe {
	return Probe{Name: name, Critical: critical, Check: func(ctx context.Context) error { return nil }}
}

func downProbe(name string, critical bool) Probe {
	return Probe{Name: name, Critical: critical, Check: func(ctx context.Context) error {
		return errors.New(name + " unreachable")
	}}
}

func TestCheck_AllUpIsHealthy(t *testing.T) {
	c := NewChecker("1.0.0", testLogger(), okProbe("solr", true), okProbe("llm", true), okProbe("cache", false))

	status := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, "1.0.0", status.Version)
	require.Len(t, status.Services, 3)
	for _, svc := range status.Services {
		assert.Equal(t, ComponentUp, svc.Status)
	}
}

func TestCheck_CriticalDownIsUnhealthy(t *testing.T) {
	c := NewChecker("1.0.0", testLogger(), downProbe("solr", true), okProbe("llm", true))

	status := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, ComponentDown, status.Services["solr"].Status)
	assert.Contains(t, status.Services["solr"].Error, "unreachable")
	assert.Equal(t, ComponentUp, status.Services["llm"].Status)
}

func TestCheck_NonCriticalDownIsDegraded(t *testing.T) {
	c := NewChecker("1.0.0", testLogger(), okProbe("solr", true), downProbe("cache", false))

	status := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, status.Status)
}

func TestCheck_ProbesRunConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	gate := make(chan struct{})

	probe := func(name string) Probe {
		return Probe{Name: name, Check: func(ctx context.Context) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-gate
			inFlight.Add(-1)
			return nil
		}}
	}

	c := NewChecker("1.0.0", testLogger(), probe("a"), probe("b"), probe("c"))

	done := make(chan *Status)
	go func() { done <- c.Check(context.Background()) }()

	// All three probes must be waiting on the gate at the same time.
	assert.Eventually(t, func() bool { return inFlight.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(gate)

	status := <-done
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, int32(3), peak.Load())
}

func TestQuick_UsesCachedResult(t *testing.T) {
	var calls atomic.Int32
	c := NewChecker("1.0.0", testLogger(), Probe{Name: "solr", Critical: true, Check: func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}})

	first := c.Quick(context.Background())
	assert.Equal(t, StatusHealthy, first.Status)
	assert.Equal(t, int32(1), calls.Load())

	// Within the freshness window no probes run again.
	second := c.Quick(context.Background())
	assert.Equal(t, StatusHealthy, second.Status)
	assert.Equal(t, int32(1), calls.Load())
}
