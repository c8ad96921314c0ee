package telemetry

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus is the outcome of a single health check.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth is one named component's check result.
type ComponentHealth struct {
	Name     string
	Status   HealthStatus
	Message  string
	Duration time.Duration
}

// Checker is a single named health probe (e.g. "staging_db", "core_db").
type Checker interface {
	Name() string
	Check(ctx context.Context) ComponentHealth
}

// PingFunc adapts a ping function (pool.Ping) into a Checker.
type PingFunc struct {
	CheckerName string
	Ping        func(ctx context.Context) error
}

func (p PingFunc) Name() string { return p.CheckerName }

func (p PingFunc) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return ComponentHealth{Name: p.CheckerName, Status: HealthUnhealthy, Message: err.Error(), Duration: time.Since(start)}
	}
	return ComponentHealth{Name: p.CheckerName, Status: HealthHealthy, Duration: time.Since(start)}
}

// CheckAll runs every checker and returns the first failure, if any. Used as
// the cmd/xrefload pre-flight before a Loader run starts spending phases.
func CheckAll(ctx context.Context, checkers ...Checker) error {
	for _, c := range checkers {
		h := c.Check(ctx)
		if h.Status != HealthHealthy {
			return fmt.Errorf("health check %q failed: %s", h.Name, h.Message)
		}
	}
	return nil
}
