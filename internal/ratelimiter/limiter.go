package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Default gate spacing, overridable through config. The catalog enforces
// roughly one request per second; the safety margin is added on top, so
// consecutive calls are at least 1.5s apart.
const (
	BaseInterval = time.Second
	SafetyMargin = 500 * time.Millisecond
)

// Gate enforces minimum spacing between outbound catalog calls. One global
// gate per run, no per-target sub-limits. Burst of 1 means the first call
// passes immediately and every later call waits out the full interval.
type Gate struct {
	limiter *rate.Limiter
}

// NewWithInterval creates a Gate with the given spacing. Tests use short
// intervals to keep wall-clock time down.
func NewWithInterval(interval time.Duration) *Gate {
	return &Gate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the gate grants a slot. Returns a non-nil error only
// if ctx is cancelled while waiting, so the scheduler can exit promptly
// without consuming further budget.
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
