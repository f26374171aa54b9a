package client

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

var errPushTransport = errors.New("push transport failure")

// BreakerConfig tunes the push circuit breaker. The breaker distinguishes a
// transient blip (retried) from a systemically broken push path such as a
// proxy killing long-lived connections (fall back to polling for the rest of
// the session).
type BreakerConfig struct {
	// Window is the failure-counting window. Failures older than one window
	// no longer count toward the trip threshold.
	Window time.Duration
	// Threshold is the number of failures within the window that trips the
	// breaker.
	Threshold uint32
}

func (c *BreakerConfig) withDefaults() {
	if c.Window <= 0 {
		c.Window = 30 * time.Second
	}
	if c.Threshold == 0 {
		c.Threshold = 3
	}
}

// sessionLifetime keeps a tripped breaker open for the whole delivery
// session: push is only retried on a fresh scope activation, never mid-flight.
const sessionLifetime = 365 * 24 * time.Hour

// newPushBreaker builds the sliding-window breaker on gobreaker. The Interval
// expires stale failure counts; the Timeout is effectively infinite so the
// breaker never half-opens within a session.
func newPushBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[any] {
	cfg.withDefaults()
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     sessionLifetime,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= cfg.Threshold
		},
	})
}

// recordPushFailure feeds one transport failure into the breaker.
// Reconnect hints are never recorded here.
func recordPushFailure(cb *gobreaker.CircuitBreaker[any], cause error) {
	if cause == nil {
		cause = errPushTransport
	}
	_, _ = cb.Execute(func() (any, error) {
		return nil, cause
	})
}

// breakerTripped reports whether push is disabled for this session.
func breakerTripped(cb *gobreaker.CircuitBreaker[any]) bool {
	return cb.State() == gobreaker.StateOpen
}
