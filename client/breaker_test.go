package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAtThreshold(t *testing.T) {
	cb := newPushBreaker("test", BreakerConfig{Window: time.Minute, Threshold: 3})

	recordPushFailure(cb, nil)
	recordPushFailure(cb, nil)
	require.False(t, breakerTripped(cb))

	recordPushFailure(cb, nil)
	require.True(t, breakerTripped(cb))

	// Further failures are a no-op: the breaker stays open for the session.
	recordPushFailure(cb, nil)
	require.True(t, breakerTripped(cb))
}

func TestBreakerWindowExpiryForgetsFailures(t *testing.T) {
	cb := newPushBreaker("test", BreakerConfig{Window: 50 * time.Millisecond, Threshold: 3})

	recordPushFailure(cb, nil)
	recordPushFailure(cb, nil)
	require.False(t, breakerTripped(cb))

	// Let the failure window lapse; the two stale failures no longer count.
	time.Sleep(80 * time.Millisecond)

	recordPushFailure(cb, nil)
	recordPushFailure(cb, nil)
	require.False(t, breakerTripped(cb))

	recordPushFailure(cb, nil)
	require.True(t, breakerTripped(cb))
}
