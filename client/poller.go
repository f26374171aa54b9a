package client

import "time"

// Poll backoff defaults: responsive right after activity, backed off during
// idle stretches to bound server load.
const (
	defaultPollBase       = 5 * time.Second
	defaultPollMax        = 15 * time.Second
	defaultPollFactor     = 1.5
	defaultEmptyStreak    = 3
	defaultReconnectDelay = 2 * time.Second
	defaultPageLimit      = 200
)

// pollBackoff implements the adaptive interval: consecutive empty fetches
// past the streak threshold stretch the interval by the factor up to the cap;
// a single non-empty fetch snaps everything back to base. Recency implies
// more activity is likely.
type pollBackoff struct {
	base            time.Duration
	max             time.Duration
	factor          float64
	streakThreshold int

	current time.Duration
	streak  int
}

func newPollBackoff(base, max time.Duration, factor float64, streakThreshold int) *pollBackoff {
	if base <= 0 {
		base = defaultPollBase
	}
	if max <= 0 {
		max = defaultPollMax
	}
	if factor <= 1 {
		factor = defaultPollFactor
	}
	if streakThreshold <= 0 {
		streakThreshold = defaultEmptyStreak
	}
	return &pollBackoff{
		base:            base,
		max:             max,
		factor:          factor,
		streakThreshold: streakThreshold,
		current:         base,
	}
}

// next returns the delay before the following poll, given whether this fetch
// returned any messages.
func (b *pollBackoff) next(gotMessages bool) time.Duration {
	if gotMessages {
		b.streak = 0
		b.current = b.base
		return b.current
	}

	b.streak++
	if b.streak >= b.streakThreshold {
		grown := time.Duration(float64(b.current) * b.factor)
		if grown > b.max {
			grown = b.max
		}
		b.current = grown
	}
	return b.current
}

// interval reports the current delay without mutating the streak.
func (b *pollBackoff) interval() time.Duration {
	return b.current
}
