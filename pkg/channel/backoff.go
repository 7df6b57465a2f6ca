package channel

import (
	"math"
	"math/rand"
	"time"
)

// Reconnection defaults, matching the dashboard's socket.io client
const (
	DefaultReconnectDelay    = time.Second
	DefaultReconnectDelayMax = 5 * time.Second
	DefaultBackoffFactor     = 2
	DefaultJitter            = 0.5

	maxJitter = 0.9
)

// Backoff computes the delay before a reconnection attempt.
// There is no attempt limit: the manager never gives up.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64 // 0..0.9, fraction of the delay randomly added or removed

	rand func() float64
}

// DefaultBackoff returns the 1s..5s exponential policy with jitter
func DefaultBackoff() Backoff {
	return Backoff{
		Min:    DefaultReconnectDelay,
		Max:    DefaultReconnectDelayMax,
		Factor: DefaultBackoffFactor,
		Jitter: DefaultJitter,
	}
}

// Duration returns the delay before attempt (0 based). The result is always
// in (0, Max].
func (b Backoff) Duration(attempt int) time.Duration {
	minDelay := b.Min
	if minDelay <= 0 {
		minDelay = DefaultReconnectDelay
	}
	maxDelay := b.Max
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	factor := b.Factor
	if factor < 1 {
		factor = DefaultBackoffFactor
	}
	jitter := math.Min(math.Max(b.Jitter, 0), maxJitter)

	// past limit even the largest negative jitter stays above the cap
	limit := float64(maxDelay) / (1 - jitter)
	delay := float64(minDelay)
	for i := 0; i < attempt && factor > 1; i++ {
		delay *= factor
		if delay > limit {
			return maxDelay
		}
	}

	if jitter > 0 {
		random := rand.Float64
		if b.rand != nil {
			random = b.rand
		}
		r := random()
		deviation := math.Floor(r * jitter * delay)
		if int(math.Floor(r*10))&1 == 0 {
			delay -= deviation
		} else {
			delay += deviation
		}
	}
	switch {
	case delay > float64(maxDelay):
		return maxDelay
	case delay < 1:
		return 1
	}
	return time.Duration(delay)
}
