package outbox

import (
	"math"
	"math/rand"
	"time"
)

// backoff returns how long a queue entry waits before it becomes claimable
// again: 1s doubling per delivery attempt, capped at maxBackoff. An entry
// that has never been attempted is claimable immediately.
func backoff(attempts int, maxBackoff time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	seconds := math.Pow(2, float64(attempts-1))
	d := time.Duration(seconds * float64(time.Second))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// jitter spreads requeued entries so a batch failed by one engine outage
// does not come back as a single claimable burst.
func jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	if r == nil {
		return 0
	}
	// [0, maxJitter]
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}
