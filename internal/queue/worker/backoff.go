package worker

import (
	"math/rand/v2"
	"time"
)

const (
	backoffBase   = 2 * time.Second
	backoffCap    = 5 * time.Minute
	backoffJitter = 250 * time.Millisecond
)

// ExponentialBackoff returns the delay before the retry that follows
// attempt: 2s, 4s, 8s and so on up to five minutes, plus up to 250ms jitter.
func ExponentialBackoff(attempt int) time.Duration {
	delay := backoffCap
	if attempt >= 0 && attempt < 16 {
		delay = min(backoffBase<<attempt, backoffCap)
	}

	return delay + rand.N(backoffJitter)
}
