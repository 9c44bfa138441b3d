package http

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	// maxTrackedSources caps how many per-source buckets are kept so a
	// caller rotating addresses can't grow the map without bound.
	maxTrackedSources = 4096

	// votesPerSecond and voteBurst bound each source to roughly one vote
	// every two seconds, with a small burst allowance for retries.
	votesPerSecond = 0.5
	voteBurst      = 5
)

// webhookRateLimiter hands each source address its own token bucket so a
// misbehaving or unauthenticated caller can't flood VoteStore.RecordVote.
type webhookRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newWebhookRateLimiter() *webhookRateLimiter {
	return &webhookRateLimiter{buckets: make(map[string]*rate.Limiter)}
}

// allow reports whether the given source still has a token left. When the
// tracked-source cap is hit, the whole map is dropped rather than evicted
// piecemeal; buckets refill on first use, so a reset only briefly
// over-admits sources that were already throttled.
func (r *webhookRateLimiter) allow(key string) bool {
	r.mu.Lock()
	lim, ok := r.buckets[key]
	if !ok {
		if len(r.buckets) >= maxTrackedSources {
			r.buckets = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Limit(votesPerSecond), voteBurst)
		r.buckets[key] = lim
	}
	r.mu.Unlock()

	return lim.Allow()
}
