package providers

import (
	"math/rand"
	"sync/atomic"
	"time"
)

// Browser user agents rotated across requests to reduce fingerprint-based
// blocking.
var userAgents = []string{
	// Chrome on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	// Chrome on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	// Firefox on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	// Firefox on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	// Safari on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	// Edge on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	// Chrome on Linux
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	// Firefox on Linux
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// rotateEvery is how many requests share one user agent before rotation.
const rotateEvery = 10

// JitterPolicy is the bounded random delay applied between upstream
// requests, with a longer window for bulk backfill than for daily sync.
type JitterPolicy struct {
	Enabled  bool
	BulkMin  time.Duration
	BulkMax  time.Duration
	DailyMin time.Duration
	DailyMax time.Duration
}

// throttle tracks request count, applies jitter sleeps and hands out a
// user agent that rotates every rotateEvery requests.
type throttle struct {
	policy   JitterPolicy
	requests atomic.Int64
	agentIdx atomic.Int64
}

func newThrottle(policy JitterPolicy) *throttle {
	t := &throttle{policy: policy}
	t.agentIdx.Store(int64(rand.Intn(len(userAgents))))
	return t
}

// wait sleeps a bounded random duration and advances the request counter.
func (t *throttle) wait(bulk bool) {
	n := t.requests.Add(1)
	if n%rotateEvery == 0 {
		t.agentIdx.Store(int64(rand.Intn(len(userAgents))))
	}

	if !t.policy.Enabled {
		return
	}

	min, max := t.policy.DailyMin, t.policy.DailyMax
	if bulk {
		min, max = t.policy.BulkMin, t.policy.BulkMax
	}
	if max <= min {
		time.Sleep(min)
		return
	}
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}

func (t *throttle) userAgent() string {
	return userAgents[t.agentIdx.Load()%int64(len(userAgents))]
}

func (t *throttle) requestCount() int64 {
	return t.requests.Load()
}
