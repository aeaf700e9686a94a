package server

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kbqa-dev/kbqa-go/internal/logging"
)

// defaultRateLimit is the sustained requests-per-second allowed per client on
// the query endpoints when no explicit limit is configured. Every query fans
// out to an embedding call plus a metered generation call, so the ceiling is
// deliberately low.
const defaultRateLimit = 10

// defaultRateBurst is the per-client burst when no explicit burst is
// configured. It absorbs a user pasting a handful of questions in quick
// succession without tripping the limit.
const defaultRateBurst = 20

// limiterTTL is how long an idle client's bucket is kept before eviction.
const limiterTTL = 5 * time.Minute

// evictInterval is how often the eviction sweep runs.
const evictInterval = time.Minute

// clientBucket pairs a token bucket with the time its client was last seen,
// so idle buckets can be swept from the map.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles requests per client IP with a token bucket each.
// Buckets for idle clients are swept periodically to bound memory.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	// rps is the sustained query rate allowed per client.
	rps rate.Limit
	// burst is the instantaneous allowance per client.
	burst int
	log   *slog.Logger
}

// newRateLimiter builds a rateLimiter and starts its eviction sweep. The
// returned stop function terminates the sweep goroutine on server shutdown.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets: make(map[string]*clientBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		log:     log,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	return rl, func() { close(stopCh) }
}

// getLimiter returns the bucket for ip, creating it on first sight and
// refreshing its last-seen time.
func (rl *rateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

// evict drops buckets whose clients have been idle longer than limiterTTL.
func (rl *rateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-limiterTTL)
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// middleware rejects over-limit requests with 429 and a Retry-After header
// before the question ever reaches the retrieval pipeline.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		limiter := rl.getLimiter(ip)

		if !limiter.Allow() {
			log := logging.FromContext(r.Context())
			log.Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the remote IP from the request, stripping the port.
// X-Forwarded-For is ignored: kbqa serves directly, not behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
