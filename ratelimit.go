package relay

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware. Requests that are
// turned away never bind a pair.
type RateLimitConfig struct {
	Rate            float64                                      `yaml:"rate"`             // requests per second
	Burst           int                                          `yaml:"burst"`            // max burst
	KeyFunc         func(r *http.Request) string                 `yaml:"-"`                // default: remote IP
	OnLimit         func(w http.ResponseWriter, r *http.Request) `yaml:"-"`                // default: 429 response
	CleanupInterval time.Duration                                `yaml:"cleanup_interval"` // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration                                `yaml:"max_idle"`         // remove limiters idle longer than this (default: 5m)
}

// RateLimit returns middleware that applies per-key token-bucket limiting.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = remoteHost
	}
	if cfg.OnLimit == nil {
		cfg.OnLimit = func(w http.ResponseWriter, _ *http.Request) {
			writeProblem(w, problemFor(Error(http.StatusTooManyRequests, "rate limit exceeded")))
		}
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5 * time.Minute
	}

	store := &limiterStore{
		cfg:      cfg,
		limiters: make(map[string]*limiterEntry),
	}
	retryAfter := "1"
	if cfg.Rate > 0 && cfg.Rate < 1 {
		retryAfter = strconv.FormatFloat(1/cfg.Rate, 'f', 0, 64)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.get(cfg.KeyFunc(r), time.Now()).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				cfg.OnLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one limiter per key and lazily prunes idle ones.
type limiterStore struct {
	cfg RateLimitConfig

	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
}

func (ls *limiterStore) get(key string, now time.Time) *rate.Limiter {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if now.Sub(ls.lastCleanup) >= ls.cfg.CleanupInterval {
		for k, e := range ls.limiters {
			if now.Sub(e.lastSeen) > ls.cfg.MaxIdle {
				delete(ls.limiters, k)
			}
		}
		ls.lastCleanup = now
	}

	entry, ok := ls.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(ls.cfg.Rate), ls.cfg.Burst),
		}
		ls.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
