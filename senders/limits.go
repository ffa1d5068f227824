package senders

import (
	"sync"
	"time"

	"tgbridge/config"

	"go.uber.org/fx"
	"golang.org/x/time/rate"
)

// LimiterRegistry hands out one token bucket per webhook URL. Discord enforces
// roughly 30 requests/minute per webhook with short 5-per-2s bursts; the
// defaults sit below both. Acquisition blocks until a token is available, it
// never drops or rejects.
type LimiterRegistry struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func NewLimiterRegistry(lc fx.Lifecycle, cfg *config.Config) *LimiterRegistry {
	perMin := cfg.Discord.RatePerMin
	if perMin <= 0 {
		perMin = 25
	}
	burst := cfg.Discord.RateBurst
	if burst <= 0 {
		burst = 4
	}
	return &LimiterRegistry{
		limit:   rate.Every(time.Duration(float64(time.Minute) / perMin)),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (r *LimiterRegistry) Get(webhookURL string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	lim, ok := r.buckets[webhookURL]
	if !ok {
		lim = rate.NewLimiter(r.limit, r.burst)
		r.buckets[webhookURL] = lim
	}
	return lim
}
