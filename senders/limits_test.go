package senders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"golang.org/x/time/rate"
)

func newTestLimiters(perMin float64, burst int) *LimiterRegistry {
	return &LimiterRegistry{
		limit:   rate.Every(time.Duration(float64(time.Minute) / perMin)),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func TestLimiterRegistryOnePerURL(t *testing.T) {
	r := newTestLimiters(25, 4)

	a := r.Get("https://discord.test/a")
	b := r.Get("https://discord.test/b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, r.Get("https://discord.test/a"))
}

func TestLimiterBurstThenThrottle(t *testing.T) {
	r := newTestLimiters(25, 4)
	lim := r.Get("https://discord.test/a")

	for i := 0; i < 4; i++ {
		assert.True(t, lim.Allow(), "burst token %d", i)
	}
	assert.False(t, lim.Allow())

	// A different webhook has its own untouched bucket.
	assert.True(t, r.Get("https://discord.test/b").Allow())
}
