package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scrapesome/scrapesome/config"
	"github.com/scrapesome/scrapesome/models"
	"golang.org/x/time/rate"
)

const (
	// bucketIdleMax is how long a caller's bucket survives without traffic.
	bucketIdleMax = time.Hour

	// pruneEvery bounds how often idle buckets are swept.
	pruneEvery = 10 * time.Minute
)

// limiterPool hands out one token bucket per caller identity. Idle buckets
// are pruned inline during allow, at most once per pruneEvery, so the pool
// needs no background goroutine.
type limiterPool struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rps       rate.Limit
	burst     int
	lastPrune time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func (p *limiterPool) allow(id string) bool {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.lastPrune) > pruneEvery {
		for k, b := range p.buckets {
			if now.Sub(b.seen) > bucketIdleMax {
				delete(p.buckets, k)
			}
		}
		p.lastPrune = now
	}

	b, ok := p.buckets[id]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(p.rps, p.burst)}
		p.buckets[id] = b
	}
	b.seen = now
	return b.lim.Allow()
}

// RateLimit applies a per-caller token bucket: authenticated callers are
// bucketed by API key, anonymous ones by client IP.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	pool := &limiterPool{
		buckets:   make(map[string]*bucket),
		rps:       rate.Limit(cfg.RequestsPerSecond),
		burst:     cfg.Burst,
		lastPrune: time.Now(),
	}

	return func(c *gin.Context) {
		id := clientKey(c)
		if id == "" {
			id = c.ClientIP()
		}

		if !pool.allow(id) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.FetchResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded",
				},
			})
			return
		}
		c.Next()
	}
}
