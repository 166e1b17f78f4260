package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/farescout/config"
	"github.com/use-agent/farescout/models"
)

const (
	bucketIdleTTL    = time.Hour
	bucketSweepEvery = 5 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds one token bucket per caller identity.
type buckets struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	m     map[string]*bucket
}

func newBuckets(cfg config.RateLimitConfig) *buckets {
	return &buckets{
		limit: rate.Limit(cfg.RequestsPerSecond),
		burst: cfg.Burst,
		m:     make(map[string]*bucket),
	}
}

// reserve takes a token for identity. It returns zero when the request may
// proceed, otherwise how long the caller should wait.
func (b *buckets) reserve(identity string, now time.Time) time.Duration {
	b.mu.Lock()
	bk, ok := b.m[identity]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.m[identity] = bk
	}
	bk.lastSeen = now
	b.mu.Unlock()

	r := bk.limiter.ReserveN(now, 1)
	if !r.OK() {
		return bucketSweepEvery
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
	}
	return delay
}

func (b *buckets) sweep(cutoff time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, bk := range b.m {
		if bk.lastSeen.Before(cutoff) {
			delete(b.m, id)
		}
	}
}

// RateLimit returns token-bucket rate limiting middleware keyed by the API
// key set by Auth, or by client IP when auth is open. Idle buckets are
// dropped after an hour.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	b := newBuckets(cfg)

	go func() {
		ticker := time.NewTicker(bucketSweepEvery)
		defer ticker.Stop()
		for now := range ticker.C {
			b.sweep(now.Add(-bucketIdleTTL))
		}
	}()

	return func(c *gin.Context) {
		identity := c.GetString(APIKeyContextKey)
		if identity == "" {
			identity = "ip:" + c.ClientIP()
		}

		if wait := b.reserve(identity, time.Now()); wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.NewErrorResponse(
				models.ErrCodeRateLimited, "rate limit exceeded, please slow down",
			))
			return
		}
		c.Next()
	}
}
