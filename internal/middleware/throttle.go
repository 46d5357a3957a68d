package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
)

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle keeps a token bucket per caller. Idle entries expire after ttl and
// the map never holds more than maxEntries callers. State is per process.
type Throttle struct {
	mu         sync.Mutex
	entries    map[string]*throttleEntry
	limit      rate.Limit
	burst      int
	ttl        time.Duration
	maxEntries int
	lastSweep  time.Time
	now        func() time.Time
}

func NewThrottle(cfg config.RateLimitConfig) *Throttle {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Throttle{
		entries:    make(map[string]*throttleEntry),
		limit:      rate.Limit(cfg.RequestsPerSecond),
		burst:      cfg.Burst,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Allow reports whether key may make another request now.
func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) >= t.ttl {
		t.evictExpired(now)
		t.lastSweep = now
	}

	entry, ok := t.entries[key]
	if !ok {
		if len(t.entries) >= t.maxEntries {
			t.evictExpired(now)
			if len(t.entries) >= t.maxEntries {
				t.evictOldest()
			}
		}
		entry = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.entries[key] = entry
	}

	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Len is the number of tracked callers.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Throttle) evictExpired(now time.Time) {
	for key, e := range t.entries {
		if now.Sub(e.lastSeen) >= t.ttl {
			delete(t.entries, key)
		}
	}
}

func (t *Throttle) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, e := range t.entries {
		if oldestKey == "" || e.lastSeen.Before(oldest) {
			oldestKey, oldest = key, e.lastSeen
		}
	}
	delete(t.entries, oldestKey)
}

// Middleware throttles per authenticated customer, falling back to client IP.
func (t *Throttle) Middleware(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if identity, ok := IdentityFrom(c); ok {
			key = "customer:" + identity.CustomerID
		}

		if !t.Allow(key) {
			metrics.ThrottledRequests.WithLabelValues(route).Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// ThrottleMiddleware returns a pass-through handler when throttling is disabled.
func ThrottleMiddleware(t *Throttle, enabled bool, route string) gin.HandlerFunc {
	if !enabled || t == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return t.Middleware(route)
}
