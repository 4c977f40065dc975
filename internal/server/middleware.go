package server

import (
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// UserIDHeader carries the caller identity set by the upstream auth layer
const UserIDHeader = "X-User-ID"

var errMissingIdentity = errors.New("missing " + UserIDHeader + " header")

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next()

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
		"user_id": helpers.CurrentUser(c),
	})
}

// IdentityMiddleware requires the caller identity header and stores it on the context
func IdentityMiddleware(c *gin.Context) {
	userID := c.GetHeader(UserIDHeader)
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, errMissingIdentity, "authentication required")
		return
	}
	c.Set(helpers.UserIDKey, userID)
	c.Next()
}

// bidderIdleTTL is how long a bidder's bucket is kept after its last bid
const bidderIdleTTL = 10 * time.Minute

type bidderBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// BidLimiter hands out a token bucket per bidder. Buckets idle for longer
// than the TTL are swept so the map only holds recently active bidders.
type BidLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bidderBucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewBidLimiter allows perSecond bids per bidder with a burst of burst.
// A non-positive perSecond disables limiting.
func NewBidLimiter(perSecond float64, burst int) *BidLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &BidLimiter{
		buckets: make(map[string]*bidderBucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     bidderIdleTTL,
		now:     time.Now,
	}
	// a bucket is only dropped once it would have refilled, so a swept
	// bidder comes back to the same allowance
	if perSecond > 0 {
		if refill := time.Duration(float64(burst) / perSecond * float64(time.Second)); refill > l.ttl {
			l.ttl = refill
		}
	}
	l.lastSweep = l.now()
	return l
}

// Allow reports whether bidderID may place another bid now
func (l *BidLimiter) Allow(bidderID string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.ttl {
		l.sweep(now)
	}

	b, ok := l.buckets[bidderID]
	if !ok {
		b = &bidderBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[bidderID] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// sweep drops buckets idle for at least the TTL. Callers hold mu.
func (l *BidLimiter) sweep(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.ttl {
			delete(l.buckets, id)
		}
	}
	l.lastSweep = now
}

// Tracked returns the number of bidders currently holding a bucket
func (l *BidLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware rejects bids over the caller's limit with 429
func (l *BidLimiter) Middleware(c *gin.Context) {
	userID := helpers.CurrentUser(c)
	if !l.Allow(userID) {
		utils.Warn("BidLimiter: rate limit exceeded", map[string]any{"user_id": userID, "path": c.Request.URL.Path})
		utils.JSONError(c, http.StatusTooManyRequests, errors.New("rate limit exceeded"), "too many bids, slow down")
		return
	}
	c.Next()
}
