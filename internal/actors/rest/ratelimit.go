package rest

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rbroggi/parcelhub/internal/core/model"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// keyedLimiter keeps one token bucket per key. Idle buckets are swept on access.
type keyedLimiter struct {
	name      string
	limit     rate.Limit
	burst     int
	nowFunc   func() time.Time
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	lastSweep time.Time
}

// newKeyedLimiter allows perMinute requests per key and minute. A non-positive perMinute disables limiting.
func newKeyedLimiter(name string, perMinute int, nowFunc func() time.Time) *keyedLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &keyedLimiter{
		name:     name,
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		nowFunc:  nowFunc,
		limiters: make(map[string]*clientLimiter),
	}
}

func (l *keyedLimiter) allow(key string) bool {
	now := l.nowFunc()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, cl := range l.limiters {
			if now.Sub(cl.lastAccess) > limiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	cl, ok := l.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = cl
	}
	cl.lastAccess = now
	return cl.limiter.AllowN(now, 1)
}

// middleware rejects requests over the limit with 429. keyFunc picks the bucket of a request.
func (l *keyedLimiter) middleware(rs responder, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if l.allow(key) {
				next.ServeHTTP(w, r)
				return
			}
			log.WithFields(log.Fields{"key": key, "limiter": l.name}).Warn("rate limit exceeded")
			retryAfter := int(math.Ceil(1 / float64(l.limit)))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			msg := "Too many requests. Please try again later."
			writeJSON(w, http.StatusTooManyRequests, errorEnvelope{
				Message:      msg,
				ErrorSources: []model.ErrorSource{{Path: "", Message: msg}},
			})
		})
	}
}

// clientIP keys by remote address. RealIP runs first so proxies are honoured.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// principalOrIP keys by authenticated user, falling back to the client address.
func principalOrIP(r *http.Request) string {
	if p, ok := PrincipalFrom(r.Context()); ok {
		return "user:" + p.UserID.String()
	}
	return "ip:" + clientIP(r)
}
