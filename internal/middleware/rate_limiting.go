package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/2beens/exercisetracker/internal/telemetry/metrics"
	"github.com/2beens/exercisetracker/pkg"
)

type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, perMin int) (RateLimitResult, error)
}

// RedisRateLimiter shares limits across all service instances using the same redis.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
}

func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string, perMin int) (RateLimitResult, error) {
	res, err := l.limiter.Allow(ctx, key, redis_rate.PerMinute(perMin))
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("redis rate allow: %w", err)
	}
	return RateLimitResult{
		Allowed:    res.Allowed > 0,
		RetryAfter: res.RetryAfter,
	}, nil
}

const (
	DefaultLimiterCleanupInterval = 5 * time.Minute
	// limits are per minute, a bucket is full again after a minute of no use
	minLimiterCleanupInterval = time.Minute
)

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// InMemoryRateLimiter is used when no redis is configured. Limits are per process.
// Limiters idle for twice the cleanup interval are dropped on the next sweep.
type InMemoryRateLimiter struct {
	mutex           sync.Mutex
	limiters        map[string]*clientLimiter
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

func NewInMemoryRateLimiter(cleanupInterval time.Duration) *InMemoryRateLimiter {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultLimiterCleanupInterval
	}
	if cleanupInterval < minLimiterCleanupInterval {
		cleanupInterval = minLimiterCleanupInterval
	}
	return &InMemoryRateLimiter{
		limiters:        make(map[string]*clientLimiter),
		cleanupInterval: cleanupInterval,
		lastCleanup:     time.Now(),
		now:             time.Now,
	}
}

func (l *InMemoryRateLimiter) Allow(_ context.Context, key string, perMin int) (RateLimitResult, error) {
	if perMin <= 0 {
		return RateLimitResult{Allowed: true}, nil
	}

	now := l.now()

	l.mutex.Lock()
	if now.Sub(l.lastCleanup) >= l.cleanupInterval {
		l.cleanup(now)
	}
	cl, ok := l.limiters[key]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		}
		l.limiters[key] = cl
	}
	cl.lastAccess = now
	l.mutex.Unlock()

	reservation := cl.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return RateLimitResult{RetryAfter: time.Minute}, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return RateLimitResult{RetryAfter: delay}, nil
	}
	return RateLimitResult{Allowed: true}, nil
}

// cleanup removes limiters not used for twice the cleanup interval. A limiter idle that
// long has refilled its bucket, so dropping it changes no outcome. Caller holds the mutex.
func (l *InMemoryRateLimiter) cleanup(now time.Time) {
	ttl := l.cleanupInterval * 2
	for key, cl := range l.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(l.limiters, key)
		}
	}
	l.lastCleanup = now
}

func (l *InMemoryRateLimiter) size() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.limiters)
}

// RateLimit limits requests on a route per client address.
func RateLimit(
	rateLimiter RequestRateLimiter,
	routeName string,
	allowedPerMin int,
	metricsManager *metrics.Manager,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := routeName + ":" + pkg.ReadUserIP(r)
			res, err := rateLimiter.Allow(r.Context(), key, allowedPerMin)
			if err != nil {
				log.Errorf("rate limit [%s]: %s", key, err)
				pkg.WriteJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			if res.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if metricsManager != nil {
				metricsManager.CounterRateLimitedRequests.Inc()
			}
			retryAfterSec := int(math.Ceil(res.RetryAfter.Seconds()))
			if retryAfterSec < 1 {
				retryAfterSec = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
			pkg.WriteJSONError(
				w,
				http.StatusTooManyRequests,
				fmt.Sprintf("too many requests, retry after %d seconds", retryAfterSec),
			)
		})
	}
}
