package middleware

import (
    "net/http"
    "strconv"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "golang.org/x/time/rate"

    "github.com/iliyamo/seatd/internal/config"
)

// localLimiter is the in-process token bucket used when Redis is not
// available.  Limits then apply per instance instead of cluster wide.
type localLimiter struct {
    mu        sync.Mutex
    limiters  map[string]*limiterEntry
    rate      rate.Limit
    burst     int
    ttl       time.Duration
    lastSweep time.Time
}

type limiterEntry struct {
    limiter    *rate.Limiter
    lastAccess time.Time
}

func newLocalLimiter(cfg config.RateLimitConfig) *localLimiter {
    return &localLimiter{
        limiters:  make(map[string]*limiterEntry),
        rate:      rate.Every(cfg.RefillInterval / time.Duration(cfg.RefillTokens)),
        burst:     cfg.Capacity,
        ttl:       cfg.TTL,
        lastSweep: time.Now(),
    }
}

// allow reports whether key may proceed, the tokens left and the wait
// until the next token.
func (l *localLimiter) allow(key string, now time.Time) (bool, int, time.Duration) {
    l.mu.Lock()
    defer l.mu.Unlock()

    if now.Sub(l.lastSweep) > l.ttl {
        for k, e := range l.limiters {
            if now.Sub(e.lastAccess) > l.ttl {
                delete(l.limiters, k)
            }
        }
        l.lastSweep = now
    }

    e, ok := l.limiters[key]
    if !ok {
        e = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
        l.limiters[key] = e
    }
    e.lastAccess = now

    r := e.limiter.ReserveN(now, 1)
    if delay := r.DelayFrom(now); delay > 0 {
        r.CancelAt(now)
        return false, 0, delay
    }
    return true, int(e.limiter.TokensAt(now)), 0
}

func localRateLimit(cfg config.RateLimitConfig) echo.MiddlewareFunc {
    l := newLocalLimiter(cfg)
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ok, remaining, wait := l.allow(buildRateKey(cfg, c), time.Now())
            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
            if !ok {
                secs := int((wait + time.Second - 1) / time.Second)
                h.Set("Retry-After", strconv.Itoa(secs))
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}
