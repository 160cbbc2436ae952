package v1

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/internal/profile"
	"github.com/queryon/queryon/server/auth"
)

// adminOnly rejects requests whose X-Admin-Key does not match the configured
// operator key.
func (s *APIV1Service) adminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := auth.Check(s.Profile.AdminAPIKey, c.Request().Header.Get(auth.KeyHeader)); err != nil {
			return respondError(c, err)
		}
		return next(c)
	}
}

// rateLimit applies the per-client chat limit. Channel webhooks share the
// same budget so a flood on one platform cannot starve the others.
func (s *APIV1Service) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.chatLimiter.allow(c.RealIP()) {
			return respondError(c, errs.New(errs.KindRateLimit, "rate limit exceeded"))
		}
		return next(c)
	}
}

const (
	limiterEntryTTL        = 15 * time.Minute
	limiterCleanupInterval = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client key and evicts buckets
// idle longer than the TTL during periodic sweeps.
type clientLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	entries     map[string]*limiterEntry
	lastCleanup time.Time
}

// newClientLimiterFromSpec builds a limiter from a "count/window" spec such
// as "30/minute".
func newClientLimiterFromSpec(spec string) (*clientLimiter, error) {
	count, window, err := profile.ParseRateLimit(spec)
	if err != nil {
		return nil, err
	}
	return &clientLimiter{
		limit:       rate.Every(window / time.Duration(count)),
		burst:       count,
		entries:     make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
	}, nil
}

func (l *clientLimiter) allow(key string) bool {
	if l == nil || key == "" {
		return true
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) >= limiterCleanupInterval {
		for k, entry := range l.entries {
			if now.Sub(entry.lastSeen) > limiterEntryTTL {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter.Allow()
}
