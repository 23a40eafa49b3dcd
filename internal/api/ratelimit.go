package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how often one user may spin.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	// Users caps how many per-user limiters are kept; idle ones expire.
	Users int
	Idle  time.Duration
}

type userLimiter struct {
	cfg      RateLimitConfig
	limiters *expirable.LRU[string, *rate.Limiter]
}

func newUserLimiter(cfg RateLimitConfig) *userLimiter {
	return &userLimiter{
		cfg:      cfg,
		limiters: expirable.NewLRU[string, *rate.Limiter](cfg.Users, nil, cfg.Idle),
	}
}

func (l *userLimiter) allow(userKey string) bool {
	lim, ok := l.limiters.Get(userKey)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.cfg.PerSecond), l.cfg.Burst)
		l.limiters.Add(userKey, lim)
	}

	return lim.Allow()
}

// limitPerUser rejects requests once the {userKey} in the path exceeds its
// budget. A non-positive rate disables limiting.
func (l *userLimiter) limitPerUser(next http.Handler) http.Handler {
	if l.cfg.PerSecond <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.ToLower(strings.TrimSpace(chiParam(r, "userKey")))

		if !l.allow(key) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many spins, slow down")
			return
		}

		next.ServeHTTP(w, r)
	})
}
