package resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"htmlstat/internal/config"
)

// hostLimiter enforces politeness per host: a fixed delay between requests
// plus an optional token bucket.
type hostLimiter struct {
	delay       time.Duration
	rateCfg     config.RateLimitConfig
	rateEnabled bool

	mu       sync.Mutex
	last     map[string]time.Time
	limiters map[string]*rate.Limiter
}

func newHostLimiter(delay time.Duration, rateCfg config.RateLimitConfig) *hostLimiter {
	l := &hostLimiter{delay: delay, rateCfg: rateCfg, rateEnabled: rateCfg.Enabled()}
	if delay > 0 || l.rateEnabled {
		l.last = make(map[string]time.Time)
	}
	if l.rateEnabled {
		l.limiters = make(map[string]*rate.Limiter)
	}
	return l
}

// wait blocks until the host may be contacted again.
func (l *hostLimiter) wait(ctx context.Context, host string) error {
	if l == nil || host == "" {
		return nil
	}
	if l.delay <= 0 && !l.rateEnabled {
		return nil
	}
	host = strings.ToLower(host)

	var sleep time.Duration
	var limiter *rate.Limiter
	now := time.Now()

	l.mu.Lock()
	if l.delay > 0 {
		if last, ok := l.last[host]; ok {
			if rest := last.Add(l.delay).Sub(now); rest > 0 {
				sleep = rest
			}
		}
	}
	if l.rateEnabled {
		limiter = l.limiterLocked(host)
	}
	l.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	l.mu.Lock()
	l.last[host] = time.Now()
	l.mu.Unlock()
	return nil
}

func (l *hostLimiter) limiterLocked(host string) *rate.Limiter {
	if limiter, ok := l.limiters[host]; ok {
		return limiter
	}
	interval := l.rateCfg.Window.Duration / time.Duration(l.rateCfg.Requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(interval), l.rateCfg.Requests)
	l.limiters[host] = limiter
	return limiter
}
