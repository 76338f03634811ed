// Package robots answers whether a discovered link may be fetched. Rules are
// cached per host with a TTL; errors while fetching or parsing robots.txt
// fail open.
package robots

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"htmlstat/internal/config"
)

// Agent evaluates robots.txt rules with caching and host overrides.
type Agent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	respect   bool

	mu        sync.RWMutex
	cache     map[string]cacheEntry
	overrides map[string]struct{}
}

type cacheEntry struct {
	fetched time.Time
	rules   *robotstxt.RobotsData
}

// NewAgent constructs a robots agent. client is shared with the fetcher so
// robots requests reuse its transport; nil falls back to a short-lived one.
func NewAgent(cfg config.RobotsConfig, client *http.Client) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.CacheTTL.Duration
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	overrides := make(map[string]struct{}, len(cfg.Overrides))
	for _, host := range cfg.Overrides {
		overrides[host] = struct{}{}
	}
	return &Agent{
		client:    client,
		userAgent: cfg.UserAgent,
		ttl:       ttl,
		respect:   cfg.Respect,
		cache:     make(map[string]cacheEntry),
		overrides: overrides,
	}
}

// Allowed reports whether target may be fetched under its host's robots.txt.
func (a *Agent) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || !target.IsAbs() {
		return false
	}
	if !a.respect {
		return true
	}
	if _, ok := a.overrides[strings.ToLower(target.Hostname())]; ok {
		return true
	}

	rules := a.rules(ctx, target)
	if rules == nil {
		return true
	}
	return rules.TestAgent(target.Path, a.userAgent)
}

// rules returns the cached rules for the target's host, fetching them on a
// miss. nil means fail open; failures are cached with the same TTL so a
// broken host is not probed once per discovered link.
func (a *Agent) rules(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := strings.ToLower(target.Host)

	a.mu.RLock()
	entry, ok := a.cache[host]
	a.mu.RUnlock()
	if ok && time.Since(entry.fetched) < a.ttl {
		return entry.rules
	}

	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return a.store(host, nil)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		// A cancelled request says nothing about the host.
		if ctx.Err() != nil {
			return nil
		}
		return a.store(host, nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return a.store(host, nil)
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return a.store(host, nil)
	}
	return a.store(host, data)
}

func (a *Agent) store(host string, rules *robotstxt.RobotsData) *robotstxt.RobotsData {
	a.mu.Lock()
	a.cache[host] = cacheEntry{fetched: time.Now(), rules: rules}
	a.mu.Unlock()
	return rules
}
