// Package resolver turns one analysis request into the set of documents that
// get fetched, parsed, and folded into a single aggregate. The fold itself is
// strictly sequential under a mutex; only fetching and parsing run
// concurrently.
package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"htmlstat/internal/analyzer"
	"htmlstat/internal/config"
	"htmlstat/internal/fetcher"
	"htmlstat/internal/parser"
	"htmlstat/pkg/types"
)

// ErrNoResources reports that every resource in the request's set failed.
var ErrNoResources = errors.New("no resources analyzed")

// RobotsPolicy decides whether a discovered link may be fetched. The
// user-supplied seed URL is never subject to it.
type RobotsPolicy interface {
	Allowed(ctx context.Context, u *url.URL) bool
}

// Resolver resolves and analyzes the resource set for one target URL.
type Resolver struct {
	cfg     config.CrawlConfig
	agg     *analyzer.Aggregator
	fetcher fetcher.Fetcher
	robots  RobotsPolicy
	limiter *hostLimiter
	logger  *slog.Logger
}

// New builds a resolver. robots may be nil, in which case discovered links
// are always fetched.
func New(cfg config.CrawlConfig, analyze config.AnalyzeConfig, f fetcher.Fetcher, robots RobotsPolicy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		cfg:     cfg,
		agg:     &analyzer.Aggregator{TopValues: analyze.TopValues},
		fetcher: f,
		robots:  robots,
		limiter: newHostLimiter(cfg.PerHostDelay.Duration, cfg.RateLimit),
		logger:  logger,
	}
}

// ParseTarget validates and normalizes a raw target URL. The fragment is
// dropped so equivalent targets share one cache key.
func ParseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty url", fetcher.ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fetcher.ErrInvalidURL, err)
	}
	if err := fetcher.ValidateURL(u); err != nil {
		return nil, err
	}
	u.Fragment = ""
	return u, nil
}

type run struct {
	mu        sync.Mutex
	visited   map[string]struct{}
	attempted int
	succeeded int
	lastErr   error
	result    *types.AnalysisResult
	wg        sync.WaitGroup
}

// reserve marks u as visited and claims one fetch slot. It reports false when
// u was already seen or the resource budget is spent.
func (s *run) reserve(u *url.URL, budget int) bool {
	key := u.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.visited[key]; seen {
		return false
	}
	if s.attempted >= budget {
		return false
	}
	s.visited[key] = struct{}{}
	s.attempted++
	return true
}

func (s *run) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Analyze fetches the resource set rooted at rawURL and returns the combined
// aggregate. Per-resource failures are skipped; the request fails only when
// nothing at all could be analyzed.
func (r *Resolver) Analyze(ctx context.Context, rawURL string) (*types.AnalysisResult, error) {
	seed, err := ParseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	state := &run{
		visited: map[string]struct{}{seed.String(): {}},
		result:  r.agg.New(),
	}
	state.attempted = 1

	if r.cfg.Policy != config.PolicyCrawl {
		r.process(ctx, state, nil, seed, 0)
		return r.finish(state)
	}

	pool, err := newWorkerPool(ctx, r.cfg.Concurrency, r.cfg.MaxResources)
	if err != nil {
		return nil, err
	}
	defer pool.close()

	r.process(ctx, state, pool, seed, 0)
	state.wg.Wait()
	return r.finish(state)
}

func (r *Resolver) finish(state *run) (*types.AnalysisResult, error) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.succeeded == 0 {
		if state.lastErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoResources, state.lastErr)
		}
		return nil, ErrNoResources
	}
	return state.result, nil
}

// process fetches, parses, and folds one document, then schedules its links.
// depth counts link hops from the seed.
func (r *Resolver) process(ctx context.Context, state *run, pool *workerPool, u *url.URL, depth int) {
	if ctx.Err() != nil {
		return
	}
	if depth > 0 && r.robots != nil && !r.robots.Allowed(ctx, u) {
		r.logger.Debug("link blocked by robots", "url", u.String())
		return
	}

	body, err := r.fetchDocument(ctx, u)
	if err != nil {
		state.fail(err)
		r.logger.Warn("fetch failed", "url", u.String(), "error", err)
		return
	}
	root, err := parser.Parse(body)
	if err != nil {
		state.fail(err)
		r.logger.Warn("parse failed", "url", u.String(), "error", err)
		return
	}

	state.mu.Lock()
	r.agg.Fold(state.result, root)
	state.succeeded++
	state.mu.Unlock()

	if pool == nil || depth >= r.cfg.MaxLinkDepth {
		return
	}
	for _, link := range extractLinks(u, body, r.cfg.MaxLinksPerPage) {
		if !state.reserve(link, r.cfg.MaxResources) {
			continue
		}
		link := link
		state.wg.Add(1)
		err := pool.submit(ctx, func(jobCtx context.Context) {
			defer state.wg.Done()
			r.process(jobCtx, state, pool, link, depth+1)
		})
		if err != nil {
			state.wg.Done()
			return
		}
	}
}

// fetchDocument applies politeness and retries a transient failure once.
func (r *Resolver) fetchDocument(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := r.limiter.wait(ctx, u.Host); err != nil {
		return nil, err
	}
	body, err := r.fetcher.Fetch(ctx, u)
	if err != nil && r.cfg.RetryTransient && isTransient(err) && ctx.Err() == nil {
		r.logger.Debug("retrying transient failure", "url", u.String(), "error", err)
		body, err = r.fetcher.Fetch(ctx, u)
	}
	return body, err
}

func isTransient(err error) bool {
	return errors.Is(err, fetcher.ErrTimeout) || errors.Is(err, fetcher.ErrNetwork)
}

// extractLinks pulls same-origin anchor targets out of body, deduplicated and
// capped at limit. Fragments are stripped before comparison.
func extractLinks(base *url.URL, body []byte, limit int) []*url.URL {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var links []*url.URL
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		lower := strings.ToLower(href)
		for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
			if strings.HasPrefix(lower, scheme) {
				return true
			}
		}
		u, err := base.Parse(href)
		if err != nil {
			return true
		}
		u.Fragment = ""
		if u.Scheme != base.Scheme || u.Host != base.Host {
			return true
		}
		key := u.String()
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		links = append(links, u)
		return limit <= 0 || len(links) < limit
	})
	return links
}
