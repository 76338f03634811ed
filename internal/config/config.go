package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Crawl policies accepted by crawl.policy.
const (
	PolicySingle = "single"
	PolicyCrawl  = "crawl"
)

// Cache backends accepted by cache.backend.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config captures the full configuration required to initialise the analysis
// service: the HTTP listener, upstream fetching, the resource set policy, the
// aggregation knobs, and the result cache.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Analyze AnalyzeConfig `yaml:"analyze"`
	Robots  RobotsConfig  `yaml:"robots"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// FetchConfig controls upstream HTTP fetching behaviour.
type FetchConfig struct {
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
	RequestTimeout Duration          `yaml:"request_timeout"`
	MaxBodyBytes   int64             `yaml:"max_body_bytes"`
	ProxyURL       string            `yaml:"proxy_url"`
}

// CrawlConfig decides the set of resources folded into one analysis request.
// Under PolicySingle only the initial document is analyzed; under PolicyCrawl
// same-origin links discovered in the initial document are followed up to
// MaxLinkDepth, never exceeding MaxResources fetches in total.
type CrawlConfig struct {
	Policy          string          `yaml:"policy"`
	MaxResources    int             `yaml:"max_resources"`
	MaxLinkDepth    int             `yaml:"max_link_depth"`
	Concurrency     int             `yaml:"concurrency"`
	MaxLinksPerPage int             `yaml:"max_links_per_page"`
	PerHostDelay    Duration        `yaml:"per_host_delay"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	RetryTransient  bool            `yaml:"retry_transient"`
}

// RateLimitConfig applies a token bucket per host.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// Enabled reports whether per-host rate limiting is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}

// AnalyzeConfig tunes statistics aggregation. TopValues bounds the number of
// distinct values tracked per attribute; zero means unlimited.
type AnalyzeConfig struct {
	TopValues int `yaml:"top_values"`
}

// RobotsConfig configures robots.txt handling for discovered links.
type RobotsConfig struct {
	Respect   bool     `yaml:"respect"`
	UserAgent string   `yaml:"user_agent"`
	Overrides []string `yaml:"overrides"`
	CacheTTL  Duration `yaml:"cache_ttl"`
}

// CacheConfig controls the shared result cache keyed by resolved URL.
type CacheConfig struct {
	Enabled bool        `yaml:"enabled"`
	Backend string      `yaml:"backend"`
	TTL     Duration    `yaml:"ttl"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig describes the Redis connection used when cache.backend is redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Fetch: FetchConfig{
			UserAgent:      "htmlstat-bot/1.0",
			Headers:        map[string]string{},
			RequestTimeout: DurationFrom(10 * time.Second),
			MaxBodyBytes:   6 * 1024 * 1024,
		},
		Crawl: CrawlConfig{
			Policy:          PolicySingle,
			MaxResources:    16,
			MaxLinkDepth:    1,
			Concurrency:     8,
			MaxLinksPerPage: 200,
			PerHostDelay:    DurationFrom(100 * time.Millisecond),
			RetryTransient:  true,
		},
		Analyze: AnalyzeConfig{
			TopValues: 0,
		},
		Robots: RobotsConfig{
			Respect:   true,
			UserAgent: "htmlstat-bot/1.0",
			Overrides: []string{},
			CacheTTL:  DurationFrom(6 * time.Hour),
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: CacheMemory,
			TTL:     DurationFrom(5 * time.Minute),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces required invariants for the service configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return errors.New("fetch.user_agent must be set")
	}
	if c.Fetch.RequestTimeout.Duration <= 0 {
		return errors.New("fetch.request_timeout must be > 0")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	switch c.Crawl.Policy {
	case PolicySingle, PolicyCrawl:
	default:
		return fmt.Errorf("crawl.policy must be %q or %q (got %q)", PolicySingle, PolicyCrawl, c.Crawl.Policy)
	}
	if c.Crawl.MaxResources <= 0 {
		return fmt.Errorf("crawl.max_resources must be > 0 (got %d)", c.Crawl.MaxResources)
	}
	if c.Crawl.MaxLinkDepth < 0 {
		return fmt.Errorf("crawl.max_link_depth must be >= 0 (got %d)", c.Crawl.MaxLinkDepth)
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0 (got %d)", c.Crawl.Concurrency)
	}
	if c.Crawl.RateLimit.Requests < 0 {
		return fmt.Errorf("crawl.rate_limit.requests must be >= 0 (got %d)", c.Crawl.RateLimit.Requests)
	}
	if c.Analyze.TopValues < 0 {
		return fmt.Errorf("analyze.top_values must be >= 0 (got %d)", c.Analyze.TopValues)
	}
	if c.Robots.Respect && strings.TrimSpace(c.Robots.UserAgent) == "" {
		return errors.New("robots.user_agent must be set when robots.respect is true")
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case CacheMemory:
		case CacheRedis:
			if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
				return errors.New("cache.redis.addr must be set when cache.backend is redis")
			}
		default:
			return fmt.Errorf("cache.backend must be %q or %q (got %q)", CacheMemory, CacheRedis, c.Cache.Backend)
		}
		if c.Cache.TTL.Duration <= 0 {
			return errors.New("cache.ttl must be > 0 when cache.enabled is true")
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("unsupported log level %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) normalise() {
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	c.Fetch.ProxyURL = strings.TrimSpace(c.Fetch.ProxyURL)
	c.Crawl.Policy = strings.ToLower(strings.TrimSpace(c.Crawl.Policy))
	c.Robots.UserAgent = strings.TrimSpace(c.Robots.UserAgent)
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Cache.Redis.Addr = strings.TrimSpace(c.Cache.Redis.Addr)

	if len(c.Robots.Overrides) > 0 {
		c.Robots.Overrides = dedupeLower(c.Robots.Overrides)
	}
	if c.Fetch.Headers == nil {
		c.Fetch.Headers = map[string]string{}
	}
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	return cleaned
}
