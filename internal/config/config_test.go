package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Crawl.Policy != PolicySingle {
		t.Fatalf("expected default policy %q, got %q", PolicySingle, cfg.Crawl.Policy)
	}
	if cfg.Cache.Backend != CacheMemory {
		t.Fatalf("expected default cache backend %q, got %q", CacheMemory, cfg.Cache.Backend)
	}
}

func TestLoadFromReaderMergesOverDefaults(t *testing.T) {
	raw := `
server:
  addr: ":9090"
fetch:
  request_timeout: 3s
crawl:
  policy: crawl
  max_resources: 4
analyze:
  top_values: 10
cache:
  backend: redis
  redis:
    addr: "localhost:6379"
`
	cfg, err := LoadFromReader(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Fetch.RequestTimeout.Duration != 3*time.Second {
		t.Errorf("request_timeout = %v", cfg.Fetch.RequestTimeout.Duration)
	}
	if cfg.Crawl.Policy != PolicyCrawl {
		t.Errorf("policy = %q", cfg.Crawl.Policy)
	}
	if cfg.Crawl.MaxResources != 4 {
		t.Errorf("max_resources = %d", cfg.Crawl.MaxResources)
	}
	if cfg.Analyze.TopValues != 10 {
		t.Errorf("top_values = %d", cfg.Analyze.TopValues)
	}
	if cfg.Cache.Backend != CacheRedis || cfg.Cache.Redis.Addr != "localhost:6379" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	// untouched sections keep defaults
	if cfg.Fetch.UserAgent != "htmlstat-bot/1.0" {
		t.Errorf("user_agent = %q", cfg.Fetch.UserAgent)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("serverr:\n  addr: ':1'\n")); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":        func(c *Config) { c.Server.Addr = "" },
		"zero timeout":      func(c *Config) { c.Fetch.RequestTimeout = Duration{} },
		"bad policy":        func(c *Config) { c.Crawl.Policy = "mirror" },
		"zero resources":    func(c *Config) { c.Crawl.MaxResources = 0 },
		"negative values":   func(c *Config) { c.Analyze.TopValues = -1 },
		"bad cache backend": func(c *Config) { c.Cache.Backend = "disk" },
		"redis no addr":     func(c *Config) { c.Cache.Backend = CacheRedis; c.Cache.Redis.Addr = "" },
		"bad log level":     func(c *Config) { c.Logging.Level = "loud" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestDurationYAMLForms(t *testing.T) {
	raw := `
fetch:
  request_timeout: 2
crawl:
  per_host_delay: 250ms
`
	cfg, err := LoadFromReader(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Fetch.RequestTimeout.Duration != 2*time.Second {
		t.Errorf("numeric seconds: got %v", cfg.Fetch.RequestTimeout.Duration)
	}
	if cfg.Crawl.PerHostDelay.Duration != 250*time.Millisecond {
		t.Errorf("string duration: got %v", cfg.Crawl.PerHostDelay.Duration)
	}
}
