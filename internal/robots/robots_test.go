package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"htmlstat/internal/config"
)

func agentConfig() config.RobotsConfig {
	cfg := config.Default().Robots
	cfg.UserAgent = "htmlstat-bot/1.0"
	return cfg
}

func TestAllowedHonorsDisallow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	agent := NewAgent(agentConfig(), srv.Client())
	ctx := context.Background()

	open, _ := url.Parse(srv.URL + "/public/page")
	if !agent.Allowed(ctx, open) {
		t.Error("allowed path reported as blocked")
	}
	blocked, _ := url.Parse(srv.URL + "/private/page")
	if agent.Allowed(ctx, blocked) {
		t.Error("disallowed path reported as allowed")
	}
}

func TestAllowedFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	agent := NewAgent(agentConfig(), srv.Client())
	u, _ := url.Parse(srv.URL + "/anything")
	if !agent.Allowed(context.Background(), u) {
		t.Error("robots failure should fail open")
	}
}

func TestFailureCached(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	agent := NewAgent(agentConfig(), srv.Client())
	ctx := context.Background()
	for _, path := range []string{"/a", "/b", "/c"} {
		u, _ := url.Parse(srv.URL + path)
		if !agent.Allowed(ctx, u) {
			t.Errorf("%s: should fail open", path)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("failing robots.txt fetched %d times, want 1", hits.Load())
	}
}

func TestRulesCached(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
		}
		w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer srv.Close()

	agent := NewAgent(agentConfig(), srv.Client())
	ctx := context.Background()
	u, _ := url.Parse(srv.URL + "/a")
	agent.Allowed(ctx, u)
	agent.Allowed(ctx, u)
	if hits.Load() != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", hits.Load())
	}
}

func TestRespectDisabled(t *testing.T) {
	cfg := agentConfig()
	cfg.Respect = false
	agent := NewAgent(cfg, nil)
	u, _ := url.Parse("http://nonexistent.invalid/x")
	if !agent.Allowed(context.Background(), u) {
		t.Error("respect=false should allow everything without fetching")
	}
}

func TestOverrideSkipsRules(t *testing.T) {
	cfg := agentConfig()
	cfg.Overrides = []string{"blocked.example"}
	agent := NewAgent(cfg, &http.Client{Transport: failingTransport{}})
	u, _ := url.Parse("http://blocked.example/private/")
	if !agent.Allowed(context.Background(), u) {
		t.Error("override host should bypass robots rules")
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, http.ErrHandlerTimeout
}
