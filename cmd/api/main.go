// Command api runs the HTML structure analysis HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"htmlstat/internal/api"
	"htmlstat/internal/cache"
	"htmlstat/internal/config"
	"htmlstat/internal/fetcher"
	"htmlstat/internal/resolver"
	"htmlstat/internal/robots"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML configuration file")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Headers:      cfg.Fetch.Headers,
		Timeout:      cfg.Fetch.RequestTimeout.Duration,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		ProxyURL:     cfg.Fetch.ProxyURL,
	})
	if err != nil {
		return err
	}
	robotsAgent := robots.NewAgent(cfg.Robots, httpFetcher.Client())
	engine := resolver.New(cfg.Crawl, cfg.Analyze, httpFetcher, robotsAgent, logger)

	var store cache.Store
	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case config.CacheRedis:
			redisStore, err := cache.NewRedis(ctx, cfg.Cache.Redis, cfg.Cache.TTL.Duration)
			if err != nil {
				return err
			}
			defer redisStore.Close()
			store = redisStore
		default:
			store = cache.NewMemory(cfg.Cache.TTL.Duration)
		}
	}
	// Even without a store the wrapper dedupes concurrent identical requests.
	analyzer := cache.NewAnalyzer(engine, store, logger)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(analyzer, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
