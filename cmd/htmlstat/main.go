// Command htmlstat analyzes the tag structure of a web page or a local file
// and prints the report to stdout or a file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"htmlstat/internal/analyzer"
	"htmlstat/internal/config"
	"htmlstat/internal/fetcher"
	"htmlstat/internal/render"
	"htmlstat/internal/resolver"
	"htmlstat/internal/robots"
	"htmlstat/pkg/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	targetURL := flag.String("url", "", "target URL to analyze")
	filePath := flag.String("file", "", "local file to analyze instead of a URL")
	formatName := flag.String("format", "tree", "output format: tree, flat, json, csv, graph, xlsx")
	outPath := flag.String("o", "", "write output to a file instead of stdout")
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	if (*targetURL == "") == (*filePath == "") {
		return errors.New("exactly one of -url or -file is required")
	}

	format, err := render.ParseFormat(*formatName)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *types.AnalysisResult
	if *filePath != "" {
		result, err = analyzeFile(cfg, *filePath)
	} else {
		result, err = analyzeURL(ctx, cfg, *targetURL)
	}
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		fh, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer fh.Close()
		out = fh
	}
	return render.Render(out, result, format)
}

// analyzeFile streams a local file through the tokenizer so even very large
// documents need no in-memory tree.
func analyzeFile(cfg config.Config, path string) (*types.AnalysisResult, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	agg := &analyzer.Aggregator{TopValues: cfg.Analyze.TopValues}
	result := agg.New()
	if err := agg.FoldStream(result, fh); err != nil {
		return nil, err
	}
	return result, nil
}

func analyzeURL(ctx context.Context, cfg config.Config, rawURL string) (*types.AnalysisResult, error) {
	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Headers:      cfg.Fetch.Headers,
		Timeout:      cfg.Fetch.RequestTimeout.Duration,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		ProxyURL:     cfg.Fetch.ProxyURL,
	})
	if err != nil {
		return nil, err
	}
	robotsAgent := robots.NewAgent(cfg.Robots, httpFetcher.Client())
	engine := resolver.New(cfg.Crawl, cfg.Analyze, httpFetcher, robotsAgent, slog.Default())
	return engine.Analyze(ctx, rawURL)
}
