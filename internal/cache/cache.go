// Package cache provides the shared result cache keyed by resolved target
// URL. Entries are immutable once published; concurrent requests for the same
// key share a single computation.
package cache

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"htmlstat/pkg/types"
)

// Store is a TTL'd key/value store for finished aggregates.
type Store interface {
	Get(ctx context.Context, key string) (*types.AnalysisResult, bool, error)
	Set(ctx context.Context, key string, result *types.AnalysisResult) error
}

// Source computes an aggregate when the cache cannot serve it.
type Source interface {
	Analyze(ctx context.Context, rawURL string) (*types.AnalysisResult, error)
}

// Analyzer wraps a Source with a Store and single-flight deduplication.
// A nil store disables caching but keeps the deduplication.
type Analyzer struct {
	source Source
	store  Store
	group  singleflight.Group
	logger *slog.Logger
}

// NewAnalyzer builds the caching wrapper.
func NewAnalyzer(source Source, store Store, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{source: source, store: store, logger: logger}
}

// Analyze returns the cached aggregate for key, computing it at most once
// across concurrent callers. The computation runs detached from the caller's
// context so one caller disconnecting does not fail everyone sharing the
// flight; each caller still honors its own cancellation. Store errors
// degrade to a recompute, never to a request failure.
func (a *Analyzer) Analyze(ctx context.Context, key string) (*types.AnalysisResult, error) {
	ch := a.group.DoChan(key, func() (any, error) {
		return a.analyze(context.WithoutCancel(ctx), key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.AnalysisResult), nil
	}
}

func (a *Analyzer) analyze(ctx context.Context, key string) (*types.AnalysisResult, error) {
	if a.store != nil {
		cached, ok, err := a.store.Get(ctx, key)
		if err != nil {
			a.logger.Warn("cache read failed", "key", key, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	result, err := a.source.Analyze(ctx, key)
	if err != nil {
		return nil, err
	}
	if a.store != nil {
		if err := a.store.Set(ctx, key, result); err != nil {
			a.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return result, nil
}
