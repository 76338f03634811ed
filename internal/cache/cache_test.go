package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"htmlstat/pkg/types"
)

type countingSource struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (s *countingSource) Analyze(ctx context.Context, rawURL string) (*types.AnalysisResult, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &types.AnalysisResult{FilesAnalyzed: 1}, nil
}

func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemory(30 * time.Millisecond)
	ctx := context.Background()
	result := &types.AnalysisResult{FilesAnalyzed: 2}

	if err := store.Set(ctx, "k", result); err != nil {
		t.Fatal(err)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.FilesAnalyzed != 2 {
		t.Errorf("files_analyzed = %d", got.FilesAnalyzed)
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("entry should have expired")
	}
}

func TestAnalyzerServesFromStore(t *testing.T) {
	source := &countingSource{}
	analyzer := NewAnalyzer(source, NewMemory(time.Minute), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := analyzer.Analyze(ctx, "https://example.com/"); err != nil {
			t.Fatal(err)
		}
	}
	if source.calls.Load() != 1 {
		t.Errorf("source called %d times, want 1", source.calls.Load())
	}
}

func TestAnalyzerSingleFlight(t *testing.T) {
	source := &countingSource{delay: 30 * time.Millisecond}
	analyzer := NewAnalyzer(source, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := analyzer.Analyze(ctx, "https://example.com/"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if source.calls.Load() != 1 {
		t.Errorf("concurrent callers triggered %d computations, want 1", source.calls.Load())
	}
}

func TestAnalyzerSurvivesFirstCallerCancel(t *testing.T) {
	source := &countingSource{delay: 100 * time.Millisecond}
	analyzer := NewAnalyzer(source, nil, nil)

	ctx1, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := analyzer.Analyze(ctx1, "https://example.com/")
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := analyzer.Analyze(context.Background(), "https://example.com/")
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller: got %v, want context.Canceled", err)
	}
	if err := <-second; err != nil {
		t.Errorf("second caller should still get the result: %v", err)
	}
	if source.calls.Load() != 1 {
		t.Errorf("source called %d times, want 1", source.calls.Load())
	}
}

func TestAnalyzerErrorsNotCached(t *testing.T) {
	source := &countingSource{err: errors.New("upstream down")}
	analyzer := NewAnalyzer(source, NewMemory(time.Minute), nil)
	ctx := context.Background()

	if _, err := analyzer.Analyze(ctx, "k"); err == nil {
		t.Fatal("expected error")
	}
	source.err = nil
	if _, err := analyzer.Analyze(ctx, "k"); err != nil {
		t.Fatalf("second attempt should recompute: %v", err)
	}
	if source.calls.Load() != 2 {
		t.Errorf("source called %d times, want 2", source.calls.Load())
	}
}
