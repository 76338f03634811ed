package cache

import (
	"context"
	"sync"
	"time"

	"htmlstat/pkg/types"
)

// Memory is an in-process Store with TTL eviction. Expired entries are
// dropped lazily on read and whenever a write passes through.
type Memory struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	result  *types.AnalysisResult
	expires time.Time
}

// NewMemory builds a memory store; ttl must be positive.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, key string) (*types.AnalysisResult, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.result, true, nil
}

func (m *Memory) Set(_ context.Context, key string, result *types.AnalysisResult) error {
	now := time.Now()
	m.mu.Lock()
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{result: result, expires: now.Add(m.ttl)}
	m.mu.Unlock()
	return nil
}
