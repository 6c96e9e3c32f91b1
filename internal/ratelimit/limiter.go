// Package ratelimit gates the upload path with a per-key fixed window counter.
//
// Counters live in process memory (or in Redis when configured). Losing them on restart
// simply opens a fresh window for every key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/abduss/shopdrop/internal/clock"
	"github.com/abduss/shopdrop/internal/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Limiter decides whether one more event for key fits in the current window.
// Consume never fails; a rejection leaves the counter untouched.
type Limiter interface {
	Consume(ctx context.Context, key string) bool
}

// Memory is an in-process fixed window limiter.
type Memory struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	windows *expirable.LRU[string, *rateWindow]
}

type rateWindow struct {
	mu    sync.Mutex
	count int
	start time.Time
}

// NewMemory allows limit events per key per window.
func NewMemory(limit int, window time.Duration, clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.Real{}
	}
	// An idle window is evicted after two window lengths without traffic, by which
	// point it has elapsed anyway. Size 0 disables LRU eviction.
	return &Memory{
		limit:   limit,
		window:  window,
		clock:   clk,
		windows: expirable.NewLRU[string, *rateWindow](0, nil, 2*window),
	}
}

// Consume admits the event if the key still has capacity in its window.
func (m *Memory) Consume(_ context.Context, key string) bool {
	w := m.lookup(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := m.clock.Now()
	if now.Sub(w.start) >= m.window {
		w.start = now
		w.count = 0
	}
	if w.count >= m.limit {
		metrics.RateLimitDecisions.WithLabelValues("rejected").Inc()
		return false
	}
	w.count++
	metrics.RateLimitDecisions.WithLabelValues("accepted").Inc()
	return true
}

// Keys reports how many windows are currently tracked.
func (m *Memory) Keys() int {
	return m.windows.Len()
}

func (m *Memory) lookup(key string) *rateWindow {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.windows.Get(key); ok {
		// re-adding renews the idle deadline
		m.windows.Add(key, w)
		return w
	}
	w := &rateWindow{start: m.clock.Now()}
	m.windows.Add(key, w)
	return w
}
