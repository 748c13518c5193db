package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

type memoryBackend struct {
	mu   sync.Mutex
	data map[string]string
	err  error
	gets atomic.Int64
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]string)}
}

func (m *memoryBackend) Get(_ context.Context, key string) (string, error) {
	m.gets.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.ErrNil
	}
	return v, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memoryBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

var tok = tokenizer.New(tokenizer.Options{})

func sample(query string) *executor.SearchResult {
	return &executor.SearchResult{
		Query:     query,
		TotalHits: 2,
		Results:   []ranker.ScoredDoc{{DocID: 2, Score: 0.19363}, {DocID: 1, Score: 0.17225}},
		TermStats: map[string]int{"the": 2},
	}
}

func TestGetOrCompute(t *testing.T) {
	backend := newMemoryBackend()
	c := New(backend, time.Minute, nil)
	ctx := context.Background()
	plan := parser.Plain(tok, "the")

	computed := 0
	compute := func() (*executor.SearchResult, error) {
		computed++
		return sample("the"), nil
	}

	first, hit, err := c.GetOrCompute(ctx, plan, 10, Version{Epoch: "a", Generation: 1}, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := c.GetOrCompute(ctx, parser.Plain(tok, "THE"), 10, Version{Epoch: "a", Generation: 1}, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, computed)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, "THE", second.Query)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestVersionChangeMisses(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	ctx := context.Background()
	plan := parser.Plain(tok, "fox")
	v := Version{Epoch: "run-1", Generation: 1}
	c.Set(ctx, plan, 5, v, sample("fox"))

	_, ok := c.Get(ctx, plan, 5, v)
	assert.True(t, ok)
	_, ok = c.Get(ctx, plan, 5, Version{Epoch: "run-1", Generation: 2})
	assert.False(t, ok)
	_, ok = c.Get(ctx, plan, 6, v)
	assert.False(t, ok)
	// same generation number in a later process
	_, ok = c.Get(ctx, plan, 5, Version{Epoch: "run-2", Generation: 1})
	assert.False(t, ok)
}

func TestComputeErrorNotCached(t *testing.T) {
	backend := newMemoryBackend()
	c := New(backend, time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), parser.Plain(tok, "x"), 1, Version{}, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, backend.data)
}

func TestBackendFailureFallsThrough(t *testing.T) {
	backend := newMemoryBackend()
	backend.err = errors.New("connection refused")
	breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	c := New(backend, time.Minute, breaker)

	for i := 0; i < 5; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), parser.Plain(tok, "x"), 1, Version{}, func() (*executor.SearchResult, error) {
			return sample("x"), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.NotNil(t, res)
	}
	assert.Equal(t, resilience.StateOpen, breaker.GetState())
	assert.Equal(t, int64(1), backend.gets.Load())
}

func TestInvalidate(t *testing.T) {
	backend := newMemoryBackend()
	backend.data["other:key"] = "keep"
	c := New(backend, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, parser.Plain(tok, "a"), 1, Version{}, sample("a"))
	c.Set(ctx, parser.Plain(tok, "b"), 1, Version{}, sample("b"))

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, map[string]string{"other:key": "keep"}, backend.data)
}

func TestBuildKey(t *testing.T) {
	a := BuildKey(parser.Plain(tok, "fox dog"), 10, Version{Epoch: "e", Generation: 3})
	b := BuildKey(parser.Plain(tok, "dog fox"), 10, Version{Epoch: "e", Generation: 3})
	assert.Equal(t, a, b)
	assert.Contains(t, a, keyPrefix)

	and := BuildKey(parser.Parse(tok, "fox dog"), 10, Version{Epoch: "e", Generation: 3})
	assert.NotEqual(t, a, and)
	not := BuildKey(parser.Parse(tok, "fox NOT dog"), 10, Version{Epoch: "e", Generation: 3})
	assert.NotEqual(t, and, not)
	assert.NotEqual(t, a, BuildKey(parser.Plain(tok, "fox dog"), 10, Version{Epoch: "f", Generation: 3}))
}
