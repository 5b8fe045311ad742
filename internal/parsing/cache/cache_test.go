package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/depparse"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/executor"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend mimics the Redis client: misses return redis.Nil.
type memBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet error
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failGet != nil {
		return nil, b.failGet
	}
	v, ok := b.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	b.ttls[key] = ttl
	return nil
}

func (b *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k := range b.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func sampleKey() Key {
	return Key{Parser: depparse.KindBeam, BeamSize: 3, Tokens: []string{"我", "爱", "北京"}, Tags: []string{"PN", "VV", "NR"}}
}

func sampleResult() *executor.ParseResult {
	k := sampleKey()
	return &executor.ParseResult{
		Tokens:   k.Tokens,
		Tags:     k.Tags,
		Arcs:     depparse.Arcs{{Head: 1, Label: "nsubj"}, {Head: depparse.Root, Label: "root"}, {Head: 1, Label: "dobj"}},
		Parser:   k.Parser,
		BeamSize: k.BeamSize,
	}
}

func TestSetThenGet(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, time.Minute, nil)

	_, ok := c.Get(context.Background(), sampleKey())
	assert.False(t, ok)

	c.Set(context.Background(), sampleKey(), sampleResult())
	got, ok := c.Get(context.Background(), sampleKey())
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	for _, ttl := range backend.ttls {
		assert.Equal(t, time.Minute, ttl)
	}
}

func TestKeyDependsOnEveryField(t *testing.T) {
	base := sampleKey()
	keys := map[string]bool{buildKey(base): true}

	beam := base
	beam.BeamSize = 8
	greedy := base
	greedy.Parser = depparse.KindGreedy
	tagged := base
	tagged.Tags = []string{"PN", "VV", "NN"}
	// Joining tokens must not collide with splitting them differently.
	split := Key{Parser: base.Parser, BeamSize: base.BeamSize, Tokens: []string{"我爱", "北京"}, Tags: []string{"PN", "VV"}}

	for _, k := range []Key{beam, greedy, tagged, split} {
		key := buildKey(k)
		assert.False(t, keys[key], "collision for %+v", k)
		keys[key] = true
	}
	assert.Equal(t, buildKey(base), buildKey(sampleKey()))
	assert.Contains(t, buildKey(base), keyPrefix)
}

func TestGetOrComputeDeduplicates(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})

	compute := func() (*executor.ParseResult, error) {
		calls.Add(1)
		<-release
		return sampleResult(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _, err := c.GetOrCompute(context.Background(), sampleKey(), compute)
			assert.NoError(t, err)
			assert.Equal(t, sampleResult().Arcs, result.Arcs)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	before := calls.Load()
	_, hit, err := c.GetOrCompute(context.Background(), sampleKey(), compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, before, calls.Load())
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), sampleKey(), func() (*executor.ParseResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get(context.Background(), sampleKey())
	assert.False(t, ok)
}

func TestBackendErrorsCountAsMisses(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	backend := newMemBackend()
	backend.failGet = errors.New("connection refused")
	c := New(backend, time.Minute, m)

	result, hit, err := c.GetOrCompute(context.Background(), sampleKey(), func() (*executor.ParseResult, error) {
		return sampleResult(), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotNil(t, result)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestInvalidateDropsOnlyParseKeys(t *testing.T) {
	backend := newMemBackend()
	backend.data["session:1"] = []byte("x")
	c := New(backend, time.Minute, nil)
	c.Set(context.Background(), sampleKey(), sampleResult())

	deleted, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Contains(t, backend.data, "session:1")

	_, ok := c.Get(context.Background(), sampleKey())
	assert.False(t, ok)
}

type slowBackend struct {
	*memBackend
	delay time.Duration
}

func (b slowBackend) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-time.After(b.delay):
		return b.memBackend.Get(ctx, key)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b slowBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	select {
	case <-time.After(b.delay):
		return b.memBackend.Set(ctx, key, value, ttl)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestGuardedBackendTreatsMissesAsHealthy(t *testing.T) {
	guarded := NewGuardedBackend(newMemBackend(), time.Second, resilience.CircuitBreakerConfig{FailureThreshold: 1})
	for i := 0; i < 3; i++ {
		_, err := guarded.Get(context.Background(), "depparse:missing")
		assert.ErrorIs(t, err, redis.Nil)
	}
	assert.Equal(t, resilience.StateClosed, guarded.State())
}

func TestGuardedBackendOpensOnTimeouts(t *testing.T) {
	slow := slowBackend{memBackend: newMemBackend(), delay: time.Second}
	guarded := NewGuardedBackend(slow, 5*time.Millisecond, resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	c := New(guarded, time.Minute, nil)

	for i := 0; i < 3; i++ {
		result, hit, err := c.GetOrCompute(context.Background(), sampleKey(), func() (*executor.ParseResult, error) {
			return sampleResult(), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.NotNil(t, result)
	}
	assert.Equal(t, resilience.StateOpen, guarded.State())

	_, err := guarded.Get(context.Background(), "depparse:x")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}
