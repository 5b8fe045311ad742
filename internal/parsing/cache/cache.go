// Package cache stores parse results in Redis. Identical concurrent requests
// share a single parse through singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/executor"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "depparse:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies a parse: the input plus the parser settings that affect the
// output.
type Key struct {
	Parser   string
	BeamSize int
	Tokens   []string
	Tags     []string
}

type ParseCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *ParseCache {
	return &ParseCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "parse-cache"),
	}
}

func (c *ParseCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ParseCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *ParseCache) Get(ctx context.Context, k Key) (*executor.ParseResult, bool) {
	key := buildKey(k)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	var result executor.ParseResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return &result, true
}

func (c *ParseCache) Set(ctx context.Context, k Key, result *executor.ParseResult) {
	key := buildKey(k)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for k or runs computeFn once for all
// concurrent callers with the same key. Errors are not cached.
func (c *ParseCache) GetOrCompute(
	ctx context.Context,
	k Key,
	computeFn func() (*executor.ParseResult, error),
) (*executor.ParseResult, bool, error) {
	if result, ok := c.Get(ctx, k); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(buildKey(k), func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, k, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.ParseResult), false, nil
}

// Invalidate drops every cached parse. It runs after user dictionary changes.
func (c *ParseCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating parse cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *ParseCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func buildKey(k Key) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:beam=%d", k.Parser, k.BeamSize)
	for i, tok := range k.Tokens {
		b.WriteByte(0x1f)
		b.WriteString(tok)
		b.WriteByte(0x1e)
		if i < len(k.Tags) {
			b.WriteString(k.Tags[i])
		}
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
