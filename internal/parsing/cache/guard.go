package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/resilience"
)

// GuardedBackend bounds every call to the wrapped backend by a timeout and
// stops calling it while its circuit breaker is open. Misses do not count as
// failures. A guarded error reaches the cache as a miss, so parses continue
// without Redis.
type GuardedBackend struct {
	next    Backend
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func NewGuardedBackend(next Backend, timeout time.Duration, cfg resilience.CircuitBreakerConfig) *GuardedBackend {
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil && !pkgredis.IsNilError(err) }
	}
	return &GuardedBackend{
		next:    next,
		breaker: resilience.NewCircuitBreaker("parse-cache", cfg),
		timeout: timeout,
	}
}

// State reports the breaker state for readiness output.
func (g *GuardedBackend) State() resilience.State {
	return g.breaker.GetState()
}

func (g *GuardedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, "cache get", func(ctx context.Context) error {
			v, err := g.next.Get(ctx, key)
			if err == nil {
				data = v
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (g *GuardedBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, "cache set", func(ctx context.Context) error {
			return g.next.Set(ctx, key, value, ttl)
		})
	})
}

// FlushByPattern is not time bounded: invalidation scans the keyspace and
// must finish for dictionary changes to take effect.
func (g *GuardedBackend) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := g.breaker.Execute(func() error {
		var err error
		n, err = g.next.FlushByPattern(ctx, pattern)
		return err
	})
	return n, err
}
