package resilience

import (
	"context"
	"time"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// WithTimeout runs fn with a context cancelled after timeout. A timeout of
// zero runs fn under ctx unchanged. When the limit is hit first the result
// matches both errors.ErrTimeout and context.DeadlineExceeded; fn keeps
// running in the background until it observes the cancelled context.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return perrors.Wrap(perrors.ErrTimeout, name, ctx.Err())
		}
		return perrors.Wrap(perrors.ErrTimeout, name, context.DeadlineExceeded)
	}
}
