package aspect

import (
	"context"
	"log/slog"
	"time"

	"github.com/goliatone/go-aspect-cache/cache"
)

// adaptAsync returns a Future that follows src. The caller is never blocked: waiting
// happens on a separate goroutine.
//
//   - src completes normally with a non-nil value: the value is added under key, then yielded
//   - src completes with nil: nil is yielded and nothing is stored
//   - ctx is cancelled first: ctx.Err() is yielded and nothing is stored
//   - src fails: the failure is yielded unchanged and nothing is stored
func adaptAsync[T any](ctx context.Context, ic *Interceptor, method, key string, ttl time.Duration, src *Future[T]) *Future[T] {
	out := newFuture[T]()
	start := time.Now()

	go func() {
		value, err := src.Await(ctx)
		if err != nil {
			ic.logger.DebugContext(ctx, "async result not cached",
				slog.String("method", method),
				slog.String("key", key),
				slog.Any("error", err),
			)
			out.resolve(value, err)
			return
		}

		ic.metrics.ObserveProceed(method, time.Since(start).Seconds())
		if cache.IsNil(value) {
			out.resolve(value, nil)
			return
		}

		// The result is complete; a cancellation arriving now must not fail the write.
		if err := ic.add(context.WithoutCancel(ctx), method, key, value, ttl); err != nil {
			var zero T
			out.resolve(zero, err)
			return
		}
		out.resolve(value, nil)
	}()

	return out
}
