package aspect

import (
	"context"
	"time"
)

// Decorator installs the interceptor in front of the operations of one method.
// Construct it once, next to the type it decorates, and route calls through it.
type Decorator[T any] struct {
	ic     *Interceptor
	method Method
	ttl    time.Duration
}

// DecoratorOption configures a Decorator.
type DecoratorOption func(*decoratorConfig)

type decoratorConfig struct {
	ttl time.Duration
}

// WithDecoratorTTL overrides the interceptor TTL for this method.
func WithDecoratorTTL(ttl time.Duration) DecoratorOption {
	return func(c *decoratorConfig) {
		c.ttl = ttl
	}
}

// Decorate binds ic to method for results of type T.
func Decorate[T any](ic *Interceptor, method Method, opts ...DecoratorOption) *Decorator[T] {
	cfg := decoratorConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Decorator[T]{ic: ic, method: method, ttl: cfg.ttl}
}

// Method returns the identity the decorator keys entries with.
func (d *Decorator[T]) Method() Method {
	return d.method
}

// Call runs fn through the cache. args must be the arguments fn closes over; they
// form the cache key.
func (d *Decorator[T]) Call(ctx context.Context, fn func(ctx context.Context) (T, error), args ...any) (T, error) {
	out, err := Intercept(ctx, d.ic, Call[T]{
		Method: d.method,
		Args:   args,
		Shape:  Sync,
		TTL:    d.ttl,
		Proceed: func(ctx context.Context) (Outcome[T], error) {
			v, err := fn(ctx)
			if err != nil {
				return Outcome[T]{}, err
			}
			return Value(v), nil
		},
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.Get(), nil
}

// CallAsync runs fn on its own goroutine through the cache and returns immediately.
// A hit yields an already completed Future and fn never runs. Cancelling ctx
// resolves the Future with ctx.Err() and leaves the store untouched.
func (d *Decorator[T]) CallAsync(ctx context.Context, fn func(ctx context.Context) (T, error), args ...any) *Future[T] {
	out, err := Intercept(ctx, d.ic, Call[T]{
		Method: d.method,
		Args:   args,
		Shape:  Async,
		TTL:    d.ttl,
		Proceed: func(ctx context.Context) (Outcome[T], error) {
			return Pending(Go(ctx, fn)), nil
		},
	})
	if err != nil {
		return Failed[T](err)
	}
	return out.Future()
}
