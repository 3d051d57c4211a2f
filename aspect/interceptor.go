package aspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/goliatone/go-aspect-cache/cache"
)

// DefaultTTL is the lifetime of an entry when neither the interceptor nor the call
// configures one.
const DefaultTTL = 300 * time.Second

var (
	// ErrNilStore is returned by New when no store is given.
	ErrNilStore = errors.New("aspect: store is required")
	// ErrStore wraps store failures surfaced under FailClosed.
	ErrStore = errors.New("aspect: store operation failed")
	// ErrShapeMismatch is returned when a stored value cannot be handed back as the
	// result type of the call.
	ErrShapeMismatch = cache.ErrShapeMismatch
)

// StoreErrorPolicy decides what a store failure does to the intercepted call.
type StoreErrorPolicy int

const (
	// FailOpen treats a failed lookup as a miss and a failed write as "not cached".
	FailOpen StoreErrorPolicy = iota
	// FailClosed returns store failures to the caller wrapped in ErrStore.
	FailClosed
)

// Metrics receives interceptor events. internal/metrics provides the Prometheus
// implementation.
type Metrics interface {
	CacheHit(method string)
	CacheMiss(method string)
	CacheWrite(method string)
	StoreError(method, op string)
	ObserveProceed(method string, seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) CacheHit(string)                {}
func (noopMetrics) CacheMiss(string)               {}
func (noopMetrics) CacheWrite(string)              {}
func (noopMetrics) StoreError(string, string)      {}
func (noopMetrics) ObserveProceed(string, float64) {}

// Interceptor memoizes call results in a Store, keyed by method identity and
// argument values.
//
// Concurrent identical calls that all miss each invoke the target and each write
// the store; there is no request coalescing.
type Interceptor struct {
	store      cache.Store
	serializer cache.KeySerializer
	ttl        time.Duration
	logger     *slog.Logger
	metrics    Metrics
	tracer     trace.Tracer
	policy     StoreErrorPolicy
	stats      *xsync.MapOf[string, *methodCounters]
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithTTL sets the default entry lifetime. Non positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(ic *Interceptor) {
		if ttl > 0 {
			ic.ttl = ttl
		}
	}
}

// WithKeySerializer replaces the default key serializer.
func WithKeySerializer(s cache.KeySerializer) Option {
	return func(ic *Interceptor) {
		if s != nil {
			ic.serializer = s
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(ic *Interceptor) {
		if logger != nil {
			ic.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(ic *Interceptor) {
		if m != nil {
			ic.metrics = m
		}
	}
}

// WithTracer sets the tracer used for interception spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(ic *Interceptor) {
		if tracer != nil {
			ic.tracer = tracer
		}
	}
}

// WithStoreErrorPolicy sets how store failures are handled. Defaults to FailOpen.
func WithStoreErrorPolicy(p StoreErrorPolicy) Option {
	return func(ic *Interceptor) {
		ic.policy = p
	}
}

// New creates an Interceptor over store.
func New(store cache.Store, opts ...Option) (*Interceptor, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	ic := &Interceptor{
		store:      store,
		serializer: cache.NewDefaultKeySerializer(),
		ttl:        DefaultTTL,
		logger:     slog.Default(),
		metrics:    noopMetrics{},
		tracer:     tracenoop.NewTracerProvider().Tracer("aspect"),
		policy:     FailOpen,
		stats:      xsync.NewMapOf[string, *methodCounters](),
	}
	for _, opt := range opts {
		opt(ic)
	}
	return ic, nil
}

// TTL returns the default entry lifetime.
func (ic *Interceptor) TTL() time.Duration {
	return ic.ttl
}

// Key returns the cache key for method called with args.
func (ic *Interceptor) Key(method Method, args ...any) string {
	return ic.serializer.SerializeKey(method.String(), args...)
}

// Intercept runs call through the cache.
//
// A stored non-nil value answers the call without invoking the target: Sync calls get
// the value, Async calls get an already completed Future. Otherwise the target runs.
// A plain non-nil result is added to the store before returning; a pending result is
// handed to the async adapter, which adds it once it completes normally. Failures of
// the target propagate unchanged and are never stored.
func Intercept[T any](ctx context.Context, ic *Interceptor, call Call[T]) (Outcome[T], error) {
	if call.Proceed == nil {
		return Outcome[T]{}, fmt.Errorf("aspect: %s has no target to proceed to", call.Method)
	}

	method := call.Method.String()
	key := ic.serializer.SerializeKey(method, call.Args...)
	ttl := call.TTL
	if ttl <= 0 {
		ttl = ic.ttl
	}

	ctx, span := ic.tracer.Start(ctx, "aspect.Intercept", trace.WithAttributes(
		attribute.String("cache.method", method),
		attribute.String("cache.key", key),
		attribute.String("cache.shape", call.Shape.String()),
	))
	defer span.End()

	cached, hit, err := lookup[T](ctx, ic, method, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome[T]{}, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", hit))

	counters := ic.counters(method)
	if hit {
		counters.hits.Inc()
		ic.metrics.CacheHit(method)
		ic.logger.DebugContext(ctx, "cache hit", slog.String("method", method), slog.String("key", key))
		if call.Shape == Async {
			return Pending(Completed(cached)), nil
		}
		return Value(cached), nil
	}

	counters.misses.Inc()
	ic.metrics.CacheMiss(method)
	ic.logger.DebugContext(ctx, "cache miss", slog.String("method", method), slog.String("key", key))

	start := time.Now()
	out, err := call.Proceed(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}

	if out.IsPending() {
		return Pending(adaptAsync(ctx, ic, method, key, ttl, out.Future())), nil
	}

	ic.metrics.ObserveProceed(method, time.Since(start).Seconds())
	if cache.IsNil(out.value) {
		return out, nil
	}
	if err := ic.add(ctx, method, key, out.value, ttl); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome[T]{}, err
	}
	return out, nil
}

// lookup returns the stored value for key. A key that disappears between Exists and
// Get, or that holds nil, is a miss.
func lookup[T any](ctx context.Context, ic *Interceptor, method, key string) (T, bool, error) {
	var zero T

	exists, err := ic.store.Exists(ctx, key)
	if err != nil {
		return zero, false, ic.storeFailure(ctx, method, "exists", key, err)
	}
	if !exists {
		return zero, false, nil
	}

	raw, ok, err := ic.store.Get(ctx, key)
	if err != nil {
		return zero, false, ic.storeFailure(ctx, method, "get", key, err)
	}
	if !ok || cache.IsNil(raw) {
		return zero, false, nil
	}

	value, err := cache.Convert[T](raw)
	if err != nil {
		return zero, false, fmt.Errorf("%s: %w", method, err)
	}
	return value, true, nil
}

// add writes value under key. Callers guarantee value is not nil.
func (ic *Interceptor) add(ctx context.Context, method, key string, value any, ttl time.Duration) error {
	if err := ic.store.Add(ctx, key, value, ttl); err != nil {
		return ic.storeFailure(ctx, method, "add", key, err)
	}
	ic.counters(method).writes.Inc()
	ic.metrics.CacheWrite(method)
	return nil
}

// storeFailure records a failed store operation and applies the error policy.
func (ic *Interceptor) storeFailure(ctx context.Context, method, op, key string, err error) error {
	ic.counters(method).storeErrors.Inc()
	ic.metrics.StoreError(method, op)
	ic.logger.WarnContext(ctx, "cache store operation failed",
		slog.String("method", method),
		slog.String("op", op),
		slog.String("key", key),
		slog.Any("error", err),
	)

	if ic.policy == FailClosed {
		return fmt.Errorf("%w: %s %q: %w", ErrStore, op, key, err)
	}
	return nil
}
