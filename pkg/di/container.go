package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-aspect-cache/aspect"
	"github.com/goliatone/go-aspect-cache/cache"
	"github.com/goliatone/go-aspect-cache/failure"
	"github.com/goliatone/go-aspect-cache/internal/config"
	"github.com/goliatone/go-aspect-cache/internal/metrics"
	"github.com/goliatone/go-aspect-cache/logsink"
	"github.com/goliatone/go-aspect-cache/repositorycache"
)

// Container provides dependency injection for the interceptor and failure layer.
// It owns the store, the key serializer, the metrics registry, both log sinks and
// the database behind the durable sink. Close releases them.
type Container struct {
	config      config.Config
	logger      *slog.Logger
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	store       cache.Store
	serializer  cache.KeySerializer
	interceptor *aspect.Interceptor
	db          *bun.DB
	fileSink    logsink.Sink
	durableSink logsink.Sink
	layer       *failure.Layer
	closers     []io.Closer
}

// Option customizes a Container.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *prometheus.Registry
	tracer   trace.Tracer
	store    cache.Store
}

// WithLogger sets the diagnostic logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistry registers the collectors on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithTracer sets the tracer used for interception spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithStore uses store instead of building one from the cache configuration.
func WithStore(store cache.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// NewContainer builds every component described by cfg. Components already built
// are released if a later one fails.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (_ *Container, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	c := &Container{
		config:   cfg,
		logger:   o.logger,
		registry: o.registry,
		metrics:  metrics.New(o.registry),
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.store = o.store
	if c.store == nil {
		if c.store, err = cache.NewStore(cfg.Cache); err != nil {
			return nil, fmt.Errorf("create store: %w", err)
		}
		if closer, ok := c.store.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}
	}

	var keyOpts []cache.KeyOption
	if cfg.Interceptor.MaxKeyLength > 0 {
		keyOpts = append(keyOpts, cache.WithMaxKeyLength(cfg.Interceptor.MaxKeyLength))
	}
	c.serializer = cache.NewDefaultKeySerializer(keyOpts...)

	policy := aspect.FailOpen
	if cfg.Interceptor.FailClosed {
		policy = aspect.FailClosed
	}
	c.interceptor, err = aspect.New(c.store,
		aspect.WithTTL(cfg.Interceptor.TTL),
		aspect.WithKeySerializer(c.serializer),
		aspect.WithLogger(c.logger),
		aspect.WithMetrics(c.metrics),
		aspect.WithTracer(o.tracer),
		aspect.WithStoreErrorPolicy(policy),
	)
	if err != nil {
		return nil, fmt.Errorf("create interceptor: %w", err)
	}

	c.fileSink = logsink.Discard
	if cfg.Failure.LogFile != "" {
		fileSink, err := logsink.NewFileSink(cfg.Failure.LogFile)
		if err != nil {
			return nil, fmt.Errorf("create file sink: %w", err)
		}
		c.fileSink = fileSink
		c.closers = append(c.closers, fileSink)
	}

	c.durableSink = logsink.Discard
	if cfg.Failure.DBDriver != "" {
		db, err := logsink.OpenDB(ctx, cfg.Failure.DBDriver, cfg.Failure.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open log database: %w", err)
		}
		c.db = db
		c.closers = append(c.closers, db)
		c.durableSink = logsink.NewDBSink(db)
	}

	c.layer = failure.NewLayer(c.durableSink, c.fileSink,
		failure.WithErrorPath(cfg.Failure.ErrorPath),
		failure.WithLogger(c.logger),
		failure.WithMetrics(c.metrics),
	)

	return c, nil
}

// NewContainerWithDefaults creates a container from config.Default with the
// durable sink disabled and the file sink discarding. It is meant for library use
// where only the interceptor is wanted.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	cfg := config.Default()
	cfg.Failure.LogFile = ""
	cfg.Failure.DBDriver = ""
	cfg.Failure.DBDSN = ""
	return NewContainer(ctx, *cfg, opts...)
}

// Config returns a copy of the configuration the container was built from.
func (c *Container) Config() config.Config {
	return c.config
}

// Logger returns the diagnostic logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Registry returns the Prometheus registry holding the container's collectors.
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Store returns the singleton store instance.
func (c *Container) Store() cache.Store {
	return c.store
}

// KeySerializer returns the singleton key serializer instance.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.serializer
}

// Interceptor returns the singleton call interceptor.
func (c *Container) Interceptor() *aspect.Interceptor {
	return c.interceptor
}

// DB returns the database behind the durable sink, or nil when it is disabled.
func (c *Container) DB() *bun.DB {
	return c.db
}

// FileSink returns the file sink.
func (c *Container) FileSink() logsink.Sink {
	return c.fileSink
}

// DurableSink returns the durable sink.
func (c *Container) DurableSink() logsink.Sink {
	return c.durableSink
}

// FailureLayer returns the failure layer wired to both sinks.
func (c *Container) FailureLayer() *failure.Layer {
	return c.layer
}

// Close releases the resources owned by the container in reverse creation order.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// NewCachedRepository wraps base with the container's interceptor.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedRepository[*User](container, baseUserRepository)
func NewCachedRepository[T any](container *Container, base repository.Repository[T], opts ...repositorycache.Option) *repositorycache.CachedRepository[T] {
	return repositorycache.New(base, container.interceptor, opts...)
}

// NewDecorator binds the container's interceptor to method for results of type T.
func NewDecorator[T any](container *Container, method aspect.Method, opts ...aspect.DecoratorOption) *aspect.Decorator[T] {
	return aspect.Decorate[T](container.interceptor, method, opts...)
}
