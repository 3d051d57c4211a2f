package repositorycache

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-aspect-cache/aspect"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// listResult wraps the tuple result from List operations for caching
type listResult[T any] struct {
	Records []T `json:"records"`
	Total   int `json:"total"`
}

// CachedRepository decorates a base repository with the call interceptor.
// Get, GetByID, GetByIdentifier, List and Count are cached; every other method,
// including all *Tx variants, is served by the embedded base repository.
type CachedRepository[T any] struct {
	repository.Repository[T]

	renderer *bun.DB

	get             *aspect.Decorator[T]
	getByID         *aspect.Decorator[T]
	getByIdentifier *aspect.Decorator[T]
	list            *aspect.Decorator[listResult[T]]
	count           *aspect.Decorator[int]
}

// Option configures a CachedRepository.
type Option func(*options)

type options struct {
	ttl     time.Duration
	dialect schema.Dialect
}

// WithTTL overrides the interceptor TTL for every cached read.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithDialect sets the dialect used to render select criteria into cache keys.
// It should match the base repository's database; the default is PostgreSQL.
func WithDialect(d schema.Dialect) Option {
	return func(o *options) {
		if d != nil {
			o.dialect = d
		}
	}
}

// New creates a CachedRepository that routes the read operations of base through ic.
func New[T any](base repository.Repository[T], ic *aspect.Interceptor, opts ...Option) *CachedRepository[T] {
	o := options{dialect: pgdialect.New()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &CachedRepository[T]{
		Repository: base,
		// never connected, only formats queries
		renderer: bun.NewDB(nil, o.dialect),
	}

	var decOpts []aspect.DecoratorOption
	if o.ttl > 0 {
		decOpts = append(decOpts, aspect.WithDecoratorTTL(o.ttl))
	}

	c.get = aspect.Decorate[T](ic, aspect.MethodOf(c, "Get"), decOpts...)
	c.getByID = aspect.Decorate[T](ic, aspect.MethodOf(c, "GetByID"), decOpts...)
	c.getByIdentifier = aspect.Decorate[T](ic, aspect.MethodOf(c, "GetByIdentifier"), decOpts...)
	c.list = aspect.Decorate[listResult[T]](ic, aspect.MethodOf(c, "List"), decOpts...)
	c.count = aspect.Decorate[int](ic, aspect.MethodOf(c, "Count"), decOpts...)
	return c
}

// Base returns the decorated repository.
func (c *CachedRepository[T]) Base() repository.Repository[T] {
	return c.Repository
}

// Get retrieves a single record using the provided criteria, with caching
func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	query, ok := c.criteriaKey(criteria)
	if !ok {
		return c.Repository.Get(ctx, criteria...)
	}
	return c.get.Call(ctx, func(ctx context.Context) (T, error) {
		return c.Repository.Get(ctx, criteria...)
	}, query...)
}

// GetByID retrieves a record by ID with optional criteria, with caching
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	query, ok := c.criteriaKey(criteria)
	if !ok {
		return c.Repository.GetByID(ctx, id, criteria...)
	}
	return c.getByID.Call(ctx, func(ctx context.Context) (T, error) {
		return c.Repository.GetByID(ctx, id, criteria...)
	}, append([]any{id}, query...)...)
}

// GetByIdentifier retrieves a record by identifier with optional criteria, with caching
func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	query, ok := c.criteriaKey(criteria)
	if !ok {
		return c.Repository.GetByIdentifier(ctx, identifier, criteria...)
	}
	return c.getByIdentifier.Call(ctx, func(ctx context.Context) (T, error) {
		return c.Repository.GetByIdentifier(ctx, identifier, criteria...)
	}, append([]any{identifier}, query...)...)
}

// List retrieves multiple records using the provided criteria, with caching
func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	query, ok := c.criteriaKey(criteria)
	if !ok {
		return c.Repository.List(ctx, criteria...)
	}
	res, err := c.list.Call(ctx, func(ctx context.Context) (listResult[T], error) {
		records, total, err := c.Repository.List(ctx, criteria...)
		return listResult[T]{Records: records, Total: total}, err
	}, query...)
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Total, nil
}

// Count returns the number of records matching the criteria, with caching
func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	query, ok := c.criteriaKey(criteria)
	if !ok {
		return c.Repository.Count(ctx, criteria...)
	}
	return c.count.Call(ctx, func(ctx context.Context) (int, error) {
		return c.Repository.Count(ctx, criteria...)
	}, query...)
}

// criteriaKey renders criteria into the SQL they produce, which stands in for the
// criteria in the cache key. Criteria are closures, so their identity says nothing
// about the query they build. ok is false when the criteria cannot be rendered;
// such calls bypass the cache.
func (c *CachedRepository[T]) criteriaKey(criteria []repository.SelectCriteria) (key []any, ok bool) {
	if len(criteria) == 0 {
		return nil, true
	}

	defer func() {
		if recover() != nil {
			key, ok = nil, false
		}
	}()

	q := c.renderer.NewSelect().Model(c.Handlers().NewRecord())
	for _, apply := range criteria {
		if apply != nil {
			q = apply(q)
		}
	}
	return []any{q.String()}, true
}
