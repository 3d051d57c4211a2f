// Package repositorycache installs the call interceptor in front of go-repository-bun
// repositories.
//
// # Overview
//
// CachedRepository wraps a base repository and routes its read operations through
// an aspect.Interceptor. Each read is a separate intercepted method, so its results
// are keyed by the repository type, the method name and the call arguments.
//
//	store, _ := cache.NewStore(cache.DefaultConfig())
//	ic, _ := aspect.New(store)
//
//	users := repositorycache.New(baseUsers, ic)
//	user, err := users.GetByID(ctx, "user-123")
//
// # Cached vs Pass-through Operations
//
// ## Cached Operations (Read-only)
//
//   - Get, GetByID, GetByIdentifier
//   - List (records and total are cached as a unit)
//   - Count
//
// ## Pass-through Operations
//
//   - All write operations (Create, Update, Upsert, Delete and variants)
//   - All transaction-based operations (*Tx methods)
//   - Raw SQL queries
//
// # Criteria in keys
//
// Select criteria are closures and carry no comparable identity. Before a cached
// read runs, its criteria are applied to a query on a connectionless bun.DB and the
// rendered SQL becomes part of the key. Configure the dialect with WithDialect so the
// rendering matches the real database. Criteria that cannot be rendered (a panic
// while building the query) make that call bypass the cache.
//
// # Staleness
//
// Writes do not evict entries. A record updated through this repository may be read
// back stale until the entry's TTL expires; choose WithTTL accordingly. Absent
// results (a nil record with no error) are never cached, and errors from the base
// repository are returned unchanged and never cached.
//
// # Compatibility
//
// CachedRepository[T] implements repository.Repository[T] and is a drop-in
// replacement for the base repository.
package repositorycache
