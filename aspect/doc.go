// Package aspect provides a call interceptor that memoizes the results of
// synchronous and asynchronous operations in a cache.Store.
//
// # Overview
//
// An Interceptor is created once over a store:
//
//	ic, err := aspect.New(store, aspect.WithTTL(5*time.Minute))
//
// Operations are routed through it with a Decorator bound to the method identity:
//
//	get := aspect.Decorate[*User](ic, aspect.MethodOf(repo, "Get"))
//
//	user, err := get.Call(ctx, func(ctx context.Context) (*User, error) {
//		return repo.Get(ctx, id)
//	}, id)
//
// The key is "<Type>.<Method>(<args>)" built by a cache.KeySerializer, so two calls
// with equal arguments share an entry for the configured TTL.
//
// # Asynchronous Calls
//
// CallAsync returns a Future immediately. On a hit the Future is already completed and
// the target does not run. On a miss the target runs on its own goroutine and its
// result is stored once it completes normally. Cancellation of ctx, failures and nil
// results never reach the store.
//
// # Store Failures
//
// By default a store failure degrades to a miss (lookups) or to an uncached result
// (writes). WithStoreErrorPolicy(FailClosed) surfaces them wrapped in ErrStore.
package aspect
