// Package cache provides the key builder and the store contract used by the call
// interceptor in package aspect.
//
// # Overview
//
// This package exports two main interfaces and their default implementations:
//
//   - KeySerializer: Builds stable cache keys from a method identity and its arguments
//   - Store: The key/value contract (Exists, Get, Add with a per-entry TTL)
//
// NewStore returns one of the bundled backends (sturdyc, otter or redis) selected
// through Config.Backend.
//
// # Basic Usage
//
//	serializer := cache.NewDefaultKeySerializer()
//	key := serializer.SerializeKey("app.Repo.Get", 5)
//	// key == "app.Repo.Get(5)"
//
//	store, err := cache.NewStore(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	_ = store.Add(ctx, key, user, 300*time.Second)
//
// # Key Serialization Strategy
//
// Keys take the form "<method>(<arg1>,<arg2>,...)":
//
//   - nil arguments render as "<Null>"
//   - Booleans and numbers render in their natural text form
//   - Strings and TextMarshaler values render JSON quoted
//   - Structs, maps, slices and pointers render as deterministic JSON shaped text:
//     pointers are followed, map keys sorted, struct fields use their json names
//   - Self referencing values are cut where the reference loops back
//
// Two argument lists that are equal by value always produce the same key, no matter
// which instances carry the values.
//
// # Important Warnings for Function Arguments
//
// Functions and channels cannot be serialized by value. They render as their
// address, which is stable only within a single process. For distributed stores
// pass stable criteria values instead, or provide a custom KeySerializer.
//
// # Stored Shapes
//
// In-process backends hand values back exactly as they were added. The redis backend
// returns a Payload that must be decoded into the caller's type; Convert handles both
// cases and reports ErrShapeMismatch when neither applies.
package cache
