package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrShapeMismatch is returned when a stored value cannot be handed back as the type
// the intercepted call declares.
var ErrShapeMismatch = errors.New("cache: stored value does not match call result type")

// KeySerializer builds a cache key from a method identity + arbitrary args.
// It is responsible for producing stable keys across calls.
//
// The default implementation renders structs through their exported fields. A struct
// with no exported fields renders through its Go syntax form (%#v) instead, so pointer
// fields inside such a struct contribute process-local addresses to the key.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// Store is the key/value contract the interceptor relies on.
//
// Implementations must be safe for concurrent use. Exists followed by Get is not
// atomic: an entry may expire in between, in which case Get reports a miss.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (any, bool, error)
	Add(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Payload is implemented by stored values that must be decoded before use,
// typically because the backend keeps them in serialized form.
type Payload interface {
	DecodeInto(dst any) error
}

// Convert hands a stored value back as T. Payload values are decoded into a fresh T
// unless T is the payload's own type, so interface-typed calls such as T = any get the
// decoded value rather than the serialized form. Other values of type T are returned
// as is. Anything else is a shape mismatch.
func Convert[T any](value any) (T, error) {
	var zero T
	if p, ok := value.(Payload); ok && reflect.TypeOf(value) != reflect.TypeOf((*T)(nil)).Elem() {
		var out T
		if err := p.DecodeInto(&out); err != nil {
			return zero, fmt.Errorf("%w: decode into %s: %v", ErrShapeMismatch, typeName[T](), err)
		}
		return out, nil
	}

	if v, ok := value.(T); ok {
		return v, nil
	}

	return zero, fmt.Errorf("%w: stored %T, call expects %s", ErrShapeMismatch, value, typeName[T]())
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
