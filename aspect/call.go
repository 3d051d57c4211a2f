package aspect

import (
	"context"
	"reflect"
	"time"
)

// Method identifies an intercepted operation: the full name of the declaring type
// and the method name.
type Method struct {
	Type string
	Name string
}

// String renders the method as "<Type>.<Name>", the prefix of every cache key.
func (m Method) String() string {
	if m.Type == "" {
		return m.Name
	}
	return m.Type + "." + m.Name
}

// MethodOf derives a Method from the dynamic type of receiver. Pointer receivers are
// dereferenced, so *Repo and Repo produce the same identity.
func MethodOf(receiver any, name string) Method {
	t := reflect.TypeOf(receiver)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return Method{Name: name}
	}
	if t.PkgPath() == "" {
		return Method{Type: t.String(), Name: name}
	}
	return Method{Type: t.PkgPath() + "." + t.Name(), Name: name}
}

// Shape is the declared result shape of an intercepted call.
type Shape int

const (
	// Sync calls produce their value directly.
	Sync Shape = iota
	// Async calls produce a Future of their value.
	Async
)

func (s Shape) String() string {
	if s == Async {
		return "async"
	}
	return "sync"
}

// Outcome is what an intercepted call produced: either a plain value or a pending
// Future. The zero Outcome is a plain zero value.
type Outcome[T any] struct {
	value  T
	future *Future[T]
}

// Value wraps a synchronous result.
func Value[T any](v T) Outcome[T] {
	return Outcome[T]{value: v}
}

// Pending wraps an asynchronous result.
func Pending[T any](f *Future[T]) Outcome[T] {
	return Outcome[T]{future: f}
}

// IsPending reports whether the outcome carries a Future.
func (o Outcome[T]) IsPending() bool {
	return o.future != nil
}

// Future returns the pending Future, or nil for a plain value.
func (o Outcome[T]) Future() *Future[T] {
	return o.future
}

// Get returns the plain value. It is the zero value for pending outcomes.
func (o Outcome[T]) Get() T {
	return o.value
}

// Await returns the value, waiting on the Future for pending outcomes.
func (o Outcome[T]) Await(ctx context.Context) (T, error) {
	if o.future != nil {
		return o.future.Await(ctx)
	}
	return o.value, nil
}

// Call describes one invocation going through the interceptor.
type Call[T any] struct {
	Method Method
	Args   []any
	Shape  Shape
	// TTL overrides the interceptor default when positive.
	TTL time.Duration
	// Proceed invokes the target.
	Proceed func(ctx context.Context) (Outcome[T], error)
}
