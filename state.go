package relay

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
)

type stateKey[T any] struct{}

// Manage stores val as the server's managed state of type T. Handlers read
// it with State. Each type can be managed once, and only before the server
// starts serving; the value itself is shared by every request, so any
// mutation it allows must be synchronized by the value.
func Manage[T any](s *Server, val T) {
	s.mustBeOpen("Manage")
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKey[T]{}
	if _, ok := s.state[key]; ok {
		panic(fmt.Sprintf("relay: state of type %s is already managed", reflect.TypeFor[T]()))
	}
	s.state[key] = val
}

// State returns the managed state of type T for the server req was built from.
func State[T any](req *Request) (T, bool) {
	val, ok := req.server.state[stateKey[T]{}].(T)
	return val, ok
}

// MustState is like State but panics when no state of type T is managed.
func MustState[T any](req *Request) T {
	val, ok := State[T](req)
	if !ok {
		panic(fmt.Sprintf("relay: no managed state of type %s", reflect.TypeFor[T]()))
	}
	return val
}

type contextKey[T any] struct{}

// SetValue stores a typed value in the request context. For use in middleware.
func SetValue[T any](r *http.Request, val T) *http.Request {
	ctx := context.WithValue(r.Context(), contextKey[T]{}, val)
	return r.WithContext(ctx)
}

// GetValue retrieves a typed value from the request context. For use in handlers.
func GetValue[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}
