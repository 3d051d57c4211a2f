package failure

import (
	"errors"
	"fmt"
	"net/http"
)

// Handler is an HTTP handler that reports its failure instead of writing an error
// response itself.
type Handler interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ServeHTTP calls f(w, r).
func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// Middleware runs next and hands any returned error or panic to the layer.
func (l *Layer) Middleware(next Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		if err := serve(next, rw, r); err != nil {
			l.Handle(r.Context(), rw, r, err)
		}
	})
}

// Wrap adapts a plain http.Handler; only its panics reach the layer.
func (l *Layer) Wrap(next http.Handler) http.Handler {
	return l.Middleware(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		next.ServeHTTP(w, r)
		return nil
	}))
}

// serve calls next, turning a panic into an error.
func serve(next Handler, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err = panicError(rec)
		}
	}()
	return next.ServeHTTP(w, r)
}

func panicError(rec any) error {
	if e, ok := rec.(error); ok {
		return fmt.Errorf("panic: %w", e)
	}
	return errors.New(fmt.Sprint("panic: ", rec))
}

// responseWriter tracks whether the response has started.
// WriteHeader records only the first status code, matching net/http semantics.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}

// Flush delegates to the underlying ResponseWriter if it implements http.Flusher.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		rw.wroteHeader = true
		f.Flush()
	}
}

// Started reports whether headers or body bytes have been sent.
func (rw *responseWriter) Started() bool {
	return rw.wroteHeader
}

// Status returns the first status code written, or 200.
func (rw *responseWriter) Status() int {
	return rw.status
}

// Unwrap returns the underlying ResponseWriter.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
