package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-aspect-cache/aspect"
	"github.com/goliatone/go-aspect-cache/failure"
)

// routerDeps holds the dependencies of the HTTP host.
type routerDeps struct {
	Layer       *failure.Layer
	Quotes      *quoteService
	Interceptor *aspect.Interceptor
	Metrics     http.Handler
	Logger      *slog.Logger
}

type server struct {
	deps     routerDeps
	validate *validator.Validate
}

// newRouter creates an http.Handler with all routes and middleware wired. Handlers
// that can fail report through the failure layer; the rest only have their panics
// routed there.
func newRouter(deps routerDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &server{deps: deps, validate: newValidator()}
	fail := func(h failure.HandlerFunc) http.Handler {
		return deps.Layer.Middleware(h)
	}

	r := chi.NewRouter()
	r.Use(failure.RequestID)
	r.Use(s.logging)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", deps.Metrics)
	r.Get(deps.Layer.ErrorPath(), s.handleErrorPage)

	r.Route("/quotes", func(r chi.Router) {
		r.Method(http.MethodGet, "/", fail(s.handleQuotesByAuthor))
		r.Method(http.MethodGet, "/{id}", fail(s.handleQuote))
		r.Method(http.MethodGet, "/{id}/async", fail(s.handleQuoteAsync))
	})

	r.Get("/signup", s.handleSignupForm)
	r.Method(http.MethodPost, "/signup", fail(s.handleSignup))

	r.Group(func(r chi.Router) {
		r.Use(deps.Layer.Wrap)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.deps.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", failure.RequestIDFromContext(r.Context()),
			"duration", time.Since(start),
		)
	})
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleErrorPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintln(w, "Something went wrong. The failure has been logged.")
}

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) error {
	id, err := quoteID(r)
	if err != nil {
		return err
	}

	q, err := s.deps.Quotes.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, q)
	return nil
}

func (s *server) handleQuoteAsync(w http.ResponseWriter, r *http.Request) error {
	id, err := quoteID(r)
	if err != nil {
		return err
	}

	q, err := s.deps.Quotes.GetAsync(r.Context(), id).Await(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, q)
	return nil
}

func (s *server) handleQuotesByAuthor(w http.ResponseWriter, r *http.Request) error {
	author := strings.TrimSpace(r.URL.Query().Get("author"))
	if author == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<form method="get" action="/quotes">
<input name="author" placeholder="author">
<button type="submit">Search</button>
</form>`)
		return nil
	}

	quotes, err := s.deps.Quotes.ByAuthor(r.Context(), author)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, quotes)
	return nil
}

type signupForm struct {
	Name  string `form:"name" validate:"required"`
	Email string `form:"email" validate:"required,email"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}

func (s *server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<form method="post" action="/signup">
<input name="name" placeholder="name">
<input name="email" placeholder="email">
<button type="submit">Sign up</button>
</form>`)
}

func (s *server) handleSignup(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "parse signup form")
	}

	form := signupForm{
		Name:  strings.TrimSpace(r.PostForm.Get("name")),
		Email: strings.TrimSpace(r.PostForm.Get("email")),
	}
	if err := s.validate.Struct(form); err != nil {
		return err
	}

	writeJSON(w, http.StatusCreated, map[string]string{"name": form.Name, "email": form.Email})
	return nil
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Interceptor.Stats())
}

func quoteID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, goerrors.NewValidation("invalid quote id",
			goerrors.FieldError{Field: "id", Message: "must be a positive integer", Value: raw})
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
