package failure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
)

type infoCall struct {
	Msg   string
	Attrs map[string]any
}

// recordingSink captures everything written to it.
type recordingSink struct {
	mu     sync.Mutex
	infos  []infoCall
	errors []*goerrors.Error
	fail   error
}

func (s *recordingSink) Info(_ context.Context, msg string, attrs ...slog.Attr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := infoCall{Msg: msg, Attrs: make(map[string]any)}
	for _, a := range attrs {
		call.Attrs[a.Key] = a.Value.Any()
	}
	s.infos = append(s.infos, call)
	return s.fail
}

func (s *recordingSink) Error(_ context.Context, err *goerrors.Error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
	return s.fail
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.infos), len(s.errors)
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	sinks    []string
}

func (m *recordingMetrics) FailureOutcome(o string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
}

func (m *recordingMetrics) SinkError(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

func newTestLayer(opts ...Option) (*Layer, *recordingSink, *recordingSink) {
	durable := &recordingSink{}
	file := &recordingSink{}
	return NewLayer(durable, file, opts...), durable, file
}

func serveFailing(l *Layer, method, path string, h HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	l.Middleware(h).ServeHTTP(rec, req)
	return rec
}

func TestClassify(t *testing.T) {
	type signup struct {
		Email string `validate:"required"`
	}
	validatorErr := validator.New().Struct(signup{})

	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, Completed},
		{"cancelled", context.Canceled, Cancelled},
		{"wrapped cancelled", fmt.Errorf("query users: %w", context.Canceled), Cancelled},
		{"deadline is a fault", context.DeadlineExceeded, Faulted},
		{"go-errors validation", goerrors.NewValidation("bad", goerrors.FieldError{Field: "email", Message: "required"}), ValidationFailed},
		{"ozzo errors", validation.Errors{"email": errors.New("cannot be blank")}, ValidationFailed},
		{"validator errors", validatorErr, ValidationFailed},
		{"field errors", goerrors.ValidationErrors{{Field: "name", Message: "required"}}, ValidationFailed},
		{"internal go-errors", goerrors.New("db down", goerrors.CategoryInternal), Faulted},
		{"plain error", errors.New("boom"), Faulted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFieldErrors(t *testing.T) {
	t.Run("ozzo errors are ordered by field", func(t *testing.T) {
		err := validation.Errors{
			"name":  errors.New("cannot be blank"),
			"email": errors.New("must be a valid email address"),
		}
		got := FieldErrors(err)
		if len(got) != 2 || got[0].Field != "email" || got[1].Field != "name" {
			t.Errorf("FieldErrors() = %v", got)
		}
	})

	t.Run("validator errors keep the tag", func(t *testing.T) {
		type signup struct {
			Email string `validate:"required"`
		}
		got := FieldErrors(validator.New().Struct(signup{}))
		if len(got) != 1 || got[0].Field != "Email" || got[0].Message != "required" {
			t.Errorf("FieldErrors() = %v", got)
		}
	})

	t.Run("plain error has no detail", func(t *testing.T) {
		if got := FieldErrors(errors.New("boom")); got != nil {
			t.Errorf("FieldErrors() = %v, want nil", got)
		}
	})
}

func TestLayer_ValidationScenario(t *testing.T) {
	l, durable, file := newTestLayer()

	rec := serveFailing(l, http.MethodPost, "/signup", func(w http.ResponseWriter, r *http.Request) error {
		return goerrors.NewValidation("invalid signup", goerrors.FieldError{Field: "email", Message: "required"})
	})

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/signup" {
		t.Errorf("Location = %q, want /signup", loc)
	}

	for name, sink := range map[string]*recordingSink{"durable": durable, "file": file} {
		infos, errs := sink.counts()
		if infos != 0 || errs != 1 {
			t.Fatalf("%s sink got %d infos, %d errors; want 0, 1", name, infos, errs)
		}
		record := sink.errors[0]
		if record.Code != http.StatusBadRequest {
			t.Errorf("%s record code = %d, want 400", name, record.Code)
		}
		if record.TextCode != TextCodeValidation {
			t.Errorf("%s record text code = %q", name, record.TextCode)
		}
		if record.Message != "invalid signup" {
			t.Errorf("%s record message = %q", name, record.Message)
		}
		fields := record.ValidationErrors
		if len(fields) != 1 || fields[0].Field != "email" || fields[0].Message != "required" {
			t.Errorf("%s record fields = %v, want [{email required}]", name, fields)
		}
	}
}

func TestLayer_CancellationScenario(t *testing.T) {
	l, durable, file := newTestLayer()

	rec := serveFailing(l, http.MethodGet, "/reports", func(w http.ResponseWriter, r *http.Request) error {
		return fmt.Errorf("build report: %w", context.Canceled)
	})

	if rec.Code != StatusClientClosedRequest {
		t.Errorf("status = %d, want 499", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "" {
		t.Errorf("cancellation must not redirect, Location = %q", loc)
	}

	if infos, errs := durable.counts(); infos != 0 || errs != 0 {
		t.Errorf("durable sink got %d infos, %d errors; want nothing", infos, errs)
	}
	infos, errs := file.counts()
	if infos != 1 || errs != 0 {
		t.Fatalf("file sink got %d infos, %d errors; want 1 info", infos, errs)
	}
	if file.infos[0].Attrs["path"] != "/reports" {
		t.Errorf("info attrs = %v", file.infos[0].Attrs)
	}
}

func TestLayer_FaultScenario(t *testing.T) {
	l, durable, file := newTestLayer()
	boom := errors.New("connection refused")

	rec := serveFailing(l, http.MethodGet, "/orders/7", func(w http.ResponseWriter, r *http.Request) error {
		return boom
	})

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != DefaultErrorPath {
		t.Errorf("Location = %q, want %q", loc, DefaultErrorPath)
	}

	for name, sink := range map[string]*recordingSink{"durable": durable, "file": file} {
		if _, errs := sink.counts(); errs != 1 {
			t.Fatalf("%s sink got %d errors, want 1", name, errs)
		}
		record := sink.errors[0]
		if !errors.Is(record, boom) {
			t.Errorf("%s record should carry the raw failure, got %v", name, record)
		}
		if record.Code != http.StatusInternalServerError || record.TextCode != TextCodeInternal {
			t.Errorf("%s record = %d %q", name, record.Code, record.TextCode)
		}
		if record.Metadata["path"] != "/orders/7" {
			t.Errorf("%s record metadata = %v", name, record.Metadata)
		}
		if len(record.StackTrace) == 0 {
			t.Errorf("%s record should carry a stack trace", name)
		}
	}
}

func TestLayer_ResponseAlreadyStarted(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation", goerrors.NewValidation("bad", goerrors.FieldError{Field: "email", Message: "required"})},
		{"fault", errors.New("boom")},
		{"cancelled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, file := newTestLayer()

			rec := serveFailing(l, http.MethodGet, "/stream", func(w http.ResponseWriter, r *http.Request) error {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte("partial"))
				return tt.err
			})

			if rec.Code != http.StatusAccepted {
				t.Errorf("status = %d, want the handler's 202", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != "" {
				t.Errorf("started response must not redirect, Location = %q", loc)
			}
			if infos, errs := file.counts(); infos+errs != 1 {
				t.Errorf("failure should still be logged, file sink got %d entries", infos+errs)
			}
		})
	}
}

func TestLayer_PanicIsFault(t *testing.T) {
	l, durable, _ := newTestLayer()

	handler := l.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crash", nil))

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != DefaultErrorPath {
		t.Errorf("status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if _, errs := durable.counts(); errs != 1 {
		t.Errorf("durable sink got %d errors, want 1", errs)
	}
}

func TestLayer_WrapPassesThroughSuccess(t *testing.T) {
	l, durable, file := newTestLayer()

	handler := l.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	di, de := durable.counts()
	fi, fe := file.counts()
	if di+de+fi+fe != 0 {
		t.Error("successful requests must not be logged")
	}
}

func TestLayer_SinkFailureDoesNotChangeResponse(t *testing.T) {
	durable := &recordingSink{fail: errors.New("db unavailable")}
	file := &recordingSink{}
	metrics := &recordingMetrics{}
	l := NewLayer(durable, file, WithMetrics(metrics))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	l.Middleware(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("boom")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rec.Code)
	}
	if _, errs := file.counts(); errs != 1 {
		t.Error("the file sink must still be written when the durable sink fails")
	}
	if len(metrics.sinks) != 1 || metrics.sinks[0] != "durable" {
		t.Errorf("sink errors = %v, want [durable]", metrics.sinks)
	}
	if len(metrics.outcomes) != 1 || metrics.outcomes[0] != "faulted" {
		t.Errorf("outcomes = %v, want [faulted]", metrics.outcomes)
	}
}

func TestLayer_CustomErrorPath(t *testing.T) {
	l, _, _ := newTestLayer(WithErrorPath("/oops"))

	rec := serveFailing(l, http.MethodGet, "/x", func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("boom")
	})

	if loc := rec.Header().Get("Location"); loc != "/oops" {
		t.Errorf("Location = %q, want /oops", loc)
	}
}

func TestLayer_RequestIDPropagation(t *testing.T) {
	l, durable, _ := newTestLayer()

	handler := RequestID(l.Middleware(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("response request id = %q", got)
	}
	if durable.errors[0].RequestID != "req-123" {
		t.Errorf("record request id = %q, want req-123", durable.errors[0].RequestID)
	}
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("generated id %q, header %q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestHandle_Completed(t *testing.T) {
	l, durable, file := newTestLayer()
	rec := httptest.NewRecorder()

	if got := l.Handle(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/", nil), nil); got != Completed {
		t.Errorf("Handle(nil) = %v, want completed", got)
	}
	di, de := durable.counts()
	fi, fe := file.counts()
	if di+de+fi+fe != 0 {
		t.Error("nothing should be logged for a completed request")
	}
}
