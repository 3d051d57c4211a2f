package failure

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-aspect-cache/logsink"
)

// DefaultErrorPath is where faulted requests are redirected.
const DefaultErrorPath = "/ErrorPage/Error404"

// Text codes attached to failure records.
const (
	TextCodeValidation = "VALIDATION_ERROR"
	TextCodeInternal   = "INTERNAL_ERROR"
)

// Metrics receives failure layer events. internal/metrics provides the Prometheus
// implementation.
type Metrics interface {
	FailureOutcome(outcome string)
	SinkError(sink string)
}

type noopMetrics struct{}

func (noopMetrics) FailureOutcome(string) {}
func (noopMetrics) SinkError(string)      {}

// Started is implemented by response writers that know whether the response has
// begun. Writers that do not implement it are treated as not started.
type Started interface {
	Started() bool
}

// Layer turns unhandled request failures into log records and a response.
//
//   - Cancelled: the file sink gets an info line, the durable sink nothing, the status is 499
//   - ValidationFailed: both sinks get the field detail; the client is redirected back to the request path
//   - Faulted: both sinks get the failure; the client is redirected to the error page
//
// Redirects and status changes only happen while the response has not started.
// Sink failures never change the response.
type Layer struct {
	durable   logsink.Sink
	file      logsink.Sink
	errorPath string
	logger    *slog.Logger
	metrics   Metrics
}

// Option configures a Layer.
type Option func(*Layer)

// WithErrorPath sets the redirect target for faulted requests.
func WithErrorPath(path string) Option {
	return func(l *Layer) {
		if path != "" {
			l.errorPath = path
		}
	}
}

// WithLogger sets the diagnostic logger that receives sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Layer) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(l *Layer) {
		if m != nil {
			l.metrics = m
		}
	}
}

// NewLayer creates a Layer writing to a durable sink and a file sink. A nil sink
// discards its records.
func NewLayer(durable, file logsink.Sink, opts ...Option) *Layer {
	if durable == nil {
		durable = logsink.Discard
	}
	if file == nil {
		file = logsink.Discard
	}

	l := &Layer{
		durable:   durable,
		file:      file,
		errorPath: DefaultErrorPath,
		logger:    slog.Default(),
		metrics:   noopMetrics{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ErrorPath returns the redirect target for faulted requests.
func (l *Layer) ErrorPath() string {
	return l.errorPath
}

// Handle records err and produces the response for r. It returns the outcome err
// was classified as.
func (l *Layer) Handle(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) Outcome {
	outcome := Classify(err)
	if outcome == Completed {
		return outcome
	}
	l.metrics.FailureOutcome(outcome.String())

	// Logging must survive the caller going away.
	ctx = context.WithoutCancel(ctx)
	started := responseStarted(w)
	requestID := requestIDFor(r)

	switch outcome {
	case Cancelled:
		l.info(ctx, l.file, "file", "request cancelled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", requestID),
		)
		if !started {
			w.WriteHeader(StatusClientClosedRequest)
		}

	case ValidationFailed:
		record := validationRecord(err, r, requestID)
		l.error(ctx, l.durable, "durable", record)
		l.error(ctx, l.file, "file", record)
		if !started {
			http.Redirect(w, r, r.URL.Path, http.StatusFound)
		}

	case Faulted:
		record := faultRecord(err, r, requestID)
		l.error(ctx, l.durable, "durable", record)
		l.error(ctx, l.file, "file", record)
		if !started {
			http.Redirect(w, r, l.errorPath, http.StatusFound)
		}
	}

	return outcome
}

func (l *Layer) info(ctx context.Context, sink logsink.Sink, name, msg string, attrs ...slog.Attr) {
	if err := sink.Info(ctx, msg, attrs...); err != nil {
		l.sinkFailed(ctx, name, err)
	}
}

func (l *Layer) error(ctx context.Context, sink logsink.Sink, name string, record *goerrors.Error) {
	if err := sink.Error(ctx, record); err != nil {
		l.sinkFailed(ctx, name, err)
	}
}

func (l *Layer) sinkFailed(ctx context.Context, name string, err error) {
	l.metrics.SinkError(name)
	l.logger.LogAttrs(ctx, slog.LevelWarn, "failure sink write failed",
		slog.String("sink", name),
		slog.Any("error", err),
	)
}

func responseStarted(w http.ResponseWriter) bool {
	for w != nil {
		if s, ok := w.(Started); ok {
			return s.Started()
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return false
		}
		w = u.Unwrap()
	}
	return false
}

// validationRecord builds the 400 detail logged for rejected input.
func validationRecord(err error, r *http.Request, requestID string) *goerrors.Error {
	message := err.Error()
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr.Message != "" {
		message = richErr.Message
	}

	return goerrors.NewValidation(message, FieldErrors(err)...).
		WithCode(http.StatusBadRequest).
		WithTextCode(TextCodeValidation).
		WithSeverity(goerrors.SeverityWarning).
		WithRequestID(requestID).
		WithMetadata(requestMetadata(r))
}

// faultRecord wraps an unhandled failure, keeping the raw error as its source.
func faultRecord(err error, r *http.Request, requestID string) *goerrors.Error {
	var record *goerrors.Error
	if errors.As(err, &record) {
		record = record.Clone()
	} else {
		record = goerrors.Wrap(err, goerrors.CategoryInternal, err.Error())
	}

	if record.Code == 0 {
		record.Code = http.StatusInternalServerError
	}
	if record.TextCode == "" {
		record.TextCode = TextCodeInternal
	}
	if record.Severity < goerrors.SeverityError {
		record.Severity = goerrors.SeverityError
	}
	if len(record.StackTrace) == 0 {
		record.StackTrace = goerrors.CaptureStackTrace(2)
	}
	return record.WithRequestID(requestID).WithMetadata(requestMetadata(r))
}

func requestMetadata(r *http.Request) map[string]any {
	return map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
	}
}
