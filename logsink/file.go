package logsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// FileSink writes one JSON object per line to an append-only file.
type FileSink struct {
	path    string
	file    *os.File
	handler slog.Handler
}

// NewFileSink opens (or creates) the file at path for appending. Missing parent
// directories are created.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, errors.New("log file path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &FileSink{
		path:    path,
		file:    file,
		handler: slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}, nil
}

// Path returns the file the sink appends to.
func (s *FileSink) Path() string {
	return s.path
}

// Info writes an informational line.
func (s *FileSink) Info(ctx context.Context, msg string, attrs ...slog.Attr) error {
	return s.write(ctx, slog.LevelInfo, msg, attrs)
}

// Error writes an error line carrying the error payload as attributes.
func (s *FileSink) Error(ctx context.Context, err *goerrors.Error) error {
	if err == nil {
		return nil
	}

	attrs := goerrors.ToSlogAttributes(err)
	for i, a := range attrs {
		// ValidationErrors is an error, which the JSON handler flattens to a string
		if a.Key == "validation_errors" {
			attrs[i] = slog.Any(a.Key, []goerrors.FieldError(err.AllValidationErrors()))
		}
	}
	if err.Source != nil {
		attrs = append(attrs, slog.String("source", err.Source.Error()))
	}
	if len(err.StackTrace) > 0 {
		attrs = append(attrs, slog.String("stack_trace", err.StackTrace.String()))
	}
	return s.write(ctx, slog.LevelError, err.Message, attrs)
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.file.Close()
}

func (s *FileSink) write(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) error {
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(attrs...)
	if err := s.handler.Handle(ctx, r); err != nil {
		return fmt.Errorf("write log entry to %s: %w", s.path, err)
	}
	return nil
}
