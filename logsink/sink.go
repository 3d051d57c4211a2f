// Package logsink provides the log destinations used by the failure layer: an
// append-only JSON lines file and a durable database table.
package logsink

import (
	"context"
	"log/slog"

	goerrors "github.com/goliatone/go-errors"
)

// Sink receives failure records. Implementations must be safe for concurrent use.
// A Sink reports write problems through its error return; callers decide what to do
// with them.
type Sink interface {
	Info(ctx context.Context, msg string, attrs ...slog.Attr) error
	Error(ctx context.Context, err *goerrors.Error) error
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Info(context.Context, string, ...slog.Attr) error { return nil }
func (discard) Error(context.Context, *goerrors.Error) error     { return nil }
