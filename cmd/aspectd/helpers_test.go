package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-aspect-cache/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServeConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Failure.LogFile = filepath.Join(dir, "failures.log")
	cfg.Failure.DBDSN = filepath.Join(dir, "aspect.db")
	return *cfg
}
