package logsink

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LogEntry is one row of the failure_logs table.
type LogEntry struct {
	bun.BaseModel `bun:"table:failure_logs,alias:fl"`

	ID               uuid.UUID                 `bun:"id,pk,type:text" json:"id"`
	Level            string                    `bun:"level,notnull" json:"level"`
	Message          string                    `bun:"message,notnull" json:"message"`
	Category         string                    `bun:"category" json:"category"`
	Code             int                       `bun:"code" json:"code"`
	TextCode         string                    `bun:"text_code" json:"text_code"`
	Source           string                    `bun:"source" json:"source,omitempty"`
	ValidationErrors goerrors.ValidationErrors `bun:"validation_errors,type:text" json:"validation_errors,omitempty"`
	Metadata         map[string]any            `bun:"metadata,type:text" json:"metadata,omitempty"`
	RequestID        string                    `bun:"request_id" json:"request_id,omitempty"`
	StackTrace       string                    `bun:"stack_trace" json:"stack_trace,omitempty"`
	CreatedAt        time.Time                 `bun:"created_at,notnull" json:"created_at"`
}

func logEntryHandlers() repository.ModelHandlers[*LogEntry] {
	return repository.ModelHandlers[*LogEntry]{
		NewRecord: func() *LogEntry {
			return &LogEntry{}
		},
		GetID: func(e *LogEntry) uuid.UUID {
			if e == nil {
				return uuid.Nil
			}
			return e.ID
		},
		SetID: func(e *LogEntry, id uuid.UUID) {
			e.ID = id
		},
		GetIdentifier: func() string {
			return "request_id"
		},
	}
}

// OpenDB opens a bun database for driver ("sqlite" or "postgres") and applies the
// embedded migrations.
func OpenDB(ctx context.Context, driver, dsn string) (*bun.DB, error) {
	var (
		db      *bun.DB
		dialect goose.Dialect
	)

	switch driver {
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite db: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
		dialect = goose.DialectSQLite3
	case DriverPostgres:
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres db: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
		dialect = goose.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported log database driver %q", driver)
	}

	if err := migrate(ctx, db.DB, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if dsn == ":memory:" {
		return "file::memory:?mode=memory&" + pragmas
	}
	if strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return "file:" + dsn + "?" + pragmas
}

// migrate applies embedded SQL migrations using goose.
// fs.Sub strips the "migrations/" prefix so goose sees files at the FS root.
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	_, err = provider.Up(ctx)
	return err
}

// DBSink stores failure records in the failure_logs table.
type DBSink struct {
	repo repository.Repository[*LogEntry]
	now  func() time.Time
}

// NewDBSink creates a sink writing through a repository on db.
func NewDBSink(db *bun.DB) *DBSink {
	return NewDBSinkWithRepository(repository.NewRepository[*LogEntry](db, logEntryHandlers()))
}

// NewDBSinkWithRepository creates a sink over an existing repository.
func NewDBSinkWithRepository(repo repository.Repository[*LogEntry]) *DBSink {
	return &DBSink{repo: repo, now: time.Now}
}

// Repository exposes the underlying repository for reads.
func (s *DBSink) Repository() repository.Repository[*LogEntry] {
	return s.repo
}

// Info stores an informational row. Attributes are kept as metadata.
func (s *DBSink) Info(ctx context.Context, msg string, attrs ...slog.Attr) error {
	entry := &LogEntry{
		ID:        newID(),
		Level:     "info",
		Message:   msg,
		CreatedAt: s.now(),
	}
	if len(attrs) > 0 {
		entry.Metadata = make(map[string]any, len(attrs))
		for _, a := range attrs {
			entry.Metadata[a.Key] = a.Value.Resolve().Any()
		}
		if id, ok := entry.Metadata["request_id"].(string); ok {
			entry.RequestID = id
		}
	}
	return s.create(ctx, entry)
}

// Error stores err as an error row.
func (s *DBSink) Error(ctx context.Context, err *goerrors.Error) error {
	if err == nil {
		return nil
	}

	entry := &LogEntry{
		ID:               newID(),
		Level:            strings.ToLower(err.Severity.String()),
		Message:          err.Message,
		Category:         err.Category.String(),
		Code:             err.Code,
		TextCode:         err.TextCode,
		ValidationErrors: err.AllValidationErrors(),
		Metadata:         err.Metadata,
		RequestID:        err.RequestID,
		CreatedAt:        err.Timestamp,
	}
	if err.Source != nil {
		entry.Source = err.Source.Error()
	}
	if len(err.StackTrace) > 0 {
		entry.StackTrace = err.StackTrace.String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	return s.create(ctx, entry)
}

func (s *DBSink) create(ctx context.Context, entry *LogEntry) error {
	if _, err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("store %s log entry: %w", entry.Level, err)
	}
	return nil
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
