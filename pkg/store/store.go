package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mercator-hq/relay/pkg/config"
)

// ErrNotFound is returned when a conversation or message does not exist.
var ErrNotFound = errors.New("not found")

// Conversation is a titled chat owned by a user.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ModelID   int       `json:"model_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn of a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Body           string    `json:"message"`
	Date           time.Time `json:"date"`
}

// OperationRecorder observes every store call. *metrics.Collector
// implements it.
type OperationRecorder interface {
	RecordStoreOperation(op string, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordStoreOperation(string, error) {}

// Store persists conversations and messages through database/sql. It is
// safe for concurrent use.
type Store struct {
	db       *sql.DB
	dialect  dialect
	recorder OperationRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRecorder reports each operation to r.
func WithRecorder(r OperationRecorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Open connects with the configured driver and creates the schema if it
// does not exist.
//
// Supported drivers are "sqlite" (modernc.org/sqlite, pure Go), "sqlite3"
// (mattn/go-sqlite3, cgo) and "pgx" (PostgreSQL through pgx's
// database/sql adapter).
func Open(ctx context.Context, cfg config.StoreConfig, opts ...Option) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	if d.sqlite {
		if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	if d.sqlite {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := &Store{
		db:       db,
		dialect:  d,
		recorder: noopRecorder{},
		logger:   slog.Default().With("component", "store", "driver", cfg.Driver),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info("conversation store opened")
	return s, nil
}

// migrate runs the dialect's schema statements.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// record reports op and passes err through.
func (s *Store) record(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		s.recorder.RecordStoreOperation(op, nil)
		return err
	}
	s.recorder.RecordStoreOperation(op, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
