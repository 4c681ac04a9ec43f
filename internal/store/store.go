// Package store persists accounts and prediction history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Errors returned by store operations. Their messages are user facing.
var (
	ErrNotFound           = errors.New("User not found")
	ErrEmailTaken         = errors.New("Email already registered")
	ErrEmailInUse         = errors.New("Email already in use")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrMissingCredentials = errors.New("Email and password are required")
	ErrWeakPassword       = errors.New("Password must be at least 4 characters long")
	ErrForbidden          = errors.New("Admin access required")
	ErrSelfDelete         = errors.New("Cannot delete your own account")
	ErrSelfToggle         = errors.New("Cannot change your own admin status")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 4

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000"

// SQLiteStore is a SQLite-backed account and history store. It is safe for
// concurrent use.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Option customises a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock overrides the time source used for created_at values.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

var lower = cases.Lower(language.Und)

// NormalizeEmail trims and lower-cases an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return lower.String(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func logQueryError(op string, err error) {
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Error("store query failed", "operation", op, "error", err)
	}
}
