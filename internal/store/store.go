// Package store persists users, patient records and the audit log in SQLite.
// Patient fields arrive and leave as ciphertext; the store never sees plaintext.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hengadev/carevault"
	"github.com/hengadev/carevault/internal/config"
)

// timeLayout is fixed-width so stored timestamps sort as strings.
const timeLayout = "2006-01-02 15:04:05.000000"

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('admin', 'doctor', 'receptionist'))
	);

	CREATE TABLE IF NOT EXISTS patients (
		patient_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		contact TEXT NOT NULL,
		diagnosis TEXT NOT NULL,
		date_added TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS logs (
		log_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		action TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		details TEXT,
		FOREIGN KEY (user_id) REFERENCES users(user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_action ON logs(action, timestamp);
`

// Store implements carevault.PatientStore, UserStore, AuditSink and AuditReader.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var (
	_ carevault.PatientStore = (*Store)(nil)
	_ carevault.UserStore    = (*Store)(nil)
	_ carevault.AuditSink    = (*Store)(nil)
	_ carevault.AuditReader  = (*Store)(nil)
)

type Option func(s *Store)

// WithClock overrides the time source used for date_added and log timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// ResolvePath returns the database file location. A dbPath with a file extension
// is used as-is. Otherwise dbPath (default: carevault.DefaultDBPath under the
// working directory) is the directory holding filename, and is created if needed.
func ResolvePath(dbPath, filename string) (string, error) {
	if dbPath != "" && filepath.Ext(dbPath) != "" {
		return dbPath, nil
	}

	dir := dbPath
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(cwd, carevault.DefaultDBPath)
	}
	if filename == "" {
		filename = carevault.DefaultDBFilename
	}

	if err := config.CheckDirectoryWritable(dir); err != nil {
		return "", fmt.Errorf("%w: database directory: %v", carevault.ErrDatabaseUnavailable, err)
	}
	return filepath.Join(dir, filename), nil
}

// Open connects to the SQLite database at dsn and creates the schema.
func Open(ctx context.Context, dsn string, options ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database at '%s': %w", carevault.ErrDatabaseUnavailable, dsn, err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: database connection test failed for '%s': %w", carevault.ErrDatabaseUnavailable, dsn, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database schema in '%s': %w", dsn, err)
	}

	s := &Store{db: db, path: dsn, now: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Path returns the DSN the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", carevault.ErrDatabaseUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", raw, err)
	}
	return t, nil
}

func isConstraintViolation(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}
