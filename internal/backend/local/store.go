// Package local implements the backend contracts on an embedded SQL
// database, for running without a hosted project.
package local

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/migration"
	"github.com/julianstephens/habitual/migrations"
)

const settingJWTSecret = "jwt_secret"

var ErrEmptyDSN = errors.New("database path or connection string is required")

// Options configures a local backend
type Options struct {
	// RequireConfirmation withholds a session at sign-up until ConfirmEmail is called.
	RequireConfirmation bool
	// JWTSecret signs access tokens. When empty a secret is generated once
	// and kept in the database.
	JWTSecret []byte
	// Storage persists the session between runs. Defaults to memory.
	Storage backend.SessionStorage
	// Now overrides the clock.
	Now func() time.Time
}

// Backend implements backend.Client on SQLite or PostgreSQL
type Backend struct {
	db      *sql.DB
	driver  migration.Driver
	dsn     string
	secret  []byte
	confirm bool
	now     func() time.Time
	auth    *backend.AuthState
}

var _ backend.Client = (*Backend)(nil)

// IsPostgresDSN reports whether dsn names a PostgreSQL database rather than a SQLite file.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to dsn, applies pending migrations and returns a ready backend.
// A postgres:// or postgresql:// URL selects PostgreSQL; anything else is a SQLite file path.
func Open(ctx context.Context, dsn string, opts Options) (*Backend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}

	b := &Backend{
		confirm: opts.RequireConfirmation,
		now:     opts.Now,
	}
	if b.now == nil {
		b.now = time.Now
	}

	var err error
	if IsPostgresDSN(dsn) {
		err = b.openPostgres(ctx, dsn)
	} else {
		err = b.openSQLite(dsn)
	}
	if err != nil {
		return nil, err
	}

	if err := b.runMigrations(); err != nil {
		b.db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	b.secret = opts.JWTSecret
	if len(b.secret) == 0 {
		if b.secret, err = b.loadSecret(ctx); err != nil {
			b.db.Close()
			return nil, err
		}
	}

	b.auth = backend.NewAuthState(opts.Storage, b.refreshSession)
	b.auth.SetClock(b.now)
	return b, nil
}

func (b *Backend) openSQLite(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers on the file.
	db.SetMaxOpenConns(1)

	b.db = db
	b.driver = migration.DriverSQLite
	b.dsn = path
	return nil
}

func (b *Backend) openPostgres(ctx context.Context, connStr string) error {
	connStr = withSearchPath(connStr)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(connStr) {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.AppName); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	b.db = db
	b.driver = migration.DriverPostgres
	b.dsn = connStr
	return nil
}

// withSearchPath pins the connection to the application schema unless the
// URL already chooses one.
func withSearchPath(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		logger.Warn("Failed to parse Postgres connection string", "error", err)
		return connStr
	}
	q := u.Query()
	if q.Get("search_path") == "" {
		q.Set("search_path", constants.AppName)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func hasSSLMode(connStr string) bool {
	u, err := url.Parse(connStr)
	if err != nil {
		return false
	}
	for key := range u.Query() {
		if strings.EqualFold(key, "sslmode") {
			return true
		}
	}
	return false
}

func (b *Backend) runner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, string(b.driver))
	if err != nil {
		return nil, fmt.Errorf("failed to access %s migrations: %w", b.driver, err)
	}
	return migration.NewRunner(b.db, subFS, b.driver)
}

func (b *Backend) runMigrations() error {
	runner, err := b.runner()
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Debug(msg, "driver", b.driver)
	})
	return err
}

// SchemaVersion returns the applied schema version and the newest one this
// build knows about.
func (b *Backend) SchemaVersion() (current, latest int, err error) {
	runner, err := b.runner()
	if err != nil {
		return 0, 0, err
	}
	if current, err = runner.GetCurrentVersion(); err != nil {
		return 0, 0, err
	}
	if latest, err = runner.GetLatestVersion(); err != nil {
		return 0, 0, err
	}
	return current, latest, nil
}

func (b *Backend) loadSecret(ctx context.Context) ([]byte, error) {
	var value string
	err := b.db.QueryRowContext(ctx, b.rebind("SELECT value FROM settings WHERE key = ?"), settingJWTSecret).Scan(&value)
	if err == nil {
		return hex.DecodeString(value)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load signing secret: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate signing secret: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, b.rebind("INSERT INTO settings (key, value) VALUES (?, ?)"), settingJWTSecret, hex.EncodeToString(raw)); err != nil {
		return nil, fmt.Errorf("failed to save signing secret: %w", err)
	}
	return raw, nil
}

// Location returns a printable, credential-free description of the database.
func (b *Backend) Location() string {
	if b.driver == migration.DriverPostgres {
		return "postgresql"
	}
	return b.dsn
}

// Ping checks the database connection
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return backend.NetworkError(err)
	}
	return nil
}

// Close ends auth subscriptions and closes the database
func (b *Backend) Close() error {
	b.auth.Close()
	return b.db.Close()
}

// rebind rewrites ? placeholders into $n for PostgreSQL
func (b *Backend) rebind(query string) string {
	if b.driver != migration.DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// placeholders returns "?, ?, ..." with n entries
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
