// ABOUTME: SQLite implementation of IdentityStore using database/sql
// ABOUTME: Handles driver selection, connection strategy, DSN pragmas and schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted in Options.Driver
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// DefaultBusyTimeout is how long a connection waits on a locked database before failing
const DefaultBusyTimeout = 5 * time.Second

// ConnectionMode selects how the store shares database connections between calls
type ConnectionMode string

const (
	// ModePooled gives every call its own pooled connection and transaction
	ModePooled ConnectionMode = "pooled"
	// ModeShared funnels every call through one shared connection
	ModeShared ConnectionMode = "shared"
)

// ParseConnectionMode converts a settings value into a ConnectionMode.
// An empty string selects ModePooled.
func ParseConnectionMode(s string) (ConnectionMode, error) {
	switch ConnectionMode(s) {
	case "", ModePooled:
		return ModePooled, nil
	case ModeShared:
		return ModeShared, nil
	default:
		return "", fmt.Errorf("unknown connection mode %q (want %q or %q)", s, ModePooled, ModeShared)
	}
}

// Options configures Open. The zero value is a pooled modernc store.
type Options struct {
	Mode        ConnectionMode
	Driver      string
	BusyTimeout time.Duration
	Logger      *slog.Logger
}

// SQLiteStore implements IdentityStore on top of a SQLite database
type SQLiteStore struct {
	db     *sql.DB
	mode   ConnectionMode
	logger *slog.Logger
}

// Open creates or opens the identity database at path.
// The schema is created if it doesn't exist, so Open is safe on every startup.
// Parent directories are created if needed.
func Open(path string, opts Options) (*SQLiteStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModePooled
	}
	// Every connection to :memory: is a separate database
	if path == MemoryPath {
		mode = ModeShared
	}
	busyTimeout := opts.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn, err := buildDSN(driver, path, busyTimeout)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if mode == ModeShared {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	s := &SQLiteStore{
		db:     db,
		mode:   mode,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("identity store initialized", "path", path, "driver", driver, "mode", mode)
	return s, nil
}

// buildDSN encodes the per-connection pragmas for the chosen driver.
// Pragmas must live in the DSN: foreign_keys defaults to off and is scoped to a
// single connection, so a one-off PRAGMA statement would miss the rest of the pool.
func buildDSN(driver, path string, busyTimeout time.Duration) (string, error) {
	ms := strconv.FormatInt(busyTimeout.Milliseconds(), 10)
	q := url.Values{}

	switch driver {
	case DriverModernc:
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", "busy_timeout("+ms+")")
		if path != MemoryPath {
			q.Add("_pragma", "journal_mode(WAL)")
		}
		q.Set("_txlock", "immediate")
	case DriverMattn:
		q.Set("_foreign_keys", "on")
		q.Set("_busy_timeout", ms)
		if path != MemoryPath {
			q.Set("_journal_mode", "WAL")
		}
		q.Set("_txlock", "immediate")
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q (want %q or %q)", driver, DriverModernc, DriverMattn)
	}

	return path + "?" + q.Encode(), nil
}

// createSchema creates the identity tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chat_users (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			platform_id TEXT NOT NULL UNIQUE,
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chat_rooms (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			platform_id TEXT NOT NULL UNIQUE,
			room_name   TEXT,
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS external_users (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			platform_id TEXT NOT NULL UNIQUE,
			created_at  TEXT NOT NULL
		);

		-- Chat users present in chat rooms
		CREATE TABLE IF NOT EXISTS chat_room_members (
			chat_user_id INTEGER NOT NULL,
			chat_room_id INTEGER NOT NULL,

			UNIQUE(chat_user_id, chat_room_id),
			FOREIGN KEY (chat_user_id) REFERENCES chat_users(id),
			FOREIGN KEY (chat_room_id) REFERENCES chat_rooms(id)
		);

		CREATE INDEX IF NOT EXISTS idx_chat_room_members_room ON chat_room_members(chat_room_id);

		-- External users linked to chat users. Uniqueness is on the pair,
		-- so one chat user may be linked to several external users.
		CREATE TABLE IF NOT EXISTS external_links (
			external_user_id INTEGER NOT NULL,
			chat_user_id     INTEGER NOT NULL,

			UNIQUE(external_user_id, chat_user_id),
			FOREIGN KEY (external_user_id) REFERENCES external_users(id),
			FOREIGN KEY (chat_user_id) REFERENCES chat_users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_external_links_chat ON external_links(chat_user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Mode returns the connection strategy the store was opened with
func (s *SQLiteStore) Mode() ConnectionMode {
	return s.mode
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing identity store")
	return s.db.Close()
}

// withTx runs fn inside a single transaction, committing on success.
// Any error from fn rolls the transaction back and is returned as-is.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Ensure SQLiteStore implements IdentityStore interface
var _ IdentityStore = (*SQLiteStore)(nil)
