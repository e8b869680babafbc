// ABOUTME: Tests for opening the SQLite identity store
// ABOUTME: Covers directory creation, schema idempotence, connection modes and per-connection pragmas

package store

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := Open(dbPath, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if store.Mode() != ModePooled {
		t.Errorf("Mode() = %q, want %q", store.Mode(), ModePooled)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "plaza", "bridges", "telegram", "db.sqlite3")

	store, err := Open(dbPath, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	first, err := Open(dbPath, Options{})
	require.NoError(t, err)
	require.NoError(t, first.RegisterLink(ctx, "u1", "e1"))
	require.NoError(t, first.Close())

	// Reopening against an existing database must not fail or lose data
	second, err := Open(dbPath, Options{})
	require.NoError(t, err)
	defer second.Close()

	got, err := second.GetExternalUserForChat(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "e1", got)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{Driver: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sqlite driver")
}

func TestOpen_MemoryForcesSharedMode(t *testing.T) {
	store, err := Open(MemoryPath, Options{Mode: ModePooled})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, ModeShared, store.Mode())

	// The schema must be visible to later calls, which only holds with one connection
	ctx := context.Background()
	require.NoError(t, store.AddUserToRoom(ctx, "u1", "r1", "Room One"))
	registered, err := store.IsChatUserRegistered(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, registered)
}

func TestOpen_ForeignKeysOnEveryPooledConnection(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones
	var conns []interface{ Close() error }
	for i := 0; i < 4; i++ {
		conn, err := store.db.Conn(ctx)
		require.NoError(t, err)
		conns = append(conns, conn)

		var enabled int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled))
		assert.Equal(t, 1, enabled, "connection %d has foreign keys disabled", i)
	}
	for _, c := range conns {
		c.Close()
	}
}

func TestOpen_SharedModeLimitsConnections(t *testing.T) {
	store := setupTestStoreWithMode(t, ModeShared)

	assert.Equal(t, ModeShared, store.Mode())
	assert.Equal(t, 1, store.db.Stats().MaxOpenConnections)
}

func TestParseConnectionMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ConnectionMode
		wantErr bool
	}{
		{in: "", want: ModePooled},
		{in: "pooled", want: ModePooled},
		{in: "shared", want: ModeShared},
		{in: "single", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseConnectionMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDSN(t *testing.T) {
	t.Run("modernc", func(t *testing.T) {
		dsn, err := buildDSN(DriverModernc, "/tmp/db.sqlite3", 2*time.Second)
		require.NoError(t, err)

		path, rawQuery, ok := strings.Cut(dsn, "?")
		require.True(t, ok)
		assert.Equal(t, "/tmp/db.sqlite3", path)

		q, err := url.ParseQuery(rawQuery)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"foreign_keys(1)", "busy_timeout(2000)", "journal_mode(WAL)"}, q["_pragma"])
		assert.Equal(t, "immediate", q.Get("_txlock"))
	})

	t.Run("mattn", func(t *testing.T) {
		dsn, err := buildDSN(DriverMattn, "/tmp/db.sqlite3", 2*time.Second)
		require.NoError(t, err)

		_, rawQuery, _ := strings.Cut(dsn, "?")
		q, err := url.ParseQuery(rawQuery)
		require.NoError(t, err)
		assert.Equal(t, "on", q.Get("_foreign_keys"))
		assert.Equal(t, "2000", q.Get("_busy_timeout"))
		assert.Equal(t, "WAL", q.Get("_journal_mode"))
		assert.Equal(t, "immediate", q.Get("_txlock"))
	})

	t.Run("memory skips WAL", func(t *testing.T) {
		dsn, err := buildDSN(DriverModernc, MemoryPath, time.Second)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(dsn, MemoryPath+"?"))
		assert.NotContains(t, dsn, "journal_mode")
	})
}

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	return setupTestStoreWithMode(t, ModePooled)
}

func setupTestStoreWithMode(t *testing.T, mode ConnectionMode) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := Open(dbPath, Options{Mode: mode})
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
