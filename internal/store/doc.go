// Package store persists the bridge's identity mappings in SQLite.
//
// # Data Model
//
// Three identity tables, each keyed by a surrogate integer id and a UNIQUE
// platform identifier:
//
//   - chat_users: Telegram accounts
//   - chat_rooms: Telegram chats, with the display name seen on first contact
//   - external_users: plaza identities
//
// Two association tables:
//
//   - chat_room_members: (chat user, chat room), unique per pair
//   - external_links: (external user, chat user), unique per pair
//
// Identities are created on first reference (lookup-or-create) and never
// deleted. Associations are written with INSERT OR REPLACE so registering
// the same pair twice is a no-op rather than an error. Because uniqueness is
// on the pair, a chat user can be linked to more than one external user.
//
// # Connections
//
// [Open] takes an explicit [ConnectionMode]:
//
//   - ModePooled: database/sql pool; each call gets its own connection and transaction
//   - ModeShared: one connection shared by every call
//
// Per-connection pragmas are passed in the DSN so every pooled connection has
// them:
//
//	foreign_keys=ON
//	busy_timeout=5000
//	journal_mode=WAL
//	_txlock=immediate
//
// Two drivers are supported: modernc.org/sqlite ("sqlite", the default, pure
// Go) and github.com/mattn/go-sqlite3 ("sqlite3", requires cgo).
//
// Database file locations:
//
//   - Default: $XDG_DATA_HOME/plaza/bridges/telegram/db.sqlite3
//   - Override: PLAZA_TELEGRAM_BRIDGE_DB_PATH
//   - Testing: a file under t.TempDir(), or :memory: (forces ModeShared)
//
// # Error Handling
//
//   - ErrNotFound: no row for the requested mapping
//   - ErrIntegrity: a UNIQUE lookup returned several rows; the database is corrupt
//   - ErrInvalidID: an empty platform identifier was passed
//
// Driver errors (constraint violations, busy timeouts) are wrapped and
// returned; the store never retries.
//
// # Testing
//
// Use NewMockStore() for adapter tests:
//
//	ids := store.NewMockStore()
//	// ids implements IdentityStore
package store
