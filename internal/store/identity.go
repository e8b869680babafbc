// ABOUTME: Identity mapping operations for SQLiteStore
// ABOUTME: Lookup-or-create for users, rooms and external users plus link/membership queries

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// identityTable describes one of the base tables keyed by a unique platform_id
type identityTable struct {
	name   string // SQL table name
	entity string // human-readable name for errors and logs
}

var (
	chatUsersTable     = identityTable{name: "chat_users", entity: "chat user"}
	chatRoomsTable     = identityTable{name: "chat_rooms", entity: "chat room"}
	externalUsersTable = identityTable{name: "external_users", entity: "external user"}
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// lookupID returns the surrogate id for platformID, or found=false if there is none.
// More than one matching row means the UNIQUE constraint was bypassed and yields ErrIntegrity.
func lookupID(ctx context.Context, q queryer, t identityTable, platformID string) (int64, bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM `+t.name+` WHERE platform_id = ?`, platformID)
	if err != nil {
		return 0, false, fmt.Errorf("querying %s: %w", t.entity, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, false, fmt.Errorf("scanning %s row: %w", t.entity, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, false, fmt.Errorf("iterating %s rows: %w", t.entity, err)
	}

	switch len(ids) {
	case 0:
		return 0, false, nil
	case 1:
		return ids[0], true, nil
	default:
		return 0, false, fmt.Errorf("%w: %d %s rows for %q", ErrIntegrity, len(ids), t.entity, platformID)
	}
}

// lookupOrCreate returns the id for platformID, inserting a new row if none exists.
// insert is only run on a miss and must return the new row's id.
func (s *SQLiteStore) lookupOrCreate(ctx context.Context, tx *sql.Tx, t identityTable, platformID string, insert func() (sql.Result, error)) (int64, error) {
	id, found, err := lookupID(ctx, tx, t, platformID)
	if err != nil {
		return 0, err
	}
	if found {
		return id, nil
	}

	result, err := insert()
	if err != nil {
		return 0, fmt.Errorf("inserting %s: %w", t.entity, err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting %s id: %w", t.entity, err)
	}

	s.logger.Debug("created identity", "kind", t.entity, "platform_id", platformID, "id", id)
	return id, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (s *SQLiteStore) chatUserID(ctx context.Context, tx *sql.Tx, platformID string) (int64, error) {
	return s.lookupOrCreate(ctx, tx, chatUsersTable, platformID, func() (sql.Result, error) {
		return tx.ExecContext(ctx, `INSERT INTO chat_users (platform_id, created_at) VALUES (?, ?)`, platformID, now())
	})
}

func (s *SQLiteStore) chatRoomID(ctx context.Context, tx *sql.Tx, platformID, roomName string) (int64, error) {
	return s.lookupOrCreate(ctx, tx, chatRoomsTable, platformID, func() (sql.Result, error) {
		return tx.ExecContext(ctx, `INSERT INTO chat_rooms (platform_id, room_name, created_at) VALUES (?, ?, ?)`, platformID, roomName, now())
	})
}

func (s *SQLiteStore) externalUserID(ctx context.Context, tx *sql.Tx, platformID string) (int64, error) {
	return s.lookupOrCreate(ctx, tx, externalUsersTable, platformID, func() (sql.Result, error) {
		return tx.ExecContext(ctx, `INSERT INTO external_users (platform_id, created_at) VALUES (?, ?)`, platformID, now())
	})
}

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return ErrInvalidID
		}
	}
	return nil
}

// IsChatUserRegistered reports whether a chat user row exists for chatUserID
func (s *SQLiteStore) IsChatUserRegistered(ctx context.Context, chatUserID string) (bool, error) {
	if err := validateIDs(chatUserID); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(1) FROM chat_users WHERE platform_id = ?`, chatUserID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting chat users: %w", err)
	}
	return count > 0, nil
}

// GetExternalUserForChat returns the external user most recently linked to chatUserID.
// Returns ErrNotFound if the chat user is unknown or has no link.
func (s *SQLiteStore) GetExternalUserForChat(ctx context.Context, chatUserID string) (string, error) {
	if err := validateIDs(chatUserID); err != nil {
		return "", err
	}

	// INSERT OR REPLACE gives a re-registered link a fresh rowid, so the
	// highest rowid is the latest registration
	query := `
		SELECT e.platform_id
		FROM external_users e
		JOIN external_links l ON l.external_user_id = e.id
		JOIN chat_users c ON l.chat_user_id = c.id
		WHERE c.platform_id = ?
		ORDER BY l.rowid DESC
		LIMIT 1
	`

	var externalID string
	err := s.db.QueryRowContext(ctx, query, chatUserID).Scan(&externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("external user for chat user %q: %w", chatUserID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("querying external user for chat user: %w", err)
	}
	return externalID, nil
}

// ListExternalUsersForChat returns every external user linked to chatUserID, oldest first
func (s *SQLiteStore) ListExternalUsersForChat(ctx context.Context, chatUserID string) ([]string, error) {
	if err := validateIDs(chatUserID); err != nil {
		return nil, err
	}

	query := `
		SELECT e.platform_id
		FROM external_users e
		JOIN external_links l ON l.external_user_id = e.id
		JOIN chat_users c ON l.chat_user_id = c.id
		WHERE c.platform_id = ?
		ORDER BY l.rowid ASC
	`

	return s.queryStrings(ctx, s.db, query, chatUserID)
}

// RegisterLink links chatUserID to externalUserID, creating either identity if needed.
// Registering an existing pair again replaces the row rather than failing.
func (s *SQLiteStore) RegisterLink(ctx context.Context, chatUserID, externalUserID string) error {
	if err := validateIDs(chatUserID, externalUserID); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		chatID, err := s.chatUserID(ctx, tx, chatUserID)
		if err != nil {
			return err
		}
		externalID, err := s.externalUserID(ctx, tx, externalUserID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO external_links (external_user_id, chat_user_id)
			VALUES (?, ?)
		`, externalID, chatID)
		if err != nil {
			return fmt.Errorf("inserting external link: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("registered link", "chat_user", chatUserID, "external_user", externalUserID)
	return nil
}

// AddUserToRoom records chatUserID as a member of chatRoomID.
// roomName is used only if the room is new; existing rooms keep their name.
func (s *SQLiteStore) AddUserToRoom(ctx context.Context, chatUserID, chatRoomID, roomName string) error {
	if err := validateIDs(chatUserID, chatRoomID); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		userID, err := s.chatUserID(ctx, tx, chatUserID)
		if err != nil {
			return err
		}
		roomID, err := s.chatRoomID(ctx, tx, chatRoomID, roomName)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO chat_room_members (chat_user_id, chat_room_id)
			VALUES (?, ?)
		`, userID, roomID)
		if err != nil {
			return fmt.Errorf("inserting room membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("added user to room", "chat_user", chatUserID, "chat_room", chatRoomID)
	return nil
}

// GetChatUsersForExternal returns the chat users linked to externalUserID.
// The external user row is created on a miss, matching the write paths.
func (s *SQLiteStore) GetChatUsersForExternal(ctx context.Context, externalUserID string) ([]string, error) {
	if err := validateIDs(externalUserID); err != nil {
		return nil, err
	}

	var chatUsers []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		externalID, err := s.externalUserID(ctx, tx, externalUserID)
		if err != nil {
			return err
		}

		chatUsers, err = s.queryStrings(ctx, tx, `
			SELECT c.platform_id
			FROM chat_users c
			JOIN external_links l ON c.id = l.chat_user_id
			WHERE l.external_user_id = ?
			ORDER BY l.rowid ASC
		`, externalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chatUsers, nil
}

// GetChatRoomsForExternal returns every room a chat user linked to externalUserID belongs to.
// The external user row is created on a miss, matching the write paths.
func (s *SQLiteStore) GetChatRoomsForExternal(ctx context.Context, externalUserID string) ([]RoomMembership, error) {
	if err := validateIDs(externalUserID); err != nil {
		return nil, err
	}

	memberships := []RoomMembership{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		externalID, err := s.externalUserID(ctx, tx, externalUserID)
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT c.platform_id, r.platform_id, r.room_name
			FROM chat_users c
			JOIN external_links l ON c.id = l.chat_user_id
			JOIN chat_room_members m ON c.id = m.chat_user_id
			JOIN chat_rooms r ON m.chat_room_id = r.id
			WHERE l.external_user_id = ?
			ORDER BY c.id, r.id
		`, externalID)
		if err != nil {
			return fmt.Errorf("querying rooms for external user: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var m RoomMembership
			var roomName sql.NullString
			if err := rows.Scan(&m.ChatUserID, &m.ChatRoomID, &roomName); err != nil {
				return fmt.Errorf("scanning room row: %w", err)
			}
			m.RoomName = roomName.String
			memberships = append(memberships, m)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating room rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

// FindExternalUser looks up an external user without creating it.
// Returns ErrNotFound if there is no such user.
func (s *SQLiteStore) FindExternalUser(ctx context.Context, externalUserID string) (*ExternalUser, error) {
	if err := validateIDs(externalUserID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, platform_id, created_at
		FROM external_users
		WHERE platform_id = ?
	`, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("querying external user: %w", err)
	}
	defer rows.Close()

	var users []*ExternalUser
	for rows.Next() {
		var u ExternalUser
		var createdAtStr string
		if err := rows.Scan(&u.ID, &u.PlatformID, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning external user: %w", err)
		}
		u.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating external user rows: %w", err)
	}

	switch len(users) {
	case 0:
		return nil, fmt.Errorf("external user %q: %w", externalUserID, ErrNotFound)
	case 1:
		return users[0], nil
	default:
		return nil, fmt.Errorf("%w: %d external user rows for %q", ErrIntegrity, len(users), externalUserID)
	}
}

// queryStrings runs a single-column query and collects the values
func (s *SQLiteStore) queryStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying platform ids: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning platform id: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating platform ids: %w", err)
	}
	return values, nil
}
