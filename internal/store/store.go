// ABOUTME: IdentityStore interface and data types for the bridge's identity mapping
// ABOUTME: Defines chat users, chat rooms, external users and the errors returned by stores

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity or mapping does not exist
var ErrNotFound = errors.New("not found")

// ErrIntegrity is returned when a lookup by a UNIQUE column yields more than one row.
// It means the database is corrupt; callers should abort rather than retry.
var ErrIntegrity = errors.New("integrity fault: unique lookup returned multiple rows")

// ErrInvalidID is returned when an empty platform identifier is supplied
var ErrInvalidID = errors.New("platform identifier must not be empty")

// ChatUser is one Telegram account known to the bridge
type ChatUser struct {
	ID         int64
	PlatformID string
	CreatedAt  time.Time
}

// ChatRoom is one Telegram chat (group, supergroup, channel or private chat)
type ChatRoom struct {
	ID         int64
	PlatformID string
	Name       string // display name captured when the room was first seen
	CreatedAt  time.Time
}

// ExternalUser is one identity on the plaza side of the bridge
type ExternalUser struct {
	ID         int64
	PlatformID string
	CreatedAt  time.Time
}

// RoomMembership is a chat room reachable from an external user through one of its linked chat users
type RoomMembership struct {
	ChatUserID string
	ChatRoomID string
	RoomName   string
}

// IdentityStore maps between chat users, chat rooms and external users.
// All identifiers in this interface are platform identifiers, never surrogate keys.
type IdentityStore interface {
	// IsChatUserRegistered reports whether the chat user has been seen before
	IsChatUserRegistered(ctx context.Context, chatUserID string) (bool, error)

	// GetExternalUserForChat returns the external user linked to a chat user.
	// When several links exist the most recently registered one wins.
	// Returns ErrNotFound if the chat user has no link.
	GetExternalUserForChat(ctx context.Context, chatUserID string) (string, error)

	// ListExternalUsersForChat returns every external user linked to a chat user,
	// oldest registration first
	ListExternalUsersForChat(ctx context.Context, chatUserID string) ([]string, error)

	// RegisterLink links a chat user to an external user, creating both as needed
	RegisterLink(ctx context.Context, chatUserID, externalUserID string) error

	// AddUserToRoom records that a chat user is a member of a chat room.
	// roomName is only stored when the room is created.
	AddUserToRoom(ctx context.Context, chatUserID, chatRoomID, roomName string) error

	// GetChatUsersForExternal returns the chat users linked to an external user.
	// The external user is created if it does not exist yet.
	GetChatUsersForExternal(ctx context.Context, externalUserID string) ([]string, error)

	// GetChatRoomsForExternal returns every room any linked chat user is a member of.
	// The external user is created if it does not exist yet.
	GetChatRoomsForExternal(ctx context.Context, externalUserID string) ([]RoomMembership, error)

	// FindExternalUser looks up an external user without creating it.
	// Returns ErrNotFound if it does not exist.
	FindExternalUser(ctx context.Context, externalUserID string) (*ExternalUser, error)

	// Close releases any resources held by the store
	Close() error
}
