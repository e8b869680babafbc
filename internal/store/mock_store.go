// ABOUTME: Mock IdentityStore implementation for testing
// ABOUTME: Allows adapter tests to run without SQLite while keeping the same semantics

package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockStore is an in-memory IdentityStore implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	nextID        int64
	chatUsers     map[string]*ChatUser     // keyed by platform id
	chatRooms     map[string]*ChatRoom     // keyed by platform id
	externalUsers map[string]*ExternalUser // keyed by platform id
	memberships   []membershipKey          // insertion order
	links         []linkKey                // registration order, re-registration moves to the end
}

type membershipKey struct {
	chatUser int64
	chatRoom int64
}

type linkKey struct {
	external int64
	chatUser int64
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		chatUsers:     make(map[string]*ChatUser),
		chatRooms:     make(map[string]*ChatRoom),
		externalUsers: make(map[string]*ExternalUser),
	}
}

func (m *MockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// caller must hold m.mu
func (m *MockStore) chatUser(platformID string) *ChatUser {
	u, ok := m.chatUsers[platformID]
	if !ok {
		u = &ChatUser{ID: m.id(), PlatformID: platformID, CreatedAt: time.Now().UTC()}
		m.chatUsers[platformID] = u
	}
	return u
}

// caller must hold m.mu
func (m *MockStore) chatRoom(platformID, name string) *ChatRoom {
	r, ok := m.chatRooms[platformID]
	if !ok {
		r = &ChatRoom{ID: m.id(), PlatformID: platformID, Name: name, CreatedAt: time.Now().UTC()}
		m.chatRooms[platformID] = r
	}
	return r
}

// caller must hold m.mu
func (m *MockStore) externalUser(platformID string) *ExternalUser {
	e, ok := m.externalUsers[platformID]
	if !ok {
		e = &ExternalUser{ID: m.id(), PlatformID: platformID, CreatedAt: time.Now().UTC()}
		m.externalUsers[platformID] = e
	}
	return e
}

// IsChatUserRegistered reports whether the chat user exists.
func (m *MockStore) IsChatUserRegistered(ctx context.Context, chatUserID string) (bool, error) {
	if err := validateIDs(chatUserID); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.chatUsers[chatUserID]
	return ok, nil
}

// GetExternalUserForChat returns the most recently linked external user.
func (m *MockStore) GetExternalUserForChat(ctx context.Context, chatUserID string) (string, error) {
	linked, err := m.ListExternalUsersForChat(ctx, chatUserID)
	if err != nil {
		return "", err
	}
	if len(linked) == 0 {
		return "", fmt.Errorf("external user for chat user %q: %w", chatUserID, ErrNotFound)
	}
	return linked[len(linked)-1], nil
}

// ListExternalUsersForChat returns all external users linked to the chat user.
func (m *MockStore) ListExternalUsersForChat(ctx context.Context, chatUserID string) ([]string, error) {
	if err := validateIDs(chatUserID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []string{}
	u, ok := m.chatUsers[chatUserID]
	if !ok {
		return result, nil
	}
	for _, l := range m.links {
		if l.chatUser != u.ID {
			continue
		}
		for _, e := range m.externalUsers {
			if e.ID == l.external {
				result = append(result, e.PlatformID)
			}
		}
	}
	return result, nil
}

// RegisterLink links a chat user to an external user.
func (m *MockStore) RegisterLink(ctx context.Context, chatUserID, externalUserID string) error {
	if err := validateIDs(chatUserID, externalUserID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := linkKey{external: m.externalUser(externalUserID).ID, chatUser: m.chatUser(chatUserID).ID}
	for i, l := range m.links {
		if l == key {
			m.links = append(m.links[:i], m.links[i+1:]...)
			break
		}
	}
	m.links = append(m.links, key)
	return nil
}

// AddUserToRoom records a room membership.
func (m *MockStore) AddUserToRoom(ctx context.Context, chatUserID, chatRoomID, roomName string) error {
	if err := validateIDs(chatUserID, chatRoomID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := membershipKey{chatUser: m.chatUser(chatUserID).ID, chatRoom: m.chatRoom(chatRoomID, roomName).ID}
	for _, existing := range m.memberships {
		if existing == key {
			return nil
		}
	}
	m.memberships = append(m.memberships, key)
	return nil
}

// GetChatUsersForExternal returns chat users linked to the external user, creating it on a miss.
func (m *MockStore) GetChatUsersForExternal(ctx context.Context, externalUserID string) ([]string, error) {
	if err := validateIDs(externalUserID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.linkedChatUsers(m.externalUser(externalUserID).ID), nil
}

// caller must hold m.mu
func (m *MockStore) linkedChatUsers(externalID int64) []string {
	result := []string{}
	for _, l := range m.links {
		if l.external != externalID {
			continue
		}
		for _, u := range m.chatUsers {
			if u.ID == l.chatUser {
				result = append(result, u.PlatformID)
			}
		}
	}
	return result
}

// GetChatRoomsForExternal returns rooms reachable through linked chat users, creating the external user on a miss.
func (m *MockStore) GetChatRoomsForExternal(ctx context.Context, externalUserID string) ([]RoomMembership, error) {
	if err := validateIDs(externalUserID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []RoomMembership{}
	for _, chatUserID := range m.linkedChatUsers(m.externalUser(externalUserID).ID) {
		u := m.chatUsers[chatUserID]
		for _, mem := range m.memberships {
			if mem.chatUser != u.ID {
				continue
			}
			for _, r := range m.chatRooms {
				if r.ID == mem.chatRoom {
					result = append(result, RoomMembership{
						ChatUserID: chatUserID,
						ChatRoomID: r.PlatformID,
						RoomName:   r.Name,
					})
				}
			}
		}
	}
	return result, nil
}

// FindExternalUser looks up an external user without creating it.
func (m *MockStore) FindExternalUser(ctx context.Context, externalUserID string) (*ExternalUser, error) {
	if err := validateIDs(externalUserID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.externalUsers[externalUserID]
	if !ok {
		return nil, fmt.Errorf("external user %q: %w", externalUserID, ErrNotFound)
	}
	// Make a copy to avoid external modification
	found := *e
	return &found, nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements IdentityStore interface
var _ IdentityStore = (*MockStore)(nil)
