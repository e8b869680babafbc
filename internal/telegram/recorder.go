// ABOUTME: Records Telegram senders and chat members into the identity store
// ABOUTME: Turns decoded telego updates into IdentityStore calls without any transport

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/2389/plaza-telegram-bridge/internal/store"
)

// ErrNoSender is returned when an update carries no message sender
var ErrNoSender = errors.New("update has no sender")

// Telegram re-sends unconfirmed updates after a restart
const (
	seenTTL     = time.Hour
	seenMaxSize = 4096
)

// Recorder writes the users and rooms seen in Telegram updates to an IdentityStore
type Recorder struct {
	store  store.IdentityStore
	seen   *seenUpdates
	logger *slog.Logger
}

// NewRecorder creates a Recorder backed by s
func NewRecorder(s store.IdentityStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  s,
		seen:   newSeenUpdates(seenTTL, seenMaxSize),
		logger: logger.With("component", "telegram"),
	}
}

// Observe registers the sender and any new members of the message's chat.
// Bots are skipped. Updates without a message are ignored, as are update ids
// already recorded within the last hour.
func (r *Recorder) Observe(ctx context.Context, update telego.Update) error {
	msg := message(update)
	if msg == nil {
		return nil
	}

	if update.UpdateID > 0 && r.seen.has(update.UpdateID) {
		r.logger.Debug("skipping repeated update", "update_id", update.UpdateID)
		return nil
	}

	if err := r.record(ctx, msg); err != nil {
		return err
	}

	if update.UpdateID > 0 {
		r.seen.mark(update.UpdateID)
	}
	return nil
}

func (r *Recorder) record(ctx context.Context, msg *telego.Message) error {
	roomID := FormatID(msg.Chat.ID)
	roomName := RoomName(msg.Chat)

	if msg.From != nil && !msg.From.IsBot {
		if err := r.store.AddUserToRoom(ctx, FormatID(msg.From.ID), roomID, roomName); err != nil {
			return fmt.Errorf("recording sender: %w", err)
		}
	}

	for _, member := range msg.NewChatMembers {
		if member.IsBot {
			continue
		}
		if err := r.store.AddUserToRoom(ctx, FormatID(member.ID), roomID, roomName); err != nil {
			return fmt.Errorf("recording new member: %w", err)
		}
		r.logger.Debug("new chat member", "user", member.ID, "chat", msg.Chat.ID)
	}

	return nil
}

// ResolveSender returns the external user linked to the update's sender.
// Returns store.ErrNotFound if the sender has no link.
func (r *Recorder) ResolveSender(ctx context.Context, update telego.Update) (string, error) {
	msg := message(update)
	if msg == nil || msg.From == nil {
		return "", ErrNoSender
	}
	return r.store.GetExternalUserForChat(ctx, FormatID(msg.From.ID))
}

// RoomName picks a display name for a chat: its title, else @username,
// else the other party's name for private chats
func RoomName(chat telego.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	if chat.Username != "" {
		return "@" + chat.Username
	}
	return strings.TrimSpace(chat.FirstName + " " + chat.LastName)
}

// FormatID renders a Telegram numeric id as a platform identifier
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func message(update telego.Update) *telego.Message {
	if update.Message != nil {
		return update.Message
	}
	return update.EditedMessage
}
