// ABOUTME: Subcommand implementations for plaza-telegram-bridge
// ABOUTME: init/check resolve credentials; link/join/whois/users/rooms/record operate on the identity store

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mymmrac/telego"

	"github.com/2389/plaza-telegram-bridge/internal/config"
	"github.com/2389/plaza-telegram-bridge/internal/store"
	"github.com/2389/plaza-telegram-bridge/internal/telegram"
)

func (a *app) cmdInit(p config.Prompter) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	cyan.Fprint(a.out, banner)
	fmt.Fprintln(a.out, "    Interactive Setup")
	fmt.Fprintln(a.out, "    -----------------")
	fmt.Fprintln(a.out)

	provider := config.NewProvider(a.paths, os.LookupEnv, p)
	creds, err := provider.Resolve()
	if err != nil {
		return err
	}

	if err := validateToken(creds.BotToken); err != nil {
		return err
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintln(a.out)
	green.Fprintf(a.out, "    ✓ Credentials saved to %s\n", a.paths.CredentialsFile)
	green.Fprintf(a.out, "    ✓ Database ready at %s\n", a.paths.DatabasePath)
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "    Next steps:")
	fmt.Fprintln(a.out, "    1. Run: plaza-telegram-bridge check")
	fmt.Fprintln(a.out)

	return nil
}

func (a *app) cmdCheck() error {
	green := color.New(color.FgGreen)

	provider := config.NewProvider(a.paths, os.LookupEnv, nil)
	creds, err := provider.Resolve()
	if err != nil {
		return err
	}

	if err := validateToken(creds.BotToken); err != nil {
		return err
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	rows := [][2]string{
		{"Credentials", a.paths.CredentialsFile},
		{"Settings", a.paths.SettingsFile},
		{"Database", fmt.Sprintf("%s (%s)", a.paths.DatabasePath, s.Mode())},
		{"Bot", "@" + strings.TrimPrefix(creds.BotName, "@")},
		{"Token", maskToken(creds.BotToken)},
		{"Endpoint", creds.BridgeEndpoint},
		{"Maintainer", "@" + strings.TrimPrefix(creds.MaintainerHandle, "@")},
	}
	for _, row := range rows {
		green.Fprint(a.out, "    ▶ ")
		fmt.Fprintf(a.out, "%-12s%s\n", row[0]+":", row[1])
	}
	fmt.Fprintln(a.out)
	green.Fprintln(a.out, "    ✓ Configuration OK")

	return nil
}

// validateToken checks the token's shape without contacting Telegram
func validateToken(token string) error {
	if _, err := telego.NewBot(token, telego.WithDiscardLogger()); err != nil {
		return fmt.Errorf("%w: bot token: %v", config.ErrConfiguration, err)
	}
	return nil
}

// maskToken keeps the bot id and hides the secret part
func maskToken(token string) string {
	id, _, ok := strings.Cut(token, ":")
	if !ok {
		return "****"
	}
	return id + ":****"
}

func cmdLink(ctx context.Context, s store.IdentityStore, out io.Writer, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: link <chat-user> <external-user>")
	}

	if err := s.RegisterLink(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("registering link: %w", err)
	}

	color.New(color.FgGreen).Fprintf(out, "Linked chat user %s to %s\n", args[0], args[1])
	return nil
}

func cmdJoin(ctx context.Context, s store.IdentityStore, out io.Writer, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: join <chat-user> <room> <room-name>")
	}

	if err := s.AddUserToRoom(ctx, args[0], args[1], args[2]); err != nil {
		return fmt.Errorf("adding user to room: %w", err)
	}

	color.New(color.FgGreen).Fprintf(out, "Chat user %s is a member of %s\n", args[0], args[1])
	return nil
}

func cmdWhois(ctx context.Context, s store.IdentityStore, out io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: whois <chat-user>")
	}
	chatUser := args[0]

	registered, err := s.IsChatUserRegistered(ctx, chatUser)
	if err != nil {
		return err
	}
	if !registered {
		fmt.Fprintf(out, "Chat user %s has never been seen.\n", chatUser)
		return nil
	}

	current, err := s.GetExternalUserForChat(ctx, chatUser)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(out, "Chat user %s is not linked.\n", chatUser)
		return nil
	}
	if err != nil {
		return err
	}

	all, err := s.ListExternalUsersForChat(ctx, chatUser)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXTERNAL USER\tCURRENT")
	fmt.Fprintln(w, "-------------\t-------")
	for _, ext := range all {
		mark := ""
		if ext == current {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\n", ext, mark)
	}
	return w.Flush()
}

func cmdUsers(ctx context.Context, s store.IdentityStore, out io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: users <external-user>")
	}

	if ok, err := knownExternal(ctx, s, out, args[0]); !ok || err != nil {
		return err
	}

	users, err := s.GetChatUsersForExternal(ctx, args[0])
	if err != nil {
		return err
	}

	if len(users) == 0 {
		fmt.Fprintln(out, "No linked chat users.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHAT USER")
	fmt.Fprintln(w, "---------")
	for _, u := range users {
		fmt.Fprintln(w, u)
	}
	return w.Flush()
}

func cmdRooms(ctx context.Context, s store.IdentityStore, out io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rooms <external-user>")
	}

	if ok, err := knownExternal(ctx, s, out, args[0]); !ok || err != nil {
		return err
	}

	rooms, err := s.GetChatRoomsForExternal(ctx, args[0])
	if err != nil {
		return err
	}

	if len(rooms) == 0 {
		fmt.Fprintln(out, "No rooms.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tNAME\tVIA CHAT USER")
	fmt.Fprintln(w, "----\t----\t-------------")
	for _, r := range rooms {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ChatRoomID, r.RoomName, r.ChatUserID)
	}
	return w.Flush()
}

// knownExternal reports whether the external user exists, so that inspecting
// an unknown id from the CLI does not create it
func knownExternal(ctx context.Context, s store.IdentityStore, out io.Writer, externalUser string) (bool, error) {
	_, err := s.FindExternalUser(ctx, externalUser)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(out, "External user %s is unknown.\n", externalUser)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// cmdRecord feeds a stream of JSON-encoded Telegram updates through the recorder
func (a *app) cmdRecord(ctx context.Context, args []string, stdin io.Reader) error {
	in := stdin
	if len(args) > 1 {
		return errors.New("usage: record [file]")
	}
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening updates: %w", err)
		}
		defer f.Close()
		in = f
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := recordUpdates(ctx, telegram.NewRecorder(s, a.logger), in)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(a.out, "Recorded %d updates\n", n)
	return nil
}

func recordUpdates(ctx context.Context, r *telegram.Recorder, in io.Reader) (int, error) {
	dec := json.NewDecoder(in)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		var update telego.Update
		err := dec.Decode(&update)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("decoding update %d: %w", n+1, err)
		}

		if err := r.Observe(ctx, update); err != nil {
			return n, fmt.Errorf("recording update %d: %w", update.UpdateID, err)
		}
		n++
	}
}
