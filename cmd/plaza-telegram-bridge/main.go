// ABOUTME: Entry point for plaza-telegram-bridge
// ABOUTME: Credential setup, health check and identity administration over the bridge database

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/plaza-telegram-bridge/internal/config"
	"github.com/2389/plaza-telegram-bridge/internal/store"
)

const banner = `
       _                         _       _
 _ __ | | __ _ ______ _        | |_ __ _| |
| '_ \| |/ _' |_  / _' |_____  | __/ _' | |
| |_) | | (_| |/ / (_| |_____| | || (_| | |
| .__/|_|\__,_/___\__,_|        \__\__, |_|
|_|                                |___/
`

// app carries everything a subcommand needs, built once in main
type app struct {
	paths    config.Paths
	settings *config.Settings
	logger   *slog.Logger
	out      io.Writer
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(os.Stdout)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "init":
		err = a.cmdInit(newTerminalPrompter(os.Stdin, os.Stdout))
	case "check":
		err = a.cmdCheck()
	case "link":
		err = a.withStore(ctx, args, cmdLink)
	case "join":
		err = a.withStore(ctx, args, cmdJoin)
	case "whois":
		err = a.withStore(ctx, args, cmdWhois)
	case "users":
		err = a.withStore(ctx, args, cmdUsers)
	case "rooms":
		err = a.withStore(ctx, args, cmdRooms)
	case "record":
		err = a.cmdRecord(ctx, args, os.Stdin)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp loads .env, derives paths and reads the optional settings file
func newApp(out io.Writer) (*app, error) {
	// .env is optional; real environment variables win over its values
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	paths := config.DefaultPaths(os.LookupEnv)

	settings, err := config.LoadSettings(paths.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("loading settings from %s: %w", paths.SettingsFile, err)
	}

	logger := setupLogger(settings.Logging, os.Stderr)
	slog.SetDefault(logger)

	return &app{
		paths:    paths.WithSettings(settings),
		settings: settings,
		logger:   logger,
		out:      out,
	}, nil
}

// openStore opens the identity database using the settings file's database section
func (a *app) openStore() (*store.SQLiteStore, error) {
	mode, err := store.ParseConnectionMode(a.settings.Database.Mode)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(a.paths.DatabasePath, store.Options{
		Mode:        mode,
		Driver:      a.settings.Database.Driver,
		BusyTimeout: a.settings.Database.BusyTimeout,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", a.paths.DatabasePath, err)
	}
	return s, nil
}

// storeCommand is an admin subcommand operating on an open store
type storeCommand func(ctx context.Context, s store.IdentityStore, out io.Writer, args []string) error

func (a *app) withStore(ctx context.Context, args []string, fn storeCommand) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, s, a.out, args)
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: plaza-telegram-bridge <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  init                                   Prompt for missing credentials and create the database")
	fmt.Println("  check                                  Verify credentials and database without prompting")
	fmt.Println("  link <chat-user> <external-user>       Link a Telegram user to a plaza user")
	fmt.Println("  join <chat-user> <room> <room-name>    Record a Telegram user as member of a chat")
	fmt.Println("  whois <chat-user>                      Show the plaza users linked to a Telegram user")
	fmt.Println("  users <external-user>                  List the Telegram users linked to a plaza user")
	fmt.Println("  rooms <external-user>                  List the chats reachable by a plaza user")
	fmt.Println("  record [file]                          Record users and chats from JSON updates (stdin if no file)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  TELEGRAM_BOT_TOKEN                Bot token from @BotFather")
	fmt.Println("  TELEGRAM_BOT_NAME                 Bot username")
	fmt.Println("  PLAZA_BRIDGE_ENDPOINT             Plaza bridge endpoint")
	fmt.Println("  MAINTAINER_TELEGRAM_HANDLE        Maintainer handle (default: kenkeiras)")
	fmt.Println("  PLAZA_TELEGRAM_BRIDGE_DB_PATH     Database path override")
	fmt.Println("  PLAZA_TELEGRAM_BRIDGE_SETTINGS    Settings file override")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  plaza-telegram-bridge init")
	fmt.Println("  plaza-telegram-bridge link 123456789 ana@plaza")
	fmt.Println("  plaza-telegram-bridge rooms ana@plaza")
	fmt.Println()
}
