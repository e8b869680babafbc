// ABOUTME: Filesystem locations for the bridge's config record, settings file and database
// ABOUTME: Derived once at startup from XDG variables and passed explicitly to each component

package config

import (
	"os"
	"path/filepath"
)

// Environment variables that override default locations
const (
	EnvDatabasePath = "PLAZA_TELEGRAM_BRIDGE_DB_PATH"
	EnvSettingsPath = "PLAZA_TELEGRAM_BRIDGE_SETTINGS"
)

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// appDir is the bridge's subdirectory under both the XDG config and data homes
var appDir = filepath.Join("plaza", "bridges", "telegram")

// Paths holds every location the bridge reads or writes
type Paths struct {
	ConfigDir       string
	CredentialsFile string // JSON record of prompted settings
	SettingsFile    string // optional bridge.yaml / bridge.toml
	DataDir         string
	DatabasePath    string

	databaseFromEnv bool
}

// DefaultPaths derives the bridge's locations.
// Priority for the database: PLAZA_TELEGRAM_BRIDGE_DB_PATH > XDG_DATA_HOME/plaza/bridges/telegram/db.sqlite3 > ~/.local/share/...
// Priority for config: XDG_CONFIG_HOME/plaza/bridges/telegram > ~/.config/...
func DefaultPaths(lookup LookupFunc) Paths {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	configDir := filepath.Join(xdgHome(lookup, "XDG_CONFIG_HOME", ".config"), appDir)
	p := Paths{
		ConfigDir:       configDir,
		CredentialsFile: filepath.Join(configDir, "config.json"),
		SettingsFile:    filepath.Join(configDir, "bridge.yaml"),
	}

	if settings, ok := lookup(EnvSettingsPath); ok && settings != "" {
		p.SettingsFile = settings
	}

	if dbPath, ok := lookup(EnvDatabasePath); ok && dbPath != "" {
		p.DatabasePath = dbPath
		p.DataDir = filepath.Dir(dbPath)
		p.databaseFromEnv = true
	} else {
		p.DataDir = filepath.Join(xdgHome(lookup, "XDG_DATA_HOME", ".local", "share"), appDir)
		p.DatabasePath = filepath.Join(p.DataDir, "db.sqlite3")
	}

	return p
}

// WithSettings applies database.path from the settings file.
// An explicit PLAZA_TELEGRAM_BRIDGE_DB_PATH still wins.
func (p Paths) WithSettings(s *Settings) Paths {
	if s == nil || s.Database.Path == "" || p.databaseFromEnv {
		return p
	}
	p.DatabasePath = s.Database.Path
	p.DataDir = filepath.Dir(s.Database.Path)
	return p
}

// xdgHome returns $envVar, falling back to $HOME joined with fallback
func xdgHome(lookup LookupFunc, envVar string, fallback ...string) string {
	if dir, ok := lookup(envVar); ok && dir != "" {
		return dir
	}

	home, ok := lookup("HOME")
	if !ok || home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "." // fallback
		}
	}

	return filepath.Join(append([]string{home}, fallback...)...)
}
