// Package config resolves the bridge's credentials, locations and settings.
//
// # Overview
//
// Three pieces, all constructed once at startup and passed explicitly:
//
//   - Paths: where the credentials record, settings file and database live
//   - Provider: bot token, bot name, bridge endpoint and maintainer handle
//   - Settings: optional logging and database tuning
//
// # Credentials
//
// Each prompted value is resolved in order:
//
//  1. Environment variable (TELEGRAM_BOT_TOKEN, TELEGRAM_BOT_NAME, PLAZA_BRIDGE_ENDPOINT)
//  2. JSON record at $XDG_CONFIG_HOME/plaza/bridges/telegram/config.json
//  3. Interactive prompt; the answer is saved back to the record
//
// An empty answer fails with ErrConfiguration. The record is read and
// rewritten as a whole; only one process should write it.
//
// MAINTAINER_TELEGRAM_HANDLE is read from the environment with a fixed
// default and never prompted.
//
// # Settings File
//
// Default location: $XDG_CONFIG_HOME/plaza/bridges/telegram/bridge.yaml,
// overridable with PLAZA_TELEGRAM_BRIDGE_SETTINGS. A .toml extension selects
// TOML. The file is optional.
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
//	database:
//	  path: "${HOME}/bridge.sqlite3"
//	  driver: "sqlite"
//	  mode: "pooled"
//	  busy_timeout: "5s"
//
// Values can reference environment variables with ${VAR_NAME}.
// PLAZA_TELEGRAM_BRIDGE_DB_PATH takes precedence over database.path.
package config
