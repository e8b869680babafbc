// ABOUTME: Credential resolution for the Telegram bot and the plaza bridge endpoint
// ABOUTME: Each value comes from the environment, then the JSON record, then an interactive prompt

package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrConfiguration is returned when a required setting cannot be obtained
var ErrConfiguration = errors.New("configuration error")

// Environment variables read by Provider
const (
	EnvBotToken         = "TELEGRAM_BOT_TOKEN"
	EnvBotName          = "TELEGRAM_BOT_NAME"
	EnvBridgeEndpoint   = "PLAZA_BRIDGE_ENDPOINT"
	EnvMaintainerHandle = "MAINTAINER_TELEGRAM_HANDLE"
)

// DefaultMaintainerHandle is used when MAINTAINER_TELEGRAM_HANDLE is not set
const DefaultMaintainerHandle = "kenkeiras"

// setting describes one prompted value
type setting struct {
	env    string // environment variable checked first
	key    string // key in the JSON record
	label  string // prompt label
	secret bool   // hide input when prompting
}

var (
	botTokenSetting       = setting{env: EnvBotToken, key: "telegram_bot_token", label: "Bot token", secret: true}
	botNameSetting        = setting{env: EnvBotName, key: "telegram_bot_name", label: "Bot name"}
	bridgeEndpointSetting = setting{env: EnvBridgeEndpoint, key: "plaza_bridge_endpoint", label: "Plaza bridge endpoint"}
)

// Prompter asks the operator for a missing value
type Prompter interface {
	Prompt(label string, secret bool) (string, error)
}

// Credentials is the full set of values the bridge needs at startup
type Credentials struct {
	BotToken         string
	BotName          string
	BridgeEndpoint   string
	MaintainerHandle string
}

// Provider resolves credentials. It is meant to be used once at startup from a
// single goroutine; the record file has no locking.
type Provider struct {
	credentialsFile string
	lookup          LookupFunc
	prompter        Prompter
	logger          *slog.Logger
}

// NewProvider creates a Provider reading the record at paths.CredentialsFile.
// A nil prompter makes missing values fail with ErrConfiguration instead of prompting.
func NewProvider(paths Paths, lookup LookupFunc, prompter Prompter) *Provider {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Provider{
		credentialsFile: paths.CredentialsFile,
		lookup:          lookup,
		prompter:        prompter,
		logger:          slog.Default().With("component", "config"),
	}
}

// BotToken returns the Telegram bot token
func (p *Provider) BotToken() (string, error) {
	return p.resolve(botTokenSetting)
}

// BotName returns the Telegram bot username
func (p *Provider) BotName() (string, error) {
	return p.resolve(botNameSetting)
}

// BridgeEndpoint returns the plaza bridge endpoint
func (p *Provider) BridgeEndpoint() (string, error) {
	return p.resolve(bridgeEndpointSetting)
}

// MaintainerHandle returns the Telegram handle of the bridge maintainer.
// It never prompts and never fails.
func (p *Provider) MaintainerHandle() string {
	if handle, ok := p.lookup(EnvMaintainerHandle); ok {
		return handle
	}
	return DefaultMaintainerHandle
}

// Resolve obtains every credential, prompting for each missing one in turn
func (p *Provider) Resolve() (*Credentials, error) {
	var creds Credentials
	var err error

	if creds.BotToken, err = p.BotToken(); err != nil {
		return nil, err
	}
	if creds.BotName, err = p.BotName(); err != nil {
		return nil, err
	}
	if creds.BridgeEndpoint, err = p.BridgeEndpoint(); err != nil {
		return nil, err
	}
	creds.MaintainerHandle = p.MaintainerHandle()

	return &creds, nil
}

func (p *Provider) resolve(s setting) (string, error) {
	// A set variable wins even when empty
	if v, ok := p.lookup(s.env); ok {
		return v, nil
	}

	record, err := readRecord(p.credentialsFile)
	if err != nil {
		return "", err
	}
	if v, ok := record[s.key].(string); ok && v != "" {
		return v, nil
	}

	if p.prompter == nil {
		return "", fmt.Errorf("%w: %s is not set (export %s or run init)", ErrConfiguration, strings.ToLower(s.label), s.env)
	}

	v, err := p.prompter.Prompt(s.label, s.secret)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(s.label), err)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: no %s introduced", ErrConfiguration, strings.ToLower(s.label))
	}

	record[s.key] = v
	if err := writeRecord(p.credentialsFile, record); err != nil {
		return "", err
	}

	p.logger.Info("saved setting", "key", s.key, "path", p.credentialsFile)
	return v, nil
}

// readRecord loads the whole JSON record. A missing file is an empty record.
func readRecord(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config record: %w", err)
	}

	record := map[string]any{}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parsing config record %s: %w", path, err)
	}
	return record, nil
}

// writeRecord rewrites the whole JSON record. The file holds the bot token, so
// it is only readable by the owner.
func writeRecord(path string, record map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config record: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config record: %w", err)
	}
	return nil
}

// LinePrompter reads answers line by line. Secret values are read the same way,
// so use it for piped input and tests rather than a terminal.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter creates a LinePrompter over in, writing prompts to out
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Prompt writes "label: " and returns the next line without its newline
func (lp *LinePrompter) Prompt(label string, _ bool) (string, error) {
	fmt.Fprintf(lp.out, "%s: ", label)
	line, err := lp.in.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}
