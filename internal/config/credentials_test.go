// ABOUTME: Tests for credential resolution order and the JSON record
// ABOUTME: Drives prompts through a scripted LinePrompter

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaths(t *testing.T) Paths {
	t.Helper()
	home := t.TempDir()
	return DefaultPaths(envMap(map[string]string{"HOME": home}))
}

func writeRecordFile(t *testing.T, path string, record map[string]any) {
	t.Helper()
	require.NoError(t, writeRecord(path, record))
}

func readRecordFile(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	record := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &record))
	return record
}

func TestProvider_EnvironmentWins(t *testing.T) {
	paths := testPaths(t)
	writeRecordFile(t, paths.CredentialsFile, map[string]any{"telegram_bot_token": "from-record"})

	p := NewProvider(paths, envMap(map[string]string{EnvBotToken: "from-env"}), nil)

	token, err := p.BotToken()
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}

func TestProvider_EmptyEnvironmentStillWins(t *testing.T) {
	paths := testPaths(t)
	writeRecordFile(t, paths.CredentialsFile, map[string]any{"telegram_bot_name": "record_bot"})

	p := NewProvider(paths, envMap(map[string]string{EnvBotName: ""}), nil)

	name, err := p.BotName()
	require.NoError(t, err)
	assert.Equal(t, "", name)
}

func TestProvider_RecordFallback(t *testing.T) {
	paths := testPaths(t)
	writeRecordFile(t, paths.CredentialsFile, map[string]any{
		"telegram_bot_token":    "123:abc",
		"telegram_bot_name":     "plaza_bot",
		"plaza_bridge_endpoint": "wss://plaza.example/bridge",
	})

	p := NewProvider(paths, envMap(nil), nil)

	creds, err := p.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", creds.BotToken)
	assert.Equal(t, "plaza_bot", creds.BotName)
	assert.Equal(t, "wss://plaza.example/bridge", creds.BridgeEndpoint)
	assert.Equal(t, DefaultMaintainerHandle, creds.MaintainerHandle)
}

func TestProvider_PromptPersists(t *testing.T) {
	paths := testPaths(t)
	var out strings.Builder
	prompter := NewLinePrompter(strings.NewReader("  123:abc  \nplaza_bot\nwss://plaza.example/bridge\n"), &out)

	p := NewProvider(paths, envMap(nil), prompter)

	creds, err := p.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", creds.BotToken)
	assert.Equal(t, "plaza_bot", creds.BotName)
	assert.Equal(t, "wss://plaza.example/bridge", creds.BridgeEndpoint)

	assert.Contains(t, out.String(), "Bot token: ")
	assert.Contains(t, out.String(), "Plaza bridge endpoint: ")

	record := readRecordFile(t, paths.CredentialsFile)
	assert.Equal(t, "123:abc", record["telegram_bot_token"])
	assert.Equal(t, "plaza_bot", record["telegram_bot_name"])
	assert.Equal(t, "wss://plaza.example/bridge", record["plaza_bridge_endpoint"])

	info, err := os.Stat(paths.CredentialsFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A second provider reads the saved values without prompting
	again := NewProvider(paths, envMap(nil), nil)
	token, err := again.BotToken()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", token)
}

func TestProvider_PromptWithoutTrailingNewline(t *testing.T) {
	paths := testPaths(t)
	prompter := NewLinePrompter(strings.NewReader("plaza_bot"), &strings.Builder{})

	name, err := NewProvider(paths, envMap(nil), prompter).BotName()
	require.NoError(t, err)
	assert.Equal(t, "plaza_bot", name)
}

func TestProvider_EmptyPromptFails(t *testing.T) {
	for _, input := range []string{"\n", "   \n", ""} {
		paths := testPaths(t)
		prompter := NewLinePrompter(strings.NewReader(input), &strings.Builder{})

		_, err := NewProvider(paths, envMap(nil), prompter).BridgeEndpoint()
		require.ErrorIs(t, err, ErrConfiguration)

		_, statErr := os.Stat(paths.CredentialsFile)
		assert.True(t, os.IsNotExist(statErr), "nothing should be saved for input %q", input)
	}
}

func TestProvider_NilPrompterFails(t *testing.T) {
	_, err := NewProvider(testPaths(t), envMap(nil), nil).BotToken()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), EnvBotToken)
}

func TestProvider_PreservesUnknownKeys(t *testing.T) {
	paths := testPaths(t)
	writeRecordFile(t, paths.CredentialsFile, map[string]any{
		"telegram_bot_token": "123:abc",
		"extra":              "keep me",
	})
	prompter := NewLinePrompter(strings.NewReader("plaza_bot\n"), &strings.Builder{})

	_, err := NewProvider(paths, envMap(nil), prompter).BotName()
	require.NoError(t, err)

	record := readRecordFile(t, paths.CredentialsFile)
	assert.Equal(t, "keep me", record["extra"])
	assert.Equal(t, "123:abc", record["telegram_bot_token"])
	assert.Equal(t, "plaza_bot", record["telegram_bot_name"])
}

func TestProvider_CorruptRecord(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.CredentialsFile), 0700))
	require.NoError(t, os.WriteFile(paths.CredentialsFile, []byte("{not json"), 0600))

	_, err := NewProvider(paths, envMap(nil), nil).BotToken()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config record")
}

func TestProvider_MaintainerHandle(t *testing.T) {
	paths := testPaths(t)

	assert.Equal(t, "kenkeiras", NewProvider(paths, envMap(nil), nil).MaintainerHandle())
	assert.Equal(t, "someone", NewProvider(paths, envMap(map[string]string{EnvMaintainerHandle: "someone"}), nil).MaintainerHandle())
}
