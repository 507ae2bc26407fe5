package playground

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Desarso/playground/models/anthropic"
	"github.com/Desarso/playground/models/gemini"
	"github.com/Desarso/playground/models/openrouter"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, 1500, cfg.MaxTokens)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, "App", cfg.EntryPoint)
	assert.Equal(t, 2*time.Second, cfg.RenderTimeout)
	assert.Nil(t, cfg.Archive)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Builders(t *testing.T) {
	cfg := NewConfig().
		WithAddr(":9000").
		WithProvider("groq", "llama-3.1-8b-instant").
		WithEntryPoint("Widget").
		WithRenderTimeout(time.Second).
		WithSessionIdleTimeout(time.Hour).
		WithSQLiteArchive("archive.db")

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "groq", cfg.Provider)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Model)
	assert.Equal(t, "Widget", cfg.EntryPoint)
	assert.Equal(t, time.Second, cfg.RenderTimeout)
	assert.Equal(t, time.Hour, cfg.SessionIdleTimeout)
	assert.Equal(t, "sqlite", cfg.Archive.Type)
	assert.Equal(t, "archive.db", cfg.Archive.Connection)
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"PLAYGROUND_PROVIDER":             "gemini",
		"PLAYGROUND_MODEL":                "gemini-2.0-flash",
		"PLAYGROUND_MAX_TOKENS":           "2048",
		"PLAYGROUND_TEMPERATURE":          "0.2",
		"PLAYGROUND_RENDER_TIMEOUT":       "500ms",
		"PLAYGROUND_ARCHIVE":              "postgres:host=localhost dbname=playground",
		"PLAYGROUND_ADDR":                 "",
		"PLAYGROUND_SESSION_IDLE_TIMEOUT": "10m",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := NewConfig()
	require.NoError(t, cfg.applyEnv(lookup))

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, 500*time.Millisecond, cfg.RenderTimeout)
	assert.Equal(t, 10*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "postgres", cfg.Archive.Type)
	assert.Equal(t, "host=localhost dbname=playground", cfg.Archive.Connection)
}

func TestConfig_ApplyEnvRejectsBadNumbers(t *testing.T) {
	for _, name := range []string{"PLAYGROUND_MAX_TOKENS", "PLAYGROUND_TEMPERATURE", "PLAYGROUND_RENDER_TIMEOUT"} {
		lookup := func(k string) (string, bool) {
			if k == name {
				return "lots", true
			}
			return "", false
		}
		assert.Error(t, NewConfig().applyEnv(lookup), name)
	}
}

func TestLoadConfig_YAMLFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playground.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7000"
provider: openrouter
model: anthropic/claude-3.5-sonnet
render_timeout: 3s
archive:
  type: sqlite
  connection: transcripts.db
`), 0o644))

	t.Setenv("PLAYGROUND_MODEL", "openai/gpt-4o")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "openrouter", cfg.Provider)
	assert.Equal(t, "openai/gpt-4o", cfg.Model)
	assert.Equal(t, 3*time.Second, cfg.RenderTimeout)
	assert.Equal(t, 1500, cfg.MaxTokens)
	require.NotNil(t, cfg.Archive)
	assert.Equal(t, "transcripts.db", cfg.Archive.Connection)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unclosed"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	path = filepath.Join(t.TempDir(), "provider.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: carrier-pigeon"), 0o644))
	_, err = LoadConfig(path)
	assert.EqualError(t, err, "unsupported provider: carrier-pigeon")
}

func TestNewGateway(t *testing.T) {
	logger := logrus.New()

	gw, err := NewGateway(NewConfig(), logger)
	require.NoError(t, err)
	a, ok := gw.(*anthropic.Anthropic_Model)
	require.True(t, ok)
	assert.Equal(t, 1500, *a.MaxTokens)
	assert.Equal(t, 0.7, *a.Temperature)

	gw, err = NewGateway(NewConfig().WithProvider("gemini", ""), logger)
	require.NoError(t, err)
	assert.IsType(t, &gemini.Gemini_Model{}, gw)

	gw, err = NewGateway(NewConfig().WithProvider("cerebras", "llama3.1-8b"), logger)
	require.NoError(t, err)
	o, ok := gw.(*openrouter.OpenRouter_Model)
	require.True(t, ok)
	assert.Equal(t, openrouter.PresetCerebras, o.Preset)
	assert.Equal(t, "llama3.1-8b", o.Model)

	_, err = NewGateway(NewConfig().WithProvider("nope", ""), logger)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := NewConfig()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"

	logger := NewLogger(cfg)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
