package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.InDelta(t, 0.5, cfg.Debate.WinThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Debate.VoteConcurrency)
	assert.Equal(t, 30*time.Millisecond, cfg.Debate.BroadcastDebounce)
	assert.Equal(t, 30*time.Second, cfg.Debate.ChannelGrace)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Database.Name, cfg.Database.Name)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
debate:
  win_threshold: 2.5
  vote_scale: 100
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.InDelta(t, 2.5, cfg.Debate.WinThreshold, 1e-9)
	assert.InDelta(t, 100, cfg.Debate.VoteScale, 1e-9)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3, cfg.Debate.VoteConcurrency)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644))

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DB_PASSWORD", "hunter2")
	t.Setenv("DEBATE_WIN_THRESHOLD", "1.25")
	t.Setenv("DEBATE_VOTE_CONCURRENCY", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.InDelta(t, 1.25, cfg.Debate.WinThreshold, 1e-9)
	assert.Equal(t, 8, cfg.Debate.VoteConcurrency)
}

func TestLoad_UnparsableEnvKeepsDefault(t *testing.T) {
	t.Setenv("DEBATE_VOTE_CONCURRENCY", "many")
	t.Setenv("DEBATE_WIN_THRESHOLD", "high")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Debate.VoteConcurrency)
	assert.InDelta(t, 0.5, cfg.Debate.WinThreshold, 1e-9)
}

func TestConnString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", d.ConnString())
}
