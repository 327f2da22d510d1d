package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/hooshi/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvDatabase, EnvAPIKey, EnvModel, EnvOpenAI} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, snapshot.DriverBolt, cfg.Database.SnapshotDriver)
	assert.Equal(t, 5, cfg.Database.InitAttempts)
	assert.Equal(t, "gpt-4-turbo", cfg.AI.Model)
	assert.Equal(t, "هوشی", cfg.AI.AssistantName)
	assert.Equal(t, 60, cfg.Usage.RetentionDays)
	assert.Empty(t, cfg.AI.APIKey)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileOptional(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"), false)
	require.NoError(t, err)
	assert.Equal(t, Default().AI.Model, cfg.AI.Model)
}

func TestLoad_MissingFileRequired(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_OverlaysFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
log_level = "debug"

[database]
path = "/tmp/hooshi"
snapshot_driver = "sqlite"

[ai]
model = "gpt-3.5-turbo"
api_key = "sk-file"
prioritize_memory = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/hooshi", cfg.Database.Path)
	assert.Equal(t, snapshot.DriverSQLite, cfg.Database.SnapshotDriver)
	assert.Equal(t, "gpt-3.5-turbo", cfg.AI.Model)
	assert.Equal(t, "sk-file", cfg.AI.APIKey)
	assert.True(t, cfg.AI.PrioritizeMemory)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1000, cfg.AI.MaxTokens)
	assert.Equal(t, 30, cfg.Usage.SummaryDays)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ai]\nmodle = \"x\"\n"), 0o600))

	_, err := Load(path, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config keys")
}

func TestLoad_RejectsBadTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ai\n"), 0o600))

	_, err := Load(path, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode TOML file")
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[database]\nsnapshot_driver = \"leveldb\"\n"), 0o600))

	_, err := Load(path, true)
	assert.ErrorIs(t, err, snapshot.ErrUnknownDriver)
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDatabase, "/data/hooshi")
	t.Setenv(EnvAPIKey, "sk-env")
	t.Setenv(EnvModel, "gpt-4o")

	cfg := Default()
	cfg.AI.APIKey = "sk-file"
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "/data/hooshi", cfg.Database.Path)
	assert.Equal(t, "sk-env", cfg.AI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
}

func TestApplyEnvOverrides_OpenAIKeyIsFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOpenAI, "sk-openai")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "sk-openai", cfg.AI.APIKey)

	cfg.AI.APIKey = "sk-file"
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "sk-file", cfg.AI.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Database.InitAttempts = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Usage.HistoryLimit = -5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Database.SnapshotDriver = snapshot.DriverMemory
	assert.NoError(t, cfg.Validate())
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.AI.APIKey = "sk-saved"
	cfg.AI.Temperature = 1.2
	cfg.Usage.HistoryLimit = 25
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestChatConfig(t *testing.T) {
	cfg := Default()
	cfg.AI.APIKey = "sk-test"
	cfg.AI.Model = "gpt-3.5-turbo"
	cfg.AI.PrioritizeMemory = true

	chat := cfg.ChatConfig()
	assert.Equal(t, "sk-test", chat.Token)
	assert.Equal(t, "gpt-3.5-turbo", chat.Model)
	assert.True(t, chat.PrioritizeMemory)
	assert.False(t, chat.Simulated())
	require.NoError(t, chat.Validate())
}
