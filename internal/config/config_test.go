package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "bugbot", cfg.Name)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
	assert.Equal(t, MaxConversationTurns, cfg.Session.MaxTurns)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bugbot", "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Model = "test/model"
	cfg.Session.MaxTurns = 12
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test/model", loaded.LLM.Model)
	assert.Equal(t, 12, loaded.Session.MaxTurns)
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "env-key")
	t.Setenv("OPENROUTER_MODEL", "env/model")
	t.Setenv("BUGBOT_RESULTS", "env-results")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "env/model", cfg.LLM.Model)
	assert.Equal(t, "env-results", cfg.Session.ResultsDir)
}

func TestGetLLMTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())

	cfg.LLM.Timeout = "garbage"
	assert.Equal(t, 2*time.Minute, cfg.GetLLMTimeout())

	cfg.LLM.Timeout = "30s"
	assert.Equal(t, 30*time.Second, cfg.GetLLMTimeout())
}

func TestMaxTurnsFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.MaxTurns = 0
	assert.Equal(t, MaxConversationTurns, cfg.MaxTurns())

	cfg.Session.MaxTurns = -5
	assert.Equal(t, MaxConversationTurns, cfg.MaxTurns())
}

func TestValidateRequiresCredentials(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(), "missing api key must fail validation")

	cfg.LLM.APIKey = "key"
	require.Error(t, cfg.Validate(), "missing model must fail validation")

	cfg.LLM.Model = "some/model"
	assert.NoError(t, cfg.Validate())
}
