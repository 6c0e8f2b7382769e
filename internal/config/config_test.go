package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raine/seller-insights/internal/llm"
	"github.com/raine/seller-insights/internal/prompts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envFrom(map[string]string{"GEMINI_API_KEY": "key"}))
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "insights.db", cfg.DBPath)
	assert.True(t, cfg.LedgerEnabled())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, llm.DefaultRetryPolicy, cfg.Retry)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Nil(t, cfg.Profiles)
	assert.Equal(t, 90*24*time.Hour, cfg.LedgerRetention)
	assert.Empty(t, cfg.GeminiBaseURL)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	_, err := load(envFrom(nil))
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(envFrom(map[string]string{
		"GEMINI_API_KEY":       "key",
		"LISTEN_ADDR":          "127.0.0.1:9000",
		"INSIGHTS_DB_PATH":     "off",
		"CORS_ALLOWED_ORIGINS": "http://localhost:5173, https://dash.example.com ,",
		"RETRY_MAX":            "5",
		"RETRY_INITIAL_DELAY":  "250ms",
		"LOG_LEVEL":            "debug",
		"LEDGER_RETENTION":     "0",
		"GEMINI_BASE_URL":      "http://127.0.0.1:8081",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.False(t, cfg.LedgerEnabled())
	assert.Equal(t, []string{"http://localhost:5173", "https://dash.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, llm.RetryPolicy{MaxRetries: 5, InitialDelay: 250 * time.Millisecond}, cfg.Retry)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Zero(t, cfg.LedgerRetention)
	assert.Equal(t, "http://127.0.0.1:8081", cfg.GeminiBaseURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"RETRY_MAX":           "-1",
		"RETRY_INITIAL_DELAY": "soon",
		"LOG_LEVEL":           "loud",
		"LEDGER_RETENTION":    "-1h",
		"PROFILES_FILE":       filepath.Join(t.TempDir(), "missing.yaml"),
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := load(envFrom(map[string]string{"GEMINI_API_KEY": "key", key: value}))
			assert.Error(t, err)
		})
	}
}

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `
profiles:
  strategy:
    model: gemini-2.5-pro
    thinking_budget: 2048
  market-research:
    model: gemini-2.5-flash-lite
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)

	assert.Equal(t, map[prompts.Feature]prompts.Profile{
		prompts.FeatureStrategy:       {Model: "gemini-2.5-pro", ThinkingBudget: 2048},
		prompts.FeatureMarketResearch: {Model: "gemini-2.5-flash-lite"},
	}, profiles)
}

func TestLoadProfiles_UnknownFeature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  sales:\n    model: x\n"), 0o600))

	_, err := LoadProfiles(path)
	assert.ErrorContains(t, err, "sales")
}
