package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envValue)
			assert.Equal(t, tc.expected, getEnvOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envValue)
			assert.Equal(t, tc.expected, getEnvAsIntOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"go duration", "90s", 90 * time.Second},
		{"bare minutes", "15", 15 * time.Minute},
		{"garbage falls back", "soon", time.Hour},
		{"empty falls back", "", time.Hour},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tc.envValue)
			assert.Equal(t, tc.expected, getEnvAsDurationOrDefault("TEST_DURATION", time.Hour))
		})
	}
}

func TestGetEnvAsStrictDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"go duration", "150ms", 150 * time.Millisecond},
		{"zero", "0s", 0},
		{"bare number falls back", "300", 300 * time.Millisecond},
		{"negative falls back", "-1s", 300 * time.Millisecond},
		{"empty falls back", "", 300 * time.Millisecond},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_STRICT_DURATION", tc.envValue)
			assert.Equal(t, tc.expected, getEnvAsStrictDurationOrDefault("TEST_STRICT_DURATION", 300*time.Millisecond))
		})
	}
}

func TestLoad_FlipDelayIgnoresBareNumber(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key123")
	t.Setenv("FLASHCARD_FLIP_DELAY", "300")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, cfg.FlashcardFlipDelay)
}

func TestLoad_MissingCredential(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")

	cfg, err := Load()
	require.ErrorIs(t, err, ErrMissingCredential)
	assert.Nil(t, cfg)
}

func TestLoad_FallsBackToAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "legacy-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", cfg.GeminiAPIKey)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key123")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("MAX_IMAGE_MB", "")
	t.Setenv("QNA_HISTORY_LIMIT", "")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("FLASHCARD_FLIP_DELAY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "key123", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxImageBytes)
	assert.Equal(t, 40, cfg.QnAHistoryLimit)
	assert.Equal(t, 300*time.Millisecond, cfg.FlashcardFlipDelay)
	assert.Len(t, cfg.SessionSecret, 64, "a random secret is generated when none is configured")
}
