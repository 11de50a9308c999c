package config

import (
	"context"
	"testing"
	"time"

	"HeadTurner/pkg/dispatcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEditorEnv(t *testing.T) {
	for _, key := range []string{
		"HEADTURNER_PROVIDER", "GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_MODEL_NAME",
		"OPENAI_API_KEY", "OPENAI_IMAGE_MODEL", "OPENAI_BASE_URL",
		"HEADTURNER_TIMEOUT", "HEADTURNER_CACHE_TTL", "HEADTURNER_FAILURE_TTL",
		"HEADTURNER_CACHE_CAPACITY", "HEADTURNER_RATE_PER_MINUTE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadEditorConfig_Defaults(t *testing.T) {
	clearEditorEnv(t)
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := LoadEditorConfig(nil)

	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, dispatcher.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Zero(t, cfg.FailureTTL)
	assert.Len(t, cfg.DispatcherOptions(), 3)
}

func TestLoadEditorConfig_MissingCredential(t *testing.T) {
	clearEditorEnv(t)

	_, err := LoadEditorConfig(nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	t.Setenv("HEADTURNER_PROVIDER", ProviderOpenAI)
	t.Setenv("GEMINI_API_KEY", "not-used")
	_, err = LoadEditorConfig(nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoadEditorConfig_GoogleKeyFallback(t *testing.T) {
	clearEditorEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-secret")

	cfg, err := LoadEditorConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "google-secret", cfg.APIKey)

	t.Setenv("GEMINI_API_KEY", "gemini-secret")
	cfg, err = LoadEditorConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini-secret", cfg.APIKey)

	// The fallback is Gemini-only.
	t.Setenv("HEADTURNER_PROVIDER", ProviderOpenAI)
	_, err = LoadEditorConfig(nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestLoadEditorConfig_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"unknown provider":  {"HEADTURNER_PROVIDER", "stability"},
		"bad duration":      {"HEADTURNER_TIMEOUT", "soon"},
		"negative timeout":  {"HEADTURNER_TIMEOUT", "-5s"},
		"bad capacity":      {"HEADTURNER_CACHE_CAPACITY", "lots"},
		"negative capacity": {"HEADTURNER_CACHE_CAPACITY", "-1"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEditorEnv(t)
			t.Setenv("GEMINI_API_KEY", "secret")
			t.Setenv(kv[0], kv[1])

			_, err := LoadEditorConfig(nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadEditorConfig_OpenAI(t *testing.T) {
	clearEditorEnv(t)
	t.Setenv("HEADTURNER_PROVIDER", ProviderOpenAI)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("HEADTURNER_RATE_PER_MINUTE", "10")

	cfg, err := LoadEditorConfig(NewValidator())
	require.NoError(t, err)
	assert.Len(t, cfg.DispatcherOptions(), 4)

	editor, closeFn, err := NewEditor(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, editor)
	assert.NoError(t, closeFn())
}
