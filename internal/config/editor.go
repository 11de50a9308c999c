package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"HeadTurner/pkg/dispatcher"
	"HeadTurner/pkg/gemini"
	"HeadTurner/pkg/openai"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var (
	ErrMissingCredential = errors.New("missing API credential")
	ErrInvalidConfig     = errors.New("invalid editor configuration")
)

// EditorConfig is the explicit handle for the image-edit provider and the
// cache in front of it.
type EditorConfig struct {
	Provider      string        `validate:"required,oneof=gemini openai"`
	APIKey        string        `validate:"required"`
	Model         string        `validate:"omitempty"`
	BaseURL       string        `validate:"omitempty,url"`
	Timeout       time.Duration `validate:"gt=0"`
	CacheTTL      time.Duration `validate:"gt=0"`
	FailureTTL    time.Duration `validate:"gte=0"`
	CacheCapacity int           `validate:"gte=0"`
	RatePerMinute int           `validate:"gte=0"`
}

func LoadEditorConfig(v *validator.Validate) (*EditorConfig, error) {
	cfg := &EditorConfig{
		Provider:   envOr("HEADTURNER_PROVIDER", ProviderGemini),
		Timeout:    dispatcher.DefaultTimeout,
		CacheTTL:   dispatcher.DefaultTTL,
		FailureTTL: 0,
	}

	var keyEnv string
	switch cfg.Provider {
	case ProviderGemini:
		keyEnv = "GEMINI_API_KEY"
		cfg.Model = os.Getenv("GEMINI_MODEL_NAME")
	case ProviderOpenAI:
		keyEnv = "OPENAI_API_KEY"
		cfg.Model = os.Getenv("OPENAI_IMAGE_MODEL")
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}

	cfg.APIKey = os.Getenv(keyEnv)
	if cfg.APIKey == "" && cfg.Provider == ProviderGemini {
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s is not set", ErrMissingCredential, keyEnv)
	}

	var err error
	if cfg.Timeout, err = durationEnv("HEADTURNER_TIMEOUT", cfg.Timeout); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationEnv("HEADTURNER_CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}
	if cfg.FailureTTL, err = durationEnv("HEADTURNER_FAILURE_TTL", cfg.FailureTTL); err != nil {
		return nil, err
	}
	if cfg.CacheCapacity, err = intEnv("HEADTURNER_CACHE_CAPACITY", 0); err != nil {
		return nil, err
	}
	if cfg.RatePerMinute, err = intEnv("HEADTURNER_RATE_PER_MINUTE", 0); err != nil {
		return nil, err
	}

	if v == nil {
		v = NewValidator()
	}
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// NewEditor builds the provider adapter selected by cfg. The returned close
// func releases provider resources.
func NewEditor(ctx context.Context, cfg *EditorConfig) (dispatcher.Editor, func() error, error) {
	switch cfg.Provider {
	case ProviderGemini:
		client, err := gemini.NewGeminiClient(ctx, gemini.Config{APIKey: cfg.APIKey, ModelName: cfg.Model})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, client.Close, nil
	case ProviderOpenAI:
		editor, err := openai.NewImageEditor(openai.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return editor, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// DispatcherOptions translates the cache and pacing settings.
func (c *EditorConfig) DispatcherOptions() []dispatcher.Option {
	opts := []dispatcher.Option{
		dispatcher.WithTimeout(c.Timeout),
		dispatcher.WithTTL(c.CacheTTL),
		dispatcher.WithFailureTTL(c.FailureTTL),
	}
	if c.RatePerMinute > 0 {
		opts = append(opts, dispatcher.WithLimiter(rate.NewLimiter(rate.Every(time.Minute/time.Duration(c.RatePerMinute)), c.RatePerMinute)))
	}
	return opts
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return n, nil
}
