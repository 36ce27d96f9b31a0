// Package config loads config.json and applies environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	// Client side.
	ListenAddr        string   `json:"listen_addr" validate:"required"`
	KitchenURL        string   `json:"kitchen_url" validate:"required,url"`
	UploadPath        string   `json:"upload_path" validate:"required,startswith=/"`
	RecipesPath       string   `json:"recipes_path" validate:"required,startswith=/"`
	RequestTimeout    Duration `json:"request_timeout"`
	SessionIdleTTL    Duration `json:"session_idle_ttl"`
	SequenceRequests  bool     `json:"sequence_requests"`
	AllowOrigins      []string `json:"allow_origins" validate:"dive,required"`
	MaxUploadMegabyte int64    `json:"max_upload_mb" validate:"gte=1"`

	LogLevel string `json:"log_level" validate:"oneof=debug info warn error"`

	Kitchen Kitchen `json:"kitchen" validate:"-"`
}

// Kitchen configures the detection and recommendation service.
type Kitchen struct {
	ListenAddr    string `json:"listen_addr" validate:"required"`
	Provider      string `json:"provider" validate:"oneof=gemini local"`
	GeminiAPIKey  string `json:"gemini_api_key" validate:"required_if=Provider gemini"`
	GeminiModel   string `json:"gemini_model" validate:"required_if=Provider gemini"`
	LocalLLMURL   string `json:"local_llm_url" validate:"omitempty,url"`
	LocalLLMModel string `json:"local_llm_model"`
	DatabaseURL   string `json:"DATABASE_URL"`
	UploadDir     string `json:"upload_dir" validate:"required"`
}

// Duration is a time.Duration that reads as "30s" in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ListenAddr:        ":8081",
		KitchenURL:        "http://127.0.0.1:8000",
		UploadPath:        "/upload-image/",
		RecipesPath:       "/get-recipes/",
		SessionIdleTTL:    Duration(2 * time.Hour),
		AllowOrigins:      []string{"http://localhost:3000"},
		MaxUploadMegabyte: 10,
		LogLevel:          "info",
		Kitchen: Kitchen{
			ListenAddr:    ":8000",
			Provider:      "gemini",
			GeminiModel:   "gemini-1.5-flash",
			LocalLLMURL:   "http://localhost:1234/v1/chat/completions",
			LocalLLMModel: "gemma-3-12b-it:2",
			UploadDir:     "uploads",
		},
	}
}

// Load reads path on top of Default, then applies environment overrides from
// the process and an optional .env file. A missing file is not an error.
// Only the client settings are validated; see ValidateKitchen.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the client settings against their struct tags.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateKitchen checks the kitchen service settings.
func ValidateKitchen(k Kitchen) error {
	if err := validate.Struct(k); err != nil {
		return fmt.Errorf("invalid kitchen configuration: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.KitchenURL, "KITCHEN_URL")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Kitchen.ListenAddr, "KITCHEN_LISTEN_ADDR")
	setString(&cfg.Kitchen.Provider, "LLM_PROVIDER")
	setString(&cfg.Kitchen.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.Kitchen.LocalLLMURL, "LOCAL_LLM_URL")
	setString(&cfg.Kitchen.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Kitchen.UploadDir, "UPLOAD_DIR")

	if v, ok := os.LookupEnv("REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = Duration(d)
	}
	if v, ok := os.LookupEnv("SEQUENCE_REQUESTS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SEQUENCE_REQUESTS: %w", err)
		}
		cfg.SequenceRequests = b
	}
	return nil
}

func setString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}
