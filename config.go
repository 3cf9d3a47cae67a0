package interview

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds configuration loaded from the environment and an optional config file.
type AppConfig struct {
	Provider       string
	GeminiAPI      string
	ModelID        string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OllamaHost     string
	DatabaseURL    string
	PersonaDir     string
	DefaultPersona string
	MaxQuestions   int
	MaxTokens      int
	Temperature    float32
	RequestTimeout time.Duration
	Workers        int
}

// DefaultConfig returns an AppConfig with sensible defaults.
func DefaultConfig() AppConfig {
	return AppConfig{
		Provider:       "gemini",
		ModelID:        "gemini-2.5-flash",
		OllamaHost:     "http://localhost:11434",
		DefaultPersona: "FORMAL",
		MaxQuestions:   5,
		MaxTokens:      300,
		Temperature:    0.7,
		RequestTimeout: 20 * time.Second,
		Workers:        8,
	}
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// If INTERVIEW_CONFIG points at a YAML file it is read first; env vars win over it.
func LoadConfig() (AppConfig, error) {
	return loadConfig(viper.New(), os.Getenv("INTERVIEW_CONFIG"))
}

func loadConfig(v *viper.Viper, file string) (AppConfig, error) {
	def := DefaultConfig()
	v.SetDefault("provider", def.Provider)
	v.SetDefault("model_id", def.ModelID)
	v.SetDefault("ollama_host", def.OllamaHost)
	v.SetDefault("default_persona", def.DefaultPersona)
	v.SetDefault("max_questions", def.MaxQuestions)
	v.SetDefault("max_tokens", def.MaxTokens)
	v.SetDefault("temperature", def.Temperature)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("workers", def.Workers)

	for _, key := range []string{"gemini_api", "openai_api_key", "openai_base_url", "database_url", "persona_dir"} {
		if err := v.BindEnv(key); err != nil {
			return AppConfig{}, fmt.Errorf("interview: bind env %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("interview: read config %s: %w", file, err)
		}
	}

	cfg := AppConfig{
		Provider:       v.GetString("provider"),
		GeminiAPI:      v.GetString("gemini_api"),
		ModelID:        v.GetString("model_id"),
		OpenAIAPIKey:   v.GetString("openai_api_key"),
		OpenAIBaseURL:  v.GetString("openai_base_url"),
		OllamaHost:     v.GetString("ollama_host"),
		DatabaseURL:    v.GetString("database_url"),
		PersonaDir:     v.GetString("persona_dir"),
		DefaultPersona: v.GetString("default_persona"),
		MaxQuestions:   v.GetInt("max_questions"),
		MaxTokens:      v.GetInt("max_tokens"),
		Temperature:    float32(v.GetFloat64("temperature")),
		RequestTimeout: v.GetDuration("request_timeout"),
		Workers:        v.GetInt("workers"),
	}

	// Non-positive values fall back to defaults, as MAX_TOKENS always has.
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = def.MaxQuestions
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}

	return cfg, nil
}
