package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Gemini GeminiConfig
	App    AppConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type AppConfig struct {
	MaxUploadSize  int64
	AllowedFormats []string
	HistoryLimit   int
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_HOST", "localhost")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-flash-image-preview")
	viper.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	viper.SetDefault("GEMINI_TIMEOUT", "120s")
	viper.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	viper.SetDefault("APP_ALLOWED_FORMATS", []string{".jpg", ".jpeg", ".png", ".webp"})
	viper.SetDefault("APP_HISTORY_LIMIT", 20)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		Gemini: GeminiConfig{
			APIKey:  viper.GetString("GEMINI_API_KEY"),
			Model:   viper.GetString("GEMINI_MODEL"),
			BaseURL: viper.GetString("GEMINI_BASE_URL"),
			Timeout: viper.GetDuration("GEMINI_TIMEOUT"),
		},
		App: AppConfig{
			MaxUploadSize:  viper.GetInt64("APP_MAX_UPLOAD_SIZE"),
			AllowedFormats: viper.GetStringSlice("APP_ALLOWED_FORMATS"),
			HistoryLimit:   viper.GetInt("APP_HISTORY_LIMIT"),
		},
	}

	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.App.HistoryLimit <= 0 {
		return nil, fmt.Errorf("APP_HISTORY_LIMIT must be positive, got %d", cfg.App.HistoryLimit)
	}

	return cfg, nil
}
