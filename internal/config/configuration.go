package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	// WebServer Configuration
	WebServerPort  int    `mapstructure:"WEBSERVER_PORT"`
	MaxRequestBody string `mapstructure:"MAX_REQUEST_BODY"`

	// Database Configuration
	DatabaseDSN     string `mapstructure:"DATABASE_DSN" validate:"required"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=text json"`

	Gemini   GeminiConfig   `mapstructure:",squash"`
	Script   ScriptConfig   `mapstructure:",squash"`
	Kie      KieConfig      `mapstructure:",squash"`
	Fetcher  FetcherConfig  `mapstructure:",squash"`
	Media    MediaConfig    `mapstructure:",squash"`
	Pipeline PipelineConfig `mapstructure:",squash"`
}

type GeminiConfig struct {
	APIKey           string `mapstructure:"GEMINI_API_KEY" validate:"required"`
	AnalysisModel    string `mapstructure:"GEMINI_ANALYSIS_MODEL" validate:"required"`
	ScriptModel      string `mapstructure:"GEMINI_SCRIPT_MODEL" validate:"required"`
	ImageModel       string `mapstructure:"GEMINI_IMAGE_MODEL" validate:"required"`
	VideoModel       string `mapstructure:"GEMINI_VIDEO_MODEL" validate:"required"`
	TTSModel         string `mapstructure:"GEMINI_TTS_MODEL" validate:"required"`
	TTSVoice         string `mapstructure:"GEMINI_TTS_VOICE" validate:"required"`
	AnalysisLanguage string `mapstructure:"ANALYSIS_LANGUAGE" validate:"required"`
}

type ScriptConfig struct {
	Provider      string `mapstructure:"SCRIPT_PROVIDER" validate:"oneof=gemini openai"`
	OpenAIAPIKey  string `mapstructure:"OPENAI_API_KEY" validate:"required_if=Provider openai"`
	OpenAIBaseURL string `mapstructure:"OPENAI_BASE_URL" validate:"omitempty,url"`
	OpenAIModel   string `mapstructure:"OPENAI_MODEL"`
}

type KieConfig struct {
	APIKey      string `mapstructure:"KIE_API_KEY" validate:"required"`
	BaseURL     string `mapstructure:"KIE_BASE_URL" validate:"required,url"`
	CallbackURL string `mapstructure:"KIE_CALLBACK_URL" validate:"omitempty,url"`
}

type FetcherConfig struct {
	YtdlpPath            string `mapstructure:"YTDLP_PATH"`
	UpdateOnStart        bool   `mapstructure:"YTDLP_UPDATE_ON_START"`
	CookiesFile          string `mapstructure:"YTDLP_COOKIES_FILE"`
	InstagramCookiesFile string `mapstructure:"YTDLP_INSTAGRAM_COOKIES_FILE"`
	MaxDownloadSize      string `mapstructure:"MAX_DOWNLOAD_SIZE"`
}

type MediaConfig struct {
	Root    string `mapstructure:"MEDIA_ROOT" validate:"required"`
	BaseURL string `mapstructure:"MEDIA_BASE_URL" validate:"required"`
}

type PipelineConfig struct {
	ProviderTimeout      time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
	DownloadTimeout      time.Duration `mapstructure:"DOWNLOAD_TIMEOUT"`
	AnalysisTimeout      time.Duration `mapstructure:"ANALYSIS_TIMEOUT"`
	ReconcileInterval    time.Duration `mapstructure:"RECONCILE_INTERVAL" validate:"gt=0"`
	ReconcileMaxAttempts int           `mapstructure:"RECONCILE_MAX_ATTEMPTS" validate:"gt=0"`
	HistoryLimit         int           `mapstructure:"HISTORY_LIMIT" validate:"gt=0"`
}

// MaxDownloadBytes parses MAX_DOWNLOAD_SIZE ("512MB", "1GiB"). Zero means unlimited.
func (c FetcherConfig) MaxDownloadBytes() (uint64, error) {
	if c.MaxDownloadSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MaxDownloadSize)
	if err != nil {
		return 0, fmt.Errorf("parse MAX_DOWNLOAD_SIZE: %w", err)
	}
	return n, nil
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		tag := field.Tag.Get("mapstructure")

		squash := tag == "" || strings.HasPrefix(tag, ",")
		if !squash {
			viper.BindEnv(tag)
		}

		// Handle nested structs
		if field.Type.Kind() == reflect.Struct && squash {
			nestedTyp := fieldVal.Type()
			for j := 0; j < fieldVal.NumField(); j++ {
				nestedField := nestedTyp.Field(j)
				nestedTag := nestedField.Tag.Get("mapstructure")
				if nestedTag != "" {
					viper.BindEnv(nestedTag)
				}
			}
		}
	}
}

func setDefaults() {
	viper.SetDefault("WEBSERVER_PORT", 8000)
	viper.SetDefault("MAX_REQUEST_BODY", "200M")
	viper.SetDefault("DATABASE_RETRIES", 10)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	viper.SetDefault("GEMINI_ANALYSIS_MODEL", "gemini-3-flash-preview")
	viper.SetDefault("GEMINI_SCRIPT_MODEL", "gemini-3-flash-preview")
	viper.SetDefault("GEMINI_IMAGE_MODEL", "imagen-4.0-generate-001")
	viper.SetDefault("GEMINI_VIDEO_MODEL", "veo-3.0-fast-generate-001")
	viper.SetDefault("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts")
	viper.SetDefault("GEMINI_TTS_VOICE", "Kore")
	viper.SetDefault("ANALYSIS_LANGUAGE", "Russian")

	viper.SetDefault("SCRIPT_PROVIDER", "gemini")
	viper.SetDefault("OPENAI_BASE_URL", "https://openrouter.ai/api/v1")
	viper.SetDefault("OPENAI_MODEL", "deepseek/deepseek-chat-v3-0324")

	viper.SetDefault("KIE_BASE_URL", "https://api.kie.ai/api/v1")

	viper.SetDefault("YTDLP_PATH", "yt-dlp")
	viper.SetDefault("MAX_DOWNLOAD_SIZE", "512MB")

	viper.SetDefault("MEDIA_ROOT", "./media")
	viper.SetDefault("MEDIA_BASE_URL", "/media")

	viper.SetDefault("PROVIDER_TIMEOUT", 30*time.Second)
	viper.SetDefault("DOWNLOAD_TIMEOUT", 60*time.Second)
	viper.SetDefault("ANALYSIS_TIMEOUT", 5*time.Minute)
	viper.SetDefault("RECONCILE_INTERVAL", 5*time.Second)
	viper.SetDefault("RECONCILE_MAX_ATTEMPTS", 60)
	viper.SetDefault("HISTORY_LIMIT", 20)
}

func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()
	setDefaults()

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	slog.Info("Loaded configuration",
		"port", cfg.WebServerPort,
		"script_provider", cfg.Script.Provider,
		"analysis_model", cfg.Gemini.AnalysisModel,
		"media_root", cfg.Media.Root,
		"reconcile_interval", cfg.Pipeline.ReconcileInterval,
	)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if _, err := cfg.Fetcher.MaxDownloadBytes(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SlogLevel converts LOG_LEVEL into a slog.Level.
// LoadDatabaseConfig loads the full config but only validates the
// database settings. Tools that never call a provider use it.
func LoadDatabaseConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()
	setDefaults()

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().StructPartial(cfg, "DatabaseDSN"); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
