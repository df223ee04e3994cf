// Package config loads runtime settings from an optional config file, a .env
// file and FIRSTRESPONDER_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "FIRSTRESPONDER"
	DefaultConfigName = "firstresponder"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Feeds    FeedsConfig    `mapstructure:"feeds"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Language LanguageConfig `mapstructure:"language"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	GinMode   string `mapstructure:"gin_mode"`
	ClientURL string `mapstructure:"client_url"`
}

// DatabaseConfig selects the report store: sqlite, postgres or firestore.
type DatabaseConfig struct {
	Type                string `mapstructure:"type"`
	SQLitePath          string `mapstructure:"sqlite_path"`
	PostgresDSN         string `mapstructure:"postgres_dsn"`
	FirebaseCredentials string `mapstructure:"firebase_credentials"`
	LogLevel            string `mapstructure:"log_level"`
}

type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`
	OpenAIAPIKey string        `mapstructure:"openai_api_key"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	Model        string        `mapstructure:"model"`
	Temperature  float32       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type FeedsConfig struct {
	SeismicTTL        time.Duration `mapstructure:"seismic_ttl"`
	HazardTTL         time.Duration `mapstructure:"hazard_ttl"`
	PlaceTTL          time.Duration `mapstructure:"place_ttl"`
	QuakeRadiusKM     float64       `mapstructure:"quake_radius_km"`
	HazardRadiusKM    float64       `mapstructure:"hazard_radius_km"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MapsAPIKey        string        `mapstructure:"maps_api_key"`
	SweepSchedule     string        `mapstructure:"sweep_schedule"`
}

type MemoryConfig struct {
	Dir         string        `mapstructure:"dir"`
	TTL         time.Duration `mapstructure:"ttl"`
	HistorySize int           `mapstructure:"history_size"`
}

type PipelineConfig struct {
	Budget            time.Duration `mapstructure:"budget"`
	FallbackTimeout   time.Duration `mapstructure:"fallback_timeout"`
	AwarenessRadiusKM float64       `mapstructure:"awareness_radius_km"`
}

// LanguageConfig holds base64 service account JSON for language detection.
// Detection is off when it is empty.
type LanguageConfig struct {
	Credentials string `mapstructure:"credentials"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps config keys to the unprefixed variable names older
// deployments already set.
var legacyEnv = map[string]string{
	"server.client_url":             "CLIENT_URL",
	"database.firebase_credentials": "FIREBASE_CREDENTIALS",
	"llm.openai_api_key":            "OPENAI_API_KEY",
	"llm.gemini_api_key":            "GEMINI_API_KEY",
	"feeds.maps_api_key":            "MAPS_CREDENTIALS",
	"language.credentials":          "NATURAL_LANGUAGE_CREDENTIALS",
}

// Load reads the configuration. path may name a config file; when empty, a
// firstresponder.{yaml,json,toml} in the working directory is used if present.
// A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.client_url", "")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite_path", "firstresponder.db")
	v.SetDefault("database.postgres_dsn", "")
	v.SetDefault("database.firebase_credentials", "")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", "20s")

	v.SetDefault("feeds.seismic_ttl", "5m")
	v.SetDefault("feeds.hazard_ttl", "15m")
	v.SetDefault("feeds.place_ttl", "24h")
	v.SetDefault("feeds.quake_radius_km", 300.0)
	v.SetDefault("feeds.hazard_radius_km", 500.0)
	v.SetDefault("feeds.http_timeout", "5s")
	v.SetDefault("feeds.requests_per_second", 2.0)
	v.SetDefault("feeds.maps_api_key", "")
	v.SetDefault("feeds.sweep_schedule", "*/10 * * * *")

	v.SetDefault("memory.dir", "")
	v.SetDefault("memory.ttl", "24h")
	v.SetDefault("memory.history_size", 50)

	v.SetDefault("pipeline.budget", "25s")
	v.SetDefault("pipeline.fallback_timeout", "10s")
	v.SetDefault("pipeline.awareness_radius_km", 10.0)

	v.SetDefault("language.credentials", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	switch cfg.Database.Type {
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required when type is 'sqlite'")
		}
	case "postgres":
		if cfg.Database.PostgresDSN == "" {
			return fmt.Errorf("database.postgres_dsn is required when type is 'postgres'")
		}
	case "firestore":
		if cfg.Database.FirebaseCredentials == "" {
			return fmt.Errorf("database.firebase_credentials is required when type is 'firestore'")
		}
	default:
		return fmt.Errorf("database.type must be 'sqlite', 'postgres' or 'firestore', got '%s'", cfg.Database.Type)
	}

	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	switch cfg.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider must be 'openai' or 'gemini', got '%s'", cfg.LLM.Provider)
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", cfg.LLM.Temperature)
	}

	if cfg.Feeds.SeismicTTL <= 0 || cfg.Feeds.HazardTTL <= 0 || cfg.Feeds.PlaceTTL <= 0 {
		return fmt.Errorf("feed cache TTLs must be positive")
	}
	if cfg.Feeds.HTTPTimeout <= 0 || cfg.Feeds.HTTPTimeout >= 10*time.Second {
		return fmt.Errorf("feeds.http_timeout must be between 0 and 10s, got %s", cfg.Feeds.HTTPTimeout)
	}
	if cfg.Feeds.RequestsPerSecond <= 0 {
		return fmt.Errorf("feeds.requests_per_second must be positive, got %g", cfg.Feeds.RequestsPerSecond)
	}

	if cfg.Pipeline.Budget <= 0 {
		return fmt.Errorf("pipeline.budget must be positive, got %s", cfg.Pipeline.Budget)
	}
	if cfg.Memory.TTL <= 0 {
		return fmt.Errorf("memory.ttl must be positive, got %s", cfg.Memory.TTL)
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json', got '%s'", cfg.Log.Format)
	}
	return nil
}

// HasLLMKey reports whether the selected provider has credentials.
func (c *Config) HasLLMKey() bool {
	if c.LLM.Provider == "gemini" {
		return c.LLM.GeminiAPIKey != ""
	}
	return c.LLM.OpenAIAPIKey != ""
}
