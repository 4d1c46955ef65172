package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/joho/godotenv"
)

type Config struct {
	API     APIConfig
	Storage StorageConfig
	Log     LogConfig
	Cache   CacheConfig
	Sync    SyncConfig
}

type APIConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// CacheConfig holds response cache lifetimes. Zero disables that cache.
type CacheConfig struct {
	WorksTTLSeconds    int
	ScheduleTTLSeconds int
	LogsTTLSeconds     int
}

type SyncConfig struct {
	Concurrency   int
	RatePerSecond float64
	Purge         bool
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			WorksTTLSeconds:    300,
			ScheduleTTLSeconds: 60,
			LogsTTLSeconds:     60,
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, and environment variables.
//
// On macOS the backend is UserDefaults (domain: app.hoshidori.cli).
// Elsewhere it is a JSON file at $XDG_CONFIG_HOME/hoshidori/config.json.
//
// Variables from .env never replace ones already set in the environment.
// Environment variables (HOSHIDORI_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), ".env")
}

func loadWith(b ConfigBackend, dotenv string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", dotenv, err)
		}
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first section with an out-of-range value.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.API,
		validation.Field(&c.API.BaseURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.API.TimeoutSeconds, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := validation.ValidateStruct(&c.Storage,
		validation.Field(&c.Storage.DataDir, validation.Required),
	); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := validation.ValidateStruct(&c.Cache,
		validation.Field(&c.Cache.WorksTTLSeconds, validation.Min(0)),
		validation.Field(&c.Cache.ScheduleTTLSeconds, validation.Min(0)),
		validation.Field(&c.Cache.LogsTTLSeconds, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := validation.ValidateStruct(&c.Sync,
		validation.Field(&c.Sync.Concurrency, validation.Min(0)),
		validation.Field(&c.Sync.RatePerSecond, validation.Min(0.0)),
	); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validation.NewError("validation_http_url", "must be an http or https URL")
	}
	return nil
}
