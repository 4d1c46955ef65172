package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "api.base_url", typ: kString, env: "HOSHIDORI_API_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.API.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.API.BaseURL },
	},
	{
		key: "api.timeout_seconds", typ: kInt, env: "HOSHIDORI_API_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.API.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.API.TimeoutSeconds },
	},
	{
		key: "storage.data_dir", typ: kString, env: "HOSHIDORI_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "HOSHIDORI_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "cache.works_ttl_seconds", typ: kInt, env: "HOSHIDORI_CACHE_WORKS_TTL_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Cache.WorksTTLSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.WorksTTLSeconds },
	},
	{
		key: "cache.schedule_ttl_seconds", typ: kInt, env: "HOSHIDORI_CACHE_SCHEDULE_TTL_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Cache.ScheduleTTLSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.ScheduleTTLSeconds },
	},
	{
		key: "cache.logs_ttl_seconds", typ: kInt, env: "HOSHIDORI_CACHE_LOGS_TTL_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Cache.LogsTTLSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.LogsTTLSeconds },
	},
	{
		key: "sync.concurrency", typ: kInt, env: "HOSHIDORI_SYNC_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Sync.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Sync.Concurrency },
	},
	{
		key: "sync.rate_per_second", typ: kFloat, env: "HOSHIDORI_SYNC_RATE_PER_SECOND",
		apply:   func(cfg *Config, v any) { cfg.Sync.RatePerSecond = v.(float64) },
		extract: func(cfg Config) any { return cfg.Sync.RatePerSecond },
	},
	{
		key: "sync.purge", typ: kBool, env: "HOSHIDORI_SYNC_PURGE",
		apply:   func(cfg *Config, v any) { cfg.Sync.Purge = v.(bool) },
		extract: func(cfg Config) any { return cfg.Sync.Purge },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
