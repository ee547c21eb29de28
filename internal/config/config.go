package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"techdispatch/internal/opt"
)

type Config struct {
	Port               string
	DatabaseURL        string
	DBMigrate          bool
	MigrationsDir      string
	RedisURL           string
	RateRPS            float64
	RateBurst          int
	WebhookMaxAttempts int
	DispatchConfigPath string
	SeedFile           string
	Geocode            GeocodeConfig
	Summary            SummaryConfig
}

type GeocodeConfig struct {
	APIKey   string
	BaseURL  string
	RPS      float64
	CacheTTL time.Duration
}

// Enabled reports whether an upstream geocoder is configured.
func (c GeocodeConfig) Enabled() bool {
	return c.APIKey != ""
}

type SummaryConfig struct {
	Mode    string // off, template, openai
	APIKey  string
	BaseURL string
	Model   string
}

// Load reads the environment, after applying a .env file when one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        strings.TrimSpace(getEnv("DATABASE_URL", "")),
		DBMigrate:          getEnv("DB_MIGRATE", "true") != "false",
		MigrationsDir:      getEnv("DB_MIGRATIONS_DIR", "db/migrations"),
		RedisURL:           getEnv("REDIS_URL", ""),
		RateRPS:            getEnvFloat("RATE_RPS", 0),
		RateBurst:          getEnvInt("RATE_BURST", 20),
		WebhookMaxAttempts: getEnvInt("WEBHOOK_MAX_ATTEMPTS", 10),
		DispatchConfigPath: getEnv("DISPATCH_CONFIG", ""),
		SeedFile:           getEnv("SEED_FILE", ""),
		Geocode: GeocodeConfig{
			APIKey:   getEnv("ORS_API_KEY", ""),
			BaseURL:  getEnv("ORS_BASE_URL", "https://api.openrouteservice.org"),
			RPS:      getEnvFloat("GEOCODE_RPS", 5),
			CacheTTL: getEnvDuration("GEOCODE_CACHE_TTL", 30*24*time.Hour),
		},
		Summary: SummaryConfig{
			Mode:    strings.ToLower(getEnv("SUMMARY_MODE", "template")),
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
	}

	switch cfg.Summary.Mode {
	case "off", "template":
	case "openai":
		if cfg.Summary.APIKey == "" {
			return Config{}, fmt.Errorf("SUMMARY_MODE=openai requires OPENAI_API_KEY")
		}
	default:
		return Config{}, fmt.Errorf("unknown SUMMARY_MODE %q", cfg.Summary.Mode)
	}
	if cfg.RateRPS < 0 || cfg.RateBurst < 0 {
		return Config{}, fmt.Errorf("RATE_RPS and RATE_BURST must be >= 0")
	}
	if cfg.WebhookMaxAttempts <= 0 {
		cfg.WebhookMaxAttempts = 10
	}
	return cfg, nil
}

// LoadEngineConfig overlays the YAML file at path on opt.DefaultConfig. Keys absent
// from the file keep their defaults; an empty path yields the defaults.
func LoadEngineConfig(path string) (opt.Config, error) {
	cfg := opt.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return opt.Config{}, fmt.Errorf("read dispatch config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return opt.Config{}, fmt.Errorf("parse dispatch config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return opt.Config{}, fmt.Errorf("dispatch config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyOverrides merges tenant overrides (JSON field names of opt.Config) onto base.
func ApplyOverrides(base opt.Config, overrides map[string]any) (opt.Config, error) {
	if len(overrides) == 0 {
		return base, nil
	}
	b, err := json.Marshal(overrides)
	if err != nil {
		return opt.Config{}, fmt.Errorf("encode overrides: %w", err)
	}
	out := base
	// slices are replaced wholesale, never merged element-wise
	out.MissingTimeSuggestions = append([]string(nil), base.MissingTimeSuggestions...)
	out.TeamJobTypes = append([]string(nil), base.TeamJobTypes...)
	out.RelatedTerms = append([]string(nil), base.RelatedTerms...)
	if err := json.Unmarshal(b, &out); err != nil {
		return opt.Config{}, fmt.Errorf("decode overrides: %w", err)
	}
	if err := out.Validate(); err != nil {
		return opt.Config{}, err
	}
	return out, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
