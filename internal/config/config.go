package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxLookbackDays mirrors services.MaxLookbackDays.
const maxLookbackDays = 3650

type Config struct {
	Env      string `yaml:"env"`
	HTTPPort string `yaml:"http_port"`
	LogLevel string `yaml:"log_level"`

	UpstreamURL          string        `yaml:"upstream_url"`
	UpstreamPath         string        `yaml:"upstream_path"`
	UpstreamTimeout      time.Duration `yaml:"upstream_timeout"`
	UpstreamMaxRedirects int           `yaml:"upstream_max_redirects"`
	UpstreamPageSize     int           `yaml:"upstream_page_size"`

	SyncEnabled      bool          `yaml:"sync_enabled"`
	SyncInterval     time.Duration `yaml:"sync_interval"`
	SyncPeriodicDays int           `yaml:"sync_periodic_days"`
	SyncDefaultDays  int           `yaml:"sync_default_days"`
	SyncAuthSecret   string        `yaml:"sync_auth_secret"`
	JWTIssuer        string        `yaml:"jwt_issuer"`

	RateLimitWindow        time.Duration `yaml:"rate_limit_window"`
	RateLimitMax           int           `yaml:"rate_limit_max"`
	RateLimitSweepInterval time.Duration `yaml:"rate_limit_sweep_interval"`
	TrustProxy             bool          `yaml:"trust_proxy"`
	CORSOrigins            []string      `yaml:"cors_origins"`

	StoreDriver string `yaml:"store_driver"` // memory|postgres
	DatabaseURL string `yaml:"database_url"`
	Migrate     bool   `yaml:"migrate"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

func Defaults() Config {
	return Config{
		Env:                  "dev",
		HTTPPort:             "8080",
		UpstreamURL:          "http://localhost:3000",
		UpstreamPath:         "/mock-transactions",
		UpstreamTimeout:      10 * time.Second,
		UpstreamMaxRedirects: 5,
		UpstreamPageSize:     100,
		SyncEnabled:          true,
		SyncInterval:         5 * time.Second,
		SyncPeriodicDays:     1,
		SyncDefaultDays:      30,
		JWTIssuer:            "txn-aggregator",
		RateLimitWindow:      60 * time.Second,
		RateLimitMax:         5,
		CORSOrigins:          []string{"*"},
		StoreDriver:          "memory",
		NATSSubject:          "transactions.synced",
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE, and finally environment variables, in that order of precedence.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) error {
	c.Env = get("APP_ENV", c.Env)
	c.HTTPPort = get("HTTP_PORT", c.HTTPPort)
	c.LogLevel = get("LOG_LEVEL", c.LogLevel)

	c.UpstreamURL = get("TRANSACTIONS_API_URL", c.UpstreamURL)
	c.UpstreamPath = get("UPSTREAM_PATH", c.UpstreamPath)
	c.SyncAuthSecret = get("SYNC_AUTH_SECRET", c.SyncAuthSecret)
	c.JWTIssuer = get("JWT_ISSUER", c.JWTIssuer)
	c.StoreDriver = get("STORE_DRIVER", c.StoreDriver)
	c.DatabaseURL = get("DATABASE_URL", c.DatabaseURL)
	c.NATSURL = get("NATS_URL", c.NATSURL)
	c.NATSSubject = get("NATS_SUBJECT", c.NATSSubject)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitCSV(v)
	}

	var errs []error
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	setDuration("UPSTREAM_TIMEOUT", &c.UpstreamTimeout)
	setInt("UPSTREAM_MAX_REDIRECTS", &c.UpstreamMaxRedirects)
	setInt("UPSTREAM_PAGE_SIZE", &c.UpstreamPageSize)
	setBool("SYNC_ENABLED", &c.SyncEnabled)
	setDuration("SYNC_INTERVAL", &c.SyncInterval)
	setInt("SYNC_PERIODIC_DAYS", &c.SyncPeriodicDays)
	setInt("SYNC_DEFAULT_DAYS", &c.SyncDefaultDays)
	setDuration("RATE_LIMIT_WINDOW", &c.RateLimitWindow)
	setInt("RATE_LIMIT_MAX", &c.RateLimitMax)
	setDuration("RATE_LIMIT_SWEEP_INTERVAL", &c.RateLimitSweepInterval)
	setBool("TRUST_PROXY", &c.TrustProxy)
	setBool("APP_MIGRATE", &c.Migrate)

	return errors.Join(errs...)
}

// Validate checks value ranges and cross-field requirements.
func (c Config) Validate() error {
	if c.UpstreamURL == "" {
		return errors.New("upstream url is required")
	}
	if c.UpstreamTimeout <= 0 {
		return errors.New("upstream timeout must be > 0")
	}
	if c.UpstreamMaxRedirects < 0 {
		return errors.New("upstream max redirects must be >= 0")
	}
	if c.SyncEnabled && c.SyncInterval <= 0 {
		return errors.New("sync interval must be > 0 when sync is enabled")
	}
	if c.SyncPeriodicDays < 1 || c.SyncDefaultDays < 1 {
		return errors.New("sync lookback days must be >= 1")
	}
	if c.SyncPeriodicDays > maxLookbackDays || c.SyncDefaultDays > maxLookbackDays {
		return fmt.Errorf("sync lookback days must be <= %d", maxLookbackDays)
	}
	if c.RateLimitWindow <= 0 || c.RateLimitMax < 1 {
		return fmt.Errorf("rate limit must be positive, got %d per %s", c.RateLimitMax, c.RateLimitWindow)
	}
	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	return nil
}

func get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
