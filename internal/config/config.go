package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete loanforge-api configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Limits   LimitsConfig   `yaml:"limits"`
}

// ServerConfig holds listen address and timeouts.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
	IdleTimeout  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ReadTimeoutRaw  string `yaml:"read_timeout"`
	WriteTimeoutRaw string `yaml:"write_timeout"`
	IdleTimeoutRaw  string `yaml:"idle_timeout"`
}

// DatabaseConfig holds the PostgreSQL DSN. Empty DSN runs the service on the
// in-memory store (dev and tests).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`

	RevocationTTL time.Duration `yaml:"-"`

	RevocationTTLRaw string `yaml:"revocation_ttl"`
}

// LimitsConfig holds request throttling settings.
type LimitsConfig struct {
	RateBurst     int   `yaml:"rate_burst"`
	RatePerSecond int   `yaml:"rate_per_second"`
	MaxBodyBytes  int64 `yaml:"max_body_bytes"`
}

// Defaults applied when a file omits a value.
const (
	defaultAddr          = ":8080"
	defaultIssuer        = "loanforge"
	defaultRevocationTTL = 15 * time.Minute
	defaultRateBurst     = 20
	defaultRatePerSec    = 10
	defaultMaxBodyBytes  = 1 << 20
)

// Load reads a configuration file, expanding ${VAR_NAME} references against
// the environment and parsing duration strings. An empty path yields a
// config built purely from defaults and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyEnvFallbacks()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyEnvFallbacks() {
	if c.Server.Addr == "" {
		c.Server.Addr = os.Getenv("LOANFORGE_ADDR")
	}
	if c.Database.DSN == "" {
		c.Database.DSN = os.Getenv("LOANFORGE_PG_DSN")
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = os.Getenv("LOANFORGE_AUTH_SECRET")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = defaultIssuer
	}
	if c.Auth.RevocationTTL == 0 {
		c.Auth.RevocationTTL = defaultRevocationTTL
	}
	if c.Limits.RateBurst == 0 {
		c.Limits.RateBurst = defaultRateBurst
	}
	if c.Limits.RatePerSecond == 0 {
		c.Limits.RatePerSecond = defaultRatePerSec
	}
	if c.Limits.MaxBodyBytes == 0 {
		c.Limits.MaxBodyBytes = defaultMaxBodyBytes
	}
}

// Validate checks required fields. Returns the first failure encountered.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required (or set LOANFORGE_AUTH_SECRET)")
	}
	return nil
}

func parseDurations(cfg *Config) error {
	var err error
	if cfg.Server.ReadTimeoutRaw != "" {
		cfg.Server.ReadTimeout, err = time.ParseDuration(cfg.Server.ReadTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing read_timeout %q: %w", cfg.Server.ReadTimeoutRaw, err)
		}
	}
	if cfg.Server.WriteTimeoutRaw != "" {
		cfg.Server.WriteTimeout, err = time.ParseDuration(cfg.Server.WriteTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing write_timeout %q: %w", cfg.Server.WriteTimeoutRaw, err)
		}
	}
	if cfg.Server.IdleTimeoutRaw != "" {
		cfg.Server.IdleTimeout, err = time.ParseDuration(cfg.Server.IdleTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing idle_timeout %q: %w", cfg.Server.IdleTimeoutRaw, err)
		}
	}
	if cfg.Auth.RevocationTTLRaw != "" {
		cfg.Auth.RevocationTTL, err = time.ParseDuration(cfg.Auth.RevocationTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing revocation_ttl %q: %w", cfg.Auth.RevocationTTLRaw, err)
		}
	}
	return nil
}
