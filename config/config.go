package config

import (
	"encoding/base32"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"tradesim-engine/internal/catalog"
	"tradesim-engine/internal/model"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
// Values come from an optional YAML file, then an optional .env file,
// then the process environment (highest precedence).
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`

	// Infrastructure
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisEnabled  bool   `yaml:"redis_enabled"`
	SQLitePath    string `yaml:"sqlite_path"`

	// Session clock
	MarketTZ string `yaml:"market_tz"`

	// Live ticker
	TickInterval time.Duration `yaml:"tick_interval"`
	TickSymbols  string        `yaml:"tick_symbols"` // comma-separated, e.g. "BTN,SMBY"
	TickRollups  string        `yaml:"tick_rollups"` // coarser live timeframes, e.g. "5m,1h"

	// Journal retention (0 disables pruning)
	JournalRetention time.Duration `yaml:"journal_retention"`
	PruneCron        string        `yaml:"prune_cron"`

	// Base32 TOTP secret guarding admin endpoints; empty disables them.
	AdminTOTPSecret string `yaml:"admin_totp_secret"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		HTTPAddr:         ":8080",
		LogLevel:         "info",
		RedisAddr:        "localhost:6379",
		SQLitePath:       "data/tradesim.db",
		MarketTZ:         "America/New_York",
		TickInterval:     7 * time.Second,
		TickSymbols:      "SMBY,BTN,USXEUR,TOP500",
		TickRollups:      "5m,15m,1h",
		JournalRetention: 30 * 24 * time.Hour,
		PruneCron:        "0 3 * * *",
	}
}

// Load reads the YAML file at path (missing is fine, empty path skips it),
// loads .env if present, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] skipping .env: %v", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.MarketTZ = getEnv("MARKET_TZ", c.MarketTZ)
	c.TickSymbols = getEnv("TICK_SYMBOLS", c.TickSymbols)
	c.TickRollups = getEnv("TICK_ROLLUPS", c.TickRollups)
	c.PruneCron = getEnv("PRUNE_CRON", c.PruneCron)
	c.AdminTOTPSecret = getEnv("ADMIN_TOTP_SECRET", c.AdminTOTPSecret)

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REDIS_ENABLED: %w", err)
		}
		c.RedisEnabled = b
	}
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TICK_INTERVAL: %w", err)
		}
		c.TickInterval = d
	}
	if v := os.Getenv("JOURNAL_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JOURNAL_RETENTION: %w", err)
		}
		c.JournalRetention = d
	}
	return nil
}

// Validate checks that all settings are usable.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.JournalRetention < 0 {
		return fmt.Errorf("journal_retention must not be negative")
	}
	for _, sym := range c.ParseSymbols() {
		if _, ok := catalog.Default().Resolve(sym); !ok {
			return fmt.Errorf("tick_symbols: unknown symbol %q", sym)
		}
	}
	if _, err := c.ParseRollups(); err != nil {
		return err
	}
	if c.PruneCron != "" {
		if _, err := cron.ParseStandard(c.PruneCron); err != nil {
			return fmt.Errorf("prune_cron %q: %w", c.PruneCron, err)
		}
	}
	if c.RedisEnabled && c.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required when redis is enabled")
	}
	if c.AdminTOTPSecret != "" {
		secret := strings.ToUpper(strings.TrimRight(c.AdminTOTPSecret, "="))
		if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret); err != nil {
			return fmt.Errorf("admin_totp_secret is not valid base32: %w", err)
		}
	}
	return nil
}

// ParseSymbols splits TickSymbols into upper-cased, de-duplicated symbols.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.TickSymbols, ",")
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// ParseRollups splits TickRollups into timeframes. Unknown labels are an error.
func (c *Config) ParseRollups() ([]model.Timeframe, error) {
	var out []model.Timeframe
	for _, p := range strings.Split(c.TickRollups, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		tf := model.Timeframe(p)
		if model.ParseTimeframe(p) != tf {
			return nil, fmt.Errorf("tick_rollups: unknown timeframe %q", p)
		}
		out = append(out, tf)
	}
	return out, nil
}
