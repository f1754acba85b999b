package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradesim-engine/internal/catalog"
	"tradesim-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so a stray .env is never read.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 7*time.Second, cfg.TickInterval)
	assert.Equal(t, "America/New_York", cfg.MarketTZ)
	assert.False(t, cfg.RedisEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	dir := chdirTemp(t)
	_, err := Load(filepath.Join(dir, "nope.yaml"))
	assert.NoError(t, err)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "tradesim.yaml")
	yml := "http_addr: \":9000\"\ntick_interval: 2s\ntick_symbols: btn, nvbk\nredis_enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("JOURNAL_RETENTION", "48h")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTPAddr, "env overrides yaml")
	assert.Equal(t, 2*time.Second, cfg.TickInterval)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, 48*time.Hour, cfg.JournalRetention)
	assert.Equal(t, []string{"BTN", "NVBK"}, cfg.ParseSymbols())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SQLITE_PATH_TEST_ONLY=x\n"), 0o644))
	t.Setenv("SQLITE_PATH_TEST_ONLY", "")
	os.Unsetenv("SQLITE_PATH_TEST_ONLY")

	_, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "x", os.Getenv("SQLITE_PATH_TEST_ONLY"))
}

func TestLoad_BadEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TICK_INTERVAL", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no addr", func(c *Config) { c.HTTPAddr = "" }, true},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }, true},
		{"negative retention", func(c *Config) { c.JournalRetention = -time.Hour }, true},
		{"redis without addr", func(c *Config) { c.RedisEnabled = true; c.RedisAddr = "" }, true},
		{"good totp", func(c *Config) { c.AdminTOTPSecret = "JBSWY3DPEHPK3PXP" }, false},
		{"bad rollup", func(c *Config) { c.TickRollups = "5m,2h" }, true},
		{"no rollups", func(c *Config) { c.TickRollups = "" }, false},
		{"bad prune cron", func(c *Config) { c.PruneCron = "every night" }, true},
		{"prune disabled", func(c *Config) { c.PruneCron = "" }, false},
		{"unknown tick symbol", func(c *Config) { c.TickSymbols = "BTN,EURX" }, true},
		{"lower-case tick symbols", func(c *Config) { c.TickSymbols = "btn, usxeur" }, false},
		{"bad totp", func(c *Config) { c.AdminTOTPSecret = "not-base32!" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseSymbols(t *testing.T) {
	cfg := &Config{TickSymbols: " btn,,SMBY, btn "}
	assert.Equal(t, []string{"BTN", "SMBY"}, cfg.ParseSymbols())
}

func TestDefaults_TickSymbolsResolve(t *testing.T) {
	syms := Defaults().ParseSymbols()
	require.NotEmpty(t, syms)

	classes := make(map[model.AssetClass]bool)
	for _, sym := range syms {
		in, ok := catalog.Default().Resolve(sym)
		require.True(t, ok, "default tick symbol %s is not in the catalog", sym)
		classes[in.Class] = true
	}
	for _, class := range []model.AssetClass{model.ClassStock, model.ClassCrypto, model.ClassForex, model.ClassIndex} {
		assert.True(t, classes[class], "no default tick symbol for %s", class)
	}
}

func TestParseRollups(t *testing.T) {
	cfg := Defaults()
	tfs, err := cfg.ParseRollups()
	require.NoError(t, err)
	assert.Equal(t, []model.Timeframe{model.TF5m, model.TF15m, model.TF1h}, tfs)

	cfg.TickRollups = " 1h , ,4h"
	tfs, err = cfg.ParseRollups()
	require.NoError(t, err)
	assert.Equal(t, []model.Timeframe{model.TF1h, model.TF4h}, tfs)
}
