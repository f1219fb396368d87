package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefwatch/griddap-etl/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"-dataset", "sst", "-region", "gbr_north", "-year", "2021", "-month", "6"})
	require.NoError(t, err)

	assert.Equal(t, "sst", cfg.Dataset)
	assert.Equal(t, "gbr_north", cfg.RegionID)
	assert.Equal(t, 2021, cfg.Year)
	assert.Equal(t, 6, cfg.Month)

	assert.Equal(t, "regions.yaml", cfg.RegionsPath)
	assert.Equal(t, ".cache/grids", cfg.CacheDir)
	assert.False(t, cfg.DryRun)
	assert.True(t, cfg.Replace)
	assert.False(t, cfg.Force)
	assert.EqualValues(t, 1024, cfg.MinBytes)
	assert.Equal(t, -1, cfg.PadDays)
	assert.False(t, cfg.NoSingleton)
	assert.Equal(t, "https://coastwatch.pfeg.noaa.gov/erddap/griddap", cfg.BaseURL)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.MetricsAddr)

	assert.Equal(t, "sqlite", cfg.WarehouseDriver)
	assert.Equal(t, "griddap.db", cfg.WarehouseDSN)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WAREHOUSE_DRIVER", "pgx")
	t.Setenv("WAREHOUSE_DSN", "postgres://etl@db/reef")
	t.Setenv("ERDDAP_BASE_URL", "http://localhost:8080/erddap/griddap")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load([]string{"-dataset", "chl", "-region", "r", "-year", "2020", "-month", "2"})
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.WarehouseDriver)
	assert.Equal(t, "postgres://etl@db/reef", cfg.WarehouseDSN)
	assert.Equal(t, "http://localhost:8080/erddap/griddap", cfg.BaseURL)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	t.Setenv("CACHE_DIR", "/var/cache/grids")

	cfg, err := Load([]string{"-dataset", "sst", "-region", "r", "-year", "2021", "-month", "6",
		"-cache-dir", "/tmp/grids", "-dry-run", "-replace=false", "-row-stats",
		"-pad-days", "10", "-no-singleton"})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/grids", cfg.CacheDir)
	assert.True(t, cfg.DryRun)
	assert.False(t, cfg.Replace)
	assert.True(t, cfg.LogRowStats)
	assert.Equal(t, 10, cfg.PadDays)
	assert.True(t, cfg.NoSingleton)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Dataset:   "sst",
			RegionID:  "gbr_north",
			Year:      2021,
			Month:     6,
			MinBytes:  1024,
			LogFormat: "text",
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"missing dataset", func(c *Config) { c.Dataset = "" }},
		{"missing region", func(c *Config) { c.RegionID = "" }},
		{"missing year", func(c *Config) { c.Year = 0 }},
		{"month zero", func(c *Config) { c.Month = 0 }},
		{"month thirteen", func(c *Config) { c.Month = 13 }},
		{"zero min bytes", func(c *Config) { c.MinBytes = 0 }},
		{"pad days below minus one", func(c *Config) { c.PadDays = -2 }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mod(cfg)
			err := cfg.Validate()
			var cfgErr *domain.ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}
