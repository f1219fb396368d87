// Package config assembles a run's settings from command-line flags and
// environment variables. Flags carry the per-run selection (dataset, region,
// month); the environment carries deployment concerns (warehouse DSN,
// logging, metrics). A .env file is honored when present.
package config

import (
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/reefwatch/griddap-etl/internal/domain"
	"github.com/reefwatch/griddap-etl/internal/erddap"
)

// Config holds everything one ingestion run needs.
type Config struct {
	// Run selection.
	Dataset  string
	RegionID string
	Year     int
	Month    int

	// Catalog and cache.
	RegionsPath string
	CacheDir    string

	// Run behavior.
	DryRun      bool
	Replace     bool
	Force       bool
	LogRowStats bool
	MinBytes    int64
	Table       string
	BaseURL     string

	// Dataset overrides.
	PadDays     int  // -1 keeps the descriptor default
	NoSingleton bool // for dataset variants without the vertical dimension

	// Warehouse, environment-sourced.
	WarehouseDriver string
	WarehouseDSN    string

	// Observability.
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load parses flags from args and merges environment defaults. It does not
// validate cross-field constraints; call Validate for that.
func Load(args []string) (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)

	fs.StringVar(&cfg.Dataset, "dataset", "", "dataset to ingest (chl, sst, waves)")
	fs.StringVar(&cfg.RegionID, "region", "", "region id from the regions catalog")
	fs.IntVar(&cfg.Year, "year", 0, "target year")
	fs.IntVar(&cfg.Month, "month", 0, "target month, 1-12")

	fs.StringVar(&cfg.RegionsPath, "regions", envOrDefault("REGIONS_PATH", "regions.yaml"), "path to the regions catalog")
	fs.StringVar(&cfg.CacheDir, "cache-dir", envOrDefault("CACHE_DIR", ".cache/grids"), "directory for downloaded grid assets")

	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate and report without writing to the warehouse")
	fs.BoolVar(&cfg.Replace, "replace", true, "delete previously loaded rows for the window before appending")
	fs.BoolVar(&cfg.Force, "force", false, "re-download grid assets even when cached")
	fs.BoolVar(&cfg.LogRowStats, "row-stats", false, "log per-column null counts after projection")
	fs.Int64Var(&cfg.MinBytes, "min-bytes", erddap.DefaultMinBytes, "minimum plausible size of a grid asset")
	fs.StringVar(&cfg.Table, "table", "", "override the dataset's destination table")
	fs.IntVar(&cfg.PadDays, "pad-days", -1, "override the composite query-end padding, -1 keeps the dataset default")
	fs.BoolVar(&cfg.NoSingleton, "no-singleton", false, "query a dataset variant without its vertical dimension")
	fs.StringVar(&cfg.BaseURL, "base-url", envOrDefault("ERDDAP_BASE_URL", erddap.DefaultBaseURL), "griddap endpoint")

	fs.StringVar(&cfg.LogLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", envOrDefault("LOG_FORMAT", "text"), "log format (text, json)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", envOrDefault("METRICS_ADDR", ""), "address for the Prometheus endpoint, empty disables it")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.WarehouseDriver = envOrDefault("WAREHOUSE_DRIVER", "sqlite")
	cfg.WarehouseDSN = envOrDefault("WAREHOUSE_DSN", "griddap.db")
	return cfg, nil
}

// Validate checks the cross-field constraints Load leaves alone.
func (c *Config) Validate() error {
	if c.Dataset == "" {
		return domain.Configf("-dataset is required")
	}
	if c.RegionID == "" {
		return domain.Configf("-region is required")
	}
	if c.Year == 0 {
		return domain.Configf("-year is required")
	}
	if c.Month < 1 || c.Month > 12 {
		return domain.Configf("-month must be 1..12, got %d", c.Month)
	}
	if c.MinBytes <= 0 {
		return domain.Configf("-min-bytes must be positive")
	}
	if c.PadDays < -1 {
		return domain.Configf("-pad-days must be -1 or non-negative, got %d", c.PadDays)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return domain.Configf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
