// Command ingest runs one griddap ingestion: it downloads the selected
// dataset's grid for a region and month, standardizes and validates the
// rows, and loads them into the configured warehouse.
//
// Usage:
//
//	ingest -dataset sst -region gbr_north -year 2021 -month 6
//
// Warehouse selection comes from WAREHOUSE_DRIVER / WAREHOUSE_DSN, with a
// local SQLite file as the default. Exit codes distinguish the failure
// classes: 2 config, 3 download, 4 asset/decode, 5 schema, 6 sink.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reefwatch/griddap-etl/internal/catalog"
	"github.com/reefwatch/griddap-etl/internal/config"
	"github.com/reefwatch/griddap-etl/internal/dataset"
	"github.com/reefwatch/griddap-etl/internal/domain"
	"github.com/reefwatch/griddap-etl/internal/erddap"
	"github.com/reefwatch/griddap-etl/internal/netcdf"
	"github.com/reefwatch/griddap-etl/internal/observability"
	"github.com/reefwatch/griddap-etl/internal/pipeline"
	"github.com/reefwatch/griddap-etl/internal/warehouse"
	"github.com/reefwatch/griddap-etl/internal/warehouse/drivers"
)

const (
	exitConfig   = 2
	exitDownload = 3
	exitAsset    = 4
	exitSchema   = 5
	exitSink     = 6
)

func main() {
	os.Exit(run())
}

func run() int {
	drivers.Ready()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitConfig
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		return exitConfig
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	spec, ok := dataset.ByName(cfg.Dataset)
	if !ok {
		logger.Error("unknown dataset", "dataset", cfg.Dataset, "known", dataset.Names())
		return exitConfig
	}
	if cfg.PadDays >= 0 {
		spec.PadDays = cfg.PadDays
	}
	if cfg.NoSingleton {
		spec.Singleton = nil
	}

	regions, err := catalog.Load(cfg.RegionsPath)
	if err != nil {
		logger.Error("failed to load regions catalog", "path", cfg.RegionsPath, "error", err)
		return exitConfig
	}
	box, err := regions.Resolve(cfg.RegionID)
	if err != nil {
		logger.Error("unknown region", "error", err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *observability.Server
	if cfg.MetricsAddr != "" {
		srv = observability.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	code := runPipeline(ctx, cfg, spec, box, logger, metrics)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	return code
}

func runPipeline(ctx context.Context, cfg *config.Config, spec dataset.Spec, box domain.BoundingBox, logger *slog.Logger, metrics *observability.Metrics) int {
	// A dry run never touches the warehouse: no connection, no DDL. The
	// orchestrator stops before the sink, so a nil sink is safe.
	var sink pipeline.Sink
	if !cfg.DryRun {
		wh, err := warehouse.Open(warehouse.Config{Driver: cfg.WarehouseDriver, DSN: cfg.WarehouseDSN}, logger)
		if err != nil {
			logger.Error("failed to open warehouse", "error", err)
			return classify(err)
		}
		defer wh.Close()

		table := spec.Table
		if cfg.Table != "" {
			table = cfg.Table
		}
		if err := wh.EnsureTable(ctx, table, spec.Schema); err != nil {
			logger.Error("failed to ensure table", "table", table, "error", err)
			return classify(err)
		}
		sink = wh
	}

	fetcher := erddap.NewFetcher(erddap.FetcherConfig{
		CacheDir: cfg.CacheDir,
		MinBytes: cfg.MinBytes,
		Force:    cfg.Force,
	}, logger, metrics)
	decoder := netcdf.NewDecoder(logger)

	o := pipeline.NewOrchestrator(fetcher, decoder, sink, logger, metrics)
	n, err := o.Run(ctx, spec, box, pipeline.Options{
		RegionID:    cfg.RegionID,
		Year:        cfg.Year,
		Month:       time.Month(cfg.Month),
		DryRun:      cfg.DryRun,
		Replace:     cfg.Replace,
		LogRowStats: cfg.LogRowStats,
		BaseURL:     cfg.BaseURL,
		Table:       cfg.Table,
	})
	if err != nil {
		logger.Error("ingestion failed", "error", err)
		return classify(err)
	}

	logger.Info("ingestion finished", "rows", n, "dry_run", cfg.DryRun)
	return 0
}

// classify maps the error taxonomy onto exit codes so schedulers can tell
// retryable network failures from data problems.
func classify(err error) int {
	var (
		cfgErr    *domain.ConfigError
		dlErr     *domain.DownloadError
		assetErr  *domain.AssetError
		schemaErr *domain.SchemaError
		sinkErr   *domain.SinkError
	)
	switch {
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.As(err, &dlErr):
		return exitDownload
	case errors.As(err, &assetErr):
		return exitAsset
	case errors.As(err, &schemaErr):
		return exitSchema
	case errors.As(err, &sinkErr):
		return exitSink
	default:
		return 1
	}
}
