// Package pipeline runs one ingestion: acquire the month's grid assets,
// decode and standardize them, flatten to rows, validate, and load into the
// warehouse with delete-then-append replace semantics.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reefwatch/griddap-etl/internal/dataset"
	"github.com/reefwatch/griddap-etl/internal/domain"
	"github.com/reefwatch/griddap-etl/internal/erddap"
	"github.com/reefwatch/griddap-etl/internal/grid"
	"github.com/reefwatch/griddap-etl/internal/observability"
)

// Fetcher materializes one grid asset locally and returns its path.
type Fetcher interface {
	Ensure(ctx context.Context, rawURL, name string) (string, error)
}

// Decoder turns downloaded NetCDF assets into one standardized grid.
type Decoder interface {
	Decode(paths []string, spec dataset.Spec) (*grid.Grid, error)
}

// Sink is the analytical warehouse the pipeline loads into.
type Sink interface {
	Append(ctx context.Context, table string, schema domain.Schema, rows []domain.Row) error
	DeleteOverlapping(ctx context.Context, table, regionID string, window domain.MonthWindow, period dataset.PeriodKind) error
}

// Options are the per-run knobs.
type Options struct {
	RegionID string
	Year     int
	Month    time.Month

	// DryRun stops after validation; nothing is written.
	DryRun bool
	// Replace deletes previously loaded rows for the same region and window
	// before appending, making re-runs idempotent.
	Replace bool
	// LogRowStats emits per-column null ratios after projection.
	LogRowStats bool

	// BaseURL overrides the griddap endpoint. Empty means the default.
	BaseURL string
	// Table overrides the dataset's default destination table.
	Table string
}

// Orchestrator wires the acquisition, decode, and load stages together.
type Orchestrator struct {
	fetcher Fetcher
	decoder Decoder
	sink    Sink
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewOrchestrator(fetcher Fetcher, decoder Decoder, sink Sink, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		decoder: decoder,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
	}
}

// Run ingests one (dataset, region, month). It returns the number of rows
// loaded, or zero with no error on a dry run.
func (o *Orchestrator) Run(ctx context.Context, spec dataset.Spec, box domain.BoundingBox, opts Options) (int, error) {
	if err := checkOptions(spec, opts); err != nil {
		return 0, err
	}

	start := domain.Now()
	logger := o.logger.With(
		"run_id", uuid.NewString(),
		"dataset", spec.Name,
		"region", opts.RegionID,
		"year", opts.Year,
		"month", int(opts.Month),
	)

	window := domain.Month(opts.Year, opts.Month)

	paths, err := o.acquire(ctx, logger, spec, box, window, opts)
	if err != nil {
		return 0, err
	}

	g, err := o.decoder.Decode(paths, spec)
	if err != nil {
		return 0, &domain.AssetError{Path: strings.Join(paths, ", "), Err: err}
	}
	if err := ValidateRaw(g, spec); err != nil {
		return 0, err
	}

	rows := Project(g, spec, opts.RegionID)
	o.metrics.RowsProjected.Add(float64(len(rows)))

	kept, dropped := FilterWindow(rows, window)
	o.metrics.RowsDropped.Add(float64(dropped))
	logger.Info("rows projected",
		"projected", len(rows), "kept", len(kept), "dropped", dropped)

	label := fmt.Sprintf("%s %s %d-%02d", spec.Name, opts.RegionID, opts.Year, opts.Month)
	if err := ValidateRows(kept, spec, label); err != nil {
		return 0, err
	}
	if opts.LogRowStats {
		logRowStats(logger, kept, spec)
	}

	if opts.DryRun {
		logger.Info("dry run, skipping load", "rows", len(kept))
		return 0, nil
	}

	table := spec.Table
	if opts.Table != "" {
		table = opts.Table
	}

	if opts.Replace {
		if err := o.sink.DeleteOverlapping(ctx, table, opts.RegionID, window, spec.Period); err != nil {
			return 0, err
		}
	}
	if err := RequireNonNull(kept, spec, label); err != nil {
		return 0, err
	}
	if err := o.sink.Append(ctx, table, spec.Schema, kept); err != nil {
		return 0, err
	}
	o.metrics.RowsLoaded.Add(float64(len(kept)))
	o.metrics.RunDuration.Observe(domain.Now().Sub(start).Seconds())
	logger.Info("run complete", "table", table, "rows", len(kept))
	return len(kept), nil
}

func (o *Orchestrator) acquire(ctx context.Context, logger *slog.Logger, spec dataset.Spec, box domain.BoundingBox, window domain.MonthWindow, opts Options) ([]string, error) {
	base := opts.BaseURL
	if base == "" {
		base = erddap.DefaultBaseURL
	}

	queries := erddap.BuildQueries(spec, window, box)
	paths := make([]string, 0, len(queries))
	for _, q := range queries {
		url := erddap.URL(base, spec.DatasetID, q)
		name := erddap.CacheFileName(spec, opts.RegionID, opts.Year, int(opts.Month), q)
		logger.Debug("ensuring asset", "name", name, "url", url)
		path, err := o.fetcher.Ensure(ctx, url, name)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func checkOptions(spec dataset.Spec, opts Options) error {
	if opts.RegionID == "" {
		return domain.Configf("region id is required")
	}
	if opts.Month < time.January || opts.Month > time.December {
		return domain.Configf("month %d out of range 1..12", int(opts.Month))
	}
	if spec.MinYear > 0 && opts.Year < spec.MinYear {
		return domain.Configf("dataset %s has no coverage before %d, got year %d",
			spec.Name, spec.MinYear, opts.Year)
	}
	if max := domain.Now().Year() + 1; opts.Year > max {
		return domain.Configf("year %d is in the future", opts.Year)
	}
	return nil
}

// logRowStats reports the kept rows' spatial extent and per-column null
// counts. Diagnostic only, it never affects the load.
func logRowStats(logger *slog.Logger, rows []domain.Row, spec dataset.Spec) {
	if len(rows) == 0 {
		logger.Info("row stats", "rows", 0)
		return
	}
	lats := make(map[float64]struct{})
	lons := make(map[float64]struct{})
	for _, r := range rows {
		lats[r.Lat] = struct{}{}
		lons[r.Lon] = struct{}{}
	}
	attrs := []any{"rows", len(rows), "distinct_lats", len(lats), "distinct_lons", len(lons)}
	for _, col := range spec.Schema.Names() {
		nulls := 0
		for _, r := range rows {
			if _, null := rowValue(r, col, spec); null {
				nulls++
			}
		}
		attrs = append(attrs, "null_"+col, nulls)
	}
	logger.Info("row stats", attrs...)
}
