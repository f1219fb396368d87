package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefwatch/griddap-etl/internal/dataset"
	"github.com/reefwatch/griddap-etl/internal/domain"
	"github.com/reefwatch/griddap-etl/internal/grid"
	"github.com/reefwatch/griddap-etl/internal/observability"
	"github.com/reefwatch/griddap-etl/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	urls  []string
	names []string
	err   error
}

func (m *mockFetcher) Ensure(_ context.Context, rawURL, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.urls = append(m.urls, rawURL)
	m.names = append(m.names, name)
	return "/cache/" + name, nil
}

type mockDecoder struct {
	grid  *grid.Grid
	paths []string
	err   error
}

func (m *mockDecoder) Decode(paths []string, _ dataset.Spec) (*grid.Grid, error) {
	m.paths = paths
	if m.err != nil {
		return nil, m.err
	}
	return m.grid, nil
}

type mockSink struct {
	calls    []string // operation order
	table    string
	schema   domain.Schema
	appended []domain.Row

	delTable  string
	delRegion string
	delWindow domain.MonthWindow
	delPeriod dataset.PeriodKind

	appendErr error
	deleteErr error
}

func (m *mockSink) Append(_ context.Context, table string, schema domain.Schema, rows []domain.Row) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.calls = append(m.calls, "append")
	m.table = table
	m.schema = schema
	m.appended = append(m.appended, rows...)
	return nil
}

func (m *mockSink) DeleteOverlapping(_ context.Context, table, regionID string, window domain.MonthWindow, period dataset.PeriodKind) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.calls = append(m.calls, "delete")
	m.delTable = table
	m.delRegion = regionID
	m.delWindow = window
	m.delPeriod = period
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sstGrid builds a small daily grid entirely inside June 2021, with one cell
// left missing.
func sstGrid(t *testing.T) *grid.Grid {
	t.Helper()
	times := []time.Time{
		time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2021, 6, 2, 12, 0, 0, 0, time.UTC),
	}
	g := grid.New(times, []float64{10.0, 10.25}, []float64{150.0}, []string{"sst_c"})
	g.Set("sst_c", 0, 0, 0, 26.1)
	g.Set("sst_c", 0, 1, 0, 26.4)
	g.Set("sst_c", 1, 0, 0, 25.9)
	// (1,1,0) stays NaN, a legitimate sea-surface gap
	return g
}

func sstBox() domain.BoundingBox {
	return domain.BoundingBox{LatMin: 10, LatMax: 10.25, LonMin: 150, LonMax: 150}
}

func sstOptions() pipeline.Options {
	return pipeline.Options{RegionID: "gbr_north", Year: 2021, Month: time.June}
}

// --- tests ---

func TestRun_HappyPath(t *testing.T) {
	spec := dataset.SeaSurfaceTemp()
	fetch := &mockFetcher{}
	dec := &mockDecoder{grid: sstGrid(t)}
	sink := &mockSink{}

	o := pipeline.NewOrchestrator(fetch, dec, sink, testLogger(), observability.NewMetricsForTesting())

	n, err := o.Run(context.Background(), spec, sstBox(), sstOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.Len(t, fetch.names, 1)
	assert.Equal(t, "sst_gbr_north_2021_06.nc", fetch.names[0])
	assert.Contains(t, fetch.urls[0], "ncdcOisst21Agg.nc?sst")
	assert.Equal(t, []string{"/cache/sst_gbr_north_2021_06.nc"}, dec.paths)

	assert.Equal(t, "sst_daily", sink.table)
	assert.Equal(t, []string{"append"}, sink.calls)
	require.Len(t, sink.appended, 4)

	first := sink.appended[0]
	assert.Equal(t, "gbr_north", first.RegionID)
	assert.Equal(t, "2021-06-01", first.Date.String())
	assert.Equal(t, spec.Source, first.Source)
	assert.False(t, first.IngestedAt.IsZero())
	assert.InDelta(t, 26.1, first.Values["sst_c"], 1e-9)

	// the missing cell survives as a NULL measurement, not a dropped row
	last := sink.appended[3]
	assert.True(t, math.IsNaN(last.Values["sst_c"]))
}

func TestRun_DryRunSkipsSink(t *testing.T) {
	spec := dataset.SeaSurfaceTemp()
	sink := &mockSink{appendErr: errors.New("must not be called")}
	opts := sstOptions()
	opts.DryRun = true

	o := pipeline.NewOrchestrator(&mockFetcher{}, &mockDecoder{grid: sstGrid(t)}, sink, testLogger(), observability.NewMetricsForTesting())

	n, err := o.Run(context.Background(), spec, sstBox(), opts)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sink.calls)
}

func TestRun_DryRunNeedsNoSink(t *testing.T) {
	// Callers skip warehouse setup entirely on a dry run and hand over a nil
	// sink; the run must still finish cleanly.
	spec := dataset.SeaSurfaceTemp()
	opts := sstOptions()
	opts.DryRun = true
	opts.Replace = true

	o := pipeline.NewOrchestrator(&mockFetcher{}, &mockDecoder{grid: sstGrid(t)}, nil, testLogger(), observability.NewMetricsForTesting())

	n, err := o.Run(context.Background(), spec, sstBox(), opts)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_ReplaceDeletesBeforeAppend(t *testing.T) {
	spec := dataset.SeaSurfaceTemp()
	sink := &mockSink{}
	opts := sstOptions()
	opts.Replace = true
	opts.Table = "sst_staging"

	o := pipeline.NewOrchestrator(&mockFetcher{}, &mockDecoder{grid: sstGrid(t)}, sink, testLogger(), observability.NewMetricsForTesting())

	_, err := o.Run(context.Background(), spec, sstBox(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"delete", "append"}, sink.calls)
	assert.Equal(t, "sst_staging", sink.delTable)
	assert.Equal(t, "sst_staging", sink.table)
	assert.Equal(t, "gbr_north", sink.delRegion)
	assert.Equal(t, dataset.Daily, sink.delPeriod)
	assert.Equal(t, "2021-06-01", sink.delWindow.Start.String())
	assert.Equal(t, "2021-06-30", sink.delWindow.End.String())
}

func TestRun_DropsRowsOutsideMonth(t *testing.T) {
	spec := dataset.SeaSurfaceTemp()
	times := []time.Time{
		time.Date(2021, 6, 30, 12, 0, 0, 0, time.UTC),
		time.Date(2021, 7, 1, 12, 0, 0, 0, time.UTC), // from the padded query end
	}
	g := grid.New(times, []float64{10.0}, []float64{150.0}, []string{"sst_c"})
	g.Set("sst_c", 0, 0, 0, 26.0)
	g.Set("sst_c", 1, 0, 0, 27.0)

	sink := &mockSink{}
	o := pipeline.NewOrchestrator(&mockFetcher{}, &mockDecoder{grid: g}, sink, testLogger(), observability.NewMetricsForTesting())

	n, err := o.Run(context.Background(), spec, sstBox(), sstOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sink.appended, 1)
	assert.Equal(t, "2021-06-30", sink.appended[0].Date.String())
}

func TestRun_CompositePeriods(t *testing.T) {
	spec := dataset.Chlorophyll()
	// composite centered 2021-06-29: window [2021-06-26, 2021-07-03] overlaps June
	times := []time.Time{time.Date(2021, 6, 29, 12, 0, 0, 0, time.UTC)}
	g := grid.New(times, []float64{10.0}, []float64{150.0}, []string{"chl_mg_m3"})
	g.Set("chl_mg_m3", 0, 0, 0, 0.31)

	sink := &mockSink{}
	opts := sstOptions()
	opts.Replace = true
	o := pipeline.NewOrchestrator(&mockFetcher{}, &mockDecoder{grid: g}, sink, testLogger(), observability.NewMetricsForTesting())

	n, err := o.Run(context.Background(), spec, sstBox(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, dataset.Composite, sink.delPeriod)
	r := sink.appended[0]
	assert.True(t, r.Date.IsZero())
	assert.Equal(t, "2021-06-26", r.WindowStart.String())
	assert.Equal(t, "2021-07-03", r.WindowEnd.String())
}

func TestRun_SplitBoxFetchesBothParts(t *testing.T) {
	spec := dataset.SeaSurfaceTemp()
	// crosses the 0/360 seam after conversion, so two requests are issued
	box := domain.BoundingBox{LatMin: 10, LatMax: 11, LonMin: -5, LonMax: 5}

	times := []time.Time{time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := grid.New(times, []float64{10.0}, []float64{355.0, 2.0}, []string{"sst_c"})

	fetch := &mockFetcher{}
	o := pipeline.NewOrchestrator(fetch, &mockDecoder{grid: g}, &mockSink{}, testLogger(), observability.NewMetricsForTesting())

	_, err := o.Run(context.Background(), spec, box, sstOptions())
	require.NoError(t, err)

	require.Len(t, fetch.names, 2)
	assert.Contains(t, fetch.names[0], "part1")
	assert.Contains(t, fetch.names[1], "part2")
}

func TestRun_OptionErrors(t *testing.T) {
	spec := dataset.SeaSurfaceTemp()
	o := pipeline.NewOrchestrator(&mockFetcher{}, &mockDecoder{}, &mockSink{}, testLogger(), observability.NewMetricsForTesting())

	tests := []struct {
		name string
		mod  func(*pipeline.Options)
	}{
		{"missing region", func(o *pipeline.Options) { o.RegionID = "" }},
		{"month zero", func(o *pipeline.Options) { o.Month = 0 }},
		{"month thirteen", func(o *pipeline.Options) { o.Month = 13 }},
		{"before dataset coverage", func(o *pipeline.Options) { o.Year = 1979 }},
		{"far future year", func(o *pipeline.Options) { o.Year = 2200 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := sstOptions()
			tt.mod(&opts)
			_, err := o.Run(context.Background(), spec, sstBox(), opts)
			var cfgErr *domain.ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestRun_RequiredNullFailsBeforeLoad(t *testing.T) {
	spec := dataset.SeaSurfaceTemp()
	times := []time.Time{time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := grid.New(times, []float64{math.NaN()}, []float64{150.0}, []string{"sst_c"})
	g.Set("sst_c", 0, 0, 0, 26.0)

	sink := &mockSink{}
	o := pipeline.NewOrchestrator(&mockFetcher{}, &mockDecoder{grid: g}, sink, testLogger(), observability.NewMetricsForTesting())

	_, err := o.Run(context.Background(), spec, sstBox(), sstOptions())
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.NotEmpty(t, schemaErr.Sample)
	assert.Empty(t, sink.calls)
}

func TestRun_PropagatesStageErrors(t *testing.T) {
	spec := dataset.SeaSurfaceTemp()

	t.Run("fetch", func(t *testing.T) {
		want := &domain.DownloadError{URL: "u", Err: errors.New("boom")}
		o := pipeline.NewOrchestrator(&mockFetcher{err: want}, &mockDecoder{}, &mockSink{}, testLogger(), observability.NewMetricsForTesting())
		_, err := o.Run(context.Background(), spec, sstBox(), sstOptions())
		var dlErr *domain.DownloadError
		require.ErrorAs(t, err, &dlErr)
	})

	t.Run("decode failures surface as asset errors", func(t *testing.T) {
		o := pipeline.NewOrchestrator(&mockFetcher{}, &mockDecoder{err: errors.New("bad nc")}, &mockSink{}, testLogger(), observability.NewMetricsForTesting())
		_, err := o.Run(context.Background(), spec, sstBox(), sstOptions())
		require.ErrorContains(t, err, "bad nc")
		var assetErr *domain.AssetError
		require.ErrorAs(t, err, &assetErr)
	})

	t.Run("append", func(t *testing.T) {
		sink := &mockSink{appendErr: &domain.SinkError{Op: "append", Err: errors.New("conn reset")}}
		o := pipeline.NewOrchestrator(&mockFetcher{}, &mockDecoder{grid: sstGrid(t)}, sink, testLogger(), observability.NewMetricsForTesting())
		_, err := o.Run(context.Background(), spec, sstBox(), sstOptions())
		var sinkErr *domain.SinkError
		require.ErrorAs(t, err, &sinkErr)
	})
}
