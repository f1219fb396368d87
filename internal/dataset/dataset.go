// Package dataset declares the per-dataset descriptors that parameterize the
// one canonical ingestion pipeline. Everything that used to vary between the
// per-product drivers lives here: variable maps, longitude space, singleton
// dimension, period representation, pad policy, fill fallback, and the
// destination schema.
package dataset

import (
	"sort"

	"github.com/reefwatch/griddap-etl/internal/domain"
)

// PeriodKind selects the row period representation.
type PeriodKind int

const (
	// Daily products carry one `date` column per row.
	Daily PeriodKind = iota
	// Composite products carry a `period_start_date`/`period_end_date` window
	// derived from the centered timestamp.
	Composite
)

// Range is an inclusive physical-plausibility bound for one measurement.
// Values outside it become NULL before any aggregation.
type Range struct {
	Min float64
	Max float64
}

// Variable maps one source grid variable to its output column.
type Variable struct {
	Source string // variable name in the griddap dataset
	Column string // measurement column in the warehouse
	Bounds *Range // optional plausibility clamp
}

// Singleton is a one-valued vertical dimension (altitude, zlev, depth) that is
// selected and dropped before projection.
type Singleton struct {
	Dim   string
	Value float64
}

// Spec is the full per-dataset descriptor.
type Spec struct {
	Name      string // short driver tag, also the cache-file prefix
	DatasetID string
	Variables []Variable

	// Lon0360 is true when the dataset indexes longitude in 0..360 degrees
	// east; bounding boxes are then converted and possibly dateline-split.
	// False means the dataset uses -180..180 and boxes pass through as-is.
	Lon0360 bool

	Singleton *Singleton

	Period  PeriodKind
	PadDays int // composite query-end padding beyond month end

	// DailyMean aggregates multi-reading-per-day grids (e.g. hourly waves)
	// to a skip-missing daily mean before projection.
	DailyMean bool

	// SentinelMagnitude is the fill fallback: when neither _FillValue nor
	// missing_value is usable, values with |v| >= this become NULL.
	SentinelMagnitude float64

	Source  string // provenance tag written into every row
	Table   string // default destination table
	MinYear int    // earliest year the dataset covers, 0 = unchecked

	Schema domain.Schema
}

// Columns returns the output measurement column names in declaration order.
func (s Spec) Columns() []string {
	out := make([]string, len(s.Variables))
	for i, v := range s.Variables {
		out[i] = v.Column
	}
	return out
}

// SourceVars returns the griddap variable names in declaration order.
func (s Spec) SourceVars() []string {
	out := make([]string, len(s.Variables))
	for i, v := range s.Variables {
		out[i] = v.Source
	}
	return out
}

// RawRequired is the column set a decoded grid must produce before
// standardization: the coordinate axes plus every measurement column.
func (s Spec) RawRequired() []string {
	cols := append([]string{"time", "lat", "lon"}, s.Columns()...)
	return cols
}

// Chlorophyll is the 8-day chlorophyll-a composite (mg m-3). The dataset is
// published in -180..180 longitude, so no conversion or splitting applies.
// ERDDAP time is the centered timestamp of each composite.
func Chlorophyll() Spec {
	return Spec{
		Name:      "chl",
		DatasetID: "erdMBchla8day_LonPM180",
		Variables: []Variable{
			{Source: "chlorophyll", Column: "chl_mg_m3"},
		},
		Singleton:         &Singleton{Dim: "altitude", Value: 0.0},
		Period:            Composite,
		PadDays:           7,
		SentinelMagnitude: 9e6,
		Source:            "NOAA_ERDDAP_erdMBchla8day_LonPM180",
		Table:             "chl_8day",
		Schema: domain.Schema{
			{Name: "period_start_date", Type: "DATE", Required: true},
			{Name: "period_end_date", Type: "DATE", Required: true},
			{Name: "region_id", Type: "STRING", Required: true},
			{Name: "lat", Type: "FLOAT64", Required: true},
			{Name: "lon", Type: "FLOAT64", Required: true},
			{Name: "chl_mg_m3", Type: "FLOAT64"},
			{Name: "source", Type: "STRING"},
			{Name: "ingested_at", Type: "TIMESTAMP"},
		},
	}
}

// SeaSurfaceTemp is the NOAA OISST v2.1 daily SST analysis (degrees C).
// Longitude is 0..360 and the surface is selected via zlev=0.
func SeaSurfaceTemp() Spec {
	return Spec{
		Name:      "sst",
		DatasetID: "ncdcOisst21Agg",
		Variables: []Variable{
			{Source: "sst", Column: "sst_c"},
		},
		Lon0360:           true,
		Singleton:         &Singleton{Dim: "zlev", Value: 0.0},
		Period:            Daily,
		SentinelMagnitude: 9.0,
		Source:            "NOAA_OISST_v2_1_via_ERDDAP",
		Table:             "sst_daily",
		MinYear:           1980,
		Schema: domain.Schema{
			{Name: "date", Type: "DATE", Required: true},
			{Name: "region_id", Type: "STRING", Required: true},
			{Name: "lat", Type: "FLOAT64", Required: true},
			{Name: "lon", Type: "FLOAT64", Required: true},
			{Name: "sst_c", Type: "FLOAT64"},
			{Name: "source", Type: "STRING", Required: true},
			{Name: "ingested_at", Type: "TIMESTAMP", Required: true},
		},
	}
}

// Waves is the WaveWatch III global wave model: significant wave height and
// peak period. Time resolution is roughly hourly, aggregated to daily means.
// Longitude is 0..360, so dateline-straddling regions split into two requests.
func Waves() Spec {
	return Spec{
		Name:      "waves",
		DatasetID: "NWW3_Global_Best",
		Variables: []Variable{
			{Source: "Thgt", Column: "swh_m", Bounds: &Range{Min: 0, Max: 40}},
			{Source: "Tper", Column: "peak_period_s", Bounds: &Range{Min: 0, Max: 60}},
		},
		Lon0360:           true,
		Singleton:         &Singleton{Dim: "depth", Value: 0.0},
		Period:            Daily,
		DailyMean:         true,
		SentinelMagnitude: 9e35,
		Source:            "PacIOOS_WW3_Global_via_ERDDAP_NWW3_Global_Best",
		Table:             "waves_daily",
		MinYear:           2016,
		Schema: domain.Schema{
			{Name: "date", Type: "DATE", Required: true},
			{Name: "region_id", Type: "STRING", Required: true},
			{Name: "lat", Type: "FLOAT64", Required: true},
			{Name: "lon", Type: "FLOAT64", Required: true},
			{Name: "swh_m", Type: "FLOAT64"},
			{Name: "peak_period_s", Type: "FLOAT64"},
			{Name: "source", Type: "STRING", Required: true},
			{Name: "ingested_at", Type: "TIMESTAMP", Required: true},
		},
	}
}

var registry = map[string]func() Spec{
	"chl":   Chlorophyll,
	"sst":   SeaSurfaceTemp,
	"waves": Waves,
}

// ByName resolves a dataset tag to its descriptor.
func ByName(name string) (Spec, bool) {
	fn, ok := registry[name]
	if !ok {
		return Spec{}, false
	}
	return fn(), true
}

// Names lists the registered dataset tags, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
