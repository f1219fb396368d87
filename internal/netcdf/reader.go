// Package netcdf decodes downloaded grid assets into the in-memory grid form.
// It is the only package that touches the NetCDF C library binding; all
// cleaning beyond fill resolution happens in the grid package.
package netcdf

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	gonetcdf "github.com/fhs/go-netcdf/netcdf"

	"github.com/reefwatch/griddap-etl/internal/dataset"
	"github.com/reefwatch/griddap-etl/internal/grid"
)

// canonicalDim maps the coordinate names seen across ERDDAP datasets to the
// canonical (time, lat, lon) naming used downstream.
func canonicalDim(name string) string {
	switch strings.ToLower(name) {
	case "latitude", "lat":
		return "lat"
	case "longitude", "lon":
		return "lon"
	case "time":
		return "time"
	default:
		return name
	}
}

// Decoder turns one or more grid assets into a single cleaned grid.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder creates a Decoder.
func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// Decode opens the dateline-split pieces of one logical request, decodes and
// cleans each, merges them along longitude, and applies the dataset's daily
// resample when configured. All files are closed before return, including on
// failure.
func (d *Decoder) Decode(paths []string, spec dataset.Spec) (*grid.Grid, error) {
	files, err := openAll(paths)
	if err != nil {
		return nil, err
	}
	defer files.close()

	pieces := make([]*grid.Grid, len(files.ds))
	for i, ds := range files.ds {
		g, err := d.decodeOne(ds, files.paths[i], spec)
		if err != nil {
			return nil, err
		}
		pieces[i] = g
	}

	merged, err := grid.MergeLon(pieces)
	if err != nil {
		return nil, err
	}
	if spec.DailyMean {
		merged = merged.DailyMean()
	}
	return merged, nil
}

// files is a scoped aggregate of open datasets so a failure mid-decode still
// releases every handle.
type files struct {
	ds    []gonetcdf.Dataset
	paths []string
}

func openAll(paths []string) (*files, error) {
	f := &files{}
	for _, p := range paths {
		ds, err := gonetcdf.OpenFile(p, gonetcdf.NOWRITE)
		if err != nil {
			f.close()
			return nil, fmt.Errorf("open grid %s: %w", p, err)
		}
		f.ds = append(f.ds, ds)
		f.paths = append(f.paths, p)
	}
	return f, nil
}

func (f *files) close() {
	for _, ds := range f.ds {
		ds.Close()
	}
}

// decodeOne reads every dataset variable out of one file, resolving the fill
// value and applying the plausibility clamp per variable.
func (d *Decoder) decodeOne(ds gonetcdf.Dataset, path string, spec dataset.Spec) (*grid.Grid, error) {
	var out *grid.Grid

	for _, v := range spec.Variables {
		nv, err := ds.Var(v.Source)
		if err != nil {
			return nil, fmt.Errorf("%s: variable %q not in grid: %w", path, v.Source, err)
		}

		axes, err := resolveAxes(ds, nv, spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		if out == nil {
			out = grid.New(axes.times, axes.lats, axes.lons, spec.Columns())
		} else if len(axes.times) != len(out.Times) || len(axes.lats) != len(out.Lats) || len(axes.lons) != len(out.Lons) {
			return nil, fmt.Errorf("%s: variable %q disagrees with sibling axes", path, v.Source)
		}

		values, err := readValues(nv)
		if err != nil {
			return nil, fmt.Errorf("%s: read %q: %w", path, v.Source, err)
		}
		if err := axes.scatter(values, out.Vars[v.Column]); err != nil {
			return nil, fmt.Errorf("%s: %q: %w", path, v.Source, err)
		}

		fill := fillValue(func(name string) (float64, bool) { return attrFloat(nv, name) })
		out.ApplyFill(v.Column, fill, spec.SentinelMagnitude)
		if v.Bounds != nil {
			out.Clamp(v.Column, v.Bounds.Min, v.Bounds.Max)
		}

		d.logger.Debug("decoded variable",
			"path", path, "variable", v.Source,
			"times", len(axes.times), "lats", len(axes.lats), "lons", len(axes.lons),
			"explicit_fill", fill != nil)
	}

	if out == nil {
		return nil, fmt.Errorf("%s: dataset declares no variables", path)
	}
	return out, nil
}

// axes describes one variable's dimension layout: the decoded coordinate
// vectors plus the position of each canonical axis in the on-disk order.
type axes struct {
	times []time.Time
	lats  []float64
	lons  []float64

	dimLens []int // on-disk dimension lengths, in order
	timePos int
	latPos  int
	lonPos  int
	singPos int // -1 when absent
	singIdx int // selected index along the singleton dimension
}

// resolveAxes normalizes the variable's dimension names, reads the coordinate
// vectors, and locates the singleton dimension when the dataset declares one.
func resolveAxes(ds gonetcdf.Dataset, nv gonetcdf.Var, spec dataset.Spec) (*axes, error) {
	dims, err := nv.Dims()
	if err != nil {
		return nil, fmt.Errorf("read dims: %w", err)
	}

	a := &axes{timePos: -1, latPos: -1, lonPos: -1, singPos: -1}
	for i, dim := range dims {
		name, err := dim.Name()
		if err != nil {
			return nil, fmt.Errorf("dim name: %w", err)
		}
		length, err := dim.Len()
		if err != nil {
			return nil, fmt.Errorf("dim %q length: %w", name, err)
		}
		a.dimLens = append(a.dimLens, int(length))

		switch canonical := canonicalDim(name); {
		case canonical == "time":
			a.timePos = i
			a.times, err = readTimes(ds, name, int(length))
		case canonical == "lat":
			a.latPos = i
			a.lats, err = readCoord(ds, name, int(length))
		case canonical == "lon":
			a.lonPos = i
			a.lons, err = readCoord(ds, name, int(length))
		case spec.Singleton != nil && name == spec.Singleton.Dim:
			a.singPos = i
			a.singIdx, err = singletonIndex(ds, name, int(length), spec.Singleton.Value)
		default:
			return nil, fmt.Errorf("unexpected dimension %q", name)
		}
		if err != nil {
			return nil, err
		}
	}

	if a.timePos < 0 || a.latPos < 0 || a.lonPos < 0 {
		return nil, fmt.Errorf("grid lacks a time/lat/lon axis")
	}
	return a, nil
}

// scatter copies the on-disk value block into the canonical
// time-major/lat/lon layout, dropping the singleton dimension.
func (a *axes) scatter(values, dst []float64) error {
	want := 1
	for _, l := range a.dimLens {
		want *= l
	}
	if len(values) != want {
		return fmt.Errorf("value block has %d cells, dims imply %d", len(values), want)
	}

	// Strides for the on-disk row-major layout.
	strides := make([]int, len(a.dimLens))
	s := 1
	for i := len(a.dimLens) - 1; i >= 0; i-- {
		strides[i] = s
		s *= a.dimLens[i]
	}

	nLat := len(a.lats)
	nLon := len(a.lons)
	for ti := 0; ti < len(a.times); ti++ {
		for la := 0; la < nLat; la++ {
			for lo := 0; lo < nLon; lo++ {
				src := ti*strides[a.timePos] + la*strides[a.latPos] + lo*strides[a.lonPos]
				if a.singPos >= 0 {
					src += a.singIdx * strides[a.singPos]
				}
				dst[(ti*nLat+la)*nLon+lo] = values[src]
			}
		}
	}
	return nil
}

// singletonIndex selects the configured level along a one-valued vertical
// dimension, tolerating a single level whose coordinate differs slightly.
func singletonIndex(ds gonetcdf.Dataset, dim string, length int, want float64) (int, error) {
	coords, err := readCoord(ds, dim, length)
	if err != nil {
		return 0, err
	}
	for i, c := range coords {
		if c == want {
			return i, nil
		}
	}
	if length == 1 {
		return 0, nil
	}
	return 0, fmt.Errorf("dimension %q has no level %g", dim, want)
}

// readCoord reads a coordinate variable as float64s.
func readCoord(ds gonetcdf.Dataset, name string, length int) ([]float64, error) {
	v, err := ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("coordinate %q: %w", name, err)
	}
	vals, err := readValues(v)
	if err != nil {
		return nil, fmt.Errorf("coordinate %q: %w", name, err)
	}
	if len(vals) != length {
		return nil, fmt.Errorf("coordinate %q has %d values, dim length %d", name, len(vals), length)
	}
	return vals, nil
}

// readTimes decodes a time coordinate using its CF units attribute
// ("seconds since 1970-01-01T00:00:00Z" for ERDDAP griddap).
func readTimes(ds gonetcdf.Dataset, name string, length int) ([]time.Time, error) {
	v, err := ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("time coordinate: %w", err)
	}
	raw, err := readValues(v)
	if err != nil {
		return nil, fmt.Errorf("time coordinate: %w", err)
	}
	if len(raw) != length {
		return nil, fmt.Errorf("time coordinate has %d values, dim length %d", len(raw), length)
	}

	units, err := attrString(v, "units")
	if err != nil {
		return nil, fmt.Errorf("time units: %w", err)
	}
	epoch, scale, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}

	out := make([]time.Time, len(raw))
	for i, r := range raw {
		out[i] = epoch.Add(time.Duration(r * float64(scale))).UTC()
	}
	return out, nil
}

// parseTimeUnits handles the CF "<unit> since <epoch>" convention.
func parseTimeUnits(units string) (time.Time, time.Duration, error) {
	unit, rest, found := strings.Cut(strings.TrimSpace(units), " since ")
	if !found {
		return time.Time{}, 0, fmt.Errorf("unsupported time units %q", units)
	}

	var scale time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds", "second", "s":
		scale = time.Second
	case "hours", "hour", "h":
		scale = time.Hour
	case "days", "day", "d":
		scale = 24 * time.Hour
	default:
		return time.Time{}, 0, fmt.Errorf("unsupported time unit %q", unit)
	}

	rest = strings.TrimSpace(rest)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if epoch, err := time.Parse(layout, rest); err == nil {
			return epoch.UTC(), scale, nil
		}
	}
	return time.Time{}, 0, fmt.Errorf("unsupported time epoch %q", rest)
}

// attrLookup resolves a named numeric attribute on one variable.
type attrLookup func(name string) (float64, bool)

// fillAttrs is the resolution order for the explicit fill: _FillValue wins
// over missing_value when a variable declares both.
var fillAttrs = []string{"_FillValue", "missing_value"}

// fillValue resolves the explicit fill for a variable. Nil when no attribute
// in fillAttrs is present and numeric.
func fillValue(lookup attrLookup) *float64 {
	for _, name := range fillAttrs {
		if fv, ok := lookup(name); ok {
			return &fv
		}
	}
	return nil
}

func attrFloat(v gonetcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return 0, false
	}
	vals := make([]float64, n)
	if err := a.ReadFloat64s(vals); err != nil {
		// Try the float32 representation before giving up; ERDDAP writes
		// per-variable fills in the variable's own type.
		vals32 := make([]float32, n)
		if err := a.ReadFloat32s(vals32); err != nil {
			return 0, false
		}
		return float64(vals32[0]), true
	}
	return vals[0], true
}

func attrString(v gonetcdf.Var, name string) (string, error) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

// readValues reads a numeric variable of any supported width as float64s.
func readValues(v gonetcdf.Var) ([]float64, error) {
	n, err := v.Len()
	if err != nil {
		return nil, err
	}
	t, err := v.Type()
	if err != nil {
		return nil, err
	}

	switch t {
	case gonetcdf.DOUBLE:
		out := make([]float64, n)
		if err := v.ReadFloat64s(out); err != nil {
			return nil, err
		}
		return out, nil
	case gonetcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, x := range tmp {
			out[i] = float64(x)
		}
		return out, nil
	case gonetcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, x := range tmp {
			out[i] = float64(x)
		}
		return out, nil
	case gonetcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, x := range tmp {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported NetCDF type %v", t)
	}
}
