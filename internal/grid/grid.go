// Package grid holds the in-memory form of a decoded grid subset and the
// cleaning operations applied before row projection: fill-value removal,
// plausibility clamping, daily-mean resampling, and dateline-piece merging.
// Everything here is pure so it stays testable without NetCDF fixtures.
package grid

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Grid is a dense block of values on a (time, lat, lon) lattice. Each
// variable's slice is indexed time-major, then lat, then lon, with length
// len(Times)*len(Lats)*len(Lons). NaN marks "no data"; it propagates as NULL
// downstream and is never interpolated or zero-filled.
type Grid struct {
	Times []time.Time
	Lats  []float64
	Lons  []float64
	Vars  map[string][]float64
}

// New allocates a grid with NaN-initialized variable blocks.
func New(times []time.Time, lats, lons []float64, varNames []string) *Grid {
	n := len(times) * len(lats) * len(lons)
	vars := make(map[string][]float64, len(varNames))
	for _, name := range varNames {
		block := make([]float64, n)
		for i := range block {
			block[i] = math.NaN()
		}
		vars[name] = block
	}
	return &Grid{Times: times, Lats: lats, Lons: lons, Vars: vars}
}

// Index converts (time, lat, lon) positions to the flat offset.
func (g *Grid) Index(ti, la, lo int) int {
	return (ti*len(g.Lats)+la)*len(g.Lons) + lo
}

// At reads one value; NaN when the cell holds no data.
func (g *Grid) At(name string, ti, la, lo int) float64 {
	return g.Vars[name][g.Index(ti, la, lo)]
}

// Set writes one value.
func (g *Grid) Set(name string, ti, la, lo int, v float64) {
	g.Vars[name][g.Index(ti, la, lo)] = v
}

// ApplyFill turns fill-marked cells of one variable into NaN. When the
// dataset metadata supplied an explicit fill value it is matched exactly;
// otherwise any value with |v| >= sentinelMagnitude is treated as a fill.
// Must run before any aggregation; averaging un-cleaned sentinels would
// corrupt a mean.
func (g *Grid) ApplyFill(name string, fill *float64, sentinelMagnitude float64) {
	block := g.Vars[name]
	if fill != nil {
		fv := *fill
		for i, v := range block {
			if v == fv {
				block[i] = math.NaN()
			}
		}
		return
	}
	for i, v := range block {
		if math.Abs(v) >= sentinelMagnitude {
			block[i] = math.NaN()
		}
	}
}

// Clamp blanks values of one variable outside the inclusive physical range.
func (g *Grid) Clamp(name string, min, max float64) {
	block := g.Vars[name]
	for i, v := range block {
		if v < min || v > max {
			block[i] = math.NaN()
		}
	}
}

// DailyMean collapses multiple readings per UTC day into a skip-missing mean
// per (date, lat, lon). Days where every reading is missing stay NaN. The
// returned grid's timestamps are UTC midnights in ascending order.
func (g *Grid) DailyMean() *Grid {
	type dayKey struct {
		y int
		m time.Month
		d int
	}

	var days []time.Time
	dayIdx := make(map[dayKey]int)
	timeToDay := make([]int, len(g.Times))
	for ti, ts := range g.Times {
		u := ts.UTC()
		k := dayKey{u.Year(), u.Month(), u.Day()}
		idx, ok := dayIdx[k]
		if !ok {
			idx = len(days)
			dayIdx[k] = idx
			days = append(days, time.Date(k.y, k.m, k.d, 0, 0, 0, 0, time.UTC))
		}
		timeToDay[ti] = idx
	}

	names := make([]string, 0, len(g.Vars))
	for name := range g.Vars {
		names = append(names, name)
	}
	out := New(days, g.Lats, g.Lons, names)

	cells := len(g.Lats) * len(g.Lons)
	for name, block := range g.Vars {
		sums := make([]float64, len(days)*cells)
		counts := make([]int, len(days)*cells)

		for ti := range g.Times {
			day := timeToDay[ti]
			srcBase := ti * cells
			dstBase := day * cells
			for c := 0; c < cells; c++ {
				v := block[srcBase+c]
				if math.IsNaN(v) {
					continue
				}
				sums[dstBase+c] += v
				counts[dstBase+c]++
			}
		}

		dst := out.Vars[name]
		for i := range dst {
			if counts[i] > 0 {
				dst[i] = sums[i] / float64(counts[i])
			}
		}
	}

	// First-seen day order follows the input time order, which ERDDAP does
	// not guarantee sorted.
	if !sort.SliceIsSorted(out.Times, func(i, j int) bool { return out.Times[i].Before(out.Times[j]) }) {
		out = out.sortedByTime()
	}
	return out
}

func (g *Grid) sortedByTime() *Grid {
	order := make([]int, len(g.Times))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return g.Times[order[i]].Before(g.Times[order[j]]) })

	names := make([]string, 0, len(g.Vars))
	for name := range g.Vars {
		names = append(names, name)
	}
	out := New(nil, g.Lats, g.Lons, nil)
	out.Times = make([]time.Time, len(g.Times))
	out.Vars = make(map[string][]float64, len(names))
	cells := len(g.Lats) * len(g.Lons)
	for _, name := range names {
		out.Vars[name] = make([]float64, len(g.Vars[name]))
	}
	for dst, src := range order {
		out.Times[dst] = g.Times[src]
		for _, name := range names {
			copy(out.Vars[name][dst*cells:(dst+1)*cells], g.Vars[name][src*cells:(src+1)*cells])
		}
	}
	return out
}

// MergeLon concatenates the dateline-split pieces of one logical request
// along the longitude axis and sorts columns ascending by longitude. Pieces
// must agree on times, latitudes, and variables.
func MergeLon(pieces []*Grid) (*Grid, error) {
	if len(pieces) == 0 {
		return nil, fmt.Errorf("merge: no grid pieces")
	}
	if len(pieces) == 1 {
		return pieces[0], nil
	}

	first := pieces[0]
	for _, p := range pieces[1:] {
		if len(p.Times) != len(first.Times) || len(p.Lats) != len(first.Lats) {
			return nil, fmt.Errorf("merge: pieces disagree on time/lat axes (%dx%d vs %dx%d)",
				len(p.Times), len(p.Lats), len(first.Times), len(first.Lats))
		}
		if len(p.Vars) != len(first.Vars) {
			return nil, fmt.Errorf("merge: pieces disagree on variables")
		}
		for name := range first.Vars {
			if _, ok := p.Vars[name]; !ok {
				return nil, fmt.Errorf("merge: piece missing variable %q", name)
			}
		}
	}

	type col struct {
		lon   float64
		piece int
		idx   int
	}
	var cols []col
	for pi, p := range pieces {
		for li, lon := range p.Lons {
			cols = append(cols, col{lon: lon, piece: pi, idx: li})
		}
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].lon < cols[j].lon })

	names := make([]string, 0, len(first.Vars))
	for name := range first.Vars {
		names = append(names, name)
	}

	lons := make([]float64, len(cols))
	for i, c := range cols {
		lons[i] = c.lon
	}
	out := New(first.Times, first.Lats, lons, names)

	for _, name := range names {
		for ti := range first.Times {
			for la := range first.Lats {
				for newLo, c := range cols {
					out.Set(name, ti, la, newLo, pieces[c.piece].At(name, ti, la, c.idx))
				}
			}
		}
	}
	return out, nil
}
