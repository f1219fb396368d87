package domain

import (
	"math"
	"time"
)

// BoundingBox is a region's geographic extent in degrees, lat in -90..90 and
// lon in -180..180. Loaded from the region catalog; never mutated.
type BoundingBox struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// Sorted returns a copy with the latitude bounds in ascending order.
// Longitude is left alone: LonMin is the western edge and LonMax the eastern
// edge going eastward, so LonMin > LonMax legitimately encodes a box that
// crosses the antimeridian.
func (b BoundingBox) Sorted() BoundingBox {
	if b.LatMin > b.LatMax {
		b.LatMin, b.LatMax = b.LatMax, b.LatMin
	}
	return b
}

// LonInterval is a non-wrapping longitude span with Lo <= Hi.
type LonInterval struct {
	Lo float64
	Hi float64
}

// LonIntervals360 converts the box's longitude bounds to [0,360) space and
// returns one interval when they do not wrap, or two ([min,360] and [0,max])
// when the box straddles the antimeridian. The union of the returned
// intervals, taken mod 360, is always the original span.
func (b BoundingBox) LonIntervals360() []LonInterval {
	lo := lonTo360(b.LonMin)
	hi := lonTo360(b.LonMax)
	if lo <= hi {
		return []LonInterval{{Lo: lo, Hi: hi}}
	}
	return []LonInterval{{Lo: lo, Hi: 360}, {Lo: 0, Hi: hi}}
}

// LonIntervalsPM180 keeps the box in -180..180 space and returns one interval
// when the bounds do not wrap, or two ([min,180] and [-180,max]) when the box
// crosses the antimeridian. Every returned interval satisfies Lo <= Hi.
func (b BoundingBox) LonIntervalsPM180() []LonInterval {
	if b.LonMin <= b.LonMax {
		return []LonInterval{{Lo: b.LonMin, Hi: b.LonMax}}
	}
	return []LonInterval{{Lo: b.LonMin, Hi: 180}, {Lo: -180, Hi: b.LonMax}}
}

func lonTo360(lon float64) float64 {
	return math.Mod(lon+360, 360)
}

// Date is a calendar day in UTC; the time-of-day part is always midnight.
type Date struct {
	t time.Time
}

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Time returns the date as a UTC midnight timestamp.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// MonthWindow is the inclusive [Start, End] span of one calendar month.
type MonthWindow struct {
	Start Date
	End   Date
}

// Month returns the inclusive window for the given year and month.
func Month(year int, month time.Month) MonthWindow {
	start := NewDate(year, month, 1)
	return MonthWindow{Start: start, End: DateOf(start.t.AddDate(0, 1, -1))}
}

// GridQuery is one resolvable griddap request: a variable list with shared
// dimensional bounds. T1 is end-exclusive for daily products and padded past
// month end for composites. Lon is always non-wrapping (Lo <= Hi) in the
// dataset's native longitude space; a dateline-straddling box yields two
// GridQuery values differing only in Lon and Part.
type GridQuery struct {
	Variables []string
	T0        Date
	T1        Date
	LatMin    float64
	LatMax    float64
	Lon       LonInterval

	// Singleton vertical dimension, e.g. altitude=0.0, when the dataset has one.
	HasSingleton   bool
	SingletonValue float64

	// Part is the 1-based piece index of a dateline split, 0 when unsplit.
	Part int
}

// Row is one flattened grid cell bound for the warehouse. Exactly one of the
// two period representations is populated per dataset: Date for daily
// products, WindowStart/WindowEnd for centered composites. Values holds the
// measurement columns; NaN means NULL.
type Row struct {
	RegionID    string
	Lat         float64
	Lon         float64
	Date        Date
	WindowStart Date
	WindowEnd   Date
	Source      string
	IngestedAt  time.Time
	Values      map[string]float64
}

// ColumnSpec declares one warehouse column: name, SQL type, and whether the
// loader must reject NULL in it.
type ColumnSpec struct {
	Name     string
	Type     string
	Required bool
}

// Schema is the caller-declared destination table shape.
type Schema []ColumnSpec

// Names returns the column names in declaration order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// RequiredNames returns the names of columns that must be non-null.
func (s Schema) RequiredNames() []string {
	var out []string
	for _, c := range s {
		if c.Required {
			out = append(out, c.Name)
		}
	}
	return out
}
