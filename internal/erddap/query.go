// Package erddap builds griddap subset requests and maintains the local cache
// of downloaded grid assets.
package erddap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reefwatch/griddap-etl/internal/dataset"
	"github.com/reefwatch/griddap-etl/internal/domain"
)

// DefaultBaseURL is the NOAA CoastWatch griddap endpoint all three datasets
// are served from.
const DefaultBaseURL = "https://coastwatch.pfeg.noaa.gov/erddap/griddap"

// BuildQueries turns a month window and a bounding box into the 1 or 2 grid
// queries needed to cover the region.
//
// Time bounds: composite products query through End+PadDays so the last
// composite whose centered timestamp falls after month end is still captured;
// daily products query through End+1 day (end-exclusive). Both are UTC
// midnight instants.
//
// Longitude: 0..360 datasets get the box converted to [0,360) space and split
// into two non-wrapping intervals when it straddles the seam; -180..180
// datasets keep the raw bounds but split at the antimeridian the same way, so
// every emitted interval is ascending.
func BuildQueries(ds dataset.Spec, window domain.MonthWindow, bb domain.BoundingBox) []domain.GridQuery {
	bb = bb.Sorted()

	var t1 domain.Date
	switch ds.Period {
	case dataset.Composite:
		t1 = window.End.AddDays(ds.PadDays)
	default:
		t1 = window.End.AddDays(1)
	}

	base := domain.GridQuery{
		Variables: ds.SourceVars(),
		T0:        window.Start,
		T1:        t1,
		LatMin:    bb.LatMin,
		LatMax:    bb.LatMax,
	}
	if ds.Singleton != nil {
		base.HasSingleton = true
		base.SingletonValue = ds.Singleton.Value
	}

	var intervals []domain.LonInterval
	if ds.Lon0360 {
		intervals = bb.LonIntervals360()
	} else {
		intervals = bb.LonIntervalsPM180()
	}

	out := make([]domain.GridQuery, len(intervals))
	for i, iv := range intervals {
		q := base
		q.Lon = iv
		if len(intervals) > 1 {
			q.Part = i + 1
		}
		out[i] = q
	}
	return out
}

// URL resolves a grid query to a griddap request URL:
//
//	{base}/{dataset}.nc?var[(t0):1:(t1)][(z):1:(z)][(lat0):1:(lat1)][(lon0):1:(lon1)]
//
// repeated and comma-joined when the query names several variables sharing
// the same bounds. The query portion is percent-encoded by QuoteURL.
func URL(base string, datasetID string, q domain.GridQuery) string {
	t0 := q.T0.Time().Format("2006-01-02T15:04:05Z")
	t1 := q.T1.Time().Format("2006-01-02T15:04:05Z")

	var dims strings.Builder
	fmt.Fprintf(&dims, "[(%s):1:(%s)]", t0, t1)
	if q.HasSingleton {
		z := formatCoord(q.SingletonValue)
		fmt.Fprintf(&dims, "[(%s):1:(%s)]", z, z)
	}
	fmt.Fprintf(&dims, "[(%s):1:(%s)]", formatCoord(q.LatMin), formatCoord(q.LatMax))
	fmt.Fprintf(&dims, "[(%s):1:(%s)]", formatCoord(q.Lon.Lo), formatCoord(q.Lon.Hi))

	constraints := make([]string, len(q.Variables))
	for i, v := range q.Variables {
		constraints[i] = v + dims.String()
	}

	return fmt.Sprintf("%s/%s.nc?%s", base, datasetID, strings.Join(constraints, ","))
}

// formatCoord renders a coordinate without trailing zeros, keeping at least
// one decimal for whole numbers so singleton selections read as "(0.0)".
func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// quoteSafe lists the bytes left unescaped in the query portion, beyond
// unreserved alphanumerics. Griddap constraints lean on parentheses,
// brackets, colons and commas; escaping those corrupts the request.
const quoteSafe = "=:/?&()[]%,.-_T+Z"

// QuoteURL percent-encodes the query portion of a griddap URL, leaving the
// base/path untouched so the endpoint itself is never rewritten.
func QuoteURL(raw string) string {
	base, query, found := strings.Cut(raw, "?")
	if !found || query == "" {
		return raw
	}

	var b strings.Builder
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case strings.IndexByte(quoteSafe, c) >= 0:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return base + "?" + b.String()
}

// CacheFileName derives the deterministic cache path component for a query.
// Unsplit requests collapse to one file per (dataset, region, month); split
// pieces additionally carry their part index and lon interval so the two
// halves of one box never collide.
func CacheFileName(ds dataset.Spec, regionID string, year, month int, q domain.GridQuery) string {
	if q.Part == 0 {
		return fmt.Sprintf("%s_%s_%d_%02d.nc", ds.Name, regionID, year, month)
	}
	return fmt.Sprintf("%s_%s_%d_%02d_part%d_lon%.1f-%.1f.nc",
		ds.Name, regionID, year, month, q.Part, q.Lon.Lo, q.Lon.Hi)
}
