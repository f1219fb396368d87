package pipeline

import (
	"math"

	"github.com/reefwatch/griddap-etl/internal/dataset"
	"github.com/reefwatch/griddap-etl/internal/domain"
	"github.com/reefwatch/griddap-etl/internal/grid"
)

// Project flattens a cleaned grid into one row per (time, lat, lon), joining
// all measurement variables by cell. The ingestion timestamp is captured once
// per call so every row of a run carries the same value. Period fields follow
// the dataset's representation: a plain date for daily products, the
// [center-3d, center+4d] window for composites.
func Project(g *grid.Grid, spec dataset.Spec, regionID string) []domain.Row {
	ingestedAt := domain.Now()
	cols := spec.Columns()

	rows := make([]domain.Row, 0, len(g.Times)*len(g.Lats)*len(g.Lons))
	for ti, ts := range g.Times {
		for la, lat := range g.Lats {
			for lo, lon := range g.Lons {
				r := domain.Row{
					RegionID:   regionID,
					Lat:        lat,
					Lon:        lon,
					Source:     spec.Source,
					IngestedAt: ingestedAt,
					Values:     make(map[string]float64, len(cols)),
				}

				switch spec.Period {
				case dataset.Composite:
					r.WindowStart, r.WindowEnd = domain.CompositeWindow(domain.DateOf(ts))
				default:
					r.Date = domain.DateOf(ts)
				}

				for _, col := range cols {
					r.Values[col] = g.At(col, ti, la, lo)
				}
				rows = append(rows, r)
			}
		}
	}
	return rows
}

// FilterWindow retains rows whose derived period overlaps the target month,
// returning the kept rows and the number dropped. The query deliberately
// over-fetches (padded or end-exclusive bounds), so dropping here is normal.
func FilterWindow(rows []domain.Row, w domain.MonthWindow) (kept []domain.Row, dropped int) {
	kept = rows[:0]
	for _, r := range rows {
		if domain.RowInWindow(r, w) {
			kept = append(kept, r)
		} else {
			dropped++
		}
	}
	return kept, dropped
}

// rowValue resolves a schema column against a row, returning whether the row
// representation carries the column at all and whether its value is null.
func rowValue(r domain.Row, col string, spec dataset.Spec) (present, null bool) {
	switch col {
	case "region_id":
		return true, r.RegionID == ""
	case "lat":
		return true, math.IsNaN(r.Lat)
	case "lon":
		return true, math.IsNaN(r.Lon)
	case "source":
		return true, r.Source == ""
	case "ingested_at":
		return true, r.IngestedAt.IsZero()
	case "date":
		return spec.Period == dataset.Daily, r.Date.IsZero()
	case "period_start_date":
		return spec.Period == dataset.Composite, r.WindowStart.IsZero()
	case "period_end_date":
		return spec.Period == dataset.Composite, r.WindowEnd.IsZero()
	default:
		v, ok := r.Values[col]
		return ok, math.IsNaN(v)
	}
}
