// Package domain models calendar-month ingestion of gridded ocean observations.
//
// # Data Source
//
// Grids come from an ERDDAP griddap endpoint as NetCDF subsets. A griddap
// request names one dataset, one or more variables, and per-dimension bounds:
//
//	{base}/{dataset}.nc?var[(t0):1:(t1)][(z):1:(z)][(lat0):1:(lat1)][(lon0):1:(lon1)]
//
// Timestamps are ISO-8601 UTC ("2020-02-01T00:00:00Z"). Multiple variables
// sharing identical bounds are comma-joined into one request.
//
// # Longitude Conventions
//
// ERDDAP datasets index longitude either in -180..180 or 0..360 degrees east.
// Region bounding boxes are declared in -180..180 with directional bounds:
// LonMin is the west edge, LonMax the east edge going eastward, so
// LonMin > LonMax encodes a box crossing the antimeridian. For 0..360
// datasets both edges are converted via (lon+360) mod 360; when the converted
// west edge exceeds the converted east edge the box wraps the 0/360 seam and
// the request is split into two non-wrapping intervals, [west, 360] and
// [0, east], whose union reconstructs the box. For -180..180 datasets the
// bounds pass through unchanged, and a dateline-crossing box splits at the
// antimeridian into [west, 180] and [-180, east]. Either way every emitted
// interval is ascending. See [BoundingBox.LonIntervals360] and
// [BoundingBox.LonIntervalsPM180].
//
// # Period Conventions
//
// Daily products carry one timestamp per UTC calendar day; each row gets a
// single `date`. Composite products (e.g. 8-day chlorophyll) carry a single
// "centered" timestamp per window; rows get a [center-3d, center+4d] window.
// Because the center of the last composite touching a month can fall after
// month end, composite queries pad the time bound by a configurable number of
// days and rows are filtered back with an interval-overlap test rather than
// equality: a row belongs to the month iff its window intersects it.
//
// # Fill Values
//
// Grid cells with no observation carry a reserved sentinel. Resolution order:
// the _FillValue attribute, then missing_value, then a per-dataset magnitude
// threshold (ERDDAP fills are huge, e.g. -9999999 for chlorophyll). Matching
// cells become NaN in memory and NULL in the warehouse, never zero.
package domain
