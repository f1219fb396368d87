package pipeline

import (
	"github.com/reefwatch/griddap-etl/internal/dataset"
	"github.com/reefwatch/griddap-etl/internal/domain"
	"github.com/reefwatch/griddap-etl/internal/grid"
)

// sampleLimit caps how many offending rows a SchemaError carries.
const sampleLimit = 10

// ValidateRaw is the first schema checkpoint: the decoded grid must expose
// the time/lat/lon axes and every measurement column before standardization.
func ValidateRaw(g *grid.Grid, spec dataset.Spec) error {
	var missing []string
	for _, col := range spec.RawRequired() {
		var ok bool
		switch col {
		case "time":
			ok = len(g.Times) > 0
		case "lat":
			ok = len(g.Lats) > 0
		case "lon":
			ok = len(g.Lons) > 0
		default:
			_, ok = g.Vars[col]
		}
		if !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &domain.SchemaError{Label: spec.Name + " raw grid", Missing: missing}
	}
	return nil
}

// ValidateRows is the second checkpoint: every declared column must be
// representable by the rows, and required columns must be non-null in every
// row. Offending rows are reported as a sample, never dropped or imputed.
func ValidateRows(rows []domain.Row, spec dataset.Spec, label string) error {
	if len(rows) > 0 {
		var missing []string
		for _, col := range spec.Schema {
			if present, _ := rowValue(rows[0], col.Name, spec); !present {
				missing = append(missing, col.Name)
			}
		}
		if len(missing) > 0 {
			return &domain.SchemaError{Label: label, Missing: missing}
		}
	}

	return RequireNonNull(rows, spec, label)
}

// RequireNonNull fails when any required column holds a null. It runs inside
// ValidateRows and once more immediately before the sink write as the
// last-line defense.
func RequireNonNull(rows []domain.Row, spec dataset.Spec, label string) error {
	required := spec.Schema.RequiredNames()

	var sample []domain.Row
	for _, r := range rows {
		for _, col := range required {
			if _, null := rowValue(r, col, spec); null {
				sample = append(sample, r)
				break
			}
		}
		if len(sample) >= sampleLimit {
			break
		}
	}
	if len(sample) > 0 {
		return &domain.SchemaError{Label: label, Sample: sample}
	}
	return nil
}
