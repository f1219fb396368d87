package domain

// Composite window convention: an 8-day composite's centered timestamp maps to
// the inclusive window [center-3d, center+4d].
const (
	compositeDaysBefore = 3
	compositeDaysAfter  = 4
)

// CompositeWindow derives the inclusive period window for a composite centered
// on the given date.
func CompositeWindow(center Date) (start, end Date) {
	return center.AddDays(-compositeDaysBefore), center.AddDays(compositeDaysAfter)
}

// Overlaps reports whether the inclusive interval [start, end] intersects the
// month window. This is a standard interval test, not equality: composites
// whose window only partially covers the month still belong to it.
func (w MonthWindow) Overlaps(start, end Date) bool {
	return !start.After(w.End) && !end.Before(w.Start)
}

// Contains reports whether a single date falls inside the month window.
func (w MonthWindow) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// RowInWindow applies the month filter to a projected row using whichever
// period representation the row carries.
func RowInWindow(r Row, w MonthWindow) bool {
	if !r.Date.IsZero() {
		return w.Contains(r.Date)
	}
	return w.Overlaps(r.WindowStart, r.WindowEnd)
}
