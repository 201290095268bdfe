package generic

// =============================================================================
// PERIOD - The simulated horizon [Start, End]
// =============================================================================

// Period is an inclusive range of days.
//
// A simulation over horizon N starting at S covers [S, S+N-1]; an empty
// horizon is represented by End before Start.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Horizon returns the period of n days beginning at start.
func Horizon(start TimePoint, n int) Period {
	return Period{Start: start, End: start.AddDays(n - 1)}
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Len returns the number of days in the period.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	days := make([]TimePoint, 0, p.Len())
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
