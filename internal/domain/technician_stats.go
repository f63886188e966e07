package domain

import "time"

// MonthWindow is a half-open calendar month interval [Start, End).
type MonthWindow struct {
	Start time.Time
	End   time.Time
}

// MonthWindowAt returns the calendar month window containing t, in UTC.
func MonthWindowAt(t time.Time) MonthWindow {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return MonthWindow{Start: start, End: start.AddDate(0, 1, 0)}
}

// MonthWindowFor returns the window for an explicit year and month.
func MonthWindowFor(year int, month time.Month) MonthWindow {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return MonthWindow{Start: start, End: start.AddDate(0, 1, 0)}
}

// Contains reports whether t falls inside the window.
func (w MonthWindow) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && t.Before(w.End)
}

// TechnicianStats holds the per-technician, per-sector accrual for one
// calendar month. Rows are created lazily and updated by increment only.
type TechnicianStats struct {
	ID                  string
	TechnicianID        string
	Sector              string
	TotalAssigned       int
	TotalCompleted      int
	HighSeverityHandled int
	Points              int
	WindowStart         time.Time
	WindowEnd           time.Time
	CreatedAt           time.Time
}

// AggregatedStats summarizes a technician's accrual over several windows.
type AggregatedStats struct {
	TotalAssigned       int
	TotalCompleted      int
	HighSeverityHandled int
	TotalPoints         int
	CompletionRate      float64
	MonthsActive        int
}

// SectorPerformance summarizes accrual across a sector for a period.
type SectorPerformance struct {
	Sector              string
	ActiveTechnicians   int
	TotalAssigned       int
	TotalCompleted      int
	HighSeverityHandled int
	AvgCompletionRate   float64
	TotalPoints         int
}
