package engine

import "time"

// =============================================================================
// WORKING-DAY CALENDAR
// =============================================================================
// In this domain a working day is any Monday through Saturday; only Sundays
// are excluded. The KPI daily value divides a fixed monthly amount by this
// count, so the result varies month to month (24-27 days).

// WorkingDays counts the Monday-Saturday days of the given month.
// Pure function of (year, month).
func WorkingDays(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	working := 0
	for day := 1; day <= daysInMonth; day++ {
		wd := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Weekday()
		if wd != time.Sunday {
			working++
		}
	}
	return working
}
