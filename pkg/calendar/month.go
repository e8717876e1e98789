package calendar

import "time"

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}

// NextMonth moves date forward by one calendar month, keeping the
// time of day. When the day does not exist in the target month it is
// clamped to that month's last day (Jan 31 -> Feb 28/29).
func NextMonth(date time.Time) time.Time {
	return addMonths(date, 1)
}

// PrevMonth moves date back by one calendar month with the same
// clamping rule as NextMonth.
func PrevMonth(date time.Time) time.Time {
	return addMonths(date, -1)
}

func addMonths(date time.Time, n int) time.Time {
	// time.Date normalises month overflow, so Dec+1 rolls the year.
	first := time.Date(date.Year(), date.Month()+time.Month(n), 1, 12, 0, 0, 0, date.Location())
	day := date.Day()
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	h, m, s := date.Clock()
	return time.Date(first.Year(), first.Month(), day, h, m, s, date.Nanosecond(), date.Location())
}
