package calendar

import "time"

const (
	// AllDayLabel is shown instead of a clock time for all-day rows.
	AllDayLabel = "All Day"
	// NothingScheduled is the summary of the placeholder row.
	NothingScheduled = "Nothing Scheduled"

	// U+2236 RATIO stands in for the colon, U+2009 is a thin space.
	layout24h = "15∶04"
	layout12h = "3∶04 PM"

	headerWithoutYear = "January"
	headerWithYear    = "January 2006"

	dayHeading         = "Monday, January 2"
	dayHeadingWithYear = "Monday, January 2, 2006"
)

// Grid headings are always shown together ("S M T W T F S"), so
// duplicates are fine. List abbreviations appear alone and must be unique.
var (
	gridDayAbbrev = [7]string{"S", "M", "T", "W", "T", "F", "S"}
	listDayAbbrev = [7]string{"Su", "M", "T", "W", "Th", "F", "S"}
)

// GridDayAbbreviation returns the one-letter column heading for d.
func GridDayAbbreviation(d time.Weekday) string {
	return gridDayAbbrev[d]
}

// EventDayAbbreviation returns the short day name used in agenda rows.
func EventDayAbbreviation(d time.Weekday) string {
	return listDayAbbrev[d]
}

// FormatEventTime picks the time label for an event inside
// [periodBegin, periodEnd). All-day events and events covering the
// whole period read "All Day"; otherwise the start time is shown when
// it falls inside the period, else the end time.
func FormatEventTime(e Event, clock ClockFormat, periodBegin, periodEnd time.Time) string {
	if e.AllDay || e.Covers(periodBegin, periodEnd) {
		return AllDayLabel
	}
	t := e.End
	if !e.Start.Before(periodBegin) {
		t = e.Start
	}
	switch clock {
	case Clock24h:
		return t.Format(layout24h)
	default:
		return t.Format(layout12h)
	}
}

// EventDayName returns the list abbreviation for the day an event is
// shown under: its start day when it starts inside the period, or its
// end day when it spans in from before.
func EventDayName(e Event, periodBegin time.Time) string {
	if !e.Start.Before(periodBegin) {
		return EventDayAbbreviation(e.Start.Weekday())
	}
	return EventDayAbbreviation(e.End.Weekday())
}

// MonthHeader is the month label above the grid. The year is only
// included when it differs from now's.
func MonthHeader(selected, now time.Time) string {
	if SameYear(selected, now) {
		return selected.Format(headerWithoutYear)
	}
	return selected.Format(headerWithYear)
}

// DayHeader is the agenda header for a day other than today.
func DayHeader(day, now time.Time) string {
	if SameYear(day, now) {
		return day.Format(dayHeading)
	}
	return day.Format(dayHeadingWithYear)
}
