package calendar

import (
	"time"
)

// Event is a single appointment as shown by the popup. Values are
// immutable once built; sources hand out copies.
type Event struct {
	UID         string    `json:"uid,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
}

// NewEvent builds an event, clamping End so that it never precedes Start.
func NewEvent(start, end time.Time, summary string, allDay bool) Event {
	if end.Before(start) {
		end = start
	}
	return Event{Start: start, End: end, Summary: summary, AllDay: allDay}
}

// Overlaps reports whether the event intersects the half-open window
// [begin, end). Touching the window edge is not an overlap.
func (e Event) Overlaps(begin, end time.Time) bool {
	return intervalsOverlap(e.Start, e.End, begin, end)
}

// Covers reports whether the event spans the whole of [begin, end).
func (e Event) Covers(begin, end time.Time) bool {
	return !e.Start.After(begin) && !e.End.Before(end)
}

func intervalsOverlap(a0, a1, b0, b1 time.Time) bool {
	if !a1.After(b0) {
		return false
	}
	if !b1.After(a0) {
		return false
	}
	return true
}

// BeginningOfDay returns local midnight of the day containing t.
func BeginningOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the exclusive end of the day containing t, which is
// midnight of the following calendar day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

// Noon returns 12:00 on the day containing t. Day iteration anchors on
// noon so daylight-saving shifts never move it onto another date.
func Noon(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
}

func SameYear(a, b time.Time) bool {
	return a.Year() == b.Year()
}

func SameMonth(a, b time.Time) bool {
	return SameYear(a, b) && a.Month() == b.Month()
}

func SameDay(a, b time.Time) bool {
	return SameMonth(a, b) && a.Day() == b.Day()
}

// IsWorkDay treats Saturday and Sunday as the only non-work days.
// TODO: make the weekend configurable for regions with a Friday/Saturday weekend.
func IsWorkDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
