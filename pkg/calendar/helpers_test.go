package calendar

import (
	"time"
)

// memSource is an in-memory EventSource for engine tests.
type memSource struct {
	Notifier
	events    []Event
	loading   bool
	requested [][2]time.Time
}

func newMemSource(events ...Event) *memSource {
	return &memSource{events: events}
}

func (s *memSource) RequestRange(begin, end time.Time) {
	s.requested = append(s.requested, [2]time.Time{begin, end})
}

func (s *memSource) GetEvents(begin, end time.Time) []Event {
	return FilterEvents(s.events, begin, end)
}

func (s *memSource) HasEvents(day time.Time) bool { return hasEventsOn(s, day) }
func (s *memSource) IsLoading() bool              { return s.loading }
func (s *memSource) HasCalendars() bool           { return true }
func (s *memSource) IsDummy() bool                { return false }
func (s *memSource) Close() error                 { return nil }

// replace swaps the events and notifies like a finished fetch.
func (s *memSource) replace(events ...Event) {
	s.events = events
	s.Emit(NotifyChanged)
}

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func timed(summary string, start, end time.Time) Event {
	e := NewEvent(start, end, summary, false)
	e.UID = summary
	return e
}

func allDay(summary string, day time.Time) Event {
	begin := BeginningOfDay(day)
	e := NewEvent(begin, begin.AddDate(0, 0, 1), summary, true)
	e.UID = summary
	return e
}

func summaries(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Summary)
	}
	return out
}

var _ EventSource = (*memSource)(nil)
