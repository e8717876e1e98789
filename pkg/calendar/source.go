package calendar

import (
	"slices"
	"time"
)

// EventSource provides events for a date range. Reads are synchronous
// against the last complete snapshot; RequestRange may trigger an
// asynchronous refresh that ends with a NotifyChanged.
type EventSource interface {
	// RequestRange declares the window the caller is interested in.
	RequestRange(begin, end time.Time)
	// GetEvents returns the events overlapping [begin, end) in
	// presentation order.
	GetEvents(begin, end time.Time) []Event
	// HasEvents reports whether any event overlaps the day containing day.
	HasEvents(day time.Time) bool
	IsLoading() bool
	HasCalendars() bool
	// IsDummy is true for sources that can never hold events.
	IsDummy() bool
	Subscribe(kind Notification, fn func()) SubscriptionID
	Unsubscribe(id SubscriptionID)
	// Close releases the provider subscription and any pending request.
	Close() error
}

// EmptySource never has events and is never loading.
type EmptySource struct {
	Notifier
}

// NewEmptySource returns the null event source.
func NewEmptySource() *EmptySource {
	return &EmptySource{}
}

func (s *EmptySource) RequestRange(begin, end time.Time)     {}
func (s *EmptySource) GetEvents(begin, end time.Time) []Event { return nil }
func (s *EmptySource) HasEvents(day time.Time) bool           { return false }
func (s *EmptySource) IsLoading() bool                        { return false }
func (s *EmptySource) HasCalendars() bool                     { return false }
func (s *EmptySource) IsDummy() bool                          { return true }

func (s *EmptySource) Close() error {
	s.UnsubscribeAll()
	return nil
}

// FilterEvents returns the events of snapshot overlapping [begin, end),
// sorted for display in that period. snapshot is not modified.
func FilterEvents(snapshot []Event, begin, end time.Time) []Event {
	var result []Event
	for _, e := range snapshot {
		if e.Overlaps(begin, end) {
			result = append(result, e)
		}
	}
	SortForPeriod(result, begin, end)
	return result
}

// SortForPeriod orders events by the time they appear within
// [begin, end): an event that began earlier and ends inside the period
// sorts by its end, everything else by its start. The sort is stable so
// ties keep provider order.
func SortForPeriod(events []Event, begin, end time.Time) {
	slices.SortStableFunc(events, func(a, b Event) int {
		return effectiveTime(a, begin, end).Compare(effectiveTime(b, begin, end))
	})
}

func effectiveTime(e Event, begin, end time.Time) time.Time {
	if e.Start.Before(begin) && !e.End.After(end) {
		return e.End
	}
	return e.Start
}

// hasEventsOn is the shared HasEvents implementation.
func hasEventsOn(src EventSource, day time.Time) bool {
	return len(src.GetEvents(BeginningOfDay(day), EndOfDay(day))) > 0
}

var _ EventSource = (*EmptySource)(nil)
