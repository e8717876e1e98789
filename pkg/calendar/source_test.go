package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterEventsHalfOpen(t *testing.T) {
	begin := date(2024, 3, 13, 10, 0)
	end := date(2024, 3, 13, 12, 0)
	snapshot := []Event{
		timed("ends at begin", date(2024, 3, 13, 8, 0), begin),
		timed("starts at end", end, date(2024, 3, 13, 13, 0)),
		timed("spans in", date(2024, 3, 13, 9, 0), date(2024, 3, 13, 11, 0)),
		timed("inside", date(2024, 3, 13, 11, 0), date(2024, 3, 13, 12, 0)),
		timed("covers", date(2024, 3, 13, 8, 0), date(2024, 3, 13, 14, 0)),
	}
	original := append([]Event(nil), snapshot...)

	got := FilterEvents(snapshot, begin, end)

	assert.Equal(t, []string{"covers", "spans in", "inside"}, summaries(got))
	assert.Equal(t, original, snapshot, "snapshot must not be reordered")
}

func TestSortForPeriodIsStable(t *testing.T) {
	begin := date(2024, 3, 13, 0, 0)
	end := date(2024, 3, 14, 0, 0)
	events := []Event{
		timed("b", date(2024, 3, 13, 9, 0), date(2024, 3, 13, 10, 0)),
		timed("a", date(2024, 3, 13, 9, 0), date(2024, 3, 13, 9, 30)),
		// Ends at 09:00 inside the period, so it ties with the two above.
		timed("c", date(2024, 3, 12, 20, 0), date(2024, 3, 13, 9, 0)),
	}

	SortForPeriod(events, begin, end)

	assert.Equal(t, []string{"b", "a", "c"}, summaries(events))
}

func TestEndToEndAllDaySortsFirst(t *testing.T) {
	today := date(2024, 3, 13, 15, 0)
	src := newMemSource(
		timed("A", date(2024, 3, 13, 9, 0), date(2024, 3, 13, 10, 0)),
		allDay("B", today),
	)

	got := src.GetEvents(BeginningOfDay(today), EndOfDay(today))

	assert.Equal(t, []string{"B", "A"}, summaries(got))
	assert.True(t, src.HasEvents(today))
	assert.False(t, src.HasEvents(today.AddDate(0, 0, 1)))
}

func TestEmptySource(t *testing.T) {
	s := NewEmptySource()
	s.RequestRange(date(2024, 3, 1, 0, 0), date(2024, 4, 1, 0, 0))

	assert.Empty(t, s.GetEvents(date(2024, 3, 1, 0, 0), date(2024, 4, 1, 0, 0)))
	assert.False(t, s.HasEvents(date(2024, 3, 13, 0, 0)))
	assert.False(t, s.IsLoading())
	assert.False(t, s.HasCalendars())
	assert.True(t, s.IsDummy())
	assert.NoError(t, s.Close())
}
