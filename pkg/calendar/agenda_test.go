package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headers(periods []Period) []string {
	out := make([]string, 0, len(periods))
	for _, p := range periods {
		out = append(out, p.Header)
	}
	return out
}

func TestBuildAgendaWeekBucket(t *testing.T) {
	s := DefaultSettings()

	t.Run("wednesday shows this week", func(t *testing.T) {
		now := date(2024, 3, 13, 10, 0)
		src := newMemSource(timed("review", date(2024, 3, 15, 14, 0), date(2024, 3, 15, 15, 0)))

		periods := BuildAgenda(now, now, s, src)
		require.Equal(t, []string{TodayHeader, TomorrowHeader, ThisWeekHeader}, headers(periods))

		week := periods[2]
		assert.Equal(t, date(2024, 3, 15, 0, 0), week.Begin)
		assert.Equal(t, date(2024, 3, 18, 0, 0), week.End)
		assert.True(t, week.IncludeDayName)
		require.Len(t, week.Items, 1)
		assert.Equal(t, "F", week.Items[0].DayName)
	})

	t.Run("saturday shows next week", func(t *testing.T) {
		now := date(2024, 3, 16, 10, 0)
		src := newMemSource(timed("planning", date(2024, 3, 20, 9, 0), date(2024, 3, 20, 10, 0)))

		periods := BuildAgenda(now, now, s, src)
		require.Equal(t, []string{TodayHeader, TomorrowHeader, NextWeekHeader}, headers(periods))
		assert.Equal(t, date(2024, 3, 18, 0, 0), periods[2].Begin)
		assert.Equal(t, date(2024, 3, 25, 0, 0), periods[2].End)
	})

	t.Run("empty week bucket is omitted", func(t *testing.T) {
		now := date(2024, 3, 13, 10, 0)
		periods := BuildAgenda(now, now, s, newMemSource())
		assert.Equal(t, []string{TodayHeader, TomorrowHeader}, headers(periods))
	})
}

func TestWeekBucket(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		weekStart time.Weekday
		header    string
		end       time.Time
	}{
		{"monday start on monday", date(2024, 3, 11, 8, 0), time.Monday, ThisWeekHeader, date(2024, 3, 18, 0, 0)},
		{"monday start on friday", date(2024, 3, 15, 8, 0), time.Monday, ThisWeekHeader, date(2024, 3, 18, 0, 0)},
		{"monday start on sunday", date(2024, 3, 17, 8, 0), time.Monday, NextWeekHeader, date(2024, 3, 25, 0, 0)},
		{"sunday start on sunday", date(2024, 3, 17, 8, 0), time.Sunday, ThisWeekHeader, date(2024, 3, 24, 0, 0)},
		{"sunday start on friday", date(2024, 3, 15, 8, 0), time.Sunday, NextWeekHeader, date(2024, 3, 24, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, end := weekBucket(tt.now, tt.weekStart)
			assert.Equal(t, tt.header, header)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestBuildAgendaPlaceholders(t *testing.T) {
	now := date(2024, 3, 13, 10, 0)
	periods := BuildAgenda(now, now, DefaultSettings(), NewEmptySource())

	require.Len(t, periods, 2)
	for _, p := range periods {
		require.Len(t, p.Items, 1)
		item := p.Items[0]
		assert.True(t, item.Placeholder)
		assert.Equal(t, NothingScheduled, item.Event.Summary)
		assert.Equal(t, AllDayLabel, item.Time)
		assert.Empty(t, item.DayName)
	}
}

func TestBuildAgendaOtherDay(t *testing.T) {
	now := date(2024, 3, 13, 10, 0)

	t.Run("same year", func(t *testing.T) {
		src := newMemSource(timed("dentist", date(2024, 3, 20, 16, 0), date(2024, 3, 20, 17, 0)))
		periods := BuildAgenda(date(2024, 3, 20, 12, 0), now, DefaultSettings(), src)

		require.Len(t, periods, 1)
		assert.Equal(t, "Wednesday, March 20", periods[0].Header)
		require.Len(t, periods[0].Items, 1)
		assert.Equal(t, "16\u223600", periods[0].Items[0].Time)
		assert.False(t, periods[0].IncludeDayName)
	})

	t.Run("other year without events", func(t *testing.T) {
		periods := BuildAgenda(date(2025, 1, 3, 12, 0), now, DefaultSettings(), newMemSource())

		require.Len(t, periods, 1)
		assert.Equal(t, "Friday, January 3, 2025", periods[0].Header)
		require.Len(t, periods[0].Items, 1)
		assert.True(t, periods[0].Items[0].Placeholder)
	})
}

func TestBuildAgendaBoundaries(t *testing.T) {
	now := date(2024, 3, 13, 10, 0)
	src := newMemSource(
		timed("yesterday", date(2024, 3, 12, 22, 0), date(2024, 3, 13, 0, 0)),
		timed("tomorrow", date(2024, 3, 14, 0, 0), date(2024, 3, 14, 1, 0)),
	)

	periods := BuildAgenda(now, now, DefaultSettings(), src)
	require.Len(t, periods, 2)
	assert.True(t, periods[0].Items[0].Placeholder)
	assert.Equal(t, []string{"tomorrow"}, summaries(eventsOf(periods[1])))
}

func TestBuildAgendaOrdering(t *testing.T) {
	now := date(2024, 3, 13, 10, 0)
	src := newMemSource(
		timed("overnight", date(2024, 3, 12, 22, 0), date(2024, 3, 13, 8, 0)),
		timed("early", date(2024, 3, 13, 7, 0), date(2024, 3, 13, 7, 30)),
		timed("meeting", date(2024, 3, 13, 9, 0), date(2024, 3, 13, 10, 0)),
		allDay("holiday", now),
		timed("into tomorrow", date(2024, 3, 13, 23, 0), date(2024, 3, 14, 1, 0)),
	)

	periods := BuildAgenda(now, now, DefaultSettings(), src)
	today := periods[0]
	assert.Equal(t,
		[]string{"holiday", "early", "overnight", "meeting", "into tomorrow"},
		summaries(eventsOf(today)))

	byName := map[string]Item{}
	for _, item := range today.Items {
		byName[item.Event.Summary] = item
	}
	assert.Equal(t, AllDayLabel, byName["holiday"].Time)
	assert.Equal(t, "08\u223600", byName["overnight"].Time)
	assert.True(t, byName["overnight"].ContinuesBefore)
	assert.False(t, byName["overnight"].ContinuesAfter)
	assert.True(t, byName["into tomorrow"].ContinuesAfter)
	assert.False(t, byName["holiday"].ContinuesAfter)

	tomorrow := periods[1]
	assert.Equal(t, []string{"into tomorrow"}, summaries(eventsOf(tomorrow)))
	assert.Equal(t, "01\u223600", tomorrow.Items[0].Time)
}

func TestBuildAgendaDayNameForSpanningEvent(t *testing.T) {
	now := date(2024, 3, 13, 10, 0)
	src := newMemSource(timed("trip", date(2024, 3, 14, 20, 0), date(2024, 3, 16, 10, 0)))

	periods := BuildAgenda(now, now, DefaultSettings(), src)
	require.Len(t, periods, 3)

	week := periods[2]
	require.Len(t, week.Items, 1)
	// Starts before the bucket, so it is listed under its end day.
	assert.Equal(t, "S", week.Items[0].DayName)
	assert.Equal(t, "10\u223600", week.Items[0].Time)
}

func TestBuildAgendaTwelveHourClock(t *testing.T) {
	now := date(2024, 3, 13, 10, 0)
	src := newMemSource(timed("lunch", date(2024, 3, 13, 12, 30), date(2024, 3, 13, 13, 0)))
	s := DefaultSettings()
	s.ClockFormat = Clock12h

	periods := BuildAgenda(now, now, s, src)
	assert.Equal(t, "12\u223630\u2009PM", periods[0].Items[0].Time)
}

func eventsOf(p Period) []Event {
	out := make([]Event, 0, len(p.Items))
	for _, item := range p.Items {
		if !item.Placeholder {
			out = append(out, item.Event)
		}
	}
	return out
}
