package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestPopupRequestsVisibleGrid(t *testing.T) {
	clock := &fakeClock{t: date(2024, 3, 13, 10, 0)}
	src := newMemSource(timed("standup", date(2024, 3, 13, 9, 0), date(2024, 3, 13, 9, 15)))

	p := NewPopup(src, DefaultSettings(), clock.now)

	require.Len(t, src.requested, 1)
	g := p.Month.Grid()
	assert.Equal(t, [2]time.Time{g.Begin, g.End}, src.requested[0])
	assert.Equal(t, date(2024, 2, 26, 0, 0), g.Begin)

	cell, ok := g.Cell(clock.t)
	require.True(t, ok)
	assert.True(t, cell.IsToday)
	assert.True(t, cell.HasEvents)
	assert.True(t, cell.IsSelected)

	periods := p.Agenda.Periods()
	require.NotEmpty(t, periods)
	assert.Equal(t, TodayHeader, periods[0].Header)
	assert.Equal(t, []string{"standup"}, summaries(eventsOf(periods[0])))
}

func TestPopupSelectionDrivesAgenda(t *testing.T) {
	clock := &fakeClock{t: date(2024, 3, 13, 10, 0)}
	src := newMemSource(timed("dentist", date(2024, 3, 20, 16, 0), date(2024, 3, 20, 17, 0)))
	p := NewPopup(src, DefaultSettings(), clock.now)

	selections := 0
	p.Month.Subscribe(NotifySelectedDate, func() { selections++ })

	p.Month.SetDate(date(2024, 3, 20, 8, 0))
	assert.Equal(t, 1, selections)
	assert.Len(t, src.requested, 1, "same month must not refetch")

	periods := p.Agenda.Periods()
	require.Len(t, periods, 1)
	assert.Equal(t, "Wednesday, March 20", periods[0].Header)
	assert.Equal(t, []string{"dentist"}, summaries(eventsOf(periods[0])))

	cell, _ := p.Month.Grid().Cell(date(2024, 3, 20, 0, 0))
	assert.True(t, cell.IsSelected)

	p.Month.SetDate(date(2024, 3, 20, 18, 0))
	assert.Equal(t, 1, selections, "same day is a no-op")

	p.Month.Today()
	assert.Equal(t, 2, selections)
	assert.Equal(t, TodayHeader, p.Agenda.Periods()[0].Header)
}

func TestMonthViewNavigation(t *testing.T) {
	clock := &fakeClock{t: date(2024, 1, 31, 10, 0)}
	src := newMemSource()
	m := NewMonthView(DefaultSettings(), clock.now)
	m.SetEventSource(src)
	gridChanges := 0
	m.Subscribe(NotifyGrid, func() { gridChanges++ })

	m.NextMonth()
	assert.Equal(t, date(2024, 2, 29, 10, 0), m.Selected())
	assert.Equal(t, "February", m.Grid().Header)
	require.Len(t, src.requested, 2)
	assert.Equal(t, 1, gridChanges)

	m.PrevMonth()
	assert.Equal(t, date(2024, 1, 29, 10, 0), m.Selected())
	assert.Len(t, src.requested, 3)
}

func TestMonthViewSettings(t *testing.T) {
	clock := &fakeClock{t: date(2024, 3, 13, 10, 0)}
	src := newMemSource()
	m := NewMonthView(DefaultSettings(), clock.now)
	m.SetEventSource(src)
	require.Len(t, src.requested, 1)

	s := DefaultSettings()
	s.ClockFormat = Clock12h
	m.SetSettings(s)
	assert.Len(t, src.requested, 1, "clock format does not affect the grid")

	s.WeekStart = time.Sunday
	m.SetSettings(s)
	require.Len(t, src.requested, 2)
	assert.Equal(t, date(2024, 2, 25, 0, 0), src.requested[1][0])
	assert.Equal(t, time.Sunday, m.Grid().Headings[0].Weekday)

	s.ShowWeekNumbers = true
	m.SetSettings(s)
	assert.Len(t, m.Grid().WeekNumbers, GridWeeks)
}

func TestPopupMidnightRollover(t *testing.T) {
	clock := &fakeClock{t: date(2024, 3, 13, 23, 59)}
	src := newMemSource()
	p := NewPopup(src, DefaultSettings(), clock.now)

	clock.t = date(2024, 3, 14, 0, 1)
	p.Tick()

	g := p.Month.Grid()
	old, _ := g.Cell(date(2024, 3, 13, 0, 0))
	assert.False(t, old.IsToday)
	today, _ := g.Cell(date(2024, 3, 14, 0, 0))
	assert.True(t, today.IsToday)

	// The selection stayed on the 13th, which is no longer today.
	periods := p.Agenda.Periods()
	require.Len(t, periods, 1)
	assert.Equal(t, "Wednesday, March 13", periods[0].Header)
}

func TestAgendaWaitsForLoading(t *testing.T) {
	clock := &fakeClock{t: date(2024, 3, 13, 10, 0)}
	src := newMemSource()
	a := NewAgendaView(DefaultSettings(), clock.now)
	a.SetEventSource(src)
	updates := 0
	a.Subscribe(NotifyAgenda, func() { updates++ })

	src.loading = true
	src.replace(timed("standup", date(2024, 3, 13, 9, 0), date(2024, 3, 13, 9, 15)))
	assert.Zero(t, updates)
	assert.True(t, a.Periods()[0].Items[0].Placeholder)

	src.loading = false
	src.Emit(NotifyChanged)
	assert.Equal(t, 1, updates)
	assert.Equal(t, []string{"standup"}, summaries(eventsOf(a.Periods()[0])))
}

func TestPopupSourceChangeRebuildsGrid(t *testing.T) {
	clock := &fakeClock{t: date(2024, 3, 13, 10, 0)}
	src := newMemSource()
	p := NewPopup(src, DefaultSettings(), clock.now)

	cell, _ := p.Month.Grid().Cell(date(2024, 3, 15, 0, 0))
	assert.False(t, cell.HasEvents)

	src.replace(timed("review", date(2024, 3, 15, 14, 0), date(2024, 3, 15, 15, 0)))

	cell, _ = p.Month.Grid().Cell(date(2024, 3, 15, 0, 0))
	assert.True(t, cell.HasEvents)
	assert.Equal(t, ThisWeekHeader, p.Agenda.Periods()[2].Header)

	require.NoError(t, p.Close())
}
