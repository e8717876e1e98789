package calendar

import "time"

// MonthView holds the state behind the month grid: the selected day,
// the injected clock and settings, and the event source. It rebuilds
// the grid only when the visible window or the today mark would change.
// MonthView is not safe for concurrent use; drive it from the event loop.
type MonthView struct {
	Notifier

	now       func() time.Time
	settings  Settings
	source    EventSource
	sourceSub SubscriptionID

	selected    time.Time
	grid        *Grid
	markedToday time.Time
}

// NewMonthView selects today. now defaults to time.Now.
func NewMonthView(s Settings, now func() time.Time) *MonthView {
	if now == nil {
		now = time.Now
	}
	return &MonthView{
		now:      now,
		settings: s,
		source:   NewEmptySource(),
		selected: now(),
	}
}

// SetEventSource swaps the event source and rebuilds against it.
func (m *MonthView) SetEventSource(src EventSource) {
	if m.source != nil && m.sourceSub != 0 {
		m.source.Unsubscribe(m.sourceSub)
	}
	m.source = src
	m.sourceSub = src.Subscribe(NotifyChanged, func() {
		m.rebuild()
		m.update()
	})
	m.rebuild()
	m.update()
}

// Selected returns the selected day.
func (m *MonthView) Selected() time.Time {
	return m.selected
}

// SetDate selects day. Selecting the current day again does nothing.
func (m *MonthView) SetDate(day time.Time) {
	if SameDay(day, m.selected) {
		return
	}
	m.selected = day
	m.update()
	m.Emit(NotifySelectedDate)
}

func (m *MonthView) NextMonth() {
	m.SetDate(NextMonth(m.selected))
}

func (m *MonthView) PrevMonth() {
	m.SetDate(PrevMonth(m.selected))
}

// Today selects the current day.
func (m *MonthView) Today() {
	m.SetDate(m.now())
}

// SetSettings applies new settings. Only layout-relevant changes
// rebuild the grid.
func (m *MonthView) SetSettings(s Settings) {
	old := m.settings
	m.settings = s
	if old.WeekStart != s.WeekStart || old.ShowWeekNumbers != s.ShowWeekNumbers || old.RightToLeft != s.RightToLeft {
		m.rebuild()
		m.update()
	}
}

// Tick re-checks the clock; past midnight the today mark moves.
func (m *MonthView) Tick() {
	if !SameDay(m.now(), m.markedToday) {
		m.update()
	}
}

// Grid returns a copy of the current grid.
func (m *MonthView) Grid() Grid {
	if m.grid == nil {
		m.rebuild()
	}
	g := *m.grid
	g.Cells = append([]Cell(nil), m.grid.Cells...)
	return g
}

func (m *MonthView) update() {
	if m.grid == nil || !SameMonth(m.selected, m.grid.Month) || !SameDay(m.now(), m.markedToday) {
		m.rebuild()
	} else {
		m.grid.Select(m.selected)
	}
	m.Emit(NotifyGrid)
}

func (m *MonthView) rebuild() {
	now := m.now()
	g := BuildGrid(m.selected, now, m.settings, m.source)
	m.grid = &g
	m.markedToday = now
	// Tell the source which window we are interested in.
	m.source.RequestRange(g.Begin, g.End)
}

// AgendaView keeps the agenda periods for one selected day up to date.
type AgendaView struct {
	Notifier

	now       func() time.Time
	settings  Settings
	source    EventSource
	sourceSub SubscriptionID

	date    time.Time
	lastNow time.Time
	periods []Period
}

// NewAgendaView shows today. now defaults to time.Now.
func NewAgendaView(s Settings, now func() time.Time) *AgendaView {
	if now == nil {
		now = time.Now
	}
	return &AgendaView{
		now:      now,
		settings: s,
		source:   NewEmptySource(),
		date:     now(),
	}
}

func (a *AgendaView) SetEventSource(src EventSource) {
	if a.source != nil && a.sourceSub != 0 {
		a.source.Unsubscribe(a.sourceSub)
	}
	a.source = src
	a.sourceSub = src.Subscribe(NotifyChanged, a.update)
	a.update()
}

// SetDate shows the agenda for day.
func (a *AgendaView) SetDate(day time.Time) {
	if SameDay(day, a.date) {
		return
	}
	a.date = day
	a.update()
}

func (a *AgendaView) SetSettings(s Settings) {
	a.settings = s
	a.update()
}

// Tick recomputes once the day changed, so Today/Tomorrow roll over.
func (a *AgendaView) Tick() {
	if !SameDay(a.now(), a.lastNow) {
		a.update()
	}
}

// Periods returns the last computed agenda.
func (a *AgendaView) Periods() []Period {
	return a.periods
}

func (a *AgendaView) update() {
	// A half-loaded window would briefly show "Nothing Scheduled".
	if a.source.IsLoading() {
		return
	}
	a.lastNow = a.now()
	a.periods = BuildAgenda(a.date, a.lastNow, a.settings, a.source)
	a.Emit(NotifyAgenda)
}

// Popup couples a MonthView and an AgendaView: selecting a day in the
// month shows its agenda.
type Popup struct {
	Month  *MonthView
	Agenda *AgendaView
	source EventSource
}

// NewPopup wires both views to src.
func NewPopup(src EventSource, s Settings, now func() time.Time) *Popup {
	p := &Popup{
		Month:  NewMonthView(s, now),
		Agenda: NewAgendaView(s, now),
		source: src,
	}
	p.Month.Subscribe(NotifySelectedDate, func() {
		p.Agenda.SetDate(p.Month.Selected())
	})
	p.Agenda.SetEventSource(src)
	p.Month.SetEventSource(src)
	return p
}

func (p *Popup) SetSettings(s Settings) {
	p.Month.SetSettings(s)
	p.Agenda.SetSettings(s)
}

func (p *Popup) Tick() {
	p.Month.Tick()
	p.Agenda.Tick()
}

// Close tears down the views and the event source.
func (p *Popup) Close() error {
	p.Month.UnsubscribeAll()
	p.Agenda.UnsubscribeAll()
	return p.source.Close()
}
