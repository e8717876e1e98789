package calendar

import "time"

const (
	TodayHeader    = "Today"
	TomorrowHeader = "Tomorrow"
	ThisWeekHeader = "This week"
	NextWeekHeader = "Next week"
)

// Period is one labelled bucket of the agenda.
type Period struct {
	Header string
	// [Begin, End) is the window the bucket covers.
	Begin          time.Time
	End            time.Time
	IncludeDayName bool
	Items          []Item
}

// Item is one agenda row.
type Item struct {
	Event Event
	// DayName is empty unless the period includes day names.
	DayName string
	Time    string
	// ContinuesBefore/After mark events that spill over the period edge.
	ContinuesBefore bool
	ContinuesAfter  bool
	Placeholder     bool
}

// BuildAgenda groups src's events into the periods shown under the
// grid. For a day other than today there is a single period for that
// day. For today there are Today, Tomorrow and a This week / Next week
// bucket; the week bucket is left out when empty.
func BuildAgenda(selected, now time.Time, s Settings, src EventSource) []Period {
	if src == nil {
		src = NewEmptySource()
	}
	if !SameDay(selected, now) {
		begin := BeginningOfDay(selected)
		return appendPeriod(nil, src, s, DayHeader(selected, now), begin, begin.AddDate(0, 0, 1), false, true)
	}

	today := BeginningOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	afterTomorrow := today.AddDate(0, 0, 2)

	var periods []Period
	periods = appendPeriod(periods, src, s, TodayHeader, today, tomorrow, false, true)
	periods = appendPeriod(periods, src, s, TomorrowHeader, tomorrow, afterTomorrow, false, true)

	header, end := weekBucket(now, s.WeekStart)
	periods = appendPeriod(periods, src, s, header, afterTomorrow, end, true, false)
	return periods
}

// weekBucket picks the label and exclusive end of the third bucket.
// During the first five days of the week it runs to the end of this
// week, otherwise to the end of next week.
func weekBucket(now time.Time, weekStart time.Weekday) (string, time.Time) {
	today := BeginningOfDay(now)
	dayInWeek := (int(now.Weekday()) - int(weekStart) + 7) % 7
	if dayInWeek < 5 {
		return ThisWeekHeader, today.AddDate(0, 0, 7-dayInWeek)
	}
	return NextWeekHeader, today.AddDate(0, 0, 14-dayInWeek)
}

func appendPeriod(periods []Period, src EventSource, s Settings, header string, begin, end time.Time, includeDayName, showNothingScheduled bool) []Period {
	events := src.GetEvents(begin, end)
	if len(events) == 0 && !showNothingScheduled {
		return periods
	}

	p := Period{
		Header:         header,
		Begin:          begin,
		End:            end,
		IncludeDayName: includeDayName,
		Items:          make([]Item, 0, len(events)),
	}
	for _, e := range events {
		p.Items = append(p.Items, newItem(e, s.ClockFormat, begin, end, includeDayName))
	}
	if len(events) == 0 {
		item := newItem(NewEvent(begin, begin, NothingScheduled, true), s.ClockFormat, begin, end, false)
		item.Placeholder = true
		p.Items = append(p.Items, item)
	}
	return append(periods, p)
}

func newItem(e Event, clock ClockFormat, begin, end time.Time, includeDayName bool) Item {
	item := Item{
		Event:           e,
		Time:            FormatEventTime(e, clock, begin, end),
		ContinuesBefore: !e.AllDay && e.Start.Before(begin),
		ContinuesAfter:  !e.AllDay && e.End.After(end),
	}
	if includeDayName {
		item.DayName = EventDayName(e, begin)
	}
	return item
}
