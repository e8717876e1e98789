package calendar

import "time"

const (
	// GridWeeks is fixed so the popup keeps the same height every month.
	GridWeeks = 6
	GridDays  = GridWeeks * 7
)

// Cell is one day of the month grid. Cells are regenerated on every
// rebuild and never mutated afterwards, except for IsSelected.
type Cell struct {
	// Date is noon on the cell's day.
	Date         time.Time
	Row          int
	Column       int
	IsToday      bool
	IsOtherMonth bool
	IsWorkDay    bool
	HasEvents    bool
	IsSelected   bool
}

// Heading is a weekday column label.
type Heading struct {
	Weekday time.Weekday
	Column  int
	Label   string
}

// WeekNumber labels a grid row with its ISO week.
type WeekNumber struct {
	Row    int
	Column int
	Week   int
}

// Grid is the computed month grid.
type Grid struct {
	// Begin is midnight of the first cell, End is midnight after the
	// last. [Begin, End) is the range requested from the event source.
	Begin time.Time
	End   time.Time

	Month       time.Time
	Header      string
	Headings    []Heading
	Cells       []Cell
	WeekNumbers []WeekNumber
	// Interactive is false when the source can never hold events.
	Interactive bool
}

// GridStart returns noon of the first cell shown for selected's month.
//
// Months that start on the week-start day get a whole padding week in
// front; everything else gets only the days back to the week start.
// Together with always emitting 42 days this yields:
//   - 6-week months: no padding
//   - 5-week months starting on week start: one week before
//   - other 5-week months: one week after
//   - 4-week months (always start on week start): one before, one after
func GridStart(selected time.Time, weekStart time.Weekday) time.Time {
	first := time.Date(selected.Year(), selected.Month(), 1, 12, 0, 0, 0, selected.Location())
	daysToWeekStart := (7 + int(first.Weekday()) - int(weekStart)) % 7
	padding := 0
	if daysToWeekStart == 0 {
		padding = 7
	}
	return first.AddDate(0, 0, -(padding + daysToWeekStart))
}

// BuildGrid computes the 6x7 grid for selected's month. src may be nil,
// in which case no day has events.
func BuildGrid(selected, now time.Time, s Settings, src EventSource) Grid {
	begin := GridStart(selected, s.WeekStart)

	g := Grid{
		Begin:       BeginningOfDay(begin),
		End:         BeginningOfDay(begin.AddDate(0, 0, GridDays)),
		Month:       time.Date(selected.Year(), selected.Month(), 1, 12, 0, 0, 0, selected.Location()),
		Header:      MonthHeader(selected, now),
		Headings:    weekdayHeadings(s),
		Cells:       make([]Cell, 0, GridDays),
		Interactive: src != nil && !src.IsDummy(),
	}

	for i := 0; i < GridDays; i++ {
		day := begin.AddDate(0, 0, i)
		row := i / 7
		cell := Cell{
			Date:         day,
			Row:          row,
			Column:       column(day.Weekday(), s),
			IsToday:      SameDay(day, now),
			IsOtherMonth: day.Month() != selected.Month(),
			IsWorkDay:    IsWorkDay(day),
			IsSelected:   SameDay(day, selected),
		}
		if src != nil {
			cell.HasEvents = src.HasEvents(day)
		}
		g.Cells = append(g.Cells, cell)

		if s.ShowWeekNumbers && day.Weekday() == time.Thursday {
			_, week := day.ISOWeek()
			g.WeekNumbers = append(g.WeekNumbers, WeekNumber{
				Row:    row,
				Column: weekNumberColumn(s),
				Week:   week,
			})
		}
	}
	return g
}

// Select moves the selection mark to day. It returns false when day is
// not on the grid.
func (g *Grid) Select(day time.Time) bool {
	found := false
	for i := range g.Cells {
		g.Cells[i].IsSelected = SameDay(g.Cells[i].Date, day)
		found = found || g.Cells[i].IsSelected
	}
	return found
}

// Cell returns the cell for day, if shown.
func (g Grid) Cell(day time.Time) (Cell, bool) {
	for _, c := range g.Cells {
		if SameDay(c.Date, day) {
			return c, true
		}
	}
	return Cell{}, false
}

// Columns returns the number of grid columns including the week-number column.
func (g Grid) Columns() int {
	if len(g.WeekNumbers) > 0 {
		return 8
	}
	return 7
}

func weekdayHeadings(s Settings) []Heading {
	headings := make([]Heading, 0, 7)
	for i := 0; i < 7; i++ {
		wd := time.Weekday((int(s.WeekStart) + i) % 7)
		headings = append(headings, Heading{
			Weekday: wd,
			Column:  column(wd, s),
			Label:   GridDayAbbreviation(wd),
		})
	}
	return headings
}

func column(wd time.Weekday, s Settings) int {
	idx := (7 + int(wd) - int(s.WeekStart)) % 7
	if s.RightToLeft {
		return 6 - idx
	}
	if s.ShowWeekNumbers {
		return idx + 1
	}
	return idx
}

func weekNumberColumn(s Settings) int {
	if s.RightToLeft {
		return 7
	}
	return 0
}
