// Package render draws the popup's month grid and agenda as terminal
// text. It only reads the computed calendar.Grid and calendar.Period
// values.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/djwarf/shellcal/pkg/calendar"
)

const (
	cellWidth    = 4
	timeWidth    = 10
	dayWidth     = 3
	agendaIndent = 2

	eventMark = "•"
	continues = "…"
)

// Theme holds the styles for each element.
type Theme struct {
	Header       lipgloss.Style
	Heading      lipgloss.Style
	Day          lipgloss.Style
	Weekend      lipgloss.Style
	OtherMonth   lipgloss.Style
	Today        lipgloss.Style
	Selected     lipgloss.Style
	WeekNumber   lipgloss.Style
	Marker       lipgloss.Style
	PeriodHeader lipgloss.Style
	DayName      lipgloss.Style
	Time         lipgloss.Style
	Summary      lipgloss.Style
	Placeholder  lipgloss.Style
}

// DefaultTheme uses adaptive colors that read on light and dark
// terminals.
func DefaultTheme() Theme {
	muted := lipgloss.AdaptiveColor{Light: "#8a8a8a", Dark: "#6c6c6c"}
	accent := lipgloss.AdaptiveColor{Light: "#1a5fb4", Dark: "#62a0ea"}

	t := PlainTheme()
	t.Header = t.Header.Bold(true).Foreground(accent)
	t.Heading = t.Heading.Foreground(muted)
	t.Weekend = t.Weekend.Foreground(muted)
	t.OtherMonth = t.OtherMonth.Foreground(muted).Faint(true)
	t.Today = t.Today.Bold(true).Foreground(accent)
	t.Selected = t.Selected.Reverse(true)
	t.WeekNumber = t.WeekNumber.Foreground(muted).Italic(true)
	t.Marker = t.Marker.Foreground(accent)
	t.PeriodHeader = t.PeriodHeader.Bold(true)
	t.DayName = t.DayName.Foreground(muted)
	t.Time = t.Time.Foreground(muted)
	t.Placeholder = t.Placeholder.Foreground(muted).Italic(true)
	return t
}

// PlainTheme only lays text out, with no colors or attributes.
func PlainTheme() Theme {
	cell := lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Right)
	return Theme{
		Header:       lipgloss.NewStyle().Align(lipgloss.Center),
		Heading:      cell,
		Day:          cell,
		Weekend:      cell,
		OtherMonth:   cell,
		Today:        cell,
		Selected:     cell,
		WeekNumber:   cell,
		Marker:       lipgloss.NewStyle(),
		PeriodHeader: lipgloss.NewStyle(),
		DayName:      lipgloss.NewStyle().Width(dayWidth),
		Time:         lipgloss.NewStyle().Width(timeWidth),
		Summary:      lipgloss.NewStyle(),
		Placeholder:  lipgloss.NewStyle(),
	}
}

// Renderer turns view models into text.
type Renderer struct {
	theme Theme
}

func New(theme Theme) *Renderer {
	return &Renderer{theme: theme}
}

// Popup stacks the grid above the agenda.
func (r *Renderer) Popup(g calendar.Grid, periods []calendar.Period) string {
	return lipgloss.JoinVertical(lipgloss.Left, r.Grid(g), "", r.Agenda(periods))
}

// Grid renders the month header, the weekday headings and the six
// week rows, honouring each element's column so right-to-left grids
// come out mirrored.
func (r *Renderer) Grid(g calendar.Grid) string {
	cols := g.Columns()
	width := cols * cellWidth

	blank := r.theme.Day.Render("")
	newRow := func() []string {
		row := make([]string, cols)
		for i := range row {
			row[i] = blank
		}
		return row
	}

	lines := []string{r.theme.Header.Width(width).Render(g.Header)}

	headings := newRow()
	for _, h := range g.Headings {
		headings[h.Column] = r.theme.Heading.Render(h.Label)
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, headings...))

	rows := make([][]string, calendar.GridWeeks)
	for i := range rows {
		rows[i] = newRow()
	}
	for _, wn := range g.WeekNumbers {
		// The trailing space lines the digits up with the day numbers,
		// whose last column holds the event mark.
		rows[wn.Row][wn.Column] = r.theme.WeekNumber.Render(fmt.Sprintf("%d ", wn.Week))
	}
	for _, c := range g.Cells {
		rows[c.Row][c.Column] = r.cell(c)
	}
	for _, row := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) cell(c calendar.Cell) string {
	mark := " "
	if c.HasEvents {
		mark = r.theme.Marker.Render(eventMark)
	}
	text := fmt.Sprintf("%d%s", c.Date.Day(), mark)

	style := r.theme.Day
	switch {
	case c.IsSelected:
		style = r.theme.Selected
	case c.IsToday:
		style = r.theme.Today
	case c.IsOtherMonth:
		style = r.theme.OtherMonth
	case !c.IsWorkDay:
		style = r.theme.Weekend
	}
	return style.Render(text)
}

// Agenda renders each period with its items indented below the header.
func (r *Renderer) Agenda(periods []calendar.Period) string {
	var lines []string
	for i, p := range periods {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, r.theme.PeriodHeader.Render(p.Header))
		for _, item := range p.Items {
			lines = append(lines, r.item(p, item))
		}
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) item(p calendar.Period, item calendar.Item) string {
	indent := strings.Repeat(" ", agendaIndent)
	if item.Placeholder {
		return indent + r.theme.Placeholder.Render(item.Event.Summary)
	}

	var parts []string
	if p.IncludeDayName {
		parts = append(parts, r.theme.DayName.Render(item.DayName))
	}
	parts = append(parts, r.theme.Time.Render(item.Time))

	summary := item.Event.Summary
	if item.ContinuesBefore {
		summary = continues + " " + summary
	}
	if item.ContinuesAfter {
		summary += " " + continues
	}
	parts = append(parts, r.theme.Summary.Render(summary))
	return indent + lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}
