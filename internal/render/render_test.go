package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djwarf/shellcal/pkg/calendar"
)

var now = time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)

func grid(s calendar.Settings) calendar.Grid {
	g := calendar.BuildGrid(now, now, s, nil)
	for i := range g.Cells {
		if g.Cells[i].Date.Day() == 13 && !g.Cells[i].IsOtherMonth {
			g.Cells[i].HasEvents = true
		}
	}
	return g
}

func TestGridLayout(t *testing.T) {
	r := New(PlainTheme())
	lines := strings.Split(r.Grid(grid(calendar.DefaultSettings())), "\n")

	require.Len(t, lines, 2+calendar.GridWeeks)
	assert.Equal(t, "March", strings.TrimSpace(lines[0]))
	assert.Equal(t, "   M   T   W   T   F   S   S", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], " 26  27  28  29   1   2   3"), lines[2])
	assert.Contains(t, lines[4], "13•")
	for _, l := range lines[1:] {
		assert.Equal(t, 7*cellWidth, lipgloss.Width(l), l)
	}
}

func TestGridWeekNumbers(t *testing.T) {
	s := calendar.DefaultSettings()
	s.ShowWeekNumbers = true
	lines := strings.Split(New(PlainTheme()).Grid(grid(s)), "\n")

	assert.True(t, strings.HasPrefix(lines[2], "  9  26  27"), lines[2])
	assert.True(t, strings.HasPrefix(lines[7], " 14   1   2"), lines[7])
	assert.Equal(t, 8*cellWidth, lipgloss.Width(lines[2]))
}

func TestGridRightToLeft(t *testing.T) {
	s := calendar.DefaultSettings()
	s.RightToLeft = true
	lines := strings.Split(New(PlainTheme()).Grid(grid(s)), "\n")

	assert.Equal(t, "   S   S   F   T   W   T   M", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "  3   2   1  29"), lines[2])
}

func TestDefaultThemeKeepsLayout(t *testing.T) {
	lines := strings.Split(New(DefaultTheme()).Grid(grid(calendar.DefaultSettings())), "\n")
	for _, l := range lines[1:] {
		assert.Equal(t, 7*cellWidth, lipgloss.Width(l))
	}
}

func periods() []calendar.Period {
	return []calendar.Period{
		{
			Header: calendar.TodayHeader,
			Items: []calendar.Item{
				{Event: calendar.Event{Summary: "Standup"}, Time: "9:00 AM"},
				{Event: calendar.Event{Summary: "Night shift"}, Time: "10:00 PM", ContinuesAfter: true},
			},
		},
		{
			Header: calendar.TomorrowHeader,
			Items: []calendar.Item{
				{Event: calendar.Event{Summary: calendar.NothingScheduled, AllDay: true}, Time: calendar.AllDayLabel, Placeholder: true},
			},
		},
		{
			Header:         calendar.ThisWeekHeader,
			IncludeDayName: true,
			Items: []calendar.Item{
				{Event: calendar.Event{Summary: "Trip"}, DayName: "F", Time: "6:00 PM", ContinuesBefore: true},
			},
		},
	}
}

func TestAgenda(t *testing.T) {
	got := New(PlainTheme()).Agenda(periods())
	want := strings.Join([]string{
		"Today",
		"  9:00 AM   Standup",
		"  10:00 PM  Night shift …",
		"",
		"Tomorrow",
		"  Nothing Scheduled",
		"",
		"This week",
		"  F  6:00 PM   … Trip",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestPopupStacksGridAndAgenda(t *testing.T) {
	r := New(PlainTheme())
	out := r.Popup(grid(calendar.DefaultSettings()), periods())
	assert.Contains(t, out, "March")
	assert.Contains(t, out, "Nothing Scheduled")
}

func TestWaybar(t *testing.T) {
	r := New(PlainTheme())

	out := r.Waybar(now, periods(), false)
	assert.Equal(t, "13/03 (2)", out.Text)
	assert.Equal(t, "has-events", out.Class)
	assert.True(t, strings.HasPrefix(out.Tooltip, "Wednesday, 13 March 2024\n\nToday"))

	empty := []calendar.Period{periods()[1]}
	empty[0].Header = calendar.TodayHeader
	assert.Equal(t, "13/03", r.Waybar(now, empty, false).Text)
	assert.Equal(t, "no-events", r.Waybar(now, empty, false).Class)
	assert.Equal(t, "loading", r.Waybar(now, empty, true).Class)

	// Another day's agenda is a single period headed by its date.
	friday := now.AddDate(0, 0, 2)
	day := []calendar.Period{periods()[0]}
	day[0].Header = "Friday, March 15"
	out = r.Waybar(friday, day, false)
	assert.Equal(t, "15/03 (2)", out.Text)
	assert.Equal(t, "has-events", out.Class)
	assert.True(t, strings.HasPrefix(out.Tooltip, "Friday, 15 March 2024\n\nFriday, March 15"))

	var buf bytes.Buffer
	require.NoError(t, Unavailable(now).Encode(&buf))
	var decoded WaybarOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "error", decoded.Class)
}
