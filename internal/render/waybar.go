package render

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/djwarf/shellcal/pkg/calendar"
)

// WaybarOutput is the JSON structure for waybar custom modules
type WaybarOutput struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
}

// Waybar summarises the selected day for a bar module: its date and
// event count as text, the agenda as tooltip. The first period is
// always the selected day's.
func (r *Renderer) Waybar(selected time.Time, periods []calendar.Period, loading bool) WaybarOutput {
	count := 0
	if len(periods) > 0 {
		for _, item := range periods[0].Items {
			if !item.Placeholder {
				count++
			}
		}
	}

	text := selected.Format("02/01")
	if count > 0 {
		text = fmt.Sprintf("%s (%d)", text, count)
	}

	class := "no-events"
	switch {
	case loading:
		class = "loading"
	case count > 0:
		class = "has-events"
	}

	return WaybarOutput{
		Text:    text,
		Tooltip: selected.Format("Monday, 2 January 2006") + "\n\n" + r.Agenda(periods),
		Class:   class,
	}
}

// Unavailable is printed when no calendar server can be reached.
func Unavailable(now time.Time) WaybarOutput {
	return WaybarOutput{
		Text:    now.Format("02/01"),
		Tooltip: "Calendar unavailable",
		Class:   "error",
	}
}

// Encode writes out as one JSON line.
func (o WaybarOutput) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(o)
}
