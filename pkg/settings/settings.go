// Package settings supplies the display settings consumed by the
// calendar engines, either as a fixed value or followed from the desktop.
package settings

import (
	"sync"
	"time"

	"github.com/djwarf/shellcal/pkg/calendar"
)

// Source is read and observed, never written, by the popup.
type Source interface {
	Current() calendar.Settings
	// Subscribe calls fn with the new settings after every change.
	Subscribe(fn func(calendar.Settings)) (unsubscribe func())
}

// Overrides are user configured values that win over the desktop's.
// A nil pointer or empty ClockFormat leaves the desktop value alone.
type Overrides struct {
	WeekStart       *time.Weekday
	ShowWeekNumbers *bool
	ClockFormat     calendar.ClockFormat
	RightToLeft     *bool
}

// Apply returns s with the overrides applied.
func (o Overrides) Apply(s calendar.Settings) calendar.Settings {
	if o.WeekStart != nil {
		s.WeekStart = *o.WeekStart
	}
	if o.ShowWeekNumbers != nil {
		s.ShowWeekNumbers = *o.ShowWeekNumbers
	}
	if o.ClockFormat != "" {
		s.ClockFormat = o.ClockFormat
	}
	if o.RightToLeft != nil {
		s.RightToLeft = *o.RightToLeft
	}
	return s
}

// Static serves a fixed value.
type Static struct {
	s calendar.Settings
}

func NewStatic(s calendar.Settings) *Static {
	return &Static{s: s}
}

func (st *Static) Current() calendar.Settings { return st.s }

func (st *Static) Subscribe(func(calendar.Settings)) func() { return func() {} }

// subscribers fans a value out to registered callbacks.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(calendar.Settings)
}

func (s *subscribers) add(fn func(calendar.Settings)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(calendar.Settings))
	}
	s.next++
	id := s.next
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) notify(v calendar.Settings) {
	s.mu.Lock()
	fns := make([]func(calendar.Settings), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

var (
	_ Source = (*Static)(nil)
	_ Source = (*Portal)(nil)
)
