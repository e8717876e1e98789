// Package shell speaks the org.gnome.Shell.CalendarServer D-Bus
// interface, both as the popup's client and as the daemon's server.
package shell

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/djwarf/shellcal/pkg/calendar"
)

const (
	BusName    = "org.gnome.Shell.CalendarServer"
	ObjectPath = dbus.ObjectPath("/org/gnome/Shell/CalendarServer")
	Interface  = "org.gnome.Shell.CalendarServer"

	propertiesInterface = "org.freedesktop.DBus.Properties"
	busInterface        = "org.freedesktop.DBus"

	hasCalendarsProperty = "HasCalendars"
	getEventsMethod      = Interface + ".GetEvents"
	changedSignal        = Interface + ".Changed"
	appointmentSignature = "a(sssbxxa{sv})"
)

// appointment mirrors one (sssbxxa{sv}) record on the wire.
type appointment struct {
	UID         string
	Summary     string
	Description string
	AllDay      bool
	Start       int64
	End         int64
	Extras      map[string]dbus.Variant
}

func fromWire(in []appointment) []calendar.Appointment {
	out := make([]calendar.Appointment, 0, len(in))
	for _, a := range in {
		out = append(out, calendar.Appointment{
			UID:         a.UID,
			Summary:     a.Summary,
			Description: a.Description,
			AllDay:      a.AllDay,
			Start:       a.Start,
			End:         a.End,
		})
	}
	return out
}

func toWire(in []calendar.Appointment) []appointment {
	out := make([]appointment, 0, len(in))
	for _, a := range in {
		out = append(out, appointment{
			UID:         a.UID,
			Summary:     a.Summary,
			Description: a.Description,
			AllDay:      a.AllDay,
			Start:       a.Start,
			End:         a.End,
			Extras:      map[string]dbus.Variant{},
		})
	}
	return out
}

var timeoutErrorNames = map[string]bool{
	"org.freedesktop.DBus.Error.Timeout":  true,
	"org.freedesktop.DBus.Error.TimedOut": true,
	"org.freedesktop.DBus.Error.NoReply":  true,
}

// isTimeout reports whether err is a timeout-class failure.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var derr dbus.Error
	if errors.As(err, &derr) {
		return timeoutErrorNames[derr.Name]
	}
	var pderr *dbus.Error
	if errors.As(err, &pderr) && pderr != nil {
		return timeoutErrorNames[pderr.Name]
	}
	return false
}

// classify wraps timeout-class errors with calendar.ErrProviderTimeout.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return fmt.Errorf("failed to %s: %w: %v", op, calendar.ErrProviderTimeout, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
