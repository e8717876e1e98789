package shell

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	appLog "github.com/djwarf/shellcal/internal/log"
	"github.com/djwarf/shellcal/pkg/calendar"
)

// Backend answers the calendar server's method calls.
type Backend interface {
	Appointments(ctx context.Context, begin, end time.Time, forceReload bool) ([]calendar.Appointment, error)
	HasCalendars(ctx context.Context) bool
}

// Server exports the calendar server interface on a bus connection.
type Server struct {
	conn    *dbus.Conn
	backend Backend
	props   *prop.Properties
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// exported carries only the methods visible on the bus.
type exported struct {
	s *Server
}

// GetEvents implements org.gnome.Shell.CalendarServer.GetEvents.
func (e exported) GetEvents(since, until int64, forceReload bool) ([]appointment, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.s.timeout)
	defer cancel()

	appts, err := e.s.backend.Appointments(ctx, time.Unix(since, 0), time.Unix(until, 0), forceReload)
	if err != nil {
		appLog.Error("GetEvents failed", err, "since", since, "until", until)
		return nil, dbus.MakeFailedError(err)
	}
	return toWire(appts), nil
}

// Export registers the object, its properties and introspection data,
// then claims BusName.
func Export(conn *dbus.Conn, backend Backend, timeout time.Duration) (*Server, error) {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	s := &Server{conn: conn, backend: backend, timeout: timeout}

	if err := conn.Export(exported{s: s}, ObjectPath, Interface); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", Interface, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	has := backend.HasCalendars(ctx)
	cancel()

	props, err := prop.Export(conn, ObjectPath, prop.Map{
		Interface: {
			hasCalendarsProperty: {Value: has, Writable: false, Emit: prop.EmitTrue},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export properties: %w", err)
	}
	s.props = props

	node := &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name: Interface,
				Methods: []introspect.Method{{
					Name: "GetEvents",
					Args: []introspect.Arg{
						{Name: "since", Type: "x", Direction: "in"},
						{Name: "until", Type: "x", Direction: "in"},
						{Name: "force_reload", Type: "b", Direction: "in"},
						{Name: "events", Type: appointmentSignature, Direction: "out"},
					},
				}},
				Signals:    []introspect.Signal{{Name: "Changed"}},
				Properties: props.Introspection(Interface),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s: %w", BusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("%s is already owned on the bus", BusName)
	}

	appLog.Info("calendar server exported", "name", BusName, "has_calendars", has)
	return s, nil
}

// NotifyChanged emits the Changed signal so clients refetch.
func (s *Server) NotifyChanged() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	if err := s.conn.Emit(ObjectPath, changedSignal); err != nil {
		return fmt.Errorf("failed to emit Changed: %w", err)
	}
	return nil
}

// SetHasCalendars updates the property, emitting PropertiesChanged.
func (s *Server) SetHasCalendars(has bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.props.SetMust(Interface, hasCalendarsProperty, has)
}

// Close releases the bus name and unexports the object.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if _, err := s.conn.ReleaseName(BusName); err != nil {
		return fmt.Errorf("failed to release %s: %w", BusName, err)
	}
	_ = s.conn.Export(nil, ObjectPath, Interface)
	_ = s.conn.Export(nil, ObjectPath, "org.freedesktop.DBus.Introspectable")
	return nil
}
