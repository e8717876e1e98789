package shell

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	appLog "github.com/djwarf/shellcal/internal/log"
	"github.com/djwarf/shellcal/pkg/calendar"
)

// Client is a calendar.Provider talking to the calendar server on the
// session bus.
type Client struct {
	conn  *dbus.Conn
	obj   dbus.BusObject
	owned bool

	mu           sync.RWMutex
	hasCalendars bool
}

// New uses an existing bus connection. The caller keeps ownership of it.
func New(conn *dbus.Conn) *Client {
	return &Client{
		conn: conn,
		obj:  conn.Object(BusName, ObjectPath),
	}
}

// Dial opens a private session bus connection owned by the client.
func Dial() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	c := New(conn)
	c.owned = true
	return c, nil
}

// Connect reads HasCalendars, which also activates the service.
func (c *Client) Connect(ctx context.Context) error {
	has, err := c.readHasCalendars(ctx)
	if err != nil {
		return classify("connect to "+BusName, err)
	}
	c.setHasCalendars(has)
	return nil
}

func (c *Client) HasCalendars() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasCalendars
}

// GetEvents calls GetEvents(since, until, force_reload).
func (c *Client) GetEvents(ctx context.Context, begin, end time.Time, forceReload bool) ([]calendar.Appointment, error) {
	var out []appointment
	err := c.obj.CallWithContext(ctx, getEventsMethod, 0, begin.Unix(), end.Unix(), forceReload).Store(&out)
	if err != nil {
		return nil, classify("get events", err)
	}
	return fromWire(out), nil
}

func (c *Client) matchRules() [][]dbus.MatchOption {
	return [][]dbus.MatchOption{
		{
			dbus.WithMatchObjectPath(ObjectPath),
			dbus.WithMatchInterface(Interface),
			dbus.WithMatchMember("Changed"),
		},
		{
			dbus.WithMatchObjectPath(ObjectPath),
			dbus.WithMatchInterface(propertiesInterface),
			dbus.WithMatchMember("PropertiesChanged"),
		},
		{
			dbus.WithMatchSender(busInterface),
			dbus.WithMatchInterface(busInterface),
			dbus.WithMatchMember("NameOwnerChanged"),
			dbus.WithMatchArg(0, BusName),
		},
	}
}

// Watch subscribes to Changed, PropertiesChanged and NameOwnerChanged.
func (c *Client) Watch(w calendar.ProviderWatch) (func(), error) {
	rules := c.matchRules()
	for i, rule := range rules {
		if err := c.conn.AddMatchSignal(rule...); err != nil {
			for _, added := range rules[:i] {
				_ = c.conn.RemoveMatchSignal(added...)
			}
			return nil, fmt.Errorf("failed to add signal match: %w", err)
		}
	}

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig, ok := <-ch:
				if !ok {
					return
				}
				c.handleSignal(sig, w)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			c.conn.RemoveSignal(ch)
			for _, rule := range rules {
				if err := c.conn.RemoveMatchSignal(rule...); err != nil {
					appLog.Debug("failed to remove signal match", "err", err)
				}
			}
		})
	}
	return stop, nil
}

func (c *Client) handleSignal(sig *dbus.Signal, w calendar.ProviderWatch) {
	switch sig.Name {
	case changedSignal:
		if sig.Path != ObjectPath {
			return
		}
		if w.Changed != nil {
			w.Changed()
		}

	case propertiesInterface + ".PropertiesChanged":
		if sig.Path != ObjectPath || len(sig.Body) < 2 {
			return
		}
		if iface, _ := sig.Body[0].(string); iface != Interface {
			return
		}
		if changed, ok := sig.Body[1].(map[string]dbus.Variant); ok {
			if v, ok := changed[hasCalendarsProperty]; ok {
				if has, ok := v.Value().(bool); ok {
					c.setHasCalendars(has)
				}
			}
		}
		if w.PropertiesChanged != nil {
			w.PropertiesChanged()
		}

	case busInterface + ".NameOwnerChanged":
		if len(sig.Body) < 3 {
			return
		}
		name, _ := sig.Body[0].(string)
		newOwner, _ := sig.Body[2].(string)
		if name != BusName {
			return
		}
		present := newOwner != ""
		if present {
			c.refreshHasCalendars()
		} else {
			c.setHasCalendars(false)
		}
		if w.OwnerChanged != nil {
			w.OwnerChanged(present)
		}
	}
}

func (c *Client) refreshHasCalendars() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	has, err := c.readHasCalendars(ctx)
	if err != nil {
		appLog.Error("failed to read HasCalendars", err)
		return
	}
	c.setHasCalendars(has)
}

func (c *Client) readHasCalendars(ctx context.Context) (bool, error) {
	var v dbus.Variant
	err := c.obj.CallWithContext(ctx, propertiesInterface+".Get", 0, Interface, hasCalendarsProperty).Store(&v)
	if err != nil {
		return false, err
	}
	has, _ := v.Value().(bool)
	return has, nil
}

func (c *Client) setHasCalendars(has bool) {
	c.mu.Lock()
	c.hasCalendars = has
	c.mu.Unlock()
}

// Close closes the bus connection if the client opened it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}

var _ calendar.Provider = (*Client)(nil)
