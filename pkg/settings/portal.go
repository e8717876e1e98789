package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	appLog "github.com/djwarf/shellcal/internal/log"
	"github.com/djwarf/shellcal/pkg/calendar"
)

const (
	portalBus       = "org.freedesktop.portal.Desktop"
	portalPath      = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	portalInterface = "org.freedesktop.portal.Settings"

	interfaceNamespace = "org.gnome.desktop.interface"
	calendarNamespace  = "org.gnome.desktop.calendar"
	clockFormatKey     = "clock-format"
	showWeekdateKey    = "show-weekdate"
)

// Portal follows the desktop's clock format and week number settings
// through the xdg-desktop-portal Settings interface. Subscribers are
// called from the signal goroutine; callers that need a particular
// goroutine must hop over themselves.
type Portal struct {
	conn      *dbus.Conn
	obj       dbus.BusObject
	overrides Overrides

	mu      sync.RWMutex
	desktop calendar.Settings

	subs subscribers
	sig  chan *dbus.Signal
	done chan struct{}
	once sync.Once
}

// NewPortal reads the current values and starts following changes.
// base supplies everything the portal does not know about, such as
// the locale's week start. A missing portal is not an error: the
// source then serves base with the overrides applied.
func NewPortal(ctx context.Context, conn *dbus.Conn, base calendar.Settings, o Overrides) (*Portal, error) {
	p := &Portal{
		conn:      conn,
		obj:       conn.Object(portalBus, portalPath),
		overrides: o,
		desktop:   base,
		done:      make(chan struct{}),
	}

	if v, err := p.read(ctx, interfaceNamespace, clockFormatKey); err == nil {
		p.update(interfaceNamespace, clockFormatKey, v)
	} else {
		appLog.Debug("desktop clock format unavailable", "err", err)
	}
	if v, err := p.read(ctx, calendarNamespace, showWeekdateKey); err == nil {
		p.update(calendarNamespace, showWeekdateKey, v)
	} else {
		appLog.Debug("desktop week numbers setting unavailable", "err", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(portalPath),
		dbus.WithMatchInterface(portalInterface),
		dbus.WithMatchMember("SettingChanged"),
	); err != nil {
		return nil, fmt.Errorf("failed to watch desktop settings: %w", err)
	}
	p.sig = make(chan *dbus.Signal, 8)
	conn.Signal(p.sig)
	go p.watch()

	return p, nil
}

func (p *Portal) Current() calendar.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.overrides.Apply(p.desktop)
}

func (p *Portal) Subscribe(fn func(calendar.Settings)) func() {
	return p.subs.add(fn)
}

// Close stops following the desktop.
func (p *Portal) Close() error {
	p.once.Do(func() {
		if p.done != nil {
			close(p.done)
		}
		if p.conn != nil && p.sig != nil {
			p.conn.RemoveSignal(p.sig)
			_ = p.conn.RemoveMatchSignal(
				dbus.WithMatchObjectPath(portalPath),
				dbus.WithMatchInterface(portalInterface),
				dbus.WithMatchMember("SettingChanged"),
			)
		}
	})
	return nil
}

func (p *Portal) watch() {
	for {
		select {
		case sig, ok := <-p.sig:
			if !ok {
				return
			}
			if sig.Name != portalInterface+".SettingChanged" || len(sig.Body) < 3 {
				continue
			}
			namespace, _ := sig.Body[0].(string)
			key, _ := sig.Body[1].(string)
			v, ok := sig.Body[2].(dbus.Variant)
			if !ok {
				continue
			}
			if p.update(namespace, key, v) {
				p.subs.notify(p.Current())
			}
		case <-p.done:
			return
		}
	}
}

// read prefers ReadOne and falls back to the deprecated Read, whose
// reply wraps the value in one more variant.
func (p *Portal) read(ctx context.Context, namespace, key string) (dbus.Variant, error) {
	var v dbus.Variant
	err := p.obj.CallWithContext(ctx, portalInterface+".ReadOne", 0, namespace, key).Store(&v)
	if err == nil {
		return v, nil
	}
	if err := p.obj.CallWithContext(ctx, portalInterface+".Read", 0, namespace, key).Store(&v); err != nil {
		return dbus.Variant{}, fmt.Errorf("failed to read %s %s: %w", namespace, key, err)
	}
	return unwrap(v), nil
}

func unwrap(v dbus.Variant) dbus.Variant {
	for {
		inner, ok := v.Value().(dbus.Variant)
		if !ok {
			return v
		}
		v = inner
	}
}

// update applies one portal value and reports whether anything changed.
func (p *Portal) update(namespace, key string, v dbus.Variant) bool {
	v = unwrap(v)

	p.mu.Lock()
	defer p.mu.Unlock()
	before := p.desktop

	switch {
	case namespace == interfaceNamespace && key == clockFormatKey:
		s, ok := v.Value().(string)
		if !ok {
			return false
		}
		clock, err := calendar.ParseClockFormat(s)
		if err != nil {
			appLog.Debug("ignoring desktop clock format", "value", s)
			return false
		}
		p.desktop.ClockFormat = clock
	case namespace == calendarNamespace && key == showWeekdateKey:
		b, ok := v.Value().(bool)
		if !ok {
			return false
		}
		p.desktop.ShowWeekNumbers = b
	default:
		return false
	}
	return p.desktop != before
}
