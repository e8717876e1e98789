package settings

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/djwarf/shellcal/pkg/calendar"
)

func TestWeekStartFor(t *testing.T) {
	tests := []struct {
		locale string
		want   time.Weekday
	}{
		{"en_US.UTF-8", time.Sunday},
		{"en_GB.UTF-8", time.Monday},
		{"de_DE.UTF-8", time.Monday},
		{"pt_BR", time.Sunday},
		{"ar_EG.UTF-8", time.Saturday},
		{"dv_MV", time.Friday},
		{"sr_RS@latin", time.Monday},
		{"ja", time.Sunday},
		{"fr-CA", time.Sunday},
		{"C", time.Monday},
		{"", time.Monday},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekStartFor(tt.locale))
		})
	}
}

func TestLocaleWeekStartPrecedence(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_TIME", "en_US.UTF-8")
	t.Setenv("LANG", "de_DE.UTF-8")
	assert.Equal(t, time.Sunday, LocaleWeekStart())

	t.Setenv("LC_ALL", "de_DE.UTF-8")
	assert.Equal(t, time.Monday, LocaleWeekStart())
}

func TestOverridesApply(t *testing.T) {
	base := calendar.DefaultSettings()

	assert.Equal(t, base, Overrides{}.Apply(base))

	sunday := time.Sunday
	yes := true
	got := Overrides{WeekStart: &sunday, ShowWeekNumbers: &yes, ClockFormat: calendar.Clock12h}.Apply(base)
	assert.Equal(t, time.Sunday, got.WeekStart)
	assert.True(t, got.ShowWeekNumbers)
	assert.Equal(t, calendar.Clock12h, got.ClockFormat)
}

func TestStatic(t *testing.T) {
	s := NewStatic(calendar.DefaultSettings())
	unsubscribe := s.Subscribe(func(calendar.Settings) { t.Error("static settings never change") })
	unsubscribe()
	assert.Equal(t, calendar.DefaultSettings(), s.Current())
}

func TestPortalUpdate(t *testing.T) {
	p := &Portal{desktop: calendar.DefaultSettings()}

	assert.True(t, p.update(interfaceNamespace, clockFormatKey, dbus.MakeVariant("12h")))
	assert.Equal(t, calendar.Clock12h, p.Current().ClockFormat)
	assert.False(t, p.update(interfaceNamespace, clockFormatKey, dbus.MakeVariant("12h")), "unchanged")

	// The deprecated Read call nests the value in another variant.
	assert.True(t, p.update(calendarNamespace, showWeekdateKey, dbus.MakeVariant(dbus.MakeVariant(true))))
	assert.True(t, p.Current().ShowWeekNumbers)

	assert.False(t, p.update(interfaceNamespace, clockFormatKey, dbus.MakeVariant("sundial")))
	assert.False(t, p.update(interfaceNamespace, clockFormatKey, dbus.MakeVariant(42)))
	assert.False(t, p.update("org.gnome.desktop.wm", "theme", dbus.MakeVariant("x")))
}

func TestPortalOverridesWin(t *testing.T) {
	no := false
	p := &Portal{
		desktop:   calendar.DefaultSettings(),
		overrides: Overrides{ShowWeekNumbers: &no, ClockFormat: calendar.Clock24h},
	}
	p.update(calendarNamespace, showWeekdateKey, dbus.MakeVariant(true))
	p.update(interfaceNamespace, clockFormatKey, dbus.MakeVariant("12h"))

	got := p.Current()
	assert.False(t, got.ShowWeekNumbers)
	assert.Equal(t, calendar.Clock24h, got.ClockFormat)
}

func TestPortalSubscribers(t *testing.T) {
	p := &Portal{desktop: calendar.DefaultSettings()}
	var got []calendar.Settings
	unsubscribe := p.Subscribe(func(s calendar.Settings) { got = append(got, s) })

	p.subs.notify(p.Current())
	unsubscribe()
	p.subs.notify(p.Current())

	assert.Len(t, got, 1)
	assert.NoError(t, p.Close())
}
