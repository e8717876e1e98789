package shell

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djwarf/shellcal/pkg/calendar"
)

func TestWireRoundTripKeepsFields(t *testing.T) {
	in := []calendar.Appointment{
		{UID: "a", Summary: "Standup", Description: "daily", Start: 100, End: 200},
		{UID: "b", Summary: "Holiday", AllDay: true, Start: 0, End: 86400},
	}

	wire := toWire(in)
	require.Len(t, wire, 2)
	assert.NotNil(t, wire[0].Extras)

	assert.Equal(t, in, fromWire(wire))
}

func TestFromWireIgnoresExtras(t *testing.T) {
	out := fromWire([]appointment{{
		UID:    "x",
		Start:  1,
		End:    2,
		Extras: map[string]dbus.Variant{"location": dbus.MakeVariant("Room 1")},
	}})
	require.Len(t, out, 1)
	assert.Equal(t, calendar.Appointment{UID: "x", Start: 1, End: 2}, out[0])
}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"no reply", dbus.Error{Name: "org.freedesktop.DBus.Error.NoReply"}, true},
		{"timed out pointer", &dbus.Error{Name: "org.freedesktop.DBus.Error.TimedOut"}, true},
		{"service unknown", dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTimeout(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("x", nil))

	err := classify("get events", context.DeadlineExceeded)
	assert.ErrorIs(t, err, calendar.ErrProviderTimeout)

	err = classify("get events", errors.New("boom"))
	assert.NotErrorIs(t, err, calendar.ErrProviderTimeout)
	assert.Contains(t, err.Error(), "failed to get events")
}

func TestHandleSignalChanged(t *testing.T) {
	c := &Client{}
	changed := 0
	w := calendar.ProviderWatch{Changed: func() { changed++ }}

	c.handleSignal(&dbus.Signal{Path: ObjectPath, Name: changedSignal}, w)
	c.handleSignal(&dbus.Signal{Path: "/other", Name: changedSignal}, w)

	assert.Equal(t, 1, changed)
}

func TestHandleSignalPropertiesChanged(t *testing.T) {
	c := &Client{}
	fired := 0
	w := calendar.ProviderWatch{PropertiesChanged: func() { fired++ }}

	c.handleSignal(&dbus.Signal{
		Path: ObjectPath,
		Name: propertiesInterface + ".PropertiesChanged",
		Body: []interface{}{
			Interface,
			map[string]dbus.Variant{hasCalendarsProperty: dbus.MakeVariant(true)},
			[]string{},
		},
	}, w)
	assert.Equal(t, 1, fired)
	assert.True(t, c.HasCalendars())

	// Another interface on the same path is ignored.
	c.handleSignal(&dbus.Signal{
		Path: ObjectPath,
		Name: propertiesInterface + ".PropertiesChanged",
		Body: []interface{}{"org.example.Other", map[string]dbus.Variant{}, []string{}},
	}, w)
	assert.Equal(t, 1, fired)
}

func TestHandleSignalOwnerVanished(t *testing.T) {
	c := &Client{hasCalendars: true}
	var got []bool
	w := calendar.ProviderWatch{OwnerChanged: func(present bool) { got = append(got, present) }}

	c.handleSignal(&dbus.Signal{
		Name: busInterface + ".NameOwnerChanged",
		Body: []interface{}{BusName, ":1.42", ""},
	}, w)
	c.handleSignal(&dbus.Signal{
		Name: busInterface + ".NameOwnerChanged",
		Body: []interface{}{"org.example.Unrelated", ":1.7", ""},
	}, w)

	assert.Equal(t, []bool{false}, got)
	assert.False(t, c.HasCalendars())
}

func TestHandleSignalShortBodyIgnored(t *testing.T) {
	c := &Client{}
	called := false
	w := calendar.ProviderWatch{
		OwnerChanged:      func(bool) { called = true },
		PropertiesChanged: func() { called = true },
	}

	c.handleSignal(&dbus.Signal{Name: busInterface + ".NameOwnerChanged", Body: []interface{}{BusName}}, w)
	c.handleSignal(&dbus.Signal{Path: ObjectPath, Name: propertiesInterface + ".PropertiesChanged"}, w)

	assert.False(t, called)
}
