package gnome

import (
	"context"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djwarf/shellcal/pkg/store"
)

type ifaceMap = map[string]map[string]dbus.Variant

func TestCalendarAccounts(t *testing.T) {
	objects := map[dbus.ObjectPath]ifaceMap{
		"/org/gnome/OnlineAccounts/Accounts/account_2": {
			accountIface: {
				"Id":                   dbus.MakeVariant("account_2"),
				"ProviderType":         dbus.MakeVariant("owncloud"),
				"ProviderName":         dbus.MakeVariant("Nextcloud"),
				"PresentationIdentity": dbus.MakeVariant("me@cloud.example.com"),
			},
			calendarIface: {"Uri": dbus.MakeVariant("https://cloud.example.com/remote.php/dav")},
			passwordIface: {},
		},
		"/org/gnome/OnlineAccounts/Accounts/account_1": {
			accountIface: {
				"Id":           dbus.MakeVariant("account_1"),
				"ProviderType": dbus.MakeVariant("google"),
				"ProviderName": dbus.MakeVariant("Google"),
				"Identity":     dbus.MakeVariant("me@gmail.com"),
			},
			calendarIface: {},
			oauth2Iface:    {},
		},
		"/org/gnome/OnlineAccounts/Accounts/account_3": {
			accountIface: {
				"ProviderType":     dbus.MakeVariant("google"),
				"CalendarDisabled": dbus.MakeVariant(true),
			},
			calendarIface: {},
		},
		"/org/gnome/OnlineAccounts/Accounts/account_4": {
			accountIface: {"ProviderType": dbus.MakeVariant("flickr")},
		},
		"/org/gnome/OnlineAccounts/Manager": {
			"org.gnome.OnlineAccounts.Manager": {},
		},
	}

	accounts := calendarAccounts(objects)
	require.Len(t, accounts, 2)

	g := accounts[0]
	assert.Equal(t, "account_1", g.ID)
	assert.Equal(t, "google", g.ProviderType)
	assert.Equal(t, "me@gmail.com", g.Identity, "falls back to Identity")
	assert.True(t, g.OAuth2)
	assert.False(t, g.Password)

	nc := accounts[1]
	assert.Equal(t, "https://cloud.example.com/remote.php/dav", nc.CalendarURL)
	assert.True(t, nc.Password)

	acc := nc.StoreAccount()
	assert.Equal(t, "goa-account_2", acc.ID)
	assert.Equal(t, "Nextcloud (me@cloud.example.com)", acc.Name)
	assert.Equal(t, store.AccountTypeOnline, acc.Type)
	assert.True(t, acc.Enabled)
}

func TestMissingIDUsesPath(t *testing.T) {
	accounts := calendarAccounts(map[dbus.ObjectPath]ifaceMap{
		"/org/gnome/OnlineAccounts/Accounts/account_9": {
			accountIface:  {"ProviderType": dbus.MakeVariant("google")},
			calendarIface: {},
		},
	})
	require.Len(t, accounts, 1)
	assert.Equal(t, "account_9", accounts[0].ID)
}

func TestSourceSelection(t *testing.T) {
	a := &Accounts{}

	_, err := a.source(context.Background(), &OnlineAccount{ProviderType: "exchange"})
	assert.ErrorContains(t, err, "no calendar URL")

	_, err = a.source(context.Background(), &OnlineAccount{ProviderType: "exchange", CalendarURL: "https://x"})
	assert.ErrorContains(t, err, "no supported credentials")
}
