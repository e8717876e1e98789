// Package gnome discovers calendar accounts configured in GNOME Online
// Accounts and turns them into sync sources.
package gnome

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/oauth2"

	"github.com/djwarf/shellcal/internal/log"
	"github.com/djwarf/shellcal/pkg/providers"
	"github.com/djwarf/shellcal/pkg/providers/caldav"
	"github.com/djwarf/shellcal/pkg/providers/google"
	"github.com/djwarf/shellcal/pkg/store"
)

const (
	busName        = "org.gnome.OnlineAccounts"
	managerPath    = "/org/gnome/OnlineAccounts"
	accountIface   = "org.gnome.OnlineAccounts.Account"
	calendarIface  = "org.gnome.OnlineAccounts.Calendar"
	oauth2Iface    = "org.gnome.OnlineAccounts.OAuth2Based"
	passwordIface  = "org.gnome.OnlineAccounts.PasswordBased"
	objectManager  = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	getAccessToken = oauth2Iface + ".GetAccessToken"
	getPassword    = passwordIface + ".GetPassword"
)

// OnlineAccount represents a GNOME Online Account
type OnlineAccount struct {
	Path         dbus.ObjectPath
	ID           string
	ProviderType string
	ProviderName string
	Identity     string // email
	CalendarURL  string
	OAuth2       bool
	Password     bool
}

// Accounts reads GNOME Online Accounts from the session bus.
type Accounts struct {
	conn *dbus.Conn
}

// New uses conn, which stays owned by the caller.
func New(conn *dbus.Conn) *Accounts {
	return &Accounts{conn: conn}
}

// List returns the accounts with calendars enabled.
func (a *Accounts) List(ctx context.Context) ([]*OnlineAccount, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := a.conn.Object(busName, managerPath).CallWithContext(ctx, objectManager, 0).Store(&objects)
	if err != nil {
		return nil, fmt.Errorf("failed to list online accounts: %w", err)
	}
	return calendarAccounts(objects), nil
}

// calendarAccounts picks the objects that expose a calendar and have it
// enabled, ordered by path.
func calendarAccounts(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) []*OnlineAccount {
	var accounts []*OnlineAccount
	for p, ifaces := range objects {
		props, ok := ifaces[accountIface]
		if !ok {
			continue
		}
		if _, ok := ifaces[calendarIface]; !ok {
			continue
		}
		if boolProp(props, "CalendarDisabled") || boolProp(props, "AttentionNeeded") {
			continue
		}

		acc := &OnlineAccount{
			Path:         p,
			ID:           stringProp(props, "Id"),
			ProviderType: stringProp(props, "ProviderType"),
			ProviderName: stringProp(props, "ProviderName"),
			Identity:     stringProp(props, "PresentationIdentity"),
			CalendarURL:  stringProp(ifaces[calendarIface], "Uri"),
		}
		if acc.ID == "" {
			acc.ID = path.Base(string(p))
		}
		if acc.Identity == "" {
			acc.Identity = stringProp(props, "Identity")
		}
		_, acc.OAuth2 = ifaces[oauth2Iface]
		_, acc.Password = ifaces[passwordIface]
		accounts = append(accounts, acc)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Path < accounts[j].Path })
	return accounts
}

func stringProp(props map[string]dbus.Variant, name string) string {
	if v, ok := props[name]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

func boolProp(props map[string]dbus.Variant, name string) bool {
	if v, ok := props[name]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// StoreAccount returns the store record for acc.
func (acc *OnlineAccount) StoreAccount() *store.Account {
	name := acc.ProviderName
	if acc.Identity != "" {
		name += " (" + acc.Identity + ")"
	}
	return &store.Account{
		ID:        "goa-" + acc.ID,
		Name:      name,
		Type:      store.AccountTypeOnline,
		Email:     acc.Identity,
		Enabled:   true,
		ServerURL: acc.CalendarURL,
		Username:  acc.Identity,
	}
}

// Sources builds a sync source for every usable account. Google goes
// through the Calendar API, everything else through CalDAV.
func (a *Accounts) Sources(ctx context.Context) ([]providers.Source, error) {
	accounts, err := a.List(ctx)
	if err != nil {
		return nil, err
	}

	var sources []providers.Source
	for _, acc := range accounts {
		src, err := a.source(ctx, acc)
		if err != nil {
			log.Info("skipping online account", "path", acc.Path, "reason", err)
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (a *Accounts) source(ctx context.Context, acc *OnlineAccount) (providers.Source, error) {
	account := acc.StoreAccount()
	switch {
	case acc.ProviderType == "google" && acc.OAuth2:
		return google.NewTokenSourceClient(account, a.TokenSource(acc)), nil
	case acc.CalendarURL == "":
		return nil, fmt.Errorf("%s account has no calendar URL", acc.ProviderType)
	case acc.OAuth2:
		return caldav.NewOAuthClient(account, a.TokenSource(acc)), nil
	case acc.Password:
		password, err := a.password(ctx, acc)
		if err != nil {
			return nil, err
		}
		return caldav.NewClient(account, password), nil
	}
	return nil, fmt.Errorf("%s account has no supported credentials", acc.ProviderType)
}

// TokenSource asks GOA for access tokens, reusing each until it expires.
func (a *Accounts) TokenSource(acc *OnlineAccount) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &goaTokenSource{obj: a.conn.Object(busName, acc.Path)})
}

type goaTokenSource struct {
	obj dbus.BusObject
}

func (s *goaTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var accessToken string
	var expiresIn int32
	if err := s.obj.CallWithContext(ctx, getAccessToken, 0).Store(&accessToken, &expiresIn); err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	if expiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	return token, nil
}

func (a *Accounts) password(ctx context.Context, acc *OnlineAccount) (string, error) {
	var password string
	err := a.conn.Object(busName, acc.Path).CallWithContext(ctx, getPassword, 0, "password").Store(&password)
	if err != nil {
		return "", fmt.Errorf("failed to get password: %w", err)
	}
	return password, nil
}
