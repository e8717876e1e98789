// Package providers defines the read-only calendar sources the daemon
// syncs into its store.
package providers

import (
	"context"
	"strings"
	"time"

	"github.com/djwarf/shellcal/pkg/store"
)

// Source defines the interface for calendar providers
type Source interface {
	// Name returns a human readable name for logs.
	Name() string

	// Account returns the store record the source syncs into.
	Account() *store.Account

	// Authenticate prepares the client. It is called before every sync
	// so that expiring credentials get refreshed.
	Authenticate(ctx context.Context) error

	// ListCalendars returns all calendars of the account.
	ListCalendars(ctx context.Context) ([]*store.Calendar, error)

	// GetEvents returns the events of a calendar overlapping [start, end).
	GetEvents(ctx context.Context, calendarID string, start, end time.Time) ([]*store.Event, error)
}

// CalDAVServers maps provider names accepted as an account's server_url
// onto their CalDAV endpoints.
var CalDAVServers = map[string]string{
	"google":  "https://apidata.googleusercontent.com/caldav/v2/",
	"icloud":  "https://caldav.icloud.com/",
	"outlook": "https://outlook.office365.com/caldav/",
}

// CalendarID scopes a remote calendar path to its account so two
// accounts on one server do not collide in the store.
func CalendarID(accountID, remoteID string) string {
	return accountID + ":" + remoteID
}

// RemoteID reverses CalendarID.
func RemoteID(accountID, id string) string {
	return strings.TrimPrefix(id, accountID+":")
}
