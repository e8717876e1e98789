package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/djwarf/shellcal/pkg/calendar"
)

// AccountType represents the type of calendar account
type AccountType string

const (
	AccountTypeCalDAV AccountType = "caldav"
	AccountTypeGoogle AccountType = "google"
	// AccountTypeOnline is an account discovered through GNOME Online Accounts.
	AccountTypeOnline AccountType = "goa"
)

// Account is a synced calendar account.
type Account struct {
	ID        string
	Name      string
	Type      AccountType
	Email     string
	Enabled   bool
	ServerURL string
	Username  string
	LastSync  time.Time
}

// Calendar represents a calendar (container for events)
type Calendar struct {
	ID          string
	AccountID   string
	Name        string
	Description string
	Color       string
	Visible     bool
	LastSync    time.Time
}

// Event is one stored occurrence.
type Event struct {
	ID          string
	CalendarID  string
	UID         string // iCal UID
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	ETag        string
	Cancelled   bool
}

// idNamespace scopes the name-based event IDs.
var idNamespace = uuid.MustParse("6f1c3c0e-6a0f-4f4e-9c57-0f3b4c6b1d2a")

// EventID derives a stable ID from the calendar and the iCal UID. Events
// without a UID get a random one.
func EventID(calendarID, uid string) string {
	if uid == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(idNamespace, []byte(calendarID+"\x00"+uid)).String()
}

// Appointment converts the event into the provider wire record.
func (e *Event) Appointment() calendar.Appointment {
	uid := e.UID
	if uid == "" {
		uid = e.ID
	}
	return calendar.Appointment{
		UID:         uid,
		Summary:     e.Summary,
		Description: e.Description,
		AllDay:      e.AllDay,
		Start:       e.Start.Unix(),
		End:         e.End.Unix(),
	}
}
