// Package caldav syncs calendars from CalDAV servers.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/teambition/rrule-go"
	"golang.org/x/oauth2"

	"github.com/djwarf/shellcal/pkg/providers"
	"github.com/djwarf/shellcal/pkg/store"
)

var errNotAuthenticated = errors.New("not authenticated")

// NewOAuthHTTPClient creates an HTTP client with OAuth Bearer auth
func NewOAuthHTTPClient(ctx context.Context, ts oauth2.TokenSource) webdav.HTTPClient {
	return oauth2.NewClient(ctx, ts)
}

// Client implements providers.Source for CalDAV servers
type Client struct {
	account  *store.Account
	password string
	// tokens, when set, replaces basic auth with a bearer token.
	tokens oauth2.TokenSource
	// base is the client under the auth layer, swapped in tests.
	base *http.Client

	caldavClient *caldav.Client
}

// NewClient creates a CalDAV source using basic auth.
func NewClient(account *store.Account, password string) *Client {
	return &Client{account: account, password: password}
}

// NewOAuthClient creates a CalDAV source that authenticates with
// bearer tokens, as Google's CalDAV endpoint requires.
func NewOAuthClient(account *store.Account, ts oauth2.TokenSource) *Client {
	return &Client{account: account, tokens: ts}
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.account.Name
}

// Account returns the account
func (c *Client) Account() *store.Account {
	return c.account
}

// Authenticate connects to the CalDAV server
func (c *Client) Authenticate(ctx context.Context) error {
	var httpClient webdav.HTTPClient
	if c.tokens != nil {
		if c.base != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
		}
		httpClient = NewOAuthHTTPClient(ctx, c.tokens)
	} else {
		var base webdav.HTTPClient
		if c.base != nil {
			base = c.base
		}
		httpClient = webdav.HTTPClientWithBasicAuth(base, c.account.Username, c.password)
	}

	client, err := caldav.NewClient(httpClient, c.account.ServerURL)
	if err != nil {
		return fmt.Errorf("failed to create CalDAV client: %w", err)
	}
	c.caldavClient = client
	return nil
}

// ListCalendars returns the VEVENT calendars of the account. Servers
// that do not answer principal discovery are treated as pointing
// straight at a calendar home, which is how Google's endpoint behaves.
func (c *Client) ListCalendars(ctx context.Context) ([]*store.Calendar, error) {
	if c.caldavClient == nil {
		return nil, errNotAuthenticated
	}

	homeSet := c.account.ServerURL
	if principal, err := c.caldavClient.FindCurrentUserPrincipal(ctx); err == nil {
		if hs, err := c.caldavClient.FindCalendarHomeSet(ctx, principal); err == nil {
			homeSet = hs
		}
	}

	cals, err := c.caldavClient.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	var calendars []*store.Calendar
	for _, cal := range cals {
		if !supportsEvents(cal.SupportedComponentSet) {
			continue
		}
		name := cal.Name
		if name == "" {
			name = "Calendar"
		}
		calendars = append(calendars, &store.Calendar{
			ID:          providers.CalendarID(c.account.ID, cal.Path),
			AccountID:   c.account.ID,
			Name:        name,
			Description: cal.Description,
			Visible:     true,
		})
	}
	return calendars, nil
}

func supportsEvents(comps []string) bool {
	if len(comps) == 0 {
		return true
	}
	for _, comp := range comps {
		if strings.EqualFold(comp, ical.CompEvent) {
			return true
		}
	}
	return false
}

// GetEvents returns events from a calendar within a time range
func (c *Client) GetEvents(ctx context.Context, calendarID string, start, end time.Time) ([]*store.Event, error) {
	if c.caldavClient == nil {
		return nil, errNotAuthenticated
	}

	// Servers that honour expand return one instance per occurrence.
	// Those that ignore it send the master, expanded locally below.
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
			Expand:   &caldav.CalendarExpandRequest{Start: start, End: end},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start,
				End:   end,
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, providers.RemoteID(c.account.ID, calendarID), query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	var events []*store.Event
	for i := range objects {
		evs, err := parseCalendarObject(&objects[i], calendarID, start, end, time.Local)
		if err != nil {
			// One broken object should not hide the rest of the calendar.
			continue
		}
		events = append(events, evs...)
	}
	return events, nil
}

// parseCalendarObject converts the VEVENTs of a CalDAV object into
// events overlapping [start, end). Recurring masters are expanded,
// skipping occurrences that an override in the same object replaces.
// DATE values become midnight in loc, which is how the popup expects
// all-day events.
func parseCalendarObject(obj *caldav.CalendarObject, calendarID string, start, end time.Time, loc *time.Location) ([]*store.Event, error) {
	if obj.Data == nil {
		return nil, fmt.Errorf("no data in calendar object %s", obj.Path)
	}

	vevents := obj.Data.Events()
	if len(vevents) == 0 {
		return nil, fmt.Errorf("no VEVENT in %s", obj.Path)
	}

	overridden := make(map[string]bool)
	for _, ev := range vevents {
		if rid, ok := recurrenceID(ev, loc); ok {
			overridden[text(ev, ical.PropUID)+"/"+rid] = true
		}
	}

	var events []*store.Event
	for _, ev := range vevents {
		e, err := parseEvent(ev, loc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", obj.Path, err)
		}
		e.CalendarID = calendarID
		e.ETag = obj.ETag

		rid, isOverride := recurrenceID(ev, loc)
		set, err := ev.RecurrenceSet(loc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", obj.Path, err)
		}
		if set == nil || isOverride {
			key := e.UID
			if isOverride && key != "" {
				key += "/" + rid
			}
			e.ID = store.EventID(calendarID, key)
			events = append(events, e)
			continue
		}

		d := e.End.Sub(e.Start)
		for _, occ := range occurrences(set, d, start, end) {
			key := occurrenceKey(occ)
			if overridden[e.UID+"/"+key] {
				continue
			}
			inst := *e
			inst.Start = occ
			inst.End = occ.Add(d)
			inst.ID = store.EventID(calendarID, e.UID+"/"+key)
			events = append(events, &inst)
		}
	}
	return events, nil
}

// occurrences returns the starts of the instances overlapping
// [start, end). An unbounded window yields nothing, since a rule may
// never end.
func occurrences(set *rrule.Set, d time.Duration, start, end time.Time) []time.Time {
	if start.IsZero() || end.IsZero() {
		return nil
	}
	var out []time.Time
	for _, occ := range set.Between(start.Add(-d), end, true) {
		if occ.Before(end) && occ.Add(d).After(start) {
			out = append(out, occ)
		}
	}
	return out
}

// recurrenceID returns the normalised RECURRENCE-ID of an override.
func recurrenceID(ev ical.Event, loc *time.Location) (string, bool) {
	prop := ev.Props.Get(ical.PropRecurrenceID)
	if prop == nil {
		return "", false
	}
	t, err := prop.DateTime(loc)
	if err != nil {
		return prop.Value, true
	}
	return occurrenceKey(t), true
}

func occurrenceKey(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func parseEvent(ev ical.Event, loc *time.Location) (*store.Event, error) {
	start, err := ev.DateTimeStart(loc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DTSTART: %w", err)
	}
	end, err := ev.DateTimeEnd(loc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DTEND: %w", err)
	}
	if end.Before(start) {
		end = start
	}

	e := &store.Event{
		Start: start,
		End:   end,
	}
	if prop := ev.Props.Get(ical.PropDateTimeStart); prop != nil && prop.ValueType() == ical.ValueDate {
		e.AllDay = true
	}

	e.UID = text(ev, ical.PropUID)
	e.Summary = text(ev, ical.PropSummary)
	e.Description = text(ev, ical.PropDescription)
	e.Location = text(ev, ical.PropLocation)
	e.Cancelled = strings.EqualFold(text(ev, ical.PropStatus), "CANCELLED")
	return e, nil
}

func text(ev ical.Event, name string) string {
	v, err := ev.Props.Text(name)
	if err != nil {
		return ""
	}
	return v
}

// Ensure Client implements Source
var _ providers.Source = (*Client)(nil)
