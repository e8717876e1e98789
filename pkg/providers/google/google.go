// Package google syncs Google Calendar through the Calendar v3 API.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/djwarf/shellcal/pkg/providers"
	"github.com/djwarf/shellcal/pkg/store"
)

var errNotAuthenticated = errors.New("not authenticated")

// OAuthConfig holds OAuth credentials
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Config returns the oauth2 configuration for read-only calendar access.
func (c OAuthConfig) Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     googleoauth.Endpoint,
	}
}

// Client implements providers.Source for Google Calendar
type Client struct {
	account     *store.Account
	oauthConfig *oauth2.Config
	tokenPath   string
	// tokens is used as is when set, skipping the token file.
	tokens oauth2.TokenSource
	// opts are appended to the service options; tests point them at a
	// local server.
	opts []option.ClientOption
	loc  *time.Location

	service *calendar.Service
}

// NewClient creates a Google Calendar source whose token lives at
// tokenPath.
func NewClient(account *store.Account, cfg OAuthConfig, tokenPath string) *Client {
	return &Client{
		account:     account,
		oauthConfig: cfg.Config(),
		tokenPath:   tokenPath,
		loc:         time.Local,
	}
}

// NewTokenSourceClient creates a source authenticated by ts, for
// accounts whose tokens are managed elsewhere.
func NewTokenSourceClient(account *store.Account, ts oauth2.TokenSource) *Client {
	return &Client{account: account, tokens: ts, loc: time.Local}
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.account.Name
}

// Account returns the account
func (c *Client) Account() *store.Account {
	return c.account
}

// GetAuthURL returns the URL for OAuth authorization
func (c *Client) GetAuthURL(state string) string {
	return c.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges an authorization code for a token and stores
// it at the token path.
func (c *Client) ExchangeCode(ctx context.Context, code string) error {
	token, err := c.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}
	if err := SaveToken(c.tokenPath, token); err != nil {
		return err
	}
	c.tokens = nil
	c.service = nil
	return nil
}

// Authenticate builds the API service from the token source or the
// saved token.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.service != nil {
		return nil
	}

	ts := c.tokens
	if ts == nil {
		token, err := LoadToken(c.tokenPath)
		if err != nil {
			return fmt.Errorf("no usable token for %s, run the login flow: %w", c.account.Name, err)
		}
		ts = &savingTokenSource{
			base: c.oauthConfig.TokenSource(context.WithoutCancel(ctx), token),
			path: c.tokenPath,
			last: token,
		}
	}

	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, c.opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create calendar service: %w", err)
	}
	c.service = service
	return nil
}

// ListCalendars returns the calendars on the user's calendar list.
func (c *Client) ListCalendars(ctx context.Context) ([]*store.Calendar, error) {
	if c.service == nil {
		return nil, errNotAuthenticated
	}

	var calendars []*store.Calendar
	err := c.service.CalendarList.List().Context(ctx).Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			if item.Deleted {
				continue
			}
			name := item.SummaryOverride
			if name == "" {
				name = item.Summary
			}
			calendars = append(calendars, &store.Calendar{
				ID:          providers.CalendarID(c.account.ID, item.Id),
				AccountID:   c.account.ID,
				Name:        name,
				Description: item.Description,
				Color:       item.BackgroundColor,
				Visible:     !item.Hidden,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return calendars, nil
}

// GetEvents returns the expanded occurrences overlapping [start, end).
func (c *Client) GetEvents(ctx context.Context, calendarID string, start, end time.Time) ([]*store.Event, error) {
	if c.service == nil {
		return nil, errNotAuthenticated
	}

	call := c.service.Events.List(providers.RemoteID(c.account.ID, calendarID)).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Context(ctx)

	var events []*store.Event
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			e, err := convertEvent(item, c.loc)
			if err != nil {
				continue
			}
			e.CalendarID = calendarID
			e.ID = store.EventID(calendarID, item.Id)
			events = append(events, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}

// convertEvent maps an API event. All-day dates become midnight in loc.
func convertEvent(item *calendar.Event, loc *time.Location) (*store.Event, error) {
	if item.Start == nil || item.End == nil {
		return nil, fmt.Errorf("event %s has no start or end", item.Id)
	}
	start, allDay, err := parseEventTime(item.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	end, _, err := parseEventTime(item.End, loc)
	if err != nil {
		return nil, fmt.Errorf("event %s end: %w", item.Id, err)
	}
	if end.Before(start) {
		end = start
	}

	uid := item.ICalUID
	if item.RecurringEventId != "" || uid == "" {
		uid = item.Id
	}
	return &store.Event{
		UID:         uid,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		ETag:        item.Etag,
		Cancelled:   item.Status == "cancelled",
	}, nil
}

func parseEventTime(t *calendar.EventDateTime, loc *time.Location) (time.Time, bool, error) {
	switch {
	case t.DateTime != "":
		v, err := time.Parse(time.RFC3339, t.DateTime)
		return v, false, err
	case t.Date != "":
		v, err := time.ParseInLocation(time.DateOnly, t.Date, loc)
		return v, true, err
	}
	return time.Time{}, false, errors.New("no date")
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return &token, nil
}

// SaveToken writes token to path with 0600 permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// savingTokenSource persists refreshed tokens so a restart does not
// need a new login.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || s.last.AccessToken != token.AccessToken {
		if err := SaveToken(s.path, token); err != nil {
			return nil, err
		}
		s.last = token
	}
	return token, nil
}

// Ensure Client implements Source
var _ providers.Source = (*Client)(nil)
