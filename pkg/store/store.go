// Package store is the calendar daemon's SQLite cache of accounts,
// calendars and events.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by the Get methods for unknown IDs.
var ErrNotFound = errors.New("not found")

// Store manages calendar data persistence
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens or creates the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	connStr := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer; sqlite serialises anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Times are stored as Unix seconds so range comparisons stay numeric
// whatever zone the source used.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		email TEXT,
		enabled INTEGER DEFAULT 1,
		server_url TEXT,
		username TEXT,
		last_sync INTEGER
	);

	CREATE TABLE IF NOT EXISTS calendars (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		color TEXT DEFAULT '#4285f4',
		visible INTEGER DEFAULT 1,
		last_sync INTEGER,
		FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		calendar_id TEXT NOT NULL,
		uid TEXT,
		summary TEXT NOT NULL,
		description TEXT,
		location TEXT,
		start_time INTEGER NOT NULL,
		end_time INTEGER NOT NULL,
		all_day INTEGER DEFAULT 0,
		etag TEXT,
		cancelled INTEGER DEFAULT 0,
		FOREIGN KEY (calendar_id) REFERENCES calendars(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_events_calendar ON events(calendar_id);
	CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time);
	CREATE INDEX IF NOT EXISTS idx_events_end ON events(end_time);
	CREATE INDEX IF NOT EXISTS idx_calendars_account ON calendars(account_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Account Operations ---

// SaveAccount inserts or updates an account. ON CONFLICT keeps the
// cascade from wiping its calendars, which REPLACE would do.
func (s *Store) SaveAccount(a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO accounts (id, name, type, email, enabled, server_url, username, last_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			email = excluded.email,
			enabled = excluded.enabled,
			server_url = excluded.server_url,
			username = excluded.username,
			last_sync = excluded.last_sync`,
		a.ID, a.Name, a.Type, a.Email, a.Enabled, a.ServerURL, a.Username, unixOrNull(a.LastSync))
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", a.ID, err)
	}
	return nil
}

// GetAccount retrieves an account by ID
func (s *Store) GetAccount(id string) (*Account, error) {
	row := s.db.QueryRow(`SELECT id, name, type, email, enabled, server_url, username, last_sync FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, err
}

// ListAccounts returns all accounts ordered by name.
func (s *Store) ListAccounts() ([]*Account, error) {
	rows, err := s.db.Query(`SELECT id, name, type, email, enabled, server_url, username, last_sync FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeleteAccount deletes an account and its calendars/events
func (s *Store) DeleteAccount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	return err
}

// --- Calendar Operations ---

// SaveCalendar saves a calendar to the database
func (s *Store) SaveCalendar(c *Calendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO calendars (id, account_id, name, description, color, visible, last_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			name = excluded.name,
			description = excluded.description,
			color = excluded.color,
			visible = excluded.visible,
			last_sync = excluded.last_sync`,
		c.ID, c.AccountID, c.Name, c.Description, c.Color, c.Visible, unixOrNull(c.LastSync))
	if err != nil {
		return fmt.Errorf("failed to save calendar %s: %w", c.ID, err)
	}
	return nil
}

// GetCalendar retrieves a calendar by ID
func (s *Store) GetCalendar(id string) (*Calendar, error) {
	row := s.db.QueryRow(`SELECT id, account_id, name, description, color, visible, last_sync FROM calendars WHERE id = ?`, id)
	c, err := scanCalendar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("calendar %s: %w", id, ErrNotFound)
	}
	return c, err
}

// ListCalendars returns the calendars of accountID, or all calendars
// when accountID is empty.
func (s *Store) ListCalendars(accountID string) ([]*Calendar, error) {
	query := `SELECT id, account_id, name, description, color, visible, last_sync FROM calendars`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	rows, err := s.db.Query(query+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calendars []*Calendar
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		calendars = append(calendars, c)
	}
	return calendars, rows.Err()
}

// HasVisibleCalendars backs the HasCalendars property.
func (s *Store) HasVisibleCalendars(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM calendars c
		JOIN accounts a ON c.account_id = a.id
		WHERE c.visible = 1 AND a.enabled = 1`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count calendars: %w", err)
	}
	return n > 0, nil
}

// DeleteCalendar deletes a calendar and its events
func (s *Store) DeleteCalendar(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM calendars WHERE id = ?`, id)
	return err
}

// --- Event Operations ---

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertEvent(db execer, e *Event) error {
	_, err := db.Exec(`
		INSERT INTO events (id, calendar_id, uid, summary, description, location, start_time, end_time, all_day, etag, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			calendar_id = excluded.calendar_id,
			uid = excluded.uid,
			summary = excluded.summary,
			description = excluded.description,
			location = excluded.location,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			all_day = excluded.all_day,
			etag = excluded.etag,
			cancelled = excluded.cancelled`,
		e.ID, e.CalendarID, e.UID, e.Summary, e.Description, e.Location,
		e.Start.Unix(), e.End.Unix(), e.AllDay, e.ETag, e.Cancelled)
	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", e.ID, err)
	}
	return nil
}

// EventsInRange returns the non-cancelled events of visible calendars
// on enabled accounts that overlap [start, end), ordered by start.
func (s *Store) EventsInRange(ctx context.Context, start, end time.Time) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed("e", eventColumns)+` FROM events e
		JOIN calendars c ON e.calendar_id = c.id
		JOIN accounts a ON c.account_id = a.id
		WHERE c.visible = 1 AND a.enabled = 1 AND e.cancelled = 0
		AND e.start_time < ? AND e.end_time > ?
		ORDER BY e.start_time, e.id`,
		end.Unix(), start.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ReplaceEvents makes events the complete content of calendarID within
// [start, end): stored events overlapping the window that are not in
// events are deleted. It reports whether anything changed.
func (s *Store) ReplaceEvents(ctx context.Context, calendarID string, start, end time.Time, events []*Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+eventColumns+` FROM events
		WHERE calendar_id = ? AND start_time < ? AND end_time > ?`,
		calendarID, end.Unix(), start.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to query events: %w", err)
	}
	existing, err := scanEvents(rows)
	rows.Close()
	if err != nil {
		return false, err
	}

	old := make(map[string]*Event, len(existing))
	for _, e := range existing {
		old[e.ID] = e
	}

	changed := false
	keep := make(map[string]bool, len(events))
	for _, e := range events {
		e.CalendarID = calendarID
		if e.ID == "" {
			e.ID = EventID(calendarID, e.UID)
		}
		keep[e.ID] = true
		if prev, ok := old[e.ID]; ok && sameEvent(prev, e) {
			continue
		}
		if err := upsertEvent(tx, e); err != nil {
			return false, err
		}
		changed = true
	}

	stale := make([]string, 0)
	for id := range old {
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	slices.Sort(stale)
	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
			return false, fmt.Errorf("failed to delete event %s: %w", id, err)
		}
		changed = true
	}

	if _, err := tx.ExecContext(ctx, `UPDATE calendars SET last_sync = ? WHERE id = ?`, time.Now().Unix(), calendarID); err != nil {
		return false, fmt.Errorf("failed to stamp calendar %s: %w", calendarID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit events: %w", err)
	}
	return changed, nil
}

func sameEvent(a, b *Event) bool {
	return a.UID == b.UID &&
		a.Summary == b.Summary &&
		a.Description == b.Description &&
		a.Location == b.Location &&
		a.Start.Unix() == b.Start.Unix() &&
		a.End.Unix() == b.End.Unix() &&
		a.AllDay == b.AllDay &&
		a.ETag == b.ETag &&
		a.Cancelled == b.Cancelled
}


// --- Scan helpers ---

const eventColumns = `id, calendar_id, uid, summary, description, location, start_time, end_time, all_day, etag, cancelled`

func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*Account, error) {
	a := &Account{}
	var email, serverURL, username sql.NullString
	var lastSync sql.NullInt64
	err := row.Scan(&a.ID, &a.Name, &a.Type, &email, &a.Enabled, &serverURL, &username, &lastSync)
	if err != nil {
		return nil, err
	}
	a.Email = email.String
	a.ServerURL = serverURL.String
	a.Username = username.String
	a.LastSync = fromUnix(lastSync)
	return a, nil
}

func scanCalendar(row scanner) (*Calendar, error) {
	c := &Calendar{}
	var description, color sql.NullString
	var lastSync sql.NullInt64
	err := row.Scan(&c.ID, &c.AccountID, &c.Name, &description, &color, &c.Visible, &lastSync)
	if err != nil {
		return nil, err
	}
	c.Description = description.String
	c.Color = color.String
	if c.Color == "" {
		c.Color = "#4285f4"
	}
	c.LastSync = fromUnix(lastSync)
	return c, nil
}

func scanEvent(row scanner) (*Event, error) {
	e := &Event{}
	var uid, description, location, etag sql.NullString
	var start, end int64
	err := row.Scan(&e.ID, &e.CalendarID, &uid, &e.Summary, &description, &location,
		&start, &end, &e.AllDay, &etag, &e.Cancelled)
	if err != nil {
		return nil, err
	}
	e.UID = uid.String
	e.Description = description.String
	e.Location = location.String
	e.ETag = etag.String
	e.Start = time.Unix(start, 0)
	e.End = time.Unix(end, 0)
	return e, nil
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func unixOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func fromUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0)
}
