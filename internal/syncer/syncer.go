// Package syncer copies events from the configured providers into the
// store and answers the calendar server from it.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/djwarf/shellcal/internal/log"
	"github.com/djwarf/shellcal/pkg/calendar"
	"github.com/djwarf/shellcal/pkg/providers"
	"github.com/djwarf/shellcal/pkg/store"
)

// maxParallel bounds concurrent account syncs.
const maxParallel = 4

// Options configures a Syncer.
type Options struct {
	// Sources are synced every time.
	Sources []providers.Source
	// Discover, when set, returns extra sources looked up on every sync,
	// such as GNOME Online Accounts.
	Discover func(ctx context.Context) ([]providers.Source, error)

	PastDays   int
	FutureDays int

	// OnChange runs after a scheduled sync that wrote to the store.
	OnChange func()
	// OnHasCalendars runs after any pass, forced reloads included,
	// when whether a visible calendar exists differs from last time.
	OnHasCalendars func(has bool)
	Now            func() time.Time
}

// Result summarises one sync pass.
type Result struct {
	Accounts  int
	Calendars int
	Events    int
	Changed   bool
	Errors    []error
}

// Syncer owns the sync schedule.
type Syncer struct {
	store *store.Store
	opts  Options

	// mu serialises passes so a forced reload never interleaves with
	// the schedule.
	mu sync.Mutex

	reported     bool
	hasCalendars bool
}

// New creates a Syncer writing to st.
func New(st *store.Store, opts Options) *Syncer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PastDays <= 0 {
		opts.PastDays = 31
	}
	if opts.FutureDays <= 0 {
		opts.FutureDays = 93
	}
	return &Syncer{store: st, opts: opts}
}

// Window returns the range a scheduled pass covers.
func (s *Syncer) Window() (time.Time, time.Time) {
	now := s.opts.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, -s.opts.PastDays), today.AddDate(0, 0, s.opts.FutureDays)
}

// Sync runs a pass over the default window and fires OnChange when
// anything was written.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	begin, end := s.Window()
	res, err := s.SyncRange(ctx, begin, end)
	if res.Changed && s.opts.OnChange != nil {
		s.opts.OnChange()
	}
	return res, err
}

// SyncRange syncs [begin, end) from every source. A failing account
// does not stop the others; their errors are joined.
func (s *Syncer) SyncRange(ctx context.Context, begin, end time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources := append([]providers.Source(nil), s.opts.Sources...)
	var res Result
	discovered := true
	if s.opts.Discover != nil {
		found, err := s.opts.Discover(ctx)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("failed to discover accounts: %w", err))
			discovered = false
		}
		sources = append(sources, found...)
	}

	results := make([]Result, len(sources))
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			r, err := s.syncSource(ctx, src, begin, end)
			if err != nil {
				r.Errors = append(r.Errors, fmt.Errorf("%s: %w", src.Name(), err))
			}
			results[i] = r
			return nil
		})
	}
	g.Wait()

	for _, r := range results {
		res.Accounts += r.Accounts
		res.Calendars += r.Calendars
		res.Events += r.Events
		res.Changed = res.Changed || r.Changed
		res.Errors = append(res.Errors, r.Errors...)
	}

	// Without a full account list a missing account may only be
	// unreachable, so nothing is pruned.
	if discovered {
		pruned, err := s.pruneAccounts(sources)
		if err != nil {
			res.Errors = append(res.Errors, err)
		}
		res.Changed = res.Changed || pruned
	}
	s.reportHasCalendars(ctx)

	log.Info("sync finished",
		"accounts", res.Accounts,
		"calendars", res.Calendars,
		"events", res.Events,
		"changed", res.Changed,
		"errors", len(res.Errors))
	return res, errors.Join(res.Errors...)
}

func (s *Syncer) syncSource(ctx context.Context, src providers.Source, begin, end time.Time) (Result, error) {
	var res Result
	if err := src.Authenticate(ctx); err != nil {
		return res, fmt.Errorf("failed to authenticate: %w", err)
	}

	account := src.Account()
	if err := s.store.SaveAccount(account); err != nil {
		return res, err
	}
	res.Accounts = 1

	cals, err := src.ListCalendars(ctx)
	if err != nil {
		return res, err
	}

	known, err := s.store.ListCalendars(account.ID)
	if err != nil {
		return res, fmt.Errorf("failed to list stored calendars: %w", err)
	}
	listed := make(map[string]bool, len(cals))

	for _, cal := range cals {
		listed[cal.ID] = true
		cal.AccountID = account.ID

		// New calendars and visibility flips change what is served even
		// when no event moves.
		prev, err := s.store.GetCalendar(cal.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			res.Changed = true
		case err != nil:
			res.Errors = append(res.Errors, err)
			continue
		case prev.Visible != cal.Visible:
			res.Changed = true
		}

		if err := s.store.SaveCalendar(cal); err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Calendars++
		if !cal.Visible {
			continue
		}

		events, err := src.GetEvents(ctx, cal.ID, begin, end)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("calendar %s: %w", cal.Name, err))
			continue
		}
		changed, err := s.store.ReplaceEvents(ctx, cal.ID, begin, end, events)
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Events += len(events)
		res.Changed = res.Changed || changed
	}

	for _, cal := range known {
		if listed[cal.ID] {
			continue
		}
		if err := s.store.DeleteCalendar(cal.ID); err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		log.Debug("removed calendar", "id", cal.ID, "account", account.ID)
		res.Changed = true
	}

	account.LastSync = s.opts.Now()
	if err := s.store.SaveAccount(account); err != nil {
		res.Errors = append(res.Errors, err)
	}
	return res, nil
}

// pruneAccounts deletes stored accounts that no source serves any
// more, along with their calendars and events.
func (s *Syncer) pruneAccounts(sources []providers.Source) (bool, error) {
	stored, err := s.store.ListAccounts()
	if err != nil {
		return false, fmt.Errorf("failed to list accounts: %w", err)
	}
	active := make(map[string]bool, len(sources))
	for _, src := range sources {
		active[src.Account().ID] = true
	}

	pruned := false
	var errs []error
	for _, a := range stored {
		if active[a.ID] {
			continue
		}
		if err := s.store.DeleteAccount(a.ID); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete account %s: %w", a.ID, err))
			continue
		}
		log.Info("removed account", "id", a.ID, "name", a.Name)
		pruned = true
	}
	return pruned, errors.Join(errs...)
}

func (s *Syncer) reportHasCalendars(ctx context.Context) {
	if s.opts.OnHasCalendars == nil {
		return
	}
	has := s.HasCalendars(ctx)
	if s.reported && has == s.hasCalendars {
		return
	}
	s.reported = true
	s.hasCalendars = has
	s.opts.OnHasCalendars(has)
}

// Start runs Sync on schedule, a standard five-field cron spec, until
// ctx ends. The first pass runs immediately.
func (s *Syncer) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	run := func() {
		if _, err := s.Sync(ctx); err != nil {
			log.Error("scheduled sync had errors", err)
		}
	}
	if _, err := c.AddFunc(schedule, run); err != nil {
		return fmt.Errorf("failed to parse sync schedule %q: %w", schedule, err)
	}
	c.Start()
	go run()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// Appointments serves GetEvents. A forced reload syncs the range first
// but never fires OnChange, since the caller already asked for fresh
// data.
func (s *Syncer) Appointments(ctx context.Context, begin, end time.Time, forceReload bool) ([]calendar.Appointment, error) {
	if forceReload {
		if _, err := s.SyncRange(ctx, begin, end); err != nil {
			log.Error("forced reload had errors", err)
		}
	}

	events, err := s.store.EventsInRange(ctx, begin, end)
	if err != nil {
		return nil, err
	}
	appts := make([]calendar.Appointment, 0, len(events))
	for _, e := range events {
		appts = append(appts, e.Appointment())
	}
	return appts, nil
}

// HasCalendars reports whether any visible calendar is stored.
func (s *Syncer) HasCalendars(ctx context.Context) bool {
	ok, err := s.store.HasVisibleCalendars(ctx)
	if err != nil {
		log.Error("failed to check calendars", err)
		return false
	}
	return ok
}
