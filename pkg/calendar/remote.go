package calendar

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	appLog "github.com/djwarf/shellcal/internal/log"
)

var (
	// ErrProviderTimeout marks a handshake or fetch that timed out. It
	// is recoverable: the source waits for the provider to (re)appear.
	ErrProviderTimeout = errors.New("calendar provider timed out")
	// ErrMalformedBatch marks a fetch result that was dropped whole.
	ErrMalformedBatch = errors.New("malformed event batch")
)

// Appointment is one record as delivered by the data provider.
// Times are Unix seconds.
type Appointment struct {
	UID         string
	Summary     string
	Description string
	AllDay      bool
	Start       int64
	End         int64
}

// ProviderWatch carries the provider's notifications. Callbacks may be
// invoked from any goroutine.
type ProviderWatch struct {
	// Changed is the provider's own "data changed" signal.
	Changed func()
	// OwnerChanged reports the provider appearing on or leaving the bus.
	OwnerChanged func(present bool)
	// PropertiesChanged fires when HasCalendars may have changed.
	PropertiesChanged func()
}

// Provider is the remote calendar service behind a RemoteSource.
type Provider interface {
	// Connect performs the initial handshake. A timeout must be
	// reported as an error wrapping ErrProviderTimeout.
	Connect(ctx context.Context) error
	HasCalendars() bool
	GetEvents(ctx context.Context, begin, end time.Time, forceReload bool) ([]Appointment, error)
	// Watch installs the notification callbacks until stop is called.
	Watch(w ProviderWatch) (stop func(), err error)
	Close() error
}

// Dispatcher runs callbacks on the UI event loop. Post must be safe to
// call from any goroutine.
type Dispatcher interface {
	Post(fn func())
}

// SourceState is the lifecycle state of a RemoteSource.
type SourceState int

const (
	StateUninitialized SourceState = iota
	StateConnecting
	StateReady
	StateRefreshing
	StateUnavailable
)

func (s SourceState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateRefreshing:
		return "refreshing"
	case StateUnavailable:
		return "unavailable"
	}
	return fmt.Sprintf("SourceState(%d)", int(s))
}

// RemoteOptions tunes a RemoteSource.
type RemoteOptions struct {
	ConnectTimeout time.Duration
	FetchTimeout   time.Duration
	// Location is used to convert provider timestamps. Defaults to time.Local.
	Location *time.Location
}

func (o RemoteOptions) withDefaults() RemoteOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 25 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 25 * time.Second
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// RemoteSource is an EventSource backed by a Provider. It keeps the
// last complete fetch result as its snapshot. Provider calls run on
// their own goroutines; every state change and notification happens on
// the dispatcher.
type RemoteSource struct {
	Notifier

	provider Provider
	dispatch Dispatcher
	opts     RemoteOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	state       SourceState
	initialized bool
	closed      bool
	loading     bool
	events      []Event
	// last is the deduplication key for RequestRange and is cleared with
	// the cache; cur is the window fetched on reloads and survives resets.
	last, cur window
	// token increases with every fetch; completions carrying an older
	// token are discarded.
	token     uint64
	stopWatch func()
}

type window struct {
	begin, end time.Time
	set        bool
}

func (w window) equal(begin, end time.Time) bool {
	return w.set && w.begin.Equal(begin) && w.end.Equal(end)
}

// NewRemoteSource creates the source and starts the provider handshake.
func NewRemoteSource(p Provider, d Dispatcher, opts RemoteOptions) *RemoteSource {
	ctx, cancel := context.WithCancel(context.Background())
	s := &RemoteSource{
		provider: p,
		dispatch: d,
		opts:     opts.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		state:    StateUninitialized,
	}
	s.connect()
	return s
}

// State returns the current lifecycle state.
func (s *RemoteSource) State() SourceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *RemoteSource) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *RemoteSource) IsDummy() bool { return false }

func (s *RemoteSource) HasCalendars() bool {
	s.mu.RLock()
	initialized := s.initialized
	s.mu.RUnlock()
	return initialized && s.provider.HasCalendars()
}

// RequestRange fetches [begin, end) unless it is the window requested last.
func (s *RemoteSource) RequestRange(begin, end time.Time) {
	s.mu.Lock()
	if s.closed || s.last.equal(begin, end) {
		s.mu.Unlock()
		return
	}
	s.last = window{begin: begin, end: end, set: true}
	s.cur = s.last
	// Mid-handshake the fetch waits for the connection, but the window
	// is already loading.
	connecting := s.state == StateConnecting
	startedLoading := connecting && !s.loading
	if connecting {
		s.loading = true
	}
	s.mu.Unlock()

	if startedLoading {
		s.Emit(NotifyLoading)
	}
	s.load(false, true)
}

// GetEvents filters the current snapshot. It never blocks on a fetch.
func (s *RemoteSource) GetEvents(begin, end time.Time) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FilterEvents(s.events, begin, end)
}

func (s *RemoteSource) HasEvents(day time.Time) bool {
	return hasEventsOn(s, day)
}

// Close stops watching the provider and retires any in-flight fetch.
func (s *RemoteSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.token++
	s.state = StateUninitialized
	stop := s.stopWatch
	s.stopWatch = nil
	s.mu.Unlock()

	s.cancel()
	if stop != nil {
		stop()
	}
	s.UnsubscribeAll()
	if err := s.provider.Close(); err != nil {
		return fmt.Errorf("failed to close calendar provider: %w", err)
	}
	return nil
}

func (s *RemoteSource) connect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.ConnectTimeout)
		err := s.provider.Connect(ctx)
		cancel()
		s.dispatch.Post(func() { s.onConnected(err) })
	}()
}

func (s *RemoteSource) onConnected(err error) {
	loaded := false
	switch {
	case err == nil:
		loaded = true
	case errors.Is(err, ErrProviderTimeout):
		// The service will most likely show up later and announce itself
		// through an owner change, which finishes the handshake.
		appLog.Info("calendar provider handshake timed out, waiting for it to appear")
	default:
		appLog.Error("failed to load calendars", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.initialized = loaded
	if loaded || errors.Is(err, ErrProviderTimeout) {
		s.state = StateReady
	} else {
		s.state = StateUninitialized
	}
	// Without a connection nothing will finish a pending window.
	stopLoading := !loaded && s.loading
	if stopLoading {
		s.loading = false
	}
	s.mu.Unlock()

	s.ensureWatch()
	if stopLoading {
		s.Emit(NotifyLoading)
	}

	if loaded {
		s.Emit(NotifyHasCalendars)
		s.onNameAppeared()
	}
}

func (s *RemoteSource) ensureWatch() {
	s.mu.Lock()
	if s.stopWatch != nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	stop, err := s.provider.Watch(ProviderWatch{
		Changed: func() {
			s.dispatch.Post(s.onChanged)
		},
		OwnerChanged: func(present bool) {
			s.dispatch.Post(func() {
				if present {
					s.onNameAppeared()
				} else {
					s.onNameVanished()
				}
			})
		},
		PropertiesChanged: func() {
			s.dispatch.Post(func() { s.Emit(NotifyHasCalendars) })
		},
	})
	if err != nil {
		appLog.Error("failed to watch calendar provider", err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		return
	}
	s.stopWatch = stop
	s.mu.Unlock()
}

func (s *RemoteSource) onNameAppeared() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.initialized {
		// Handshake never completed; redo it and come back here on success.
		s.mu.Unlock()
		s.connect()
		return
	}
	s.resetCacheLocked()
	s.state = StateReady
	s.mu.Unlock()

	appLog.Debug("calendar provider appeared")
	s.load(true, true)
}

func (s *RemoteSource) onNameVanished() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.resetCacheLocked()
	// Whatever is in flight belongs to the vanished owner.
	s.token++
	s.state = StateUnavailable
	wasLoading := s.loading
	s.loading = false
	s.mu.Unlock()

	appLog.Info("calendar provider vanished")
	if wasLoading {
		s.Emit(NotifyLoading)
	}
	s.Emit(NotifyChanged)
}

func (s *RemoteSource) onChanged() {
	appLog.Debug("calendar provider reported changes")
	s.load(true, false)
}

func (s *RemoteSource) resetCacheLocked() {
	s.events = nil
	s.last = window{}
}

// load issues a fetch for the current window. markLoading flips
// IsLoading for the duration of the fetch. While the provider is gone
// the window is only kept; onNameAppeared fetches it.
func (s *RemoteSource) load(forceReload, markLoading bool) {
	s.mu.Lock()
	if s.closed || !s.initialized || !s.cur.set || s.state == StateUnavailable {
		s.mu.Unlock()
		return
	}
	s.token++
	token := s.token
	begin, end := s.cur.begin, s.cur.end
	s.state = StateRefreshing
	startedLoading := markLoading && !s.loading
	if markLoading {
		s.loading = true
	}
	s.mu.Unlock()

	if startedLoading {
		s.Emit(NotifyLoading)
	}

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.FetchTimeout)
		appts, err := s.provider.GetEvents(ctx, begin, end, forceReload)
		cancel()
		s.dispatch.Post(func() { s.onEventsReceived(token, appts, err) })
	}()
}

func (s *RemoteSource) onEventsReceived(token uint64, appts []Appointment, err error) {
	s.mu.Lock()
	if s.closed || token != s.token {
		current := s.token
		s.mu.Unlock()
		appLog.Debug("discarding stale calendar fetch", "token", token, "current", current)
		return
	}

	switch events, perr := ParseAppointments(appts, s.opts.Location); {
	case err != nil:
		appLog.Error("failed to fetch events", err, "begin", s.cur.begin, "end", s.cur.end)
	case perr != nil:
		appLog.Error("dropping event batch", perr, "count", len(appts))
	default:
		s.events = events
	}

	s.state = StateReady
	wasLoading := s.loading
	s.loading = false
	s.mu.Unlock()

	if wasLoading {
		s.Emit(NotifyLoading)
	}
	s.Emit(NotifyChanged)
}

// ParseAppointments converts a provider batch into events sorted by
// start. A record ending before it starts invalidates the whole batch.
func ParseAppointments(appts []Appointment, loc *time.Location) ([]Event, error) {
	if loc == nil {
		loc = time.Local
	}
	events := make([]Event, 0, len(appts))
	for i, a := range appts {
		if a.End < a.Start {
			return nil, fmt.Errorf("%w: record %d ends before it starts", ErrMalformedBatch, i)
		}
		events = append(events, Event{
			UID:         a.UID,
			Summary:     a.Summary,
			Description: a.Description,
			Start:       time.Unix(a.Start, 0).In(loc),
			End:         time.Unix(a.End, 0).In(loc),
			AllDay:      a.AllDay,
		})
	}
	sortByStart(events)
	return events, nil
}

func sortByStart(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		return a.Start.Compare(b.Start)
	})
}

var _ EventSource = (*RemoteSource)(nil)
