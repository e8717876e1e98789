package calendar

import (
	"sort"
	"sync"
)

// Notification names a change a subscriber can listen for.
type Notification string

const (
	// NotifyChanged fires when the event snapshot was replaced or cleared.
	NotifyChanged Notification = "changed"
	// NotifyLoading fires when IsLoading flips.
	NotifyLoading Notification = "loading"
	// NotifyHasCalendars fires when the provider's HasCalendars may have changed.
	NotifyHasCalendars Notification = "has-calendars"
	// NotifySelectedDate fires when a MonthView's selected day changes.
	NotifySelectedDate Notification = "selected-date-changed"
	// NotifyGrid fires after a MonthView rebuilt or re-marked its grid.
	NotifyGrid Notification = "grid-changed"
	// NotifyAgenda fires after an AgendaView recomputed its periods.
	NotifyAgenda Notification = "agenda-changed"
)

// SubscriptionID is returned by Subscribe and used to unsubscribe.
type SubscriptionID uint64

// Notifier is a small subscription registry, safe for concurrent use.
// Handlers run synchronously on the goroutine calling Emit, in
// subscription order.
type Notifier struct {
	mu       sync.Mutex
	next     SubscriptionID
	handlers map[SubscriptionID]subscription
}

type subscription struct {
	kind Notification
	fn   func()
}

// Subscribe registers fn for kind.
func (n *Notifier) Subscribe(kind Notification, fn func()) SubscriptionID {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handlers == nil {
		n.handlers = make(map[SubscriptionID]subscription)
	}
	n.next++
	n.handlers[n.next] = subscription{kind: kind, fn: fn}
	return n.next
}

// Unsubscribe removes a handler. Unknown ids are ignored.
func (n *Notifier) Unsubscribe(id SubscriptionID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.handlers, id)
}

// UnsubscribeAll drops every handler.
func (n *Notifier) UnsubscribeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = nil
}

// Emit calls every handler subscribed to kind. Handlers may subscribe
// or unsubscribe while being called.
func (n *Notifier) Emit(kind Notification) {
	n.mu.Lock()
	ids := make([]SubscriptionID, 0, len(n.handlers))
	for id, s := range n.handlers {
		if s.kind == kind {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, n.handlers[id].fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
