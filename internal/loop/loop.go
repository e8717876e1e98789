// Package loop is a single-goroutine callback queue. Everything that
// touches popup state is posted here, the same way a toolkit's idle
// handler funnels work back onto the UI thread.
package loop

import (
	"context"
	"sync"
	"time"
)

type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped bool
	timers  map[*time.Timer]struct{}
}

func New() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Post queues fn. It is safe to call from any goroutine; callbacks
// posted after Quit are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc posts fn once d has elapsed. The returned func cancels it.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (cancel func()) {
	var t *time.Timer
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return func() {}
	}
	t = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, t)
		l.mu.Unlock()
		l.Post(fn)
	})
	l.timers[t] = struct{}{}
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.timers, t)
		l.mu.Unlock()
		t.Stop()
	}
}

// Run executes posted callbacks in order until ctx is done or Quit is
// called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
		}

		select {
		case <-ctx.Done():
			l.Quit()
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		}
	}
}

// RunPending executes whatever is queued right now and returns how many
// callbacks ran. It does not wait for new work.
func (l *Loop) RunPending() int {
	n := 0
	for {
		fn, ok := l.next()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Quit stops Run and cancels outstanding timers.
func (l *Loop) Quit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.queue = nil
	for t := range l.timers {
		t.Stop()
	}
	l.timers = nil
	close(l.done)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}
