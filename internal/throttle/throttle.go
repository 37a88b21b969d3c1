// Package throttle bounds the rate of widget-originated outbound envelopes.
//
// Each source (usually a widget id) gets its own window. Within a window only
// the most recent envelope is kept; it is sent when the window closes. At most
// one envelope per source leaves per window and the last value is never lost.
package throttle

import (
	"time"

	"github.com/aretw0/vitrine/pkg/domain"
)

// DefaultWindow is the throttle window used when none is configured.
const DefaultWindow = 400 * time.Millisecond

// Timer is the subset of *time.Timer the throttle needs.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so tests can drive the throttle deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// SendFunc delivers an envelope.
type SendFunc func(msg domain.Outbound)

type slot struct {
	pending  domain.Outbound
	armed    bool
	lastSend time.Time
	timer    Timer
}

// Throttle is owned by a single goroutine. Timer callbacks are handed to the
// post function so they run on that goroutine too.
type Throttle struct {
	window      time.Duration
	clock       Clock
	send        SendFunc
	post        func(func())
	onCoalesced func(dropped domain.Outbound)
	slots       map[string]*slot
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(t *Throttle) {
		t.clock = c
	}
}

// WithPost sets how timer callbacks are scheduled onto the owning goroutine.
// By default they run on the timer goroutine.
func WithPost(post func(func())) Option {
	return func(t *Throttle) {
		t.post = post
	}
}

// WithOnCoalesced registers a callback for envelopes overwritten before they were sent.
func WithOnCoalesced(fn func(dropped domain.Outbound)) Option {
	return func(t *Throttle) {
		t.onCoalesced = fn
	}
}

// New creates a throttle with the given window. A non-positive window selects DefaultWindow.
func New(window time.Duration, send SendFunc, opts ...Option) *Throttle {
	if window <= 0 {
		window = DefaultWindow
	}
	t := &Throttle{
		window: window,
		clock:  SystemClock,
		send:   send,
		post:   func(f func()) { f() },
		slots:  make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Window returns the configured window.
func (t *Throttle) Window() time.Duration {
	return t.window
}

// Send sends msg now if source is outside its window, otherwise holds it
// until the window closes, replacing any envelope already held for source.
func (t *Throttle) Send(source string, msg domain.Outbound) {
	s, ok := t.slots[source]
	if !ok {
		s = &slot{}
		t.slots[source] = s
	}

	now := t.clock.Now()
	elapsed := now.Sub(s.lastSend)
	if !s.armed && (s.lastSend.IsZero() || elapsed >= t.window) {
		s.lastSend = now
		t.send(msg)
		return
	}

	if s.pending != nil && t.onCoalesced != nil {
		t.onCoalesced(s.pending)
	}
	s.pending = msg

	if !s.armed {
		s.armed = true
		s.timer = t.clock.AfterFunc(t.window-elapsed, func() {
			t.post(func() { t.fire(source) })
		})
	}
}

func (t *Throttle) fire(source string) {
	s, ok := t.slots[source]
	if !ok || !s.armed {
		return
	}
	s.armed = false
	s.timer = nil
	if s.pending == nil {
		return
	}
	msg := s.pending
	s.pending = nil
	s.lastSend = t.clock.Now()
	t.send(msg)
}

// Pending reports whether an envelope is held for source.
func (t *Throttle) Pending(source string) bool {
	s, ok := t.slots[source]
	return ok && s.pending != nil
}

// Close abandons every held envelope and stops armed timers.
func (t *Throttle) Close() {
	for source, s := range t.slots {
		if s.timer != nil {
			s.timer.Stop()
		}
		delete(t.slots, source)
	}
}
