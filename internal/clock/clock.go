// Package clock provides the timer primitives the dashboard schedules its
// transitions and polling on, with a simulated implementation for tests.
package clock

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was already stopped.
	Stop() bool
}

// Clock schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real returns a Clock backed by the runtime timers.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// interval re-arms a one-shot timer after every firing.
type interval struct {
	clock  Clock
	period time.Duration
	fn     func()
	group  *Group

	mu      sync.Mutex
	current Timer
	stopped bool
}

// Every calls f every d until the returned Timer is stopped. The first call
// happens after d, not immediately. On a Group the interval belongs to the
// group and StopAll ends it.
func Every(c Clock, d time.Duration, f func()) Timer {
	if g, ok := c.(*Group); ok {
		return g.Every(d, f)
	}
	return startInterval(&interval{clock: c, period: d, fn: f})
}

func startInterval(iv *interval) *interval {
	iv.mu.Lock()
	if !iv.stopped {
		iv.current = iv.clock.AfterFunc(iv.period, iv.fire)
	}
	iv.mu.Unlock()
	return iv
}

func (iv *interval) fire() {
	iv.mu.Lock()
	if iv.stopped {
		iv.mu.Unlock()
		return
	}
	// Re-arm before running so a slow callback does not drift the schedule.
	iv.current = iv.clock.AfterFunc(iv.period, iv.fire)
	iv.mu.Unlock()

	iv.fn()
}

// Stop ends the interval. fire re-arms under the same lock, so no tick is
// scheduled after Stop returns.
func (iv *interval) Stop() bool {
	iv.mu.Lock()
	if iv.stopped {
		iv.mu.Unlock()
		return false
	}
	iv.stopped = true
	if iv.current != nil {
		iv.current.Stop()
	}
	iv.mu.Unlock()

	if iv.group != nil {
		iv.group.forgetInterval(iv)
	}
	return true
}

// Group is a Clock that remembers the timers it created so they can all be
// cancelled at once.
type Group struct {
	clock Clock

	mu        sync.Mutex
	timers    map[*groupTimer]struct{}
	intervals map[*interval]struct{}
}

// NewGroup wraps c.
func NewGroup(c Clock) *Group {
	return &Group{
		clock:     c,
		timers:    make(map[*groupTimer]struct{}),
		intervals: make(map[*interval]struct{}),
	}
}

type groupTimer struct {
	group *Group
	inner Timer
}

func (t *groupTimer) Stop() bool {
	t.group.forget(t)
	return t.inner.Stop()
}

// Now returns the wrapped clock's time.
func (g *Group) Now() time.Time {
	return g.clock.Now()
}

// AfterFunc schedules f on the wrapped clock and tracks the timer until it
// fires or is stopped.
func (g *Group) AfterFunc(d time.Duration, f func()) Timer {
	t := &groupTimer{group: g}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.timers[t] = struct{}{}
	t.inner = g.clock.AfterFunc(d, func() {
		g.forget(t)
		f()
	})
	return t
}

// Every calls f every d on the group's timers until the returned Timer or
// StopAll stops it.
func (g *Group) Every(d time.Duration, f func()) Timer {
	iv := &interval{clock: g, period: d, fn: f, group: g}

	g.mu.Lock()
	g.intervals[iv] = struct{}{}
	g.mu.Unlock()

	return startInterval(iv)
}

// StopAll cancels every live timer and interval created through the group.
// An interval whose callback is running re-arms under its own lock, which
// Stop also takes, so that tick is cancelled as well.
func (g *Group) StopAll() {
	g.mu.Lock()
	intervals := make([]*interval, 0, len(g.intervals))
	for iv := range g.intervals {
		intervals = append(intervals, iv)
	}
	timers := make([]*groupTimer, 0, len(g.timers))
	for t := range g.timers {
		timers = append(timers, t)
	}
	g.intervals = make(map[*interval]struct{})
	g.timers = make(map[*groupTimer]struct{})
	g.mu.Unlock()

	for _, iv := range intervals {
		iv.Stop()
	}
	for _, t := range timers {
		t.inner.Stop()
	}
}

// Live returns the number of tracked timers that have neither fired nor
// been stopped.
func (g *Group) Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.timers)
}

func (g *Group) forgetInterval(iv *interval) {
	g.mu.Lock()
	delete(g.intervals, iv)
	g.mu.Unlock()
}

func (g *Group) forget(t *groupTimer) {
	g.mu.Lock()
	delete(g.timers, t)
	g.mu.Unlock()
}
