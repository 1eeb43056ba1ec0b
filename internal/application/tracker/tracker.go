// Package tracker reports which page section is active for navigation highlighting.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nammabody/internal/domain/section"
)

// Domain errors.
var (
	ErrNoSections  = errors.New("at least one section id is required")
	ErrEmptyID     = errors.New("section id must not be empty")
	ErrDuplicateID = errors.New("section ids must be unique")
)

// Viewport is the observation capability the tracker needs from a rendering engine.
type Viewport interface {
	// Resolve returns the subset of ids that have an element on the page, in input order.
	Resolve(ids []string) []string

	// Observe delivers intersection batches for ids until stop is called.
	// Batches may arrive on any goroutine but are delivered one at a time.
	Observe(ids []string, opts section.Options, fn func([]section.Entry)) (stop func(), err error)

	// OnScroll calls fn on every scroll tick until unsubscribe is called.
	OnScroll(fn func()) (unsubscribe func())

	// Bounds returns the current on-screen extent of each resolved id, in input order.
	Bounds(ids []string) []section.Bounds
}

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// AfterFunc schedules f on the runtime timer.
func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// Tracker holds the single active section id.
// INVARIANT: at most one id is active; "" only before the first observation.
type Tracker struct {
	vp    Viewport
	clock Clock

	mu       sync.Mutex
	ids      []string
	opts     section.Options
	resolved []string
	current  string
	running  bool
	gen      uint64 // bumped on every start/stop so stale callbacks are dropped

	stopObserve func()
	unsubscribe func()
	pending     Timer

	listeners    map[int]func(string)
	nextListener int
}

// New creates a stopped tracker for the given section ids.
// PRE: ids are non-empty and unique
// POST: Returns a tracker with zero-valued options filled from section.DefaultOptions
func New(vp Viewport, ids []string, opts section.Options, options ...Option) (*Tracker, error) {
	if err := validateIDs(ids); err != nil {
		return nil, err
	}
	t := &Tracker{
		vp:        vp,
		clock:     realClock{},
		ids:       append([]string(nil), ids...),
		opts:      opts.WithDefaults(),
		listeners: make(map[int]func(string)),
	}
	for _, o := range options {
		o(t)
	}
	return t, nil
}

func validateIDs(ids []string) error {
	if len(ids) == 0 {
		return ErrNoSections
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return ErrEmptyID
		}
		if seen[id] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
		seen[id] = true
	}
	return nil
}

// Current returns the active section id, if any.
func (t *Tracker) Current() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.current != ""
}

// OnChange registers fn to be called with each new active id.
// The returned func removes the listener.
func (t *Tracker) OnChange(fn func(id string)) (unsubscribe func()) {
	t.mu.Lock()
	key := t.nextListener
	t.nextListener++
	t.listeners[key] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, key)
		t.mu.Unlock()
	}
}

// Start resolves the sections and begins observing them.
// With no resolvable section the tracker stays idle and Start returns nil.
// PRE: none
// POST: Observation and scroll subscriptions are active, or an error is returned
func (t *Tracker) Start() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = true
	t.gen++
	gen := t.gen
	ids, opts := t.ids, t.opts
	t.mu.Unlock()

	resolved := t.vp.Resolve(ids)
	if len(resolved) == 0 {
		slog.Debug("section_event", "event", "tracker_idle", "ids", ids)
		return nil
	}

	t.mu.Lock()
	t.resolved = resolved
	t.mu.Unlock()

	unsubscribe := t.vp.OnScroll(func() { t.handleScroll(gen) })
	stop, err := t.vp.Observe(resolved, opts, func(entries []section.Entry) {
		t.handleEntries(gen, entries)
	})
	if err != nil {
		unsubscribe()
		t.mu.Lock()
		if t.gen == gen {
			t.running = false
			t.gen++
		}
		t.mu.Unlock()
		return fmt.Errorf("observe sections: %w", err)
	}

	t.mu.Lock()
	if t.gen != gen {
		// Stopped while subscribing.
		t.mu.Unlock()
		stop()
		unsubscribe()
		return nil
	}
	t.stopObserve = stop
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	slog.Debug("section_event", "event", "tracker_started", "sections", resolved)
	return nil
}

// Stop ends observation and cancels any pending scroll-end check.
// The last active id is kept.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.gen++
	stop, unsubscribe, pending := t.stopObserve, t.unsubscribe, t.pending
	t.stopObserve, t.unsubscribe, t.pending = nil, nil, nil
	t.resolved = nil
	t.mu.Unlock()

	if pending != nil {
		pending.Stop()
	}
	if stop != nil {
		stop()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Reset tears down observation and restarts with new ids and options.
// PRE: ids are non-empty and unique
// POST: Tracker is running against the new configuration
func (t *Tracker) Reset(ids []string, opts section.Options) error {
	if err := validateIDs(ids); err != nil {
		return err
	}
	t.Stop()
	t.mu.Lock()
	t.ids = append([]string(nil), ids...)
	t.opts = opts.WithDefaults()
	t.mu.Unlock()
	return t.Start()
}

// handleEntries applies one observation batch.
func (t *Tracker) handleEntries(gen uint64, entries []section.Entry) {
	if id, ok := section.PickActive(entries); ok {
		t.set(gen, id, "intersection")
		return
	}

	resolved, offset, ok := t.snapshot(gen)
	if !ok {
		return
	}
	if id, found := section.Nearest(t.vp.Bounds(resolved), offset); found {
		t.set(gen, id, "nearest")
	}
}

// handleScroll reschedules the scroll-end check; the last tick wins.
func (t *Tracker) handleScroll(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	if t.pending != nil {
		t.pending.Stop()
	}
	t.pending = t.clock.AfterFunc(t.opts.SettleDelay, func() { t.settle(gen) })
}

// settle forces the section straddling the header line once scrolling stops.
func (t *Tracker) settle(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.mu.Unlock()

	resolved, offset, ok := t.snapshot(gen)
	if !ok {
		return
	}
	if id, found := section.Straddling(t.vp.Bounds(resolved), offset); found {
		t.set(gen, id, "scroll_end")
	}
}

func (t *Tracker) snapshot(gen uint64) ([]string, float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return nil, 0, false
	}
	return t.resolved, t.opts.HeaderOffset, true
}

func (t *Tracker) set(gen uint64, id, source string) {
	t.mu.Lock()
	if gen != t.gen || id == t.current {
		t.mu.Unlock()
		return
	}
	prev := t.current
	t.current = id
	fns := make([]func(string), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	slog.Debug("section_event", "event", "active_changed", "from", prev, "to", id, "source", source)
	for _, fn := range fns {
		fn(id)
	}
}
