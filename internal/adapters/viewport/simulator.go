// Package viewport provides section observation backends for the tracker.
package viewport

import (
	"fmt"
	"sync"

	"nammabody/internal/domain/section"
)

// Block is a section laid out in document coordinates.
type Block struct {
	ID     string
	Top    float64
	Height float64
}

// Stack lays out sections top to bottom starting at y=0.
func Stack(ids []string, heights ...float64) []Block {
	blocks := make([]Block, 0, len(ids))
	y := 0.0
	for i, id := range ids {
		h := 0.0
		if i < len(heights) {
			h = heights[i]
		}
		blocks = append(blocks, Block{ID: id, Top: y, Height: h})
		y += h
	}
	return blocks
}

type simObserver struct {
	ids        []string
	margin     section.Margin
	thresholds []float64
	fn         func([]section.Entry)
	last       map[string]section.Entry
}

// Simulator is an in-memory page that computes intersections from geometry.
// It follows IntersectionObserver delivery rules: an initial batch for every
// target, then entries only for targets whose threshold bucket or
// intersecting state changed.
type Simulator struct {
	mu        sync.Mutex
	height    float64
	scrollY   float64
	blocks    map[string]Block
	observers map[int]*simObserver
	scrollFns map[int]func()
	nextKey   int
}

// NewSimulator creates a page with the given viewport height and sections.
func NewSimulator(viewportHeight float64, blocks []Block) *Simulator {
	s := &Simulator{
		height:    viewportHeight,
		blocks:    make(map[string]Block, len(blocks)),
		observers: make(map[int]*simObserver),
		scrollFns: make(map[int]func()),
	}
	for _, b := range blocks {
		s.blocks[b.ID] = b
	}
	return s
}

// Resolve returns ids that exist on the simulated page.
func (s *Simulator) Resolve(ids []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, id := range ids {
		if _, ok := s.blocks[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Observe registers an observer and delivers the initial batch synchronously.
// PRE: opts.RootMargin is valid CSS margin shorthand
// POST: fn receives batches until stop is called
func (s *Simulator) Observe(ids []string, opts section.Options, fn func([]section.Entry)) (func(), error) {
	margin, err := section.ParseRootMargin(opts.RootMargin)
	if err != nil {
		return nil, fmt.Errorf("simulator observe: %w", err)
	}

	s.mu.Lock()
	key := s.nextKey
	s.nextKey++
	obs := &simObserver{
		ids:        append([]string(nil), ids...),
		margin:     margin,
		thresholds: opts.Thresholds,
		fn:         fn,
		last:       make(map[string]section.Entry, len(ids)),
	}
	s.observers[key] = obs
	initial := s.measureLocked(obs, true)
	s.mu.Unlock()

	if len(initial) > 0 {
		fn(initial)
	}
	return func() {
		s.mu.Lock()
		delete(s.observers, key)
		s.mu.Unlock()
	}, nil
}

// OnScroll registers a scroll listener.
func (s *Simulator) OnScroll(fn func()) func() {
	s.mu.Lock()
	key := s.nextKey
	s.nextKey++
	s.scrollFns[key] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.scrollFns, key)
		s.mu.Unlock()
	}
}

// Bounds returns viewport-relative extents for ids.
func (s *Simulator) Bounds(ids []string) []section.Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []section.Bounds
	for _, id := range ids {
		if b, ok := s.blocks[id]; ok {
			out = append(out, section.Bounds{ID: id, Rect: s.rectLocked(b)})
		}
	}
	return out
}

// ScrollTo moves the viewport, fires scroll listeners, then delivers observations.
func (s *Simulator) ScrollTo(y float64) {
	s.scroll(y, true)
}

// JumpTo moves the viewport and fires scroll listeners without delivering
// observations, as when a programmatic jump finishes before the observer runs.
func (s *Simulator) JumpTo(y float64) {
	s.scroll(y, false)
}

// ScrollY returns the current scroll position.
func (s *Simulator) ScrollY() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrollY
}

// Top returns a section's document offset.
func (s *Simulator) Top(id string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	return b.Top, ok
}

func (s *Simulator) scroll(y float64, observe bool) {
	s.mu.Lock()
	s.scrollY = y
	scrollFns := make([]func(), 0, len(s.scrollFns))
	for _, fn := range s.scrollFns {
		scrollFns = append(scrollFns, fn)
	}
	type delivery struct {
		fn      func([]section.Entry)
		entries []section.Entry
	}
	var deliveries []delivery
	if observe {
		for _, obs := range s.observers {
			if entries := s.measureLocked(obs, false); len(entries) > 0 {
				deliveries = append(deliveries, delivery{obs.fn, entries})
			}
		}
	}
	s.mu.Unlock()

	for _, fn := range scrollFns {
		fn()
	}
	for _, d := range deliveries {
		d.fn(d.entries)
	}
}

func (s *Simulator) rectLocked(b Block) section.Rect {
	top := b.Top - s.scrollY
	return section.Rect{Top: top, Bottom: top + b.Height}
}

// measureLocked computes entries for obs; all targets when initial is set.
func (s *Simulator) measureLocked(obs *simObserver, initial bool) []section.Entry {
	var out []section.Entry
	for _, id := range obs.ids {
		b, ok := s.blocks[id]
		if !ok {
			continue
		}
		r := s.rectLocked(b)
		ratio, intersecting := section.Intersection(r, s.height, obs.margin)
		next := section.Entry{ID: id, Intersecting: intersecting, Ratio: ratio, Top: r.Top}
		prev, seen := obs.last[id]
		if initial || !seen || section.CrossedThreshold(prev, next, obs.thresholds) {
			out = append(out, next)
			obs.last[id] = next
		}
	}
	return out
}
