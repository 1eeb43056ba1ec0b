package section

import (
	"math"
	"time"
)

// NavSectionIDs are the landing page sections linked from the navigation, in page order.
var NavSectionIDs = []string{"about", "transformations", "programs", "contact"}

// Tuning defaults.
const (
	// DefaultHeaderOffset is the sticky header height in CSS pixels.
	DefaultHeaderOffset = 100.0
	// NavScrollOffset is where navigation links place a section's top when jumping to it.
	NavScrollOffset = 80.0
	// DefaultSettleDelay is how long scrolling must pause before the straddle check.
	DefaultSettleDelay = 150 * time.Millisecond
	// TieTolerance is the ratio difference under which position decides.
	TieTolerance = 0.1
)

// Options configures observation of sections.
type Options struct {
	RootMargin   string        // CSS margin shorthand applied to the viewport
	Thresholds   []float64     // intersection ratios at which observations fire
	HeaderOffset float64       // reference line below the viewport top
	SettleDelay  time.Duration // scroll-end debounce
}

// DefaultOptions returns the tracker defaults.
func DefaultOptions() Options {
	return Options{
		RootMargin:   "-25% 0px -60% 0px",
		Thresholds:   []float64{0.1, 0.2, 0.35, 0.5},
		HeaderOffset: DefaultHeaderOffset,
		SettleDelay:  DefaultSettleDelay,
	}
}

// NavOptions returns the options the landing page navigation uses.
func NavOptions() Options {
	o := DefaultOptions()
	o.RootMargin = "-30% 0px -60% 0px"
	o.Thresholds = []float64{0.1, 0.25}
	return o
}

// WithDefaults fills zero-valued fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.RootMargin == "" {
		o.RootMargin = d.RootMargin
	}
	if len(o.Thresholds) == 0 {
		o.Thresholds = d.Thresholds
	}
	if o.HeaderOffset == 0 {
		o.HeaderOffset = d.HeaderOffset
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = d.SettleDelay
	}
	return o
}

// Rect is a vertical extent relative to the viewport top.
type Rect struct {
	Top    float64
	Bottom float64
}

// Height returns the extent's height, never negative.
func (r Rect) Height() float64 {
	return math.Max(0, r.Bottom-r.Top)
}

// Bounds pairs a section id with its on-screen extent.
type Bounds struct {
	ID   string
	Rect Rect
}

// Entry is one intersection observation for a section.
type Entry struct {
	ID           string
	Intersecting bool
	Ratio        float64
	Top          float64 // bounding rect top relative to the viewport
}

// PickActive chooses the active section from an observation batch.
// The highest ratio R is found among intersecting entries; every entry with a
// ratio within TieTolerance of R is a candidate, and the candidate highest on
// screen wins. Equal tops keep input order.
// PRE: none
// POST: Returns ("", false) when no entry intersects
func PickActive(entries []Entry) (string, bool) {
	maxRatio := math.Inf(-1)
	for _, e := range entries {
		if e.Intersecting && e.Ratio > maxRatio {
			maxRatio = e.Ratio
		}
	}
	if math.IsInf(maxRatio, -1) {
		return "", false
	}

	var best *Entry
	for i := range entries {
		e := &entries[i]
		if !e.Intersecting || maxRatio-e.Ratio > TieTolerance {
			continue
		}
		if best == nil || e.Top < best.Top {
			best = e
		}
	}
	return best.ID, true
}

// Nearest returns the section whose top is closest to offset.
// PRE: none
// POST: Returns ("", false) only when bounds is empty; first wins on equal distance
func Nearest(bounds []Bounds, offset float64) (string, bool) {
	id, found := "", false
	best := math.Inf(1)
	for _, b := range bounds {
		d := math.Abs(b.Rect.Top - offset)
		if d < best {
			id, best, found = b.ID, d, true
		}
	}
	return id, found
}

// Straddling returns the first section whose extent contains the offset line.
func Straddling(bounds []Bounds, offset float64) (string, bool) {
	for _, b := range bounds {
		if b.Rect.Top <= offset && b.Rect.Bottom >= offset {
			return b.ID, true
		}
	}
	return "", false
}
