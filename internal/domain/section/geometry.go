package section

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Length is a CSS length restricted to px and %.
type Length struct {
	Value   float64
	Percent bool
}

// Resolve converts l to pixels against the given reference size.
func (l Length) Resolve(ref float64) float64 {
	if l.Percent {
		return l.Value / 100 * ref
	}
	return l.Value
}

// Margin is the vertical part of a root margin; horizontal values are parsed and discarded.
type Margin struct {
	Top    Length
	Bottom Length
}

// ParseRootMargin parses CSS margin shorthand such as "-30% 0px -60% 0px".
// One to four values are accepted with the usual top/right/bottom/left expansion.
// PRE: none
// POST: Returns the vertical margin or an error naming the bad token
func ParseRootMargin(s string) (Margin, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Margin{}, nil
	}
	if len(fields) > 4 {
		return Margin{}, fmt.Errorf("root margin %q: too many values", s)
	}
	vals := make([]Length, len(fields))
	for i, f := range fields {
		l, err := parseLength(f)
		if err != nil {
			return Margin{}, fmt.Errorf("root margin %q: %w", s, err)
		}
		vals[i] = l
	}
	switch len(vals) {
	case 1:
		return Margin{Top: vals[0], Bottom: vals[0]}, nil
	case 2:
		return Margin{Top: vals[0], Bottom: vals[0]}, nil
	default:
		return Margin{Top: vals[0], Bottom: vals[2]}, nil
	}
}

func parseLength(tok string) (Length, error) {
	switch {
	case strings.HasSuffix(tok, "%"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(tok, "%"), 64)
		if err != nil {
			return Length{}, fmt.Errorf("bad length %q", tok)
		}
		return Length{Value: v, Percent: true}, nil
	case strings.HasSuffix(tok, "px"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(tok, "px"), 64)
		if err != nil {
			return Length{}, fmt.Errorf("bad length %q", tok)
		}
		return Length{Value: v}, nil
	case tok == "0":
		return Length{}, nil
	}
	return Length{}, fmt.Errorf("bad length %q: want px or %%", tok)
}

// Window returns the margin-adjusted observation window for a viewport height.
// Positive margins grow the window, negative margins shrink it.
func (m Margin) Window(viewportHeight float64) Rect {
	return Rect{
		Top:    -m.Top.Resolve(viewportHeight),
		Bottom: viewportHeight + m.Bottom.Resolve(viewportHeight),
	}
}

// Intersection computes how much of r is inside the observation window.
// PRE: viewportHeight >= 0
// POST: ratio is in [0, 1]
func Intersection(r Rect, viewportHeight float64, m Margin) (ratio float64, intersecting bool) {
	w := m.Window(viewportHeight)
	if w.Height() <= 0 {
		return 0, false
	}
	intersecting = r.Top < w.Bottom && r.Bottom > w.Top
	if !intersecting {
		return 0, false
	}
	h := r.Height()
	if h == 0 {
		return 1, true
	}
	overlap := math.Min(r.Bottom, w.Bottom) - math.Max(r.Top, w.Top)
	return math.Min(1, math.Max(0, overlap/h)), true
}

// ThresholdIndex returns how many thresholds ratio has reached.
func ThresholdIndex(ratio float64, thresholds []float64) int {
	sorted := append([]float64(nil), thresholds...)
	sort.Float64s(sorted)
	n := 0
	for _, t := range sorted {
		if ratio >= t {
			n++
		}
	}
	return n
}

// CrossedThreshold reports whether moving from prev to next fires an observation.
// An observation fires when the intersecting flag flips or a threshold is crossed.
func CrossedThreshold(prev, next Entry, thresholds []float64) bool {
	if prev.Intersecting != next.Intersecting {
		return true
	}
	return ThresholdIndex(prev.Ratio, thresholds) != ThresholdIndex(next.Ratio, thresholds)
}
