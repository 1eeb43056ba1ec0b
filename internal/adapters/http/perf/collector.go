// Package perf keeps recent relay timings in memory for the /debug/perf snapshot.
package perf

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 2048

// EntryKind distinguishes inbound requests from outbound mail sends.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindSend
)

// Entry is a single timing record stored in the ring buffer.
type Entry struct {
	Kind       EntryKind
	Path       string // "METHOD /path" for requests, transport name for sends
	StatusCode int    // HTTP status (0 for sends)
	Failed     bool   // send returned an error
	Reason     string // failure reason noted by the handler, if any
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring buffer for timing entries.
// When full, oldest entries are overwritten. Aggregation happens only on read.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	pos     int
	count   int64 // total entries ever written
}

// NewCollector creates a collector with the given ring buffer capacity.
// PRE: none; size <= 0 selects DefaultRingSize
// POST: Returns a ready-to-use collector with pre-allocated storage
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Record appends an entry to the ring buffer.
// PRE: e.Timestamp is set
// POST: Entry stored; if buffer full, oldest entry overwritten
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % c.size
	c.mu.Unlock()
	atomic.AddInt64(&c.count, 1)
}

// TotalRecorded returns the total number of entries ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return atomic.LoadInt64(&c.count)
}

// Snapshot holds aggregated performance data computed on read.
type Snapshot struct {
	TotalRecorded int64          `json:"totalRecorded"`
	Requests      int            `json:"requests"`
	RequestP50Ms  float64        `json:"requestP50Ms"`
	RequestP95Ms  float64        `json:"requestP95Ms"`
	RequestP99Ms  float64        `json:"requestP99Ms"`
	StatusClasses map[string]int `json:"statusClasses"` // "2xx", "4xx", "5xx"
	Reasons       map[string]int `json:"reasons"`       // noted failure reasons, e.g. "rate_limited"
	Sends         int            `json:"sends"`
	SendFailures  int            `json:"sendFailures"`
	SendP95Ms     float64        `json:"sendP95Ms"`
	SlowestPaths  []PathStat     `json:"slowestPaths"`
}

// PathStat aggregates timing for a single request path or transport.
type PathStat struct {
	Path    string  `json:"path"`
	AvgMs   float64 `json:"avgMs"`
	MaxMs   float64 `json:"maxMs"`
	Count   int     `json:"count"`
	TotalMs float64 `json:"-"`
}

// Snapshot computes aggregated stats for entries recorded at or after since.
// PRE: topN >= 0
// POST: Returns percentiles, status class counts and the topN slowest paths
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := make([]Entry, c.size)
	copy(buf, c.entries)
	c.mu.Unlock()

	var requestDurations, sendDurations []float64
	paths := make(map[string]*PathStat)
	snap := Snapshot{
		TotalRecorded: c.TotalRecorded(),
		StatusClasses: make(map[string]int),
		Reasons:       make(map[string]int),
	}

	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		switch e.Kind {
		case KindRequest:
			requestDurations = append(requestDurations, e.DurationMs)
			snap.StatusClasses[statusClass(e.StatusCode)]++
			if e.Reason != "" {
				snap.Reasons[e.Reason]++
			}
			s, ok := paths[e.Path]
			if !ok {
				s = &PathStat{Path: e.Path}
				paths[e.Path] = s
			}
			s.Count++
			s.TotalMs += e.DurationMs
			if e.DurationMs > s.MaxMs {
				s.MaxMs = e.DurationMs
			}
		case KindSend:
			sendDurations = append(sendDurations, e.DurationMs)
			if e.Failed {
				snap.SendFailures++
			}
		}
	}

	for _, s := range paths {
		s.AvgMs = s.TotalMs / float64(s.Count)
	}
	snap.SlowestPaths = topByAvg(paths, topN)

	snap.Requests = len(requestDurations)
	if len(requestDurations) > 0 {
		sort.Float64s(requestDurations)
		snap.RequestP50Ms = percentile(requestDurations, 50)
		snap.RequestP95Ms = percentile(requestDurations, 95)
		snap.RequestP99Ms = percentile(requestDurations, 99)
	}
	snap.Sends = len(sendDurations)
	if len(sendDurations) > 0 {
		sort.Float64s(sendDurations)
		snap.SendP95Ms = percentile(sendDurations, 95)
	}
	return snap
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}

// percentile returns the p-th percentile from a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// topByAvg returns the top N paths sorted by average duration (descending).
func topByAvg(stats map[string]*PathStat, n int) []PathStat {
	list := make([]PathStat, 0, len(stats))
	for _, s := range stats {
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].AvgMs != list[j].AvgMs {
			return list[i].AvgMs > list[j].AvgMs
		}
		return list[i].Path < list[j].Path
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}
