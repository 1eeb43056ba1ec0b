package email

import (
	"context"
	"log/slog"
	"time"

	"nammabody/internal/adapters/http/perf"
)

// DefaultSlowSend is the threshold above which a send logs at WARN.
const DefaultSlowSend = 3 * time.Second

// TimedSender wraps a Sender to log slow sends and record them to a collector.
type TimedSender struct {
	next      Sender
	name      string
	collector *perf.Collector
	threshold time.Duration
}

// Compile-time check that *TimedSender satisfies Sender.
var _ Sender = (*TimedSender)(nil)

// NewTimedSender wraps next with timing instrumentation. name labels the transport.
// PRE: next is non-nil; collector may be nil
// POST: Returns a Sender that delegates to next
func NewTimedSender(next Sender, name string, collector *perf.Collector) *TimedSender {
	return &TimedSender{next: next, name: name, collector: collector, threshold: DefaultSlowSend}
}

// Send delegates to the wrapped sender and records its duration.
// PRE: see Sender
// POST: Result and error are those of the wrapped sender
func (t *TimedSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	start := time.Now()
	res, err := t.next.Send(ctx, req)
	elapsed := time.Since(start)
	durationMs := float64(elapsed.Microseconds()) / 1000.0

	if elapsed >= t.threshold {
		slog.Warn("slow_send", "transport", t.name, "duration_ms", durationMs, "failed", err != nil)
	} else {
		slog.Debug("send", "transport", t.name, "duration_ms", durationMs, "failed", err != nil)
	}

	if t.collector != nil {
		t.collector.Record(perf.Entry{
			Kind:       perf.KindSend,
			Path:       t.name,
			Failed:     err != nil,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
	return res, err
}
