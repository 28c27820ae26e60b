// Package metering buffers usage/telemetry events, scrubs them of PII
// before they leave the process, profiles hot paths with bounded
// percentile tracking, and runs periodic retention aggregation.
package metering

import (
	"context"
	"sync"
	"time"

	"github.com/ironlayer/ironlayer/internal/security"
)

// Event is one usage/telemetry record: a run, an advisory call, a webhook
// delivery, or similar. Detail is scrubbed of PII/secrets before Flush
// hands it to a Sink.
type Event struct {
	TenantID   string
	Model      string
	Kind       string // e.g. "run", "advisory_call", "webhook_delivery"
	OccurredAt time.Time
	DurationMS int64
	RowsOut    int64
	Detail     map[string]interface{}
}

// Sink receives a scrubbed batch of events. This package provides FileSink
// (JSON lines appended to a local file) and MemorySink (in-process); it
// contains no database-backed sink.
type Sink interface {
	Write(ctx context.Context, events []Event) error
}

// Collector buffers events under a single mutex and flushes them to a Sink
// either when the buffer reaches a size threshold or when Flush is called
// by a timer goroutine. Swapping the buffer out under lock keeps hold time
// minimal, matching the single-mutex discipline used elsewhere (rate
// limiter, response cache).
type Collector struct {
	mu        sync.Mutex
	buffer    []Event
	threshold int
	sink      Sink
}

// NewCollector constructs a Collector flushing to sink once the buffer
// reaches threshold events (a zero or negative threshold disables
// size-triggered flush; only explicit/timer Flush calls apply).
func NewCollector(sink Sink, threshold int) *Collector {
	return &Collector{sink: sink, threshold: threshold}
}

// Record scrubs event.Detail and appends it to the buffer, flushing
// immediately if the size threshold is reached.
func (c *Collector) Record(ctx context.Context, event Event) error {
	event.Detail = security.ScrubMap(event.Detail)

	c.mu.Lock()
	c.buffer = append(c.buffer, event)
	shouldFlush := c.threshold > 0 && len(c.buffer) >= c.threshold
	c.mu.Unlock()

	if shouldFlush {
		return c.Flush(ctx)
	}
	return nil
}

// Flush swaps the buffer out under lock and writes it to the sink outside
// the lock, so a slow sink never blocks concurrent Record calls.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	return c.sink.Write(ctx, pending)
}

// RunFlushLoop periodically calls Flush until ctx is cancelled, the
// background timer discipline described for the metering flusher.
func (c *Collector) RunFlushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = c.Flush(context.Background())
			return
		case <-ticker.C:
			_ = c.Flush(ctx)
		}
	}
}

// Pending returns the number of buffered, not-yet-flushed events.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}
