package metering

import (
	"context"
	"testing"
	"time"
)

func TestCollectorFlushesAtThreshold(t *testing.T) {
	sink := NewMemorySink()
	c := NewCollector(sink, 2)
	ctx := context.Background()

	_ = c.Record(ctx, Event{TenantID: "t1", Model: "orders", Kind: "run", OccurredAt: time.Unix(1, 0)})
	if c.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1 before threshold", c.Pending())
	}
	_ = c.Record(ctx, Event{TenantID: "t1", Model: "orders", Kind: "run", OccurredAt: time.Unix(2, 0)})
	if c.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0 after threshold flush", c.Pending())
	}
	if len(sink.Events()) != 2 {
		t.Fatalf("sink got %d events, want 2", len(sink.Events()))
	}
}

func TestCollectorScrubsDetailBeforeFlush(t *testing.T) {
	sink := NewMemorySink()
	c := NewCollector(sink, 1)
	ctx := context.Background()

	_ = c.Record(ctx, Event{
		TenantID: "t1", Model: "orders", Kind: "run", OccurredAt: time.Unix(1, 0),
		Detail: map[string]interface{}{"email": "alice@example.com", "rows": 10},
	})
	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("want 1 event, got %d", len(events))
	}
	if events[0].Detail["email"] == "alice@example.com" {
		t.Error("expected email to be scrubbed before reaching the sink")
	}
}

func TestCollectorExplicitFlushOnTimer(t *testing.T) {
	sink := NewMemorySink()
	c := NewCollector(sink, 0) // size-triggered flush disabled
	ctx := context.Background()
	_ = c.Record(ctx, Event{TenantID: "t1", Model: "orders", Kind: "run", OccurredAt: time.Unix(1, 0)})
	if c.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1 with size-flush disabled", c.Pending())
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Pending() != 0 {
		t.Error("expected buffer empty after explicit Flush")
	}
}

func TestProfilerComputesPercentiles(t *testing.T) {
	p := NewProfiler()
	for i := 1; i <= 100; i++ {
		p.Record("dag.build", time.Duration(i)*time.Millisecond)
	}
	pct := p.Percentiles("dag.build")
	if pct.Count != 100 {
		t.Fatalf("Count = %d, want 100", pct.Count)
	}
	if pct.P50 < 45*time.Millisecond || pct.P50 > 55*time.Millisecond {
		t.Errorf("P50 = %v, want close to 50ms", pct.P50)
	}
	if pct.P99 < 95*time.Millisecond {
		t.Errorf("P99 = %v, want close to the tail", pct.P99)
	}
}

func TestProfilerWrapRecordsDurationAndPropagatesError(t *testing.T) {
	p := NewProfiler()
	sentinel := context.DeadlineExceeded
	err := p.Wrap("sql.normalize", func() error {
		time.Sleep(time.Millisecond)
		return sentinel
	})
	if err != sentinel {
		t.Errorf("Wrap() error = %v, want sentinel propagated", err)
	}
	if p.Percentiles("sql.normalize").Count != 1 {
		t.Error("expected one sample recorded despite the wrapped error")
	}
}

func TestProfilerEmptyOpReturnsZeroCount(t *testing.T) {
	p := NewProfiler()
	pct := p.Percentiles("never.called")
	if pct.Count != 0 {
		t.Errorf("Count = %d, want 0 for an unrecorded op", pct.Count)
	}
}

func TestAggregatorRollsUpAndPrunesRawEvents(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	store.Seed(
		Event{TenantID: "t1", Model: "orders", OccurredAt: now.Add(-40 * 24 * time.Hour), RowsOut: 100, DurationMS: 50},
		Event{TenantID: "t1", Model: "orders", OccurredAt: now.Add(-40*24*time.Hour + time.Minute), RowsOut: 200, DurationMS: 70},
		Event{TenantID: "t1", Model: "customers", OccurredAt: now.Add(-2 * time.Hour), RowsOut: 5, DurationMS: 10},
	)

	agg := NewAggregator(store)
	if err := agg.RunOnce(context.Background(), now); err != nil {
		t.Fatal(err)
	}

	hourly := store.HourlyRollups()
	if len(hourly) != 2 {
		t.Fatalf("hourly rollups = %d, want 2 distinct (tenant,model,hour) buckets", len(hourly))
	}
	daily := store.DailyRollups()
	if len(daily) != 2 {
		t.Fatalf("daily rollups = %d, want 2 distinct (tenant,model,day) buckets", len(daily))
	}

	if store.RawCount() != 1 {
		t.Errorf("RawCount() = %d, want 1 (the 40-day-old events pruned, the 2-hour-old event kept under the 30-day raw retention)", store.RawCount())
	}
}

func TestAggregatorKeepsRawEventsWithinRetention(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	store.Seed(Event{TenantID: "t1", Model: "orders", OccurredAt: now.Add(-time.Hour), RowsOut: 1})

	agg := NewAggregator(store)
	if err := agg.RunOnce(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	if store.RawCount() != 1 {
		t.Errorf("RawCount() = %d, want 1 retained within the 30-day window", store.RawCount())
	}
}
