package metering

import (
	"context"
	"time"
)

// Default retention windows: raw events are kept 30 days, hourly rollups
// 365 days, daily rollups indefinitely (RunOnce never deletes daily rows).
const (
	DefaultRawRetention    = 30 * 24 * time.Hour
	DefaultHourlyRetention = 365 * 24 * time.Hour
)

// Rollup is one aggregated (tenant, model, bucket) row: bucket is the
// truncated hour or day this rollup covers.
type Rollup struct {
	TenantID   string
	Model      string
	Bucket     time.Time
	EventCount int64
	TotalRows  int64
	DurationMSSum int64
}

// Store is the persistence boundary RunOnce aggregates against. A
// production implementation backs this with the state store's tables; an
// in-memory implementation suffices for tests and local mode.
type Store interface {
	RawEventsBefore(ctx context.Context, cutoff time.Time) ([]Event, error)
	DeleteRawEventsBefore(ctx context.Context, cutoff time.Time) error

	WriteHourlyRollups(ctx context.Context, rollups []Rollup) error
	DeleteHourlyRollupsBefore(ctx context.Context, cutoff time.Time) error

	WriteDailyRollups(ctx context.Context, rollups []Rollup) error
}

// Aggregator rolls raw events up into hourly and daily buckets and prunes
// rows past their retention window. It holds no internal state: every
// invocation is driven entirely by RunOnce's now argument, so tests and
// scheduled cron runs behave identically given the same inputs.
type Aggregator struct {
	store          Store
	rawRetention   time.Duration
	hourlyRetention time.Duration
}

// NewAggregator constructs an Aggregator with the default retention
// windows.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store, rawRetention: DefaultRawRetention, hourlyRetention: DefaultHourlyRetention}
}

// WithRetention overrides the raw/hourly retention windows (daily rollups
// are always retained indefinitely).
func (a *Aggregator) WithRetention(raw, hourly time.Duration) *Aggregator {
	a.rawRetention = raw
	a.hourlyRetention = hourly
	return a
}

// RunOnce performs one aggregation pass as of now: it reads every raw
// event recorded before now, rolls it into hourly and daily buckets,
// writes both, then prunes raw events past rawRetention and
// hourly rollups past hourlyRetention. Safe to call repeatedly (e.g. from
// a cron schedule); re-aggregating already-rolled-up events is idempotent
// because rollups are keyed by (tenant, model, bucket) and a fresh RunOnce
// always recomputes bucket totals from the still-present raw rows.
func (a *Aggregator) RunOnce(ctx context.Context, now time.Time) error {
	events, err := a.store.RawEventsBefore(ctx, now)
	if err != nil {
		return err
	}

	hourly := aggregate(events, now.Truncate(time.Hour))
	daily := aggregateDaily(events)

	if len(hourly) > 0 {
		if err := a.store.WriteHourlyRollups(ctx, hourly); err != nil {
			return err
		}
	}
	if len(daily) > 0 {
		if err := a.store.WriteDailyRollups(ctx, daily); err != nil {
			return err
		}
	}

	if err := a.store.DeleteRawEventsBefore(ctx, now.Add(-a.rawRetention)); err != nil {
		return err
	}
	return a.store.DeleteHourlyRollupsBefore(ctx, now.Add(-a.hourlyRetention))
}

func aggregate(events []Event, _ time.Time) []Rollup {
	return aggregateByBucket(events, func(t time.Time) time.Time { return t.Truncate(time.Hour) })
}

func aggregateDaily(events []Event) []Rollup {
	return aggregateByBucket(events, func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.UTC().Location())
	})
}

type rollupKey struct {
	tenantID string
	model    string
	bucket   time.Time
}

func aggregateByBucket(events []Event, bucketOf func(time.Time) time.Time) []Rollup {
	byKey := make(map[rollupKey]*Rollup)
	for _, e := range events {
		key := rollupKey{tenantID: e.TenantID, model: e.Model, bucket: bucketOf(e.OccurredAt.UTC())}
		r, ok := byKey[key]
		if !ok {
			r = &Rollup{TenantID: key.tenantID, Model: key.model, Bucket: key.bucket}
			byKey[key] = r
		}
		r.EventCount++
		r.TotalRows += e.RowsOut
		r.DurationMSSum += e.DurationMS
	}
	out := make([]Rollup, 0, len(byKey))
	for _, r := range byKey {
		out = append(out, *r)
	}
	return out
}
