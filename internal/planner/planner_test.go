package planner

import (
	"context"
	"testing"
	"time"

	"github.com/ironlayer/ironlayer/internal/collab/clustertemplate"
	"github.com/ironlayer/ironlayer/internal/modeldef"
)

func mustParse(t *testing.T, name, content string) *modeldef.Model {
	t.Helper()
	m, err := modeldef.Parse(name, content)
	if err != nil {
		t.Fatalf("Parse(%s) error: %v", name, err)
	}
	return m
}

func repoWith(t *testing.T, models ...*modeldef.Model) *modeldef.Repository {
	t.Helper()
	r := modeldef.NewRepository("analytics")
	for _, m := range models {
		if err := r.Add(m); err != nil {
			t.Fatalf("Add(%s) error: %v", m.Name, err)
		}
	}
	return r
}

func TestBuildSkipsUnchangedAndElidesCosmeticChanges(t *testing.T) {
	baseOrders := mustParse(t, "orders", "-- materialization: table\nSELECT id, amount FROM raw.orders")
	baseRevenue := mustParse(t, "revenue", "-- materialization: table\nSELECT id, amount AS revenue FROM ref('orders')")
	base := repoWith(t, baseOrders, baseRevenue)

	targetOrders := mustParse(t, "orders", "-- materialization: table\nSELECT   id, amount FROM raw.orders") // cosmetic whitespace change
	targetRevenue := mustParse(t, "revenue", "-- materialization: table\nSELECT id, amount AS revenue FROM ref('orders')") // unchanged
	target := repoWith(t, targetOrders, targetRevenue)

	b := NewBuilder()
	plan, err := b.Build(context.Background(), Input{
		Base:        Snapshot{Revision: "base-sha", Models: base},
		Target:      Snapshot{Revision: "target-sha", Models: target},
		ClusterSize: clustertemplate.Small,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if len(plan.Steps) != 0 {
		t.Errorf("Steps = %v, want empty (cosmetic change only, nothing downstream)", plan.Steps)
	}
	if len(plan.Summary.CosmeticChangesSkipped) != 1 || plan.Summary.CosmeticChangesSkipped[0] != "orders" {
		t.Errorf("CosmeticChangesSkipped = %v, want [orders]", plan.Summary.CosmeticChangesSkipped)
	}
	if len(plan.Summary.ModelsChanged) != 0 {
		t.Errorf("ModelsChanged = %v, want empty", plan.Summary.ModelsChanged)
	}
}

func TestBuildPropagatesChangeForward(t *testing.T) {
	baseOrders := mustParse(t, "orders", "-- materialization: table\nSELECT id, amount FROM raw.orders")
	baseRevenue := mustParse(t, "revenue", "-- materialization: table\nSELECT id, amount AS revenue FROM ref('orders')")
	base := repoWith(t, baseOrders, baseRevenue)

	// Removing "amount" is a breaking change (revenue reads it via
	// ref('orders')), so it must seed forward-closure propagation.
	targetOrders := mustParse(t, "orders", "-- materialization: table\nSELECT id FROM raw.orders")
	targetRevenue := mustParse(t, "revenue", "-- materialization: table\nSELECT id, amount AS revenue FROM ref('orders')")
	target := repoWith(t, targetOrders, targetRevenue)

	b := NewBuilder()
	plan, err := b.Build(context.Background(), Input{
		Base:        Snapshot{Revision: "base-sha", Models: base},
		Target:      Snapshot{Revision: "target-sha", Models: target},
		ClusterSize: clustertemplate.Small,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if len(plan.Steps) != 2 {
		t.Fatalf("Steps = %v, want 2 (orders directly changed, revenue downstream)", plan.Steps)
	}
	if plan.Steps[0].Model != "orders" {
		t.Errorf("Steps[0].Model = %s, want orders (dependency-first order)", plan.Steps[0].Model)
	}
	if plan.Steps[1].Model != "revenue" {
		t.Errorf("Steps[1].Model = %s, want revenue", plan.Steps[1].Model)
	}
	if plan.Steps[1].ParallelGroup <= plan.Steps[0].ParallelGroup {
		t.Errorf("revenue ParallelGroup %d should exceed orders' %d", plan.Steps[1].ParallelGroup, plan.Steps[0].ParallelGroup)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	base := repoWith(t, mustParse(t, "orders", "-- materialization: table\nSELECT id FROM raw.orders"))
	target := repoWith(t, mustParse(t, "orders", "-- materialization: table\nSELECT id, amount FROM raw.orders"))

	b := NewBuilder()
	in := Input{
		Base:        Snapshot{Revision: "base-sha", Models: base},
		Target:      Snapshot{Revision: "target-sha", Models: target},
		ClusterSize: clustertemplate.Small,
	}

	plan1, err := b.Build(context.Background(), in)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	base2 := repoWith(t, mustParse(t, "orders", "-- materialization: table\nSELECT id FROM raw.orders"))
	target2 := repoWith(t, mustParse(t, "orders", "-- materialization: table\nSELECT id, amount FROM raw.orders"))
	plan2, err := b.Build(context.Background(), Input{
		Base:        Snapshot{Revision: "base-sha", Models: base2},
		Target:      Snapshot{Revision: "target-sha", Models: target2},
		ClusterSize: clustertemplate.Small,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if plan1.PlanID != plan2.PlanID {
		t.Errorf("PlanID not deterministic: %s != %s", plan1.PlanID, plan2.PlanID)
	}
	if plan1.Steps[0].StepID != plan2.Steps[0].StepID {
		t.Errorf("StepID not deterministic: %s != %s", plan1.Steps[0].StepID, plan2.Steps[0].StepID)
	}
}

func TestBuildRejectsUnresolvedRef(t *testing.T) {
	base := modeldef.NewRepository("analytics")
	target := repoWith(t, mustParse(t, "revenue", "-- materialization: table\nSELECT id FROM ref('missing')"))

	b := NewBuilder()
	_, err := b.Build(context.Background(), Input{
		Base:        Snapshot{Revision: "base-sha", Models: base},
		Target:      Snapshot{Revision: "target-sha", Models: target},
		ClusterSize: clustertemplate.Small,
	})
	if err == nil {
		t.Fatal("expected unresolved ref error")
	}
}

func TestBuildClassifiesIncrementalRunType(t *testing.T) {
	base := modeldef.NewRepository("analytics")
	target := repoWith(t, mustParse(t, "events", "-- materialization: incremental\n-- time_column: event_ts\nSELECT id, event_ts FROM raw.events"))

	b := NewBuilder()
	plan, err := b.Build(context.Background(), Input{
		Base:        Snapshot{Revision: "base-sha", Models: base},
		Target:      Snapshot{Revision: "target-sha", Models: target},
		ClusterSize: clustertemplate.Small,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("Steps = %v, want 1", plan.Steps)
	}
	if plan.Steps[0].RunType != RunTypeIncremental {
		t.Errorf("RunType = %s, want INCREMENTAL", plan.Steps[0].RunType)
	}
}

func TestBuildDoesNotPropagateNonBreakingChange(t *testing.T) {
	baseOrders := mustParse(t, "orders", "-- materialization: table\nSELECT id, amount FROM raw.orders")
	baseRevenue := mustParse(t, "revenue", "-- materialization: table\nSELECT id, amount AS revenue FROM ref('orders')")
	base := repoWith(t, baseOrders, baseRevenue)

	// Adding "tax" is additive, non_breaking; it must not pull revenue into
	// the plan even though revenue depends on orders.
	targetOrders := mustParse(t, "orders", "-- materialization: table\nSELECT id, amount, tax FROM raw.orders")
	targetRevenue := mustParse(t, "revenue", "-- materialization: table\nSELECT id, amount AS revenue FROM ref('orders')")
	target := repoWith(t, targetOrders, targetRevenue)

	b := NewBuilder()
	plan, err := b.Build(context.Background(), Input{
		Base:        Snapshot{Revision: "base-sha", Models: base},
		Target:      Snapshot{Revision: "target-sha", Models: target},
		ClusterSize: clustertemplate.Small,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if len(plan.Steps) != 1 || plan.Steps[0].Model != "orders" {
		t.Fatalf("Steps = %v, want exactly [orders] (non_breaking change must not propagate)", plan.Steps)
	}
}

func TestBuildForcesFullRefreshForBreakingChangeOnIncrementalModel(t *testing.T) {
	baseEvents := mustParse(t, "events", "-- materialization: incremental\n-- time_column: event_ts\nSELECT id, event_ts, amount FROM raw.events")
	base := repoWith(t, baseEvents)

	targetEvents := mustParse(t, "events", "-- materialization: incremental\n-- time_column: event_ts\nSELECT id, event_ts FROM raw.events")
	target := repoWith(t, targetEvents)

	b := NewBuilder()
	plan, err := b.Build(context.Background(), Input{
		Base:        Snapshot{Revision: "base-sha", Models: base},
		Target:      Snapshot{Revision: "target-sha", Models: target},
		ClusterSize: clustertemplate.Small,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("Steps = %v, want 1", plan.Steps)
	}
	if plan.Steps[0].RunType != RunTypeFull {
		t.Errorf("RunType = %s, want FULL (breaking change mandates full refresh even for incremental models)", plan.Steps[0].RunType)
	}
	if plan.Steps[0].InputRange != nil {
		t.Errorf("InputRange = %v, want nil for a FULL step", plan.Steps[0].InputRange)
	}
}

func TestBuildPopulatesInputRangeForIncrementalStep(t *testing.T) {
	baseEvents := mustParse(t, "events", "-- materialization: incremental\n-- time_column: event_ts\nSELECT id, event_ts FROM raw.events")
	base := repoWith(t, baseEvents)

	targetEvents := mustParse(t, "events", "-- materialization: incremental\n-- time_column: event_ts\nSELECT id, event_ts, region FROM raw.events")
	target := repoWith(t, targetEvents)

	watermark := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	b := NewBuilder()
	plan, err := b.Build(context.Background(), Input{
		Base:        Snapshot{Revision: "base-sha", Models: base},
		Target:      Snapshot{Revision: "target-sha", Models: target},
		ClusterSize: clustertemplate.Small,
		Watermarks:  map[string]time.Time{"events": watermark},
		Now:         now,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("Steps = %v, want 1", plan.Steps)
	}
	step := plan.Steps[0]
	if step.RunType != RunTypeIncremental {
		t.Fatalf("RunType = %s, want INCREMENTAL (additive change on an incremental model)", step.RunType)
	}
	if step.InputRange == nil {
		t.Fatal("InputRange = nil, want a populated range")
	}
	wantStart := watermark.AddDate(0, 0, 1)
	if !step.InputRange.Start.Equal(wantStart) {
		t.Errorf("InputRange.Start = %s, want %s (watermark + 1 day)", step.InputRange.Start, wantStart)
	}
	if !step.InputRange.End.Equal(now) {
		t.Errorf("InputRange.End = %s, want %s", step.InputRange.End, now)
	}
}
