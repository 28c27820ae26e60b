package state_test

import (
	"context"
	"testing"

	"github.com/ironlayer/ironlayer/internal/governance"
	"github.com/ironlayer/ironlayer/internal/state"
	"github.com/ironlayer/ironlayer/internal/state/memory"
)

func TestWorkflowRecordRoundTripsThroughMemoryStore(t *testing.T) {
	store := memory.New[*state.WorkflowRecord]("approval_workflow")
	ctx := context.Background()

	w := governance.NewWorkflow("plan-1")
	_ = w.Approve("alice", 2)
	rec := state.RecordFromWorkflow("tenant-1", *w)

	created, err := store.Create(ctx, &rec)
	if err != nil {
		t.Fatal(err)
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped on Create")
	}

	fetched, err := store.Get(ctx, "tenant-1", "plan-1")
	if err != nil {
		t.Fatal(err)
	}
	restored := fetched.ToWorkflow()
	if restored.State != governance.StateDraft {
		t.Errorf("state = %s, want DRAFT after 1 of 2 approvals", restored.State)
	}
	if len(restored.Approvers()) != 1 || restored.Approvers()[0] != "alice" {
		t.Errorf("Approvers() = %v, want [alice]", restored.Approvers())
	}
}

func TestMemoryStoreListIsTenantScopedAndPaginated(t *testing.T) {
	store := memory.New[*state.SubscriptionRecord]("webhook_subscription")
	ctx := context.Background()

	for i, tenant := range []string{"t1", "t1", "t2"} {
		sub := &state.SubscriptionRecord{TenantID: tenant, ID: idFor(i), URL: "https://example.com/hook"}
		if _, err := store.Create(ctx, sub); err != nil {
			t.Fatal(err)
		}
	}

	page, err := store.List(ctx, "t1", state.Pagination{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d, want 2 scoped to tenant t1", len(page.Items))
	}

	count, err := store.Count(ctx, "t2")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 for tenant t2", count)
	}
}

func TestMemoryStoreRejectsDuplicateCreate(t *testing.T) {
	store := memory.New[*state.SubscriptionRecord]("webhook_subscription")
	ctx := context.Background()
	sub := &state.SubscriptionRecord{TenantID: "t1", ID: "sub-1", URL: "https://example.com/hook"}
	if _, err := store.Create(ctx, sub); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(ctx, sub); err == nil {
		t.Fatal("expected conflict on duplicate (tenant_id, id) create")
	}
}

func TestMemoryStoreGetMissingReturnsNotFound(t *testing.T) {
	store := memory.New[*state.SubscriptionRecord]("webhook_subscription")
	if _, err := store.Get(context.Background(), "t1", "missing"); err == nil {
		t.Fatal("expected not-found error for a missing row")
	}
}

func idFor(i int) string {
	return []string{"sub-a", "sub-b", "sub-c"}[i]
}
