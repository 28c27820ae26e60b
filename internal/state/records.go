package state

import (
	"time"

	"github.com/ironlayer/ironlayer/internal/governance"
)

// WorkflowRecord is the persisted form of a governance.Workflow: the
// approval state machine plus its decision history, scoped to a tenant.
type WorkflowRecord struct {
	TenantID  string
	PlanID    string
	State     governance.ApprovalState
	Decisions []governance.Decision
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r WorkflowRecord) GetID() string         { return r.PlanID }
func (r WorkflowRecord) GetTenantID() string   { return r.TenantID }
func (r *WorkflowRecord) SetCreatedAt(t time.Time) { r.CreatedAt = t }
func (r *WorkflowRecord) SetUpdatedAt(t time.Time) { r.UpdatedAt = t }

// RecordFromWorkflow converts an in-memory approval Workflow into its
// persisted record for tenantID.
func RecordFromWorkflow(tenantID string, w governance.Workflow) WorkflowRecord {
	return WorkflowRecord{TenantID: tenantID, PlanID: w.PlanID, State: w.State, Decisions: append([]governance.Decision(nil), w.Decisions...)}
}

// ToWorkflow reconstructs the in-memory Workflow from a persisted record.
func (r WorkflowRecord) ToWorkflow() governance.Workflow {
	return governance.Workflow{PlanID: r.PlanID, State: r.State, Decisions: append([]governance.Decision(nil), r.Decisions...)}
}

// SubscriptionRecord is the persisted form of a webhook subscription.
type SubscriptionRecord struct {
	TenantID   string
	ID         string
	URL        string
	EventTypes []string
	SecretHash string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r SubscriptionRecord) GetID() string         { return r.ID }
func (r SubscriptionRecord) GetTenantID() string   { return r.TenantID }
func (r *SubscriptionRecord) SetCreatedAt(t time.Time) { r.CreatedAt = t }
func (r *SubscriptionRecord) SetUpdatedAt(t time.Time) { r.UpdatedAt = t }
