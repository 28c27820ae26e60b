package governance

import (
	"sort"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

// ApprovalState is a Plan's lifecycle state.
type ApprovalState string

const (
	StateDraft            ApprovalState = "DRAFT"
	StateAutoApproved     ApprovalState = "AUTO_APPROVED"
	StateManuallyApproved ApprovalState = "MANUALLY_APPROVED"
	StateRejected         ApprovalState = "REJECTED"
	StateApplied          ApprovalState = "APPLIED"
	StateCancelled        ApprovalState = "CANCELLED"
)

// Decision records one identity's approve/reject vote against a plan.
type Decision struct {
	Identity string // authenticated subject, never a body-supplied name
	Approved bool   // true = approve, false = reject
}

// Workflow tracks one plan's approval lifecycle: its current state plus
// the full history of approve/reject decisions, in the order recorded.
type Workflow struct {
	PlanID    string
	State     ApprovalState
	Decisions []Decision
}

// NewWorkflow starts a plan's approval lifecycle in DRAFT.
func NewWorkflow(planID string) *Workflow {
	return &Workflow{PlanID: planID, State: StateDraft}
}

func (w *Workflow) hasDecisionFrom(identity string) bool {
	for _, d := range w.Decisions {
		if d.Identity == identity {
			return true
		}
	}
	return false
}

// Approve records an approval from identity. Fails with a conflict error
// if this identity already recorded any decision (approve or reject) on
// this plan — a decision, once made, is never overwritten by its own
// author. Auto-approval vs. manual-approval transition is the caller's
// policy decision (e.g. "requires N approvers" or "risk score below
// threshold auto-approves"); Approve itself only records the vote and
// transitions to MANUALLY_APPROVED once requiredApprovals is met.
func (w *Workflow) Approve(identity string, requiredApprovals int) error {
	if w.State != StateDraft {
		return ironerrors.Conflict("plan is not in a state that accepts approvals")
	}
	if w.hasDecisionFrom(identity) {
		return ironerrors.Conflict("identity " + identity + " has already recorded a decision on this plan")
	}
	w.Decisions = append(w.Decisions, Decision{Identity: identity, Approved: true})

	if w.approvalCount() >= requiredApprovals {
		w.State = StateManuallyApproved
	}
	return nil
}

// AutoApprove transitions a DRAFT plan directly to AUTO_APPROVED, used when
// a policy (e.g. a low risk score) permits skipping manual approval.
func (w *Workflow) AutoApprove() error {
	if w.State != StateDraft {
		return ironerrors.Conflict("plan is not in a state that accepts auto-approval")
	}
	w.State = StateAutoApproved
	return nil
}

// Reject records a rejection from identity and sets the workflow terminal,
// preserving any prior approval records rather than erasing them.
func (w *Workflow) Reject(identity string) error {
	if w.State != StateDraft {
		return ironerrors.Conflict("plan is not in a state that accepts rejection")
	}
	if w.hasDecisionFrom(identity) {
		return ironerrors.Conflict("identity " + identity + " has already recorded a decision on this plan")
	}
	w.Decisions = append(w.Decisions, Decision{Identity: identity, Approved: false})
	w.State = StateRejected
	return nil
}

// Apply transitions an approved plan to APPLIED.
func (w *Workflow) Apply() error {
	if w.State != StateAutoApproved && w.State != StateManuallyApproved {
		return ironerrors.Conflict("plan must be approved before it can be applied")
	}
	w.State = StateApplied
	return nil
}

// Cancel transitions a non-terminal plan to CANCELLED.
func (w *Workflow) Cancel() error {
	if w.State == StateApplied || w.State == StateCancelled || w.State == StateRejected {
		return ironerrors.Conflict("plan is already in a terminal state")
	}
	w.State = StateCancelled
	return nil
}

func (w *Workflow) approvalCount() int {
	count := 0
	for _, d := range w.Decisions {
		if d.Approved {
			count++
		}
	}
	return count
}

// Approvers returns the sorted list of identities who approved.
func (w *Workflow) Approvers() []string {
	var names []string
	for _, d := range w.Decisions {
		if d.Approved {
			names = append(names, d.Identity)
		}
	}
	sort.Strings(names)
	return names
}
