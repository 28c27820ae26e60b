// Package planner computes deterministic, cost-aware execution plans from
// a resolved model graph and its changed models.
package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

// ComputeDeterministicID hashes a variable number of parts with a null-byte
// domain separator between each, so that ("ab", "c") and ("a", "bc") never
// collide. Never includes wall-clock time or randomness: plan/step
// identity must be reproducible from content alone.
func ComputeDeterministicID(parts ...string) string {
	h := sha256.New()
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DateRange is a half-open [Start, End) window, validated at construction.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange validates that start is not after end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.After(end) {
		return DateRange{}, ironerrors.Validation("date_range", "start must not be after end")
	}
	return DateRange{Start: start, End: end}, nil
}

// RunType classifies how a plan step will execute its model.
type RunType string

const (
	RunTypeFull        RunType = "FULL"
	RunTypeIncremental RunType = "INCREMENTAL"
)

// PlanStep is one model's scheduled unit of work within a Plan.
type PlanStep struct {
	StepID                 string
	Model                  string
	RunType                RunType
	InputRange             *DateRange
	DependsOn              []string
	ParallelGroup          int
	Reason                 string
	EstimatedComputeSeconds float64
	EstimatedCostUSD       float64
	ContractViolations     []string
}

// PlanSummary aggregates totals across a Plan's steps.
type PlanSummary struct {
	TotalSteps                int
	EstimatedCostUSD          float64
	ModelsChanged             []string
	CosmeticChangesSkipped    []string
	ContractViolationsCount   int
	BreakingContractViolations []string
}

// Plan is a fully computed, deterministic execution plan. It deliberately
// carries no timestamp field: two invocations with identical base/target
// snapshots and model graphs must produce byte-identical plans.
type Plan struct {
	PlanID  string
	Base    string
	Target  string
	Summary PlanSummary
	Steps   []PlanStep
}

// PlanWithAdvisory wraps a Plan with an optional, separately computed
// advisory annotation. Advisory output never participates in PlanID
// computation: it is explanatory, not part of plan identity.
type PlanWithAdvisory struct {
	Plan     Plan
	Advisory map[string]interface{}
}

// stepID computes a model's deterministic step identity: the model name,
// the selected run_type, its input date range (empty string when the step
// has none, e.g. a FULL_REFRESH), and the canonical content hash of its
// compiled SQL. Deliberately excludes the plan's base/target revisions and
// any wall-clock value, so the same model reaches the same step_id across
// plans whenever its own inputs are unchanged.
func stepID(modelName string, runType RunType, inputRange *DateRange, contentHash string) string {
	rangeStr := ""
	if inputRange != nil {
		rangeStr = inputRange.String()
	}
	return ComputeDeterministicID(modelName, string(runType), rangeStr, contentHash)
}

func planID(base, target string, stepIDs []string) string {
	parts := append([]string{"plan", base, target}, stepIDs...)
	return ComputeDeterministicID(parts...)
}

// String renders a DateRange for logging/diagnostics.
func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
