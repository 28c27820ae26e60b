// Package checks implements the check engine: a registry of named check
// types dispatched over a run's model set, producing a deterministically
// ordered, severity-classified result summary.
package checks

import (
	"context"
	"sort"
	"time"

	"github.com/ironlayer/ironlayer/internal/modeldef"
)

// Type names a registered check kind.
type Type string

const (
	TypeModelTest     Type = "MODEL_TEST"
	TypeSchemaContract Type = "SCHEMA_CONTRACT"
	TypeSchemaDrift   Type = "SCHEMA_DRIFT"
	TypeReconciliation Type = "RECONCILIATION"
	TypeDataFreshness Type = "DATA_FRESHNESS"
	TypeCrossModel    Type = "CROSS_MODEL"
	TypeVolumeAnomaly Type = "VOLUME_ANOMALY"
	TypeCustom        Type = "CUSTOM"
)

// Status is a check result's outcome.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusWarn  Status = "WARN"
	StatusError Status = "ERROR"
	StatusSkip  Status = "SKIP"
)

// Severity ranks a failing or warning result.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Result is the outcome of a single check run against a single model.
type Result struct {
	Type       Type
	Model      string
	Status     Status
	Severity   Severity
	Message    string
	Detail     map[string]interface{}
	DurationMS int64
}

// Blocking reports whether this result should block a deploy/approval: a
// FAIL with CRITICAL or HIGH severity.
func (r Result) Blocking() bool {
	return r.Status == StatusFail && (r.Severity == SeverityCritical || r.Severity == SeverityHigh)
}

// Summary aggregates a full check run's results.
type Summary struct {
	Total            int
	Passed           int
	Failed           int
	Warned           int
	Errored          int
	Skipped          int
	BlockingFailures int
	Results          []Result
}

// RunContext carries everything a check implementation needs: the model
// repository, the set of model names in scope (nil/empty means all), and
// auxiliary data a specific check type consumes (row counts, historical
// failure rates, reconciliation source-of-truth counts, etc.) supplied by
// the caller since the check engine itself has no warehouse access.
type RunContext struct {
	Context context.Context
	Models  *modeldef.Repository
	Only    []string

	// RowCounts maps model name to its latest observed row count, consumed
	// by MODEL_TEST's row_count assertions and RECONCILIATION checks.
	RowCounts map[string]int64

	// ReconciliationTruth maps model name to an externally sourced row
	// count (e.g. from the upstream system of record) that RECONCILIATION
	// compares RowCounts against.
	ReconciliationTruth map[string]int64

	// ReconciliationToleranceFraction is the maximum allowed relative
	// difference between RowCounts and ReconciliationTruth before a
	// RECONCILIATION check fails; 0 defaults to 0.01 (1%).
	ReconciliationToleranceFraction float64

	// NullCounts maps "model.column" to an observed count of NULL values,
	// consumed by MODEL_TEST's not_null assertions.
	NullCounts map[string]int64

	// DistinctValues maps "model.column" to the set of distinct values
	// observed, consumed by MODEL_TEST's accepted_values assertions.
	DistinctValues map[string][]string

	// OutputColumns maps model name to its actual output columns observed
	// from a run, consumed by SCHEMA_CONTRACT.
	OutputColumns map[string][]modeldef.ColumnContract

	// SchemaContractWarnMode downgrades CRITICAL schema contract
	// violations to non-blocking (WARN status) when true.
	SchemaContractWarnMode bool
}

func (rc RunContext) scope() []string {
	if len(rc.Only) > 0 {
		names := append([]string(nil), rc.Only...)
		sort.Strings(names)
		return names
	}
	return rc.Models.Names()
}

// Check is a single check implementation: given a run context and a model
// name, it produces zero or more results for that model (zero when the
// check type doesn't apply to that model, e.g. a model declares no tests).
type Check func(rc RunContext, modelName string) []Result

// Registry dispatches named check types over a run's model scope.
type Registry struct {
	checks map[Type]Check
}

// NewRegistry constructs a Registry preloaded with the built-in check types.
func NewRegistry() *Registry {
	r := &Registry{checks: make(map[Type]Check)}
	r.Register(TypeModelTest, ModelTestCheck)
	r.Register(TypeSchemaContract, SchemaContractCheck)
	r.Register(TypeReconciliation, ReconciliationCheck)
	return r
}

// Register adds or replaces the implementation for a check type.
func (r *Registry) Register(t Type, fn Check) {
	r.checks[t] = fn
}

// Run dispatches every registered check type (or, if types is non-empty,
// only those named) over the run context's model scope, and returns a
// Summary with results sorted deterministically by (model, check_type,
// status).
func (r *Registry) Run(rc RunContext, types ...Type) Summary {
	active := types
	if len(active) == 0 {
		for t := range r.checks {
			active = append(active, t)
		}
		sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })
	}

	var results []Result
	for _, modelName := range rc.scope() {
		for _, t := range active {
			fn, ok := r.checks[t]
			if !ok {
				continue
			}
			start := time.Now()
			for _, res := range fn(rc, modelName) {
				if res.DurationMS == 0 {
					res.DurationMS = time.Since(start).Milliseconds()
				}
				results = append(results, res)
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Status < b.Status
	})

	summary := Summary{Results: results}
	for _, res := range results {
		summary.Total++
		switch res.Status {
		case StatusPass:
			summary.Passed++
		case StatusFail:
			summary.Failed++
			if res.Blocking() {
				summary.BlockingFailures++
			}
		case StatusWarn:
			summary.Warned++
		case StatusError:
			summary.Errored++
		case StatusSkip:
			summary.Skipped++
		}
	}
	return summary
}
