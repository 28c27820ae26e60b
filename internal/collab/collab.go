// Package collab defines the narrow interfaces ironlayer uses to talk to
// external collaborators (version control, the warehouse, an LLM, metrics
// sinks). No implementations ship in this repository (tests supply their
// own fakes); production clients are out of scope.
package collab

import "context"

// GitCollaborator resolves a model repository snapshot from version control.
type GitCollaborator interface {
	// ReadFile returns the content of path at ref (a commit SHA or branch).
	ReadFile(ctx context.Context, ref, path string) (string, error)
	// ListModelFiles lists every model file path present at ref.
	ListModelFiles(ctx context.Context, ref string) ([]string, error)
}

// WarehouseCollaborator executes compiled SQL and reports row counts used
// by the cost estimator.
type WarehouseCollaborator interface {
	// EstimateRowCount returns an approximate row count for a compiled query,
	// used for cost estimation without actually running it.
	EstimateRowCount(ctx context.Context, compiledSQL string) (int64, error)
	// Execute runs a compiled statement and reports rows affected.
	Execute(ctx context.Context, compiledSQL string) (rowsAffected int64, err error)
}

// LLMCollaborator sends a scrubbed prompt to a language model and returns
// its completion, under a hard per-call token budget.
type LLMCollaborator interface {
	Complete(ctx context.Context, promptID, promptVersion, prompt string, maxTokens int) (completion string, tokensUsed int, err error)
}

// MetricsSink receives point-in-time metric observations.
type MetricsSink interface {
	ObserveDuration(name string, labels map[string]string, seconds float64)
	IncrCounter(name string, labels map[string]string, delta float64)
	SetGauge(name string, labels map[string]string, value float64)
}
