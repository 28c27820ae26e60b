package planner

import (
	"context"
	"sort"
	"time"

	"github.com/ironlayer/ironlayer/internal/collab"
	"github.com/ironlayer/ironlayer/internal/collab/clustertemplate"
	"github.com/ironlayer/ironlayer/internal/dag"
	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
	"github.com/ironlayer/ironlayer/internal/modeldef"
	"github.com/ironlayer/ironlayer/internal/sqltoolkit"
)

// Snapshot pairs a resolved model repository with the identifier of the
// revision it was loaded from (a commit SHA, a migration version, or
// similar content-addressable label).
type Snapshot struct {
	Revision string
	Models   *modeldef.Repository
}

// Input bundles everything the planner needs to build a Plan.
type Input struct {
	Base   Snapshot
	Target Snapshot

	// ClusterSize selects the cost/throughput assumptions applied to every
	// step's estimate.
	ClusterSize clustertemplate.Size

	// Warehouse estimates row counts for cost/compute estimation. May be
	// nil, in which case steps carry a zero estimate.
	Warehouse collab.WarehouseCollaborator

	// CanonVersion pins the SQL canonicalizer/diff semantics applied when
	// comparing base and target model definitions.
	CanonVersion sqltoolkit.CanonicalizerVersion

	// Watermarks maps model name to the last successfully processed
	// timestamp for that model's incremental column. Consulted only for
	// models selected as INCREMENTAL; absent entries start from the zero
	// time (a full backfill window).
	Watermarks map[string]time.Time

	// Now pins "today" for INCREMENTAL input_range computation. The caller
	// supplies it explicitly (rather than Build calling time.Now() itself)
	// so that two calls with identical Base/Target/Watermarks/Now produce
	// bit-identical plans, preserving the determinism invariant.
	Now time.Time
}

// Builder computes deterministic, cost-aware execution plans.
type Builder struct{}

// NewBuilder constructs a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build runs the planning algorithm end to end:
//
//  1. Resolve every ref() macro in the target snapshot, failing fast on any
//     dangling reference.
//  2. Build the target dependency graph and topologically sort it.
//  3. Diff every model present in both base and target, using canonical
//     hashing to classify each as NoChange, CosmeticOnly, or Modified, and
//     classify every Modified model's change severity (non_breaking,
//     breaking, metric_semantic, rename_only, or partition_shift).
//  4. Treat new models (absent from base) as Modified with Breaking
//     severity. Compute the forward closure seeded only from models whose
//     direct severity is breaking or metric_semantic: rename_only,
//     partition_shift, and non_breaking changes stay local. A pass-through
//     model reached only via closure inherits the most-severe upstream
//     classification that reached it.
//  5. Walk the topological order; for each model in the closure, classify
//     its RunType (FULL_REFRESH when materialization isn't incremental or
//     severity is breaking/metric_semantic; otherwise INCREMENTAL with an
//     input_range derived from its watermark) and compute its dependency
//     list restricted to the closure.
//  6. Assign each step a ParallelGroup equal to the length of the longest
//     dependency chain beneath it within the closure, so steps with no
//     ordering constraint between them share a group.
//  7. Estimate compute seconds and cost per step via the warehouse row
//     count (when available) and the selected cluster template.
//  8. Validate schema contracts and attach violations to each step.
//  9. Assemble deterministic StepIDs (model, run_type, input_range,
//     content_hash) and a PlanID from the base/target revisions and the
//     ordered step list, and roll up the PlanSummary.
func (b *Builder) Build(ctx context.Context, in Input) (*Plan, error) {
	if err := in.Target.Models.ResolveRefs(); err != nil {
		return nil, err
	}

	version := in.CanonVersion
	if version == "" {
		version = sqltoolkit.CurrentCanonicalizerVersion
	}

	g := dag.New()
	for _, name := range in.Target.Models.Names() {
		m, _ := in.Target.Models.Get(name)
		g.AddNode(name)
		for _, ref := range m.Refs {
			g.AddEdge(name, ref)
		}
	}

	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	// closureSeverity drives forward-closure seeding (and is what a
	// downstream pass-through model's display reason inherits). runType
	// Severity drives this model's own RunType selection. They differ only
	// for a wholly new model: it has no prior version to diff, so anything
	// already depending on it must always rebuild (Breaking for closure
	// purposes), but the new model itself still follows ordinary
	// materialization rules for its own run_type since there is no
	// previously materialized output of its own to invalidate.
	var modified, cosmeticOnly []string
	closureSeverity := make(map[string]sqltoolkit.Severity, len(in.Target.Models.Names()))
	runTypeSeverity := make(map[string]sqltoolkit.Severity, len(in.Target.Models.Names()))
	for _, name := range in.Target.Models.Names() {
		targetModel, _ := in.Target.Models.Get(name)
		baseModel, existedBefore := in.Base.Models.Get(name)

		if !existedBefore {
			modified = append(modified, name)
			closureSeverity[name] = sqltoolkit.SeverityBreaking
			runTypeSeverity[name] = sqltoolkit.SeverityNonBreaking
			continue
		}

		diff := sqltoolkit.ComputeDiff(baseModel.SQL, targetModel.SQL, version)
		switch diff.ChangeType {
		case sqltoolkit.Modified:
			modified = append(modified, name)
			closureSeverity[name] = diff.Severity
			runTypeSeverity[name] = diff.Severity
		case sqltoolkit.CosmeticOnly:
			cosmeticOnly = append(cosmeticOnly, name)
		}
	}
	sort.Strings(modified)
	sort.Strings(cosmeticOnly)

	// Forward closure only propagates from breaking/metric_semantic direct
	// changes; rename_only, partition_shift, and non_breaking changes stay
	// local to the model that changed. Breaking and metric_semantic are
	// tracked through separate closures so a pass-through model downstream
	// of both inherits the worse of the two (breaking wins).
	var breakingSeed, metricSeed []string
	for _, name := range modified {
		switch closureSeverity[name] {
		case sqltoolkit.SeverityBreaking:
			breakingSeed = append(breakingSeed, name)
		case sqltoolkit.SeverityMetricSemantic:
			metricSeed = append(metricSeed, name)
		}
	}
	closureBreaking := g.ForwardClosure(breakingSeed)
	closureMetric := g.ForwardClosure(metricSeed)
	inClosureBreaking := make(map[string]bool, len(closureBreaking))
	for _, n := range closureBreaking {
		inClosureBreaking[n] = true
	}
	inClosureMetric := make(map[string]bool, len(closureMetric))
	for _, n := range closureMetric {
		inClosureMetric[n] = true
	}

	inClosure := make(map[string]bool, len(modified)+len(closureBreaking)+len(closureMetric))
	for _, n := range modified {
		inClosure[n] = true
	}
	for _, n := range closureBreaking {
		inClosure[n] = true
	}
	for _, n := range closureMetric {
		inClosure[n] = true
	}

	depth := make(map[string]int, len(order))
	steps := make([]PlanStep, 0, len(inClosure))

	for _, name := range order {
		if !inClosure[name] {
			continue
		}
		m, ok := in.Target.Models.Get(name)
		if !ok {
			// A node in the graph with no loaded model is itself a
			// dangling ref; ResolveRefs above should have already caught
			// this, so treat it as an invariant violation.
			return nil, ironerrors.UnresolvedRef(name)
		}

		deps := g.Dependencies(name)
		closureDeps := make([]string, 0, len(deps))
		maxDepDepth := -1
		for _, d := range deps {
			if !inClosure[d] {
				continue
			}
			closureDeps = append(closureDeps, d)
			if depth[d] > maxDepDepth {
				maxDepDepth = depth[d]
			}
		}
		depth[name] = maxDepDepth + 1

		severity, isDirect := runTypeSeverity[name]
		if !isDirect {
			// Pass-through model pulled in purely by forward closure:
			// inherit the most-severe upstream classification that reached
			// it. It can appear in both closures; breaking wins.
			switch {
			case inClosureBreaking[name]:
				severity = sqltoolkit.SeverityBreaking
			case inClosureMetric[name]:
				severity = sqltoolkit.SeverityMetricSemantic
			}
		}

		compiled, err := in.Target.Models.CompiledSQL(m)
		if err != nil {
			return nil, err
		}

		runType, inputRange := classifyRun(m, severity, in.Watermarks[name], in.Now)
		contentHash := sqltoolkit.ComputeCanonicalHash(compiled, version, map[string]string{"materialization": string(m.Materialization)})

		var rowCount int64
		if in.Warehouse != nil {
			rowCount, _ = in.Warehouse.EstimateRowCount(ctx, compiled)
		}
		tmpl := clustertemplate.Get(in.ClusterSize)
		computeSeconds := tmpl.EstimateComputeSeconds(rowCount)
		costUSD := tmpl.EstimateCostUSD(computeSeconds)

		violations := checkContracts(m)

		reason := "target model differs from base"
		if _, wasDirectlyModified := contains(modified, name); !wasDirectlyModified {
			reason = "downstream of a changed dependency"
		}

		steps = append(steps, PlanStep{
			StepID:                  stepID(name, runType, inputRange, contentHash),
			Model:                   name,
			RunType:                 runType,
			InputRange:              inputRange,
			DependsOn:               closureDeps,
			ParallelGroup:           depth[name],
			Reason:                  reason,
			EstimatedComputeSeconds: computeSeconds,
			EstimatedCostUSD:        costUSD,
			ContractViolations:      violations,
		})
	}

	stepIDs := make([]string, len(steps))
	totalCost := 0.0
	violationCount := 0
	var breaking []string
	for i, s := range steps {
		stepIDs[i] = s.StepID
		totalCost += s.EstimatedCostUSD
		violationCount += len(s.ContractViolations)
		if len(s.ContractViolations) > 0 {
			breaking = append(breaking, s.Model)
		}
	}

	plan := &Plan{
		PlanID: planID(in.Base.Revision, in.Target.Revision, stepIDs),
		Base:   in.Base.Revision,
		Target: in.Target.Revision,
		Summary: PlanSummary{
			TotalSteps:                 len(steps),
			EstimatedCostUSD:           totalCost,
			ModelsChanged:              modified,
			CosmeticChangesSkipped:     cosmeticOnly,
			ContractViolationsCount:    violationCount,
			BreakingContractViolations: breaking,
		},
		Steps: steps,
	}
	return plan, nil
}

// classifyRun decides a model's RunType and, for INCREMENTAL steps, its
// InputRange. FULL_REFRESH is mandatory whenever the model's materialization
// isn't incremental, it has no time column to window on, or severity is
// breaking/metric_semantic — even for an otherwise-incremental model,
// because a breaking or metric-semantic change invalidates any previously
// materialized partition. Otherwise (non_breaking, rename_only, or
// partition_shift — none of which change already-materialized history) an
// incremental model runs INCREMENTAL over [watermark+1 day, now).
func classifyRun(m *modeldef.Model, severity sqltoolkit.Severity, watermark, now time.Time) (RunType, *DateRange) {
	if !m.IsIncremental() || m.TimeColumn == "" {
		return RunTypeFull, nil
	}
	if severity == sqltoolkit.SeverityBreaking || severity == sqltoolkit.SeverityMetricSemantic {
		return RunTypeFull, nil
	}

	start := watermark.AddDate(0, 0, 1)
	if start.After(now) {
		start = now
	}
	dr, err := NewDateRange(start, now)
	if err != nil {
		dr = DateRange{Start: now, End: now}
	}
	return RunTypeIncremental, &dr
}

// checkContracts performs the subset of schema-contract validation that
// needs no live warehouse connection: it flags every contract that is
// missing a column name or a column type, conditions no compiled query can
// satisfy and therefore always worth surfacing at plan time.
// Full type/nullability checking against actual query output happens in
// the check engine after a run.
func checkContracts(m *modeldef.Model) []string {
	var violations []string
	for _, c := range m.Contracts {
		if c.Name == "" {
			violations = append(violations, ironerrors.ContractViolation(m.Name, c.Name, "column contract missing a name").Error())
			continue
		}
		if c.Type == "" {
			violations = append(violations, ironerrors.ContractViolation(m.Name, c.Name, "column contract missing a type").Error())
		}
	}
	return violations
}

func contains(sorted []string, target string) (int, bool) {
	i := sort.SearchStrings(sorted, target)
	if i < len(sorted) && sorted[i] == target {
		return i, true
	}
	return -1, false
}
