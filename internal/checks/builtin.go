package checks

import (
	"fmt"
	"strconv"
	"strings"
)

// ModelTestCheck runs a model's declarative `tests` entries. Each entry has
// the form `kind(args)` with colon-separated args, e.g. `not_null(order_id)`,
// `accepted_values(status:open|closed|cancelled)`, `row_count_min(100)` —
// colons rather than commas separate args so a single test entry survives
// the header's own comma-separated test list unambiguously.
// Unparseable entries produce an ERROR result rather than being silently
// skipped, so a typo in a model header surfaces instead of vanishing.
func ModelTestCheck(rc RunContext, modelName string) []Result {
	m, ok := rc.Models.Get(modelName)
	if !ok || len(m.Tests) == 0 {
		return nil
	}

	var results []Result
	for _, raw := range m.Tests {
		kind, args, err := parseTest(raw)
		if err != nil {
			results = append(results, Result{
				Type: TypeModelTest, Model: modelName, Status: StatusError,
				Severity: SeverityMedium, Message: err.Error(),
				Detail: map[string]interface{}{"test": raw},
			})
			continue
		}
		results = append(results, runModelTest(rc, modelName, kind, args))
	}
	return results
}

func parseTest(raw string) (kind string, args []string, err error) {
	open := strings.Index(raw, "(")
	if open < 0 || !strings.HasSuffix(raw, ")") {
		return "", nil, fmt.Errorf("malformed test declaration %q", raw)
	}
	kind = strings.TrimSpace(raw[:open])
	inner := raw[open+1 : len(raw)-1]
	for _, p := range strings.Split(inner, ":") {
		args = append(args, strings.TrimSpace(p))
	}
	return kind, args, nil
}

func runModelTest(rc RunContext, modelName, kind string, args []string) Result {
	switch kind {
	case "not_null":
		if len(args) < 1 {
			return errorResult(modelName, "not_null requires a column argument")
		}
		column := args[0]
		count, ok := rc.NullCounts[modelName+"."+column]
		if !ok {
			return Result{Type: TypeModelTest, Model: modelName, Status: StatusSkip, Severity: SeverityLow,
				Message: fmt.Sprintf("no null-count data available for %s.%s", modelName, column)}
		}
		if count > 0 {
			return Result{Type: TypeModelTest, Model: modelName, Status: StatusFail, Severity: SeverityHigh,
				Message: fmt.Sprintf("%s.%s has %d null values", modelName, column, count),
				Detail:  map[string]interface{}{"column": column, "null_count": count}}
		}
		return Result{Type: TypeModelTest, Model: modelName, Status: StatusPass, Severity: SeverityLow,
			Message: fmt.Sprintf("%s.%s has no nulls", modelName, column)}

	case "accepted_values":
		if len(args) < 2 {
			return errorResult(modelName, "accepted_values requires a column and a pipe-separated value list")
		}
		column := args[0]
		allowed := make(map[string]bool)
		for _, v := range strings.Split(args[1], "|") {
			allowed[strings.TrimSpace(v)] = true
		}
		observed, ok := rc.DistinctValues[modelName+"."+column]
		if !ok {
			return Result{Type: TypeModelTest, Model: modelName, Status: StatusSkip, Severity: SeverityLow,
				Message: fmt.Sprintf("no distinct-value data available for %s.%s", modelName, column)}
		}
		var unexpected []string
		for _, v := range observed {
			if !allowed[v] {
				unexpected = append(unexpected, v)
			}
		}
		if len(unexpected) > 0 {
			return Result{Type: TypeModelTest, Model: modelName, Status: StatusFail, Severity: SeverityMedium,
				Message: fmt.Sprintf("%s.%s has unexpected values: %v", modelName, column, unexpected),
				Detail:  map[string]interface{}{"column": column, "unexpected": unexpected}}
		}
		return Result{Type: TypeModelTest, Model: modelName, Status: StatusPass, Severity: SeverityLow,
			Message: fmt.Sprintf("%s.%s values within accepted set", modelName, column)}

	case "row_count_min":
		if len(args) < 1 {
			return errorResult(modelName, "row_count_min requires a numeric argument")
		}
		min, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errorResult(modelName, "row_count_min argument is not an integer")
		}
		count, ok := rc.RowCounts[modelName]
		if !ok {
			return Result{Type: TypeModelTest, Model: modelName, Status: StatusSkip, Severity: SeverityLow,
				Message: fmt.Sprintf("no row-count data available for %s", modelName)}
		}
		if count < min {
			return Result{Type: TypeModelTest, Model: modelName, Status: StatusFail, Severity: SeverityHigh,
				Message: fmt.Sprintf("%s has %d rows, below minimum %d", modelName, count, min),
				Detail:  map[string]interface{}{"row_count": count, "minimum": min}}
		}
		return Result{Type: TypeModelTest, Model: modelName, Status: StatusPass, Severity: SeverityLow,
			Message: fmt.Sprintf("%s row count %d meets minimum %d", modelName, count, min)}

	default:
		return errorResult(modelName, fmt.Sprintf("unknown test kind %q", kind))
	}
}

func errorResult(modelName, message string) Result {
	return Result{Type: TypeModelTest, Model: modelName, Status: StatusError, Severity: SeverityMedium, Message: message}
}

// SchemaContractCheck compares a model's declared column contracts against
// its observed output columns, emitting one result per mismatched column.
// A missing column, a type mismatch, or an unexpected nullability is
// CRITICAL severity normally, downgraded to WARN status when
// RunContext.SchemaContractWarnMode is set (a contract in WARN mode never
// blocks a plan, matching spec behavior for non-enforced contracts).
func SchemaContractCheck(rc RunContext, modelName string) []Result {
	m, ok := rc.Models.Get(modelName)
	if !ok || len(m.Contracts) == 0 {
		return nil
	}

	observed, ok := rc.OutputColumns[modelName]
	if !ok {
		return []Result{{
			Type: TypeSchemaContract, Model: modelName, Status: StatusSkip, Severity: SeverityLow,
			Message: fmt.Sprintf("no observed output columns for %s", modelName),
		}}
	}
	observedByName := make(map[string]struct {
		Type     string
		Nullable bool
	}, len(observed))
	for _, c := range observed {
		observedByName[c.Name] = struct {
			Type     string
			Nullable bool
		}{c.Type, c.Nullable}
	}

	var results []Result
	for _, contract := range m.Contracts {
		actual, present := observedByName[contract.Name]
		severity := SeverityCritical
		status := StatusFail
		if rc.SchemaContractWarnMode {
			status = StatusWarn
			severity = SeverityMedium
		}

		switch {
		case !present:
			results = append(results, Result{
				Type: TypeSchemaContract, Model: modelName, Status: status, Severity: severity,
				Message: fmt.Sprintf("column %s declared but missing from output", contract.Name),
				Detail:  map[string]interface{}{"column": contract.Name},
			})
		case actual.Type != contract.Type:
			results = append(results, Result{
				Type: TypeSchemaContract, Model: modelName, Status: status, Severity: severity,
				Message: fmt.Sprintf("column %s has type %s, contract declares %s", contract.Name, actual.Type, contract.Type),
				Detail:  map[string]interface{}{"column": contract.Name, "actual_type": actual.Type, "contract_type": contract.Type},
			})
		case actual.Nullable && !contract.Nullable:
			results = append(results, Result{
				Type: TypeSchemaContract, Model: modelName, Status: status, Severity: severity,
				Message: fmt.Sprintf("column %s is nullable, contract declares non-nullable", contract.Name),
				Detail:  map[string]interface{}{"column": contract.Name},
			})
		default:
			results = append(results, Result{
				Type: TypeSchemaContract, Model: modelName, Status: StatusPass, Severity: SeverityLow,
				Message: fmt.Sprintf("column %s matches contract", contract.Name),
			})
		}
	}
	return results
}

// ReconciliationCheck compares a model's own row count against an
// externally sourced row count (e.g. the upstream system of record),
// failing when the relative difference exceeds the configured tolerance.
func ReconciliationCheck(rc RunContext, modelName string) []Result {
	truth, hasTruth := rc.ReconciliationTruth[modelName]
	observed, hasObserved := rc.RowCounts[modelName]
	if !hasTruth || !hasObserved {
		return []Result{{
			Type: TypeReconciliation, Model: modelName, Status: StatusSkip, Severity: SeverityLow,
			Message: fmt.Sprintf("no reconciliation data available for %s", modelName),
		}}
	}

	tolerance := rc.ReconciliationToleranceFraction
	if tolerance <= 0 {
		tolerance = 0.01
	}

	if truth == 0 {
		if observed == 0 {
			return []Result{{Type: TypeReconciliation, Model: modelName, Status: StatusPass, Severity: SeverityLow,
				Message: fmt.Sprintf("%s reconciles with source of truth (both zero rows)", modelName)}}
		}
		return []Result{{Type: TypeReconciliation, Model: modelName, Status: StatusFail, Severity: SeverityCritical,
			Message: fmt.Sprintf("%s has %d rows but source of truth reports zero", modelName, observed),
			Detail:  map[string]interface{}{"observed": observed, "truth": truth}}}
	}

	diff := float64(observed-truth) / float64(truth)
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		return []Result{{
			Type: TypeReconciliation, Model: modelName, Status: StatusFail, Severity: SeverityHigh,
			Message: fmt.Sprintf("%s row count %d differs from source of truth %d by %.2f%%, exceeding %.2f%% tolerance", modelName, observed, truth, diff*100, tolerance*100),
			Detail:  map[string]interface{}{"observed": observed, "truth": truth, "relative_diff": diff},
		}}
	}
	return []Result{{
		Type: TypeReconciliation, Model: modelName, Status: StatusPass, Severity: SeverityLow,
		Message: fmt.Sprintf("%s reconciles within tolerance", modelName),
	}}
}
