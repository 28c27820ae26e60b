package advisory

// RiskInput carries the signals the risk scorer composites into a single
// 0-10 score for a model.
type RiskInput struct {
	DownstreamDepth       int     // how many models transitively depend on this one
	SLATagged             bool    // model carries an "sla" tag
	DashboardDependents   int     // number of BI dashboards reading from this model
	HistoricalFailureRate float64 // fraction of recent runs that failed, 0-1
	CriticalTags          bool    // model carries a "critical" tag
}

// RiskThresholds configures where a score starts requiring manual approval
// or gets flagged business-critical.
type RiskThresholds struct {
	ApprovalRequired float64
	BusinessCritical float64
}

// DefaultRiskThresholds mirrors the defaults used across the advisory
// engine's governance integration: scores at or above 6 require approval,
// at or above 8 are flagged business-critical.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{ApprovalRequired: 6, BusinessCritical: 8}
}

// RiskResult is the risk scorer's output.
type RiskResult struct {
	Score            float64
	ApprovalRequired bool
	BusinessCritical bool
}

// ScoreRisk composites RiskInput into a 0-10 score. Weighting: downstream
// depth contributes up to 3 points (0.3 per level, capped at 10 levels),
// dashboard dependents up to 2 points (0.4 per dashboard, capped at 5), an
// SLA tag adds 2 points flat, historical failure rate contributes up to 3
// points (rate * 3), and a critical tag adds 2 points flat. The raw total
// is clamped to [0, 10].
func ScoreRisk(in RiskInput, thresholds RiskThresholds) RiskResult {
	depth := in.DownstreamDepth
	if depth > 10 {
		depth = 10
	}
	dashboards := in.DashboardDependents
	if dashboards > 5 {
		dashboards = 5
	}

	score := float64(depth)*0.3 + float64(dashboards)*0.4 + in.HistoricalFailureRate*3
	if in.SLATagged {
		score += 2
	}
	if in.CriticalTags {
		score += 2
	}
	score = clamp(score, 0, 10)

	return RiskResult{
		Score:            score,
		ApprovalRequired: score >= thresholds.ApprovalRequired,
		BusinessCritical: score >= thresholds.BusinessCritical,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
