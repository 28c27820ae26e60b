// Package license verifies Ed25519-signed license files and gates
// platform features behind license tiers.
package license

// Tier is a license tier determining feature access. Higher tiers include
// every lower tier's features.
type Tier string

const (
	TierCommunity  Tier = "community"
	TierTeam       Tier = "team"
	TierEnterprise Tier = "enterprise"
)

// Feature is a platform capability that can be gated by license tier.
type Feature string

const (
	// Community
	FeaturePlanGenerate Feature = "plan_generate"
	FeaturePlanApply    Feature = "plan_apply"
	FeatureModelLoading Feature = "model_loading"
	FeatureLineageView  Feature = "lineage_view"
	FeatureBackfill     Feature = "backfill"
	FeatureLocalDev     Feature = "local_dev"

	// Team
	FeatureAIAdvisory          Feature = "ai_advisory"
	FeatureCostTracking        Feature = "cost_tracking"
	FeatureMultiModelPlans     Feature = "multi_model_plans"
	FeatureMigrationTools      Feature = "migration_tools"
	FeatureStructuredTelemetry Feature = "structured_telemetry"
	FeatureAPIAccess           Feature = "api_access"
	FeatureTeamManagement      Feature = "team_management"
	FeatureCheckEngine         Feature = "check_engine"

	// Enterprise
	FeatureMultiTenant         Feature = "multi_tenant"
	FeatureSSOOIDC             Feature = "sso_oidc"
	FeatureCostOptimization    Feature = "cost_optimization"
	FeatureFailurePrediction   Feature = "failure_prediction"
	FeatureAIResponseCaching   Feature = "ai_response_caching"
	FeatureAuditLog            Feature = "audit_log"
	FeatureReconciliation      Feature = "reconciliation"
	FeatureLLMBudgetGuardrails Feature = "llm_budget_guardrails"
	FeatureCredentialEncryption Feature = "credential_encryption"
	FeatureRateLimiting        Feature = "rate_limiting"
)

var communityFeatures = map[Feature]bool{
	FeaturePlanGenerate: true,
	FeaturePlanApply:    true,
	FeatureModelLoading: true,
	FeatureLineageView:  true,
	FeatureBackfill:     true,
	FeatureLocalDev:     true,
}

var teamFeatures = unionOf(communityFeatures, map[Feature]bool{
	FeatureAIAdvisory:          true,
	FeatureCostTracking:        true,
	FeatureMultiModelPlans:     true,
	FeatureMigrationTools:      true,
	FeatureStructuredTelemetry: true,
	FeatureAPIAccess:           true,
	FeatureTeamManagement:      true,
	FeatureCheckEngine:         true,
})

var enterpriseFeatures = unionOf(teamFeatures, map[Feature]bool{
	FeatureMultiTenant:          true,
	FeatureSSOOIDC:              true,
	FeatureCostOptimization:     true,
	FeatureFailurePrediction:    true,
	FeatureAIResponseCaching:    true,
	FeatureAuditLog:             true,
	FeatureReconciliation:       true,
	FeatureLLMBudgetGuardrails:  true,
	FeatureCredentialEncryption: true,
	FeatureRateLimiting:         true,
})

func unionOf(a, b map[Feature]bool) map[Feature]bool {
	out := make(map[Feature]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

// tierOrder orders tiers low-to-high for GetRequiredTier's lookup.
var tierOrder = []Tier{TierCommunity, TierTeam, TierEnterprise}

var tierFeatures = map[Tier]map[Feature]bool{
	TierCommunity:  communityFeatures,
	TierTeam:       teamFeatures,
	TierEnterprise: enterpriseFeatures,
}

// IsFeatureEnabled reports whether feature is included in tier's
// entitlements. An unrecognized tier is treated as community.
func IsFeatureEnabled(tier Tier, feature Feature) bool {
	features, ok := tierFeatures[tier]
	if !ok {
		features = communityFeatures
	}
	return features[feature]
}

// GetTierFeatures returns every feature enabled for tier.
func GetTierFeatures(tier Tier) map[Feature]bool {
	features, ok := tierFeatures[tier]
	if !ok {
		features = communityFeatures
	}
	out := make(map[Feature]bool, len(features))
	for f := range features {
		out[f] = true
	}
	return out
}

// GetRequiredTier returns the lowest tier that includes feature. A feature
// that no tier includes yields TierEnterprise.
func GetRequiredTier(feature Feature) Tier {
	for _, tier := range tierOrder {
		if tierFeatures[tier][feature] {
			return tier
		}
	}
	return TierEnterprise
}
