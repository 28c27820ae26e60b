package license

import (
	"testing"
	"time"
)

func TestFeatureGatingFollowsTierHierarchy(t *testing.T) {
	if !IsFeatureEnabled(TierCommunity, FeaturePlanGenerate) {
		t.Error("plan_generate should be a community feature")
	}
	if IsFeatureEnabled(TierCommunity, FeatureAIAdvisory) {
		t.Error("ai_advisory should not be available at community tier")
	}
	if !IsFeatureEnabled(TierTeam, FeatureAIAdvisory) {
		t.Error("ai_advisory should be available at team tier")
	}
	if !IsFeatureEnabled(TierEnterprise, FeatureAIAdvisory) {
		t.Error("enterprise should include every team feature")
	}
	if !IsFeatureEnabled(TierEnterprise, FeatureMultiTenant) {
		t.Error("multi_tenant should be available at enterprise tier")
	}
}

func TestGetRequiredTierReturnsLowestQualifyingTier(t *testing.T) {
	if got := GetRequiredTier(FeaturePlanGenerate); got != TierCommunity {
		t.Errorf("GetRequiredTier(plan_generate) = %s, want community", got)
	}
	if got := GetRequiredTier(FeatureCostTracking); got != TierTeam {
		t.Errorf("GetRequiredTier(cost_tracking) = %s, want team", got)
	}
	if got := GetRequiredTier(FeatureAuditLog); got != TierEnterprise {
		t.Errorf("GetRequiredTier(audit_log) = %s, want enterprise", got)
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	f, err := IssueLicense(IssueParams{
		TenantID: "tenant-1", Tier: TierEnterprise,
		ExpiresAt: time.Now().Add(365 * 24 * time.Hour),
		IssuedAt:  time.Now(),
	}, priv)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(f, pub, time.Now()); err != nil {
		t.Fatalf("Verify() error on a freshly signed license: %v", err)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	pub, priv, _ := GenerateKeyPair()
	f, _ := IssueLicense(IssueParams{TenantID: "tenant-1", Tier: TierTeam, ExpiresAt: time.Now().Add(time.Hour)}, priv)
	f.Tier = TierEnterprise // tamper after signing

	if err := Verify(f, pub, time.Now()); err == nil {
		t.Fatal("expected verification to fail after tampering with the tier field")
	}
}

func TestVerifyRejectsExpiredLicense(t *testing.T) {
	pub, priv, _ := GenerateKeyPair()
	f, _ := IssueLicense(IssueParams{TenantID: "tenant-1", Tier: TierTeam, ExpiresAt: time.Now().Add(-time.Hour)}, priv)

	if err := Verify(f, pub, time.Now()); err == nil {
		t.Fatal("expected verification to fail for an expired license")
	}
}

func TestRegistryAllowsExplicitFeatureOverride(t *testing.T) {
	pub, priv, _ := GenerateKeyPair()
	f, _ := IssueLicense(IssueParams{
		TenantID: "tenant-1", Tier: TierCommunity,
		ExpiresAt: time.Now().Add(time.Hour),
		Features:  []string{string(FeatureAIAdvisory)},
	}, priv)

	reg, err := NewRegistry(f, pub, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !reg.Allows(FeatureAIAdvisory) {
		t.Error("expected explicit feature override to enable ai_advisory despite community tier")
	}
	if reg.Allows(FeatureMultiTenant) {
		t.Error("multi_tenant should remain disabled without an override or qualifying tier")
	}
}
