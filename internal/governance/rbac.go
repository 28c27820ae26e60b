// Package governance implements tenant isolation, authentication/RBAC, the
// approval state machine, the tamper-evident audit chain, quota/budget/rate
// limit guards, CSRF protection, and input validation helpers shared across
// every tenant-scoped operation.
package governance

// Role names a fixed permission level. SERVICE identities (machine callers)
// carry a narrower permission set than ADMIN.
type Role string

const (
	RoleViewer  Role = "VIEWER"
	RoleEditor  Role = "EDITOR"
	RoleApprover Role = "APPROVER"
	RoleAdmin   Role = "ADMIN"
	RoleService Role = "SERVICE"
)

// Capability names a single permission an operation requires.
type Capability string

const (
	CapViewPlans       Capability = "view_plans"
	CapGeneratePlans   Capability = "generate_plans"
	CapApprovePlans    Capability = "approve_plans"
	CapApplyPlans      Capability = "apply_plans"
	CapManageTenant    Capability = "manage_tenant"
	CapViewAdminReports Capability = "view_admin_reports"
	CapManageWebhooks  Capability = "manage_webhooks"
	CapCallAdvisory    Capability = "call_advisory"
)

// matrix is the fixed role -> capability set. It is intentionally a
// package-level literal, not configurable at runtime: the permission model
// is a security boundary, not a tenant preference.
var matrix = map[Role]map[Capability]bool{
	RoleViewer: {
		CapViewPlans: true,
	},
	RoleEditor: {
		CapViewPlans:     true,
		CapGeneratePlans: true,
		CapManageWebhooks: true,
		CapCallAdvisory:  true,
	},
	RoleApprover: {
		CapViewPlans:     true,
		CapGeneratePlans: true,
		CapApprovePlans:  true,
		CapCallAdvisory:  true,
	},
	RoleAdmin: {
		CapViewPlans:        true,
		CapGeneratePlans:    true,
		CapApprovePlans:     true,
		CapApplyPlans:       true,
		CapManageTenant:     true,
		CapViewAdminReports: true,
		CapManageWebhooks:   true,
		CapCallAdvisory:     true,
	},
	RoleService: {
		CapViewPlans:     true,
		CapGeneratePlans: true,
		CapApplyPlans:    true,
		CapCallAdvisory:  true,
	},
}

// Allows reports whether role carries capability cap.
func Allows(role Role, cap Capability) bool {
	caps, ok := matrix[role]
	if !ok {
		return false
	}
	return caps[cap]
}

// IdentityKind distinguishes a human user token from a machine/service token.
type IdentityKind string

const (
	IdentityUser    IdentityKind = "user"
	IdentityService IdentityKind = "service"
)

// Identity is the authenticated principal attached to a request context
// after token verification.
type Identity struct {
	Subject      string
	TenantID     string
	IdentityKind IdentityKind
	Role         Role
	Scopes       []string
	JTI          string
}

// HasScope reports whether scope is present on the identity.
func (id Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
