package governance

import (
	"context"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

type contextKey string

const identityContextKey contextKey = "governance_identity"

// ContextWithIdentity attaches an authenticated Identity to ctx. Every
// tenant-scoped store operation reads the tenant ID back out of this
// context rather than trusting a caller-supplied value, so a request
// cannot widen its own scope by passing a different tenant_id in a body
// or query parameter.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves the Identity attached by ContextWithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// RequireCapability returns an Unauthorized ServiceError if ctx carries no
// authenticated identity, and a Forbidden one if the identity's role does
// not allow cap.
func RequireCapability(ctx context.Context, cap Capability) (Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, ironerrors.Unauthorized("no authenticated identity on context")
	}
	if !Allows(id.Role, cap) {
		return id, ironerrors.Forbidden("role " + string(id.Role) + " lacks capability " + string(cap))
	}
	return id, nil
}

// RequireTenant returns an Unauthorized ServiceError if ctx carries no
// identity, and a Forbidden one if the identity on ctx does not belong to
// tenantID — the defense-in-depth application-level
// check layered on top of the database row-level security policy.
func RequireTenant(ctx context.Context, tenantID string) (Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, ironerrors.Unauthorized("no authenticated identity on context")
	}
	if id.TenantID != tenantID {
		return id, ironerrors.Forbidden("identity does not belong to tenant " + tenantID)
	}
	return id, nil
}
