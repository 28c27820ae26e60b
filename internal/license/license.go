package license

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"time"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

func encodeSignature(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}

func decodeSignature(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// File is a signed license: the payload fields plus its detached
// signature. Signature is verified over the canonical JSON encoding of
// every field except Signature itself.
type File struct {
	LicenseID         string   `json:"license_id"`
	TenantID          string   `json:"tenant_id"`
	Tier              Tier     `json:"tier"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	MaxModels         int      `json:"max_models"`
	MaxPlanRunsPerDay int      `json:"max_plan_runs_per_day"`
	AIEnabled         bool     `json:"ai_enabled"`
	Features          []string `json:"features"`
	Signature         string   `json:"signature,omitempty"`
}

// payload is File's signable subset: a fixed struct with json field order
// preserved (Go's encoding/json emits struct fields in declaration order,
// giving a canonical byte sequence without needing map-key sorting).
type payload struct {
	LicenseID         string    `json:"license_id"`
	TenantID          string    `json:"tenant_id"`
	Tier              Tier      `json:"tier"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	MaxModels         int       `json:"max_models"`
	MaxPlanRunsPerDay int       `json:"max_plan_runs_per_day"`
	AIEnabled         bool      `json:"ai_enabled"`
	Features          []string  `json:"features"`
}

func (f File) canonicalBytes() ([]byte, error) {
	p := payload{
		LicenseID: f.LicenseID, TenantID: f.TenantID, Tier: f.Tier,
		IssuedAt: f.IssuedAt, ExpiresAt: f.ExpiresAt,
		MaxModels: f.MaxModels, MaxPlanRunsPerDay: f.MaxPlanRunsPerDay,
		AIEnabled: f.AIEnabled, Features: f.Features,
	}
	return json.Marshal(p)
}

// Sign computes File's Ed25519 signature using privateKey (the raw
// 64-byte seed+pub form ed25519.PrivateKey) and returns the base64
// signature. Used only by the internal issuance tool, not by runtime
// license verification.
func Sign(f File, privateKey ed25519.PrivateKey) (string, error) {
	msg, err := f.canonicalBytes()
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(privateKey, msg)
	return encodeSignature(sig), nil
}

// Verify checks f.Signature against publicKey and, if valid, that f has
// not expired as of now. Returns an Unauthorized ServiceError on any
// signature or expiry failure so callers can treat it uniformly with
// other auth failures.
func Verify(f File, publicKey ed25519.PublicKey, now time.Time) error {
	sig, err := decodeSignature(f.Signature)
	if err != nil {
		return ironerrors.Unauthorized("license signature is not valid base64")
	}
	msg, err := f.canonicalBytes()
	if err != nil {
		return ironerrors.Unauthorized("license payload could not be canonicalized")
	}
	if !ed25519.Verify(publicKey, msg, sig) {
		return ironerrors.Unauthorized("license signature verification failed")
	}
	if now.After(f.ExpiresAt) {
		return ironerrors.Unauthorized("license has expired")
	}
	return nil
}

// Registry holds a verified license for a single tenant process and
// answers feature-gate checks against it.
type Registry struct {
	license File
}

// NewRegistry verifies f against publicKey and, on success, returns a
// Registry that gates feature checks by f's tier plus any explicit
// Features override.
func NewRegistry(f File, publicKey ed25519.PublicKey, now time.Time) (*Registry, error) {
	if err := Verify(f, publicKey, now); err != nil {
		return nil, err
	}
	return &Registry{license: f}, nil
}

// Allows reports whether feature is enabled under the registry's license:
// either named explicitly in the license's Features override, or included
// in the license's tier.
func (r *Registry) Allows(feature Feature) bool {
	for _, f := range r.license.Features {
		if Feature(f) == feature {
			return true
		}
	}
	return IsFeatureEnabled(r.license.Tier, feature)
}

// Tier returns the registry's license tier.
func (r *Registry) Tier() Tier {
	return r.license.Tier
}

// MaxModels returns the license's model-count entitlement.
func (r *Registry) MaxModels() int {
	return r.license.MaxModels
}

// MaxPlanRunsPerDay returns the license's daily plan-run entitlement.
func (r *Registry) MaxPlanRunsPerDay() int {
	return r.license.MaxPlanRunsPerDay
}
