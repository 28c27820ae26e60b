package license

import (
	"crypto/ed25519"
	"crypto/rand"
	"time"

	"github.com/google/uuid"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

// GenerateKeyPair creates a fresh Ed25519 keypair for license signing.
// Not called at runtime by the service itself: it backs the internal
// license-issuance tool, kept here so the issuance format stays in lockstep
// with Verify.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, ironerrors.Unexpected(err)
	}
	return pub, priv, nil
}

// IssueParams describes a license to mint.
type IssueParams struct {
	TenantID          string
	Tier              Tier
	ExpiresAt         time.Time
	MaxModels         int
	MaxPlanRunsPerDay int
	AIEnabled         bool
	Features          []string
	IssuedAt          time.Time // zero means "now" is supplied by the caller
}

// IssueLicense builds and signs a License file from params using
// privateKey, for use by the internal issuance tool.
func IssueLicense(params IssueParams, privateKey ed25519.PrivateKey) (File, error) {
	if params.MaxModels == 0 {
		params.MaxModels = 500
	}
	if params.MaxPlanRunsPerDay == 0 {
		params.MaxPlanRunsPerDay = 100
	}
	f := File{
		LicenseID:         "lic-" + uuid.New().String()[:12],
		TenantID:          params.TenantID,
		Tier:              params.Tier,
		IssuedAt:          params.IssuedAt,
		ExpiresAt:         params.ExpiresAt,
		MaxModels:         params.MaxModels,
		MaxPlanRunsPerDay: params.MaxPlanRunsPerDay,
		AIEnabled:         params.AIEnabled,
		Features:          params.Features,
	}
	sig, err := Sign(f, privateKey)
	if err != nil {
		return File{}, err
	}
	f.Signature = sig
	return f, nil
}
