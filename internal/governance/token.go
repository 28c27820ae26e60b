package governance

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

// Claims are the bearer token payload: {sub, tenant_id, identity_kind,
// role, scopes, jti, iat, exp}.
type Claims struct {
	jwt.RegisteredClaims
	TenantID     string       `json:"tenant_id"`
	IdentityKind IdentityKind `json:"identity_kind"`
	Role         Role         `json:"role"`
	Scopes       []string     `json:"scopes"`
}

// TokenIssuer mints and verifies HMAC-signed bearer tokens for the dev
// authentication mode. This package does not verify OIDC tokens and
// defines no interface for an OIDC verifier.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration

	mu       sync.Mutex
	revoked  map[string]bool // jti -> revoked
}

// NewTokenIssuer constructs a TokenIssuer signing with secret and issuing
// tokens valid for ttl.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl, revoked: make(map[string]bool)}
}

// Issue mints a signed token for the given identity fields.
func (t *TokenIssuer) Issue(subject, tenantID string, kind IdentityKind, role Role, scopes []string) (string, error) {
	jti, err := randomID()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        jti,
		},
		TenantID:     tenantID,
		IdentityKind: kind,
		Role:         role,
		Scopes:       scopes,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates a token, returning its Identity. Returns an
// Unauthorized error on any signature, expiry, or revocation failure.
func (t *TokenIssuer) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ironerrors.Unauthorized("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ironerrors.Unauthorized("invalid or expired token")
	}

	t.mu.Lock()
	isRevoked := t.revoked[claims.ID]
	t.mu.Unlock()
	if isRevoked {
		return Identity{}, ironerrors.Unauthorized("token has been revoked")
	}

	return Identity{
		Subject:      claims.Subject,
		TenantID:     claims.TenantID,
		IdentityKind: claims.IdentityKind,
		Role:         claims.Role,
		Scopes:       claims.Scopes,
		JTI:          claims.ID,
	}, nil
}

// Revoke marks jti as revoked; subsequent Verify calls for a token with
// this jti fail even if not yet expired.
func (t *TokenIssuer) Revoke(jti string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[jti] = true
}

func randomID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", ironerrors.Unexpected(err)
	}
	return hex.EncodeToString(buf), nil
}

// APIKey is an opaque bearer credential presented by service callers. The
// plaintext is never stored: only a deterministic lookup Prefix (so the
// store can find candidate rows without a full-table scan) and a bcrypt
// Hash of the full key.
type APIKey struct {
	Prefix   string
	Hash     string
	TenantID string
	Role     Role
}

// GenerateAPIKey creates a new opaque key plus the APIKey record to
// persist (Hash populated, plaintext returned separately and never
// stored).
func GenerateAPIKey(tenantID string, role Role) (plaintext string, record APIKey, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", APIKey{}, ironerrors.Unexpected(err)
	}
	plaintext = hex.EncodeToString(buf)
	prefix := plaintext[:8]

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", APIKey{}, ironerrors.Unexpected(err)
	}
	return plaintext, APIKey{Prefix: prefix, Hash: string(hash), TenantID: tenantID, Role: role}, nil
}

// KeyPrefix extracts the deterministic lookup prefix from a presented
// plaintext key, used to narrow a store lookup before the constant-time
// bcrypt comparison.
func KeyPrefix(plaintext string) string {
	if len(plaintext) < 8 {
		return plaintext
	}
	return plaintext[:8]
}

// VerifyAPIKey compares a presented plaintext key against a candidate
// record's stored hash.
func VerifyAPIKey(record APIKey, plaintext string) bool {
	if subtle.ConstantTimeCompare([]byte(KeyPrefix(plaintext)), []byte(record.Prefix)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(record.Hash), []byte(plaintext)) == nil
}
