package governance

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

// safeMethods lists HTTP methods that only ever establish a CSRF cookie,
// never require one.
var safeMethods = map[string]bool{"GET": true, "HEAD": true, "OPTIONS": true, "TRACE": true}

// NewCSRFToken generates a fresh random token for the double-submit cookie.
func NewCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", ironerrors.Unexpected(err)
	}
	return hex.EncodeToString(buf), nil
}

// CSRFCheckInput bundles what ValidateCSRF needs about one request.
type CSRFCheckInput struct {
	Method          string
	CookieAuthenticated bool // true when the request's auth came from a session cookie
	CookieValue     string
	HeaderValue     string
}

// ValidateCSRF implements the double-submit cookie check. Safe methods
// (GET/HEAD/OPTIONS/TRACE) never require validation — the caller is
// expected to issue a fresh cookie on those if none exists yet. Requests
// authenticated by bearer token or API key bypass CSRF entirely, since
// they carry no ambient browser credential for a forged cross-site request
// to exploit. State-changing requests authenticated by cookie must present
// a header value matching the cookie via constant-time compare.
func ValidateCSRF(in CSRFCheckInput) error {
	if safeMethods[in.Method] {
		return nil
	}
	if !in.CookieAuthenticated {
		return nil
	}
	if in.CookieValue == "" || in.HeaderValue == "" {
		return ironerrors.Csrf("missing csrf cookie or header")
	}
	if subtle.ConstantTimeCompare([]byte(in.CookieValue), []byte(in.HeaderValue)) != 1 {
		return ironerrors.Csrf("csrf header does not match cookie")
	}
	return nil
}
