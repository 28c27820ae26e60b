package governance

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

var (
	gitSHARe    = regexp.MustCompile(`^[0-9a-fA-F]{4,40}$`)
	gitRefNameRe = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)
)

// ValidateGitRef accepts either a short-or-long hex SHA or a conservative
// branch/tag-name pattern, rejecting anything with shell metacharacters or
// path traversal segments.
func ValidateGitRef(ref string) error {
	if gitSHARe.MatchString(ref) {
		return nil
	}
	if gitRefNameRe.MatchString(ref) && !strings.Contains(ref, "..") {
		return nil
	}
	return ironerrors.Validation("git_ref", "must be a hex SHA or a safe branch/tag name")
}

// ValidatePathUnderBase resolves path against base and asserts the result
// still lies under base, rejecting `../` traversal outside the allow-listed
// root.
func ValidatePathUnderBase(base, path string) (string, error) {
	resolvedBase, err := filepath.Abs(base)
	if err != nil {
		return "", ironerrors.Validation("path", "base path could not be resolved")
	}
	joined := filepath.Join(resolvedBase, path)
	resolved, err := filepath.Abs(joined)
	if err != nil {
		return "", ironerrors.Validation("path", "path could not be resolved")
	}
	if resolved != resolvedBase && !strings.HasPrefix(resolved, resolvedBase+string(filepath.Separator)) {
		return "", ironerrors.Validation("path", "path escapes the allow-listed base directory")
	}
	return resolved, nil
}

// AllowDevLoopbackWebhooks toggles whether ValidateWebhookURL permits
// plain-HTTP loopback URLs, intended for local development only.
var AllowDevLoopbackWebhooks = false

// ValidateWebhookURL requires HTTPS (or, when AllowDevLoopbackWebhooks is
// set, HTTP restricted to loopback), and requires the host to resolve to a
// non-private, non-loopback address — an SSRF guard against a webhook
// target pointed at internal infrastructure.
func ValidateWebhookURL(raw string, resolver func(host string) ([]net.IP, error)) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ironerrors.Validation("webhook_url", "not a valid URL")
	}

	host := u.Hostname()
	switch u.Scheme {
	case "https":
		// always fine, subject to the IP check below
	case "http":
		if !AllowDevLoopbackWebhooks || !isLoopbackHost(host) {
			return ironerrors.Validation("webhook_url", "must use https (http permitted only for loopback in dev)")
		}
	default:
		return ironerrors.Validation("webhook_url", "unsupported scheme "+u.Scheme)
	}

	ips, err := resolver(host)
	if err != nil {
		return ironerrors.Validation("webhook_url", "host could not be resolved")
	}
	for _, ip := range ips {
		if isPrivateOrReserved(ip) && !(AllowDevLoopbackWebhooks && ip.IsLoopback()) {
			return ironerrors.Validation("webhook_url", fmt.Sprintf("resolves to a private/reserved address %s", ip))
		}
	}
	return nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func isPrivateOrReserved(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// EscapeLikeTerm escape-prefixes a user-supplied term before it is
// interpolated into a SQL LIKE pattern, so `%` and `_` are treated
// literally rather than as wildcards.
func EscapeLikeTerm(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return replacer.Replace(term)
}

// dangerousCSVPrefixes are the leading characters that a spreadsheet
// application will interpret as the start of a formula.
var dangerousCSVPrefixes = []byte{'=', '+', '-', '@', '\t', '\r'}

// SanitizeCSVCell prefixes a cell value with a single quote if it begins
// with a character a spreadsheet application would interpret as a formula,
// defusing CSV formula injection on export.
func SanitizeCSVCell(value string) string {
	if value == "" {
		return value
	}
	for _, b := range dangerousCSVPrefixes {
		if value[0] == b {
			return "'" + value
		}
	}
	return value
}
