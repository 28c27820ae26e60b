package sqltoolkit

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// CanonicalizerVersion versions the normalization ruleset. Changing what
// counts as "cosmetic" requires bumping the version so previously computed
// hashes never silently collide with hashes produced under a tightened
// rule-set.
type CanonicalizerVersion string

const (
	CanonV1 CanonicalizerVersion = "v1"
	CanonV2 CanonicalizerVersion = "v2"
)

// CurrentCanonicalizerVersion is the version new hashes are computed under.
const CurrentCanonicalizerVersion = CanonV2

// Normalize reduces sql to a canonical textual form: comments and
// whitespace-only tokens are dropped, remaining tokens are rejoined with a
// single space, and (from CanonV2 onward) keyword tokens are lowercased so
// that keyword-case-only edits are treated as cosmetic. A trailing
// semicolon is stripped.
func Normalize(sql string, version CanonicalizerVersion) string {
	tokens := Tokenize(sql)
	var parts []string
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenLineComment, TokenBlockComment, TokenWhitespace:
			continue
		case TokenKeyword:
			if version == CanonV1 {
				parts = append(parts, tok.Raw)
			} else {
				parts = append(parts, strings.ToLower(tok.Raw))
			}
		default:
			parts = append(parts, tok.Raw)
		}
	}
	normalized := strings.Join(parts, " ")
	normalized = strings.TrimRight(strings.TrimSpace(normalized), ";")
	return normalized
}

// ComputeCanonicalHash hashes the canonical form of sql together with
// sorted metadata pairs (e.g. materialization, dialect), so two models with
// identical SQL but different declared materialization still hash
// differently. The version string is folded in as a domain-separating
// prefix: "ironlayer-canon-{version}:".
func ComputeCanonicalHash(sql string, version CanonicalizerVersion, metadata map[string]string) string {
	var b strings.Builder
	b.WriteString("ironlayer-canon-")
	b.WriteString(string(version))
	b.WriteString(":")
	b.WriteString(Normalize(sql, version))

	if len(metadata) > 0 {
		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("\n")
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(metadata[k])
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
