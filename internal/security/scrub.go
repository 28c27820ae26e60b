// Package security provides the PII/secret scrubber run over every payload
// sent to an LLM collaborator, and over log/telemetry output.
package security

import (
	"regexp"
	"strings"
)

// Pattern represents one scrub rule. Order matters: more specific patterns
// must run before general ones so they are not partially consumed by a
// broader match.
type Pattern struct {
	Name        string
	Regexp      *regexp.Regexp
	Replacement string
}

// patterns is the ordered scrub list. Emails, phone numbers, SSNs, credit
// cards, Databricks-style tokens, and key=value secrets are replaced with
// fixed placeholders; SQL string literals and long numeric literals are
// generalized so the LLM never sees row-level values.
var patterns = []Pattern{
	{
		Name:        "databricks_token",
		Regexp:      regexp.MustCompile(`\bdapi[0-9a-f]{32,}\b`),
		Replacement: "<DAPI_TOKEN>",
	},
	{
		Name:        "key_value_secret",
		Regexp:      regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|api[_-]?key|access[_-]?key|token)\s*[:=]\s*['"]?[A-Za-z0-9_\-./+]{6,}['"]?`),
		Replacement: "$1=<SECRET>",
	},
	{
		Name:        "email",
		Regexp:      regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		Replacement: "<EMAIL>",
	},
	{
		Name:        "ssn",
		Regexp:      regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		Replacement: "<SSN>",
	},
	{
		Name:        "credit_card",
		Regexp:      regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
		Replacement: "<CREDIT_CARD>",
	},
	{
		Name:        "us_phone",
		Regexp:      regexp.MustCompile(`\b(?:\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`),
		Replacement: "<PHONE>",
	},
	{
		Name:        "sql_string_literal",
		Regexp:      regexp.MustCompile(`'(?:[^'\\]|\\.)*'`),
		Replacement: "<LITERAL>",
	},
	{
		Name:        "long_numeric_literal",
		Regexp:      regexp.MustCompile(`\b\d{6,}\b`),
		Replacement: "<ID>",
	},
}

// Scrub removes PII and secret material from text before it is sent to an
// LLM collaborator or written to telemetry/logs.
func Scrub(text string) string {
	if text == "" {
		return text
	}
	result := text
	for _, p := range patterns {
		result = p.Regexp.ReplaceAllString(result, p.Replacement)
	}
	return result
}

// ScrubMap applies Scrub to every string value in data, and fully redacts
// values under keys that look sensitive by name.
func ScrubMap(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	scrubbed := make(map[string]interface{}, len(data))
	for key, value := range data {
		if IsSensitiveKey(key) {
			scrubbed[key] = "<REDACTED>"
			continue
		}
		if strVal, ok := value.(string); ok {
			scrubbed[key] = Scrub(strVal)
		} else {
			scrubbed[key] = value
		}
	}
	return scrubbed
}

// IsSensitiveKey reports whether a map/field key name suggests sensitive data.
func IsSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, keyword := range []string{
		"password", "passwd", "pwd", "secret", "token", "credential",
		"private", "api_key", "apikey", "access_token", "refresh_token",
	} {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}

// AddPattern registers an additional scrub rule, applied after the built-ins.
func AddPattern(name string, re *regexp.Regexp, replacement string) {
	patterns = append(patterns, Pattern{Name: name, Regexp: re, Replacement: replacement})
}
