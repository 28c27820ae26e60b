package security

import (
	"strings"
	"testing"
)

func TestScrubEmail(t *testing.T) {
	got := Scrub("contact jane.doe@example.com for access")
	if strings.Contains(got, "jane.doe@example.com") {
		t.Errorf("Scrub() did not remove email: %s", got)
	}
	if !strings.Contains(got, "<EMAIL>") {
		t.Errorf("Scrub() = %s, want <EMAIL> placeholder", got)
	}
}

func TestScrubSSN(t *testing.T) {
	got := Scrub("ssn on file: 123-45-6789")
	if strings.Contains(got, "123-45-6789") || !strings.Contains(got, "<SSN>") {
		t.Errorf("Scrub() = %s, want SSN redacted", got)
	}
}

func TestScrubDatabricksToken(t *testing.T) {
	token := "dapi" + strings.Repeat("a1b2", 10)
	got := Scrub("Authorization: Bearer " + token)
	if strings.Contains(got, token) {
		t.Errorf("Scrub() did not remove databricks token: %s", got)
	}
}

func TestScrubKeyValueSecret(t *testing.T) {
	got := Scrub(`password=hunter2much`)
	if strings.Contains(got, "hunter2much") {
		t.Errorf("Scrub() did not remove secret value: %s", got)
	}
}

func TestScrubSQLLiteral(t *testing.T) {
	got := Scrub(`WHERE email = 'jane@example.com' AND status = 'active'`)
	if strings.Contains(got, "jane@example.com") || strings.Contains(got, "active") {
		t.Errorf("Scrub() did not remove SQL literals: %s", got)
	}
}

func TestScrubLongNumericLiteral(t *testing.T) {
	got := Scrub("customer_id = 1234567890")
	if strings.Contains(got, "1234567890") {
		t.Errorf("Scrub() did not generalize long numeric literal: %s", got)
	}
}

func TestScrubMapRedactsSensitiveKeys(t *testing.T) {
	in := map[string]interface{}{
		"api_key": "abc123def456",
		"model":   "orders_summary",
	}
	out := ScrubMap(in)
	if out["api_key"] != "<REDACTED>" {
		t.Errorf("ScrubMap() api_key = %v, want <REDACTED>", out["api_key"])
	}
	if out["model"] != "orders_summary" {
		t.Errorf("ScrubMap() model = %v, want unchanged", out["model"])
	}
}

func TestScrubEmptyString(t *testing.T) {
	if got := Scrub(""); got != "" {
		t.Errorf("Scrub(\"\") = %q, want empty", got)
	}
}
