// Package modeldef loads SQL transformation model definitions from a
// repository of files, parsing front-matter headers and resolving ref()
// macros against the rest of the model graph.
package modeldef

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ironlayer/ironlayer/internal/sqltoolkit"
)

// Materialization describes how a model's output is persisted.
type Materialization string

const (
	MaterializationTable          Materialization = "table"
	MaterializationView           Materialization = "view"
	MaterializationIncremental    Materialization = "incremental"
	MaterializationEphemeral      Materialization = "ephemeral"
)

// ColumnContract declares an expected output column's name and type, used
// by the schema-contract check.
type ColumnContract struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
}

// Model is a single transformation model definition: its header metadata
// plus its raw SQL body.
type Model struct {
	Name            string
	Kind            string
	Materialization Materialization
	TimeColumn      string
	UniqueKey       []string
	Tags            []string
	Owner           string
	Contracts       []ColumnContract
	Tests           []string
	SQL             string
	Refs            []string
}

var headerLineRe = regexp.MustCompile(`^--\s*([a-zA-Z_]+)\s*:\s*(.*)$`)

// Parse reads a model's raw file content: a leading block of `-- key:
// value` header comment lines followed by the SQL body.
func Parse(name, content string) (*Model, error) {
	lines := strings.Split(content, "\n")
	header := map[string]string{}
	bodyStart := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			bodyStart = i + 1
			continue
		}
		m := headerLineRe.FindStringSubmatch(trimmed)
		if m == nil {
			bodyStart = i
			break
		}
		header[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
		bodyStart = i + 1
	}

	sql := strings.TrimSpace(strings.Join(lines[bodyStart:], "\n"))
	if sql == "" {
		return nil, fmt.Errorf("modeldef: model %q has no SQL body", name)
	}

	model := &Model{
		Name:            name,
		Kind:            headerOr(header, "kind", "model"),
		Materialization: Materialization(headerOr(header, "materialization", string(MaterializationView))),
		TimeColumn:      header["time_column"],
		Owner:           header["owner"],
		SQL:             sql,
		Refs:            sqltoolkit.ExtractRefs(sql),
	}

	if uk, ok := header["unique_key"]; ok {
		model.UniqueKey = splitCSV(uk)
	}
	if tags, ok := header["tags"]; ok {
		model.Tags = splitCSV(tags)
	}
	if tests, ok := header["tests"]; ok {
		model.Tests = splitCSV(tests)
	}

	sort.Strings(model.Refs)
	return model, nil
}

func headerOr(header map[string]string, key, fallback string) string {
	if v, ok := header[key]; ok && v != "" {
		return v
	}
	return fallback
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// IsIncremental reports whether the model only ever processes a bounded
// time window rather than being rebuilt in full on every run.
func (m *Model) IsIncremental() bool {
	return m.Materialization == MaterializationIncremental
}
