// Package prompts holds the frozen, versioned prompt registry advisory
// LLM calls draw from. No call site builds a prompt string ad hoc: every
// call names a registered prompt_id and gets back the prompt_version that
// accompanies its usage/log record.
package prompts

import (
	"bytes"
	"fmt"
	"text/template"
)

// Prompt is one versioned template in the registry.
type Prompt struct {
	ID       string
	Version  string
	Template string // a text/template-style body using {{.field}} placeholders
}

var registry = map[string]Prompt{
	"risk_summary": {
		ID:      "risk_summary",
		Version: "2026-01",
		Template: "Summarize the operational risk of model {{.model}} given a risk " +
			"score of {{.score}}/10, downstream depth {{.downstream_depth}}, and " +
			"historical failure rate {{.failure_rate}}. Respond in two sentences.",
	},
	"fragility_explanation": {
		ID:      "fragility_explanation",
		Version: "2026-01",
		Template: "Explain in plain language why model {{.model}} has a fragility " +
			"composite of {{.composite}}/10, given own risk {{.own_risk}}, upstream " +
			"risk {{.upstream_risk}}, and cascade risk {{.cascade_risk}}.",
	},
	"cost_anomaly_narrative": {
		ID:      "cost_anomaly_narrative",
		Version: "2026-01",
		Template: "Model {{.model}}'s latest run cost is classified {{.class}} " +
			"(z-score {{.z_score}}). Write one sentence a data engineer would see " +
			"in a plan review.",
	},
}

// Get returns the registered Prompt for id, or an error if unregistered.
func Get(id string) (Prompt, error) {
	p, ok := registry[id]
	if !ok {
		return Prompt{}, fmt.Errorf("prompts: unknown prompt id %q", id)
	}
	return p, nil
}

// Render fills p.Template with data, using Go's text/template against a
// map[string]interface{} context.
func (p Prompt) Render(data map[string]interface{}) (string, error) {
	tmpl, err := template.New(p.ID).Parse(p.Template)
	if err != nil {
		return "", fmt.Errorf("prompts: template %q invalid: %w", p.ID, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompts: render %q failed: %w", p.ID, err)
	}
	return buf.String(), nil
}

// IDs returns every registered prompt id, for diagnostics/testing.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	return ids
}
