// Package prompt provides a centralized prompt library for oracle calls.
// Instruction wording lives here (or in JSON files loaded at runtime), not in
// the stage code, so prompts can change without touching pipeline control flow.
package prompt

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template is a reusable prompt with metadata.
type Template struct {
	ID             string `json:"id"`       // e.g. "classify.document"
	Name           string `json:"name"`     // human-readable name
	Category       string `json:"category"` // classify, authority, assets, reconcile, anomaly
	SystemPrompt   string `json:"system_prompt"`
	UserPromptTmpl string `json:"user_prompt_template"` // Go template for the user prompt
	Version        string `json:"version"`
}

// Render executes the user-prompt template with the given variables.
func (t *Template) Render(vars map[string]interface{}) (string, error) {
	tmpl, err := template.New(t.ID).Parse(t.UserPromptTmpl)
	if err != nil {
		return "", fmt.Errorf("invalid prompt template %s: %w", t.ID, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", t.ID, err)
	}
	return buf.String(), nil
}
