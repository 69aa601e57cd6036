package prompt

import (
	"strings"
	"testing"
)

func TestBuiltinsRegistered(t *testing.T) {
	r := Get()
	for _, id := range []string{
		"classify.document",
		"authority.identity",
		"authority.totals",
		"authority.checklist",
		"assets.extract",
		"reconcile.missing",
		"anomaly.scan",
	} {
		if _, err := r.Prompt(id); err != nil {
			t.Errorf("builtin %s missing: %v", id, err)
		}
	}
}

func TestMustRenderSubstitutesVars(t *testing.T) {
	system, user, err := Get().MustRender("classify.document", map[string]interface{}{
		"Filename": "aanslag_2023.pdf",
		"Text":     "document body",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if system == "" {
		t.Error("system prompt empty")
	}
	if !strings.Contains(user, "aanslag_2023.pdf") || !strings.Contains(user, "document body") {
		t.Errorf("vars not substituted:\n%s", user)
	}
}

func TestRenderBinaryFallbackWording(t *testing.T) {
	_, user, err := Get().MustRender("classify.document", map[string]interface{}{
		"Filename": "scan.pdf",
		"Text":     "",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(user, "attached as a binary file") {
		t.Errorf("empty text should switch to the attachment wording:\n%s", user)
	}
}

func TestRegisterOverride(t *testing.T) {
	r := Get()
	orig, err := r.Prompt("anomaly.scan")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = r.Register(orig) }()

	custom := &Template{
		ID:             "anomaly.scan",
		Name:           "custom",
		Category:       "anomaly",
		SystemPrompt:   "s",
		UserPromptTmpl: "custom scan of {{.Summary}}",
		Version:        "2.0",
	}
	if err := r.Register(custom); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, user, err := r.MustRender("anomaly.scan", map[string]interface{}{"Summary": "X"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if user != "custom scan of X" {
		t.Errorf("override not applied: %q", user)
	}
}
