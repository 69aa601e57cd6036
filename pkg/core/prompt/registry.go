package prompt

import (
	"fmt"
	"sync"
)

// Registry holds all loaded prompt templates.
type Registry struct {
	prompts map[string]*Template
	mu      sync.RWMutex
}

var globalRegistry *Registry
var once sync.Once

// Get returns the global registry singleton with the built-in prompts loaded.
func Get() *Registry {
	once.Do(func() {
		globalRegistry = &Registry{prompts: make(map[string]*Template)}
		registerBuiltins(globalRegistry)
	})
	return globalRegistry
}

// Register adds or replaces a template in the registry.
func (r *Registry) Register(t *Template) error {
	if t.ID == "" {
		return fmt.Errorf("prompt ID cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[t.ID] = t
	return nil
}

// Prompt retrieves a template by ID.
func (r *Registry) Prompt(id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.prompts[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("prompt not found: %s", id)
}

// MustRender looks up a template and renders it, returning the system prompt
// and the rendered user prompt.
func (r *Registry) MustRender(id string, vars map[string]interface{}) (string, string, error) {
	t, err := r.Prompt(id)
	if err != nil {
		return "", "", err
	}
	user, err := t.Render(vars)
	if err != nil {
		return "", "", err
	}
	return t.SystemPrompt, user, nil
}

// Count returns the number of registered prompts.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prompts)
}
