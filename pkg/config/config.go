// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is everything the pipeline process reads from the environment.
// GEMINI_API_KEY is read directly by the Gemini client.
type Config struct {
	FastModel     string `envconfig:"FAST_MODEL" default:"gemini-2.0-flash"`
	DeepModel     string `envconfig:"DEEP_MODEL" default:"gemini-2.5-pro"`
	Sequential    bool   `envconfig:"SEQUENTIAL_EXTRACTION" default:"false"`
	PolicyFile    string `envconfig:"POLICY_FILE"`
	PromptDir     string `envconfig:"PROMPT_DIR"`
	Persist       bool   `envconfig:"PERSIST_BLUEPRINTS" default:"false"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	OutputDir     string `envconfig:"OUTPUT_DIR" default:"."`
	ClientContext string `envconfig:"CLIENT_CONTEXT"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &c, nil
}
