// Package llm defines the extraction-oracle contract the pipeline consumes
// and its Gemini implementation. The oracle accepts a prompt plus optional
// binary attachments and returns free-form text; everything downstream of
// the call (JSON recovery, validation, defaults) is the caller's problem.
package llm

import "context"

// Attachment is a binary document supplied to a vision-capable call.
type Attachment struct {
	MediaType string
	Filename  string
	Bytes     []byte
}

// CallConfig tunes one oracle invocation.
type CallConfig struct {
	Temperature     float32 // creativity; extraction runs near zero
	MaxOutputTokens int32   // output budget; zero means provider default
	HighReasoning   bool    // slower model with a thinking budget
	JSONOutput      bool    // request application/json responses
	SystemPrompt    string
}

// Oracle is the single interface between the pipeline and the language model.
// Failures are recoverable by contract: callers degrade the affected stage
// instead of aborting the run.
type Oracle interface {
	Invoke(ctx context.Context, prompt string, cfg CallConfig, attachments ...Attachment) (string, error)
}

// FastExtraction is the low-reasoning, large-output profile used by the
// classification and category extraction stages.
func FastExtraction(system string) CallConfig {
	return CallConfig{
		Temperature:     0.1,
		MaxOutputTokens: 16384,
		JSONOutput:      true,
		SystemPrompt:    system,
	}
}

// DeepReasoning is the high-reasoning, smaller-output profile used by the
// reconciler and the anomaly scan.
func DeepReasoning(system string) CallConfig {
	return CallConfig{
		Temperature:     0.2,
		MaxOutputTokens: 8192,
		HighReasoning:   true,
		JSONOutput:      true,
		SystemPrompt:    system,
	}
}
