package llm

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// GeminiOracle implements Oracle on top of the official GenAI SDK.
type GeminiOracle struct {
	FastModel string // e.g. "gemini-2.0-flash"
	DeepModel string // e.g. "gemini-2.5-pro"
}

var _ Oracle = (*GeminiOracle)(nil)

const defaultThinkingBudget = int32(8192)

// Invoke sends a generateContent request. HighReasoning selects the deep
// model and enables a thinking budget; attachments become inline parts so
// vision-only documents can be analyzed directly from their bytes.
func (g *GeminiOracle) Invoke(ctx context.Context, prompt string, cfg CallConfig, attachments ...Attachment) (string, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	model := g.FastModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if cfg.HighReasoning {
		model = g.DeepModel
		if model == "" {
			model = "gemini-2.5-pro"
		}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create GenAI client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(cfg.Temperature),
	}
	if cfg.MaxOutputTokens > 0 {
		config.MaxOutputTokens = cfg.MaxOutputTokens
	}
	if cfg.JSONOutput {
		config.ResponseMIMEType = "application/json"
	}
	if cfg.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemPrompt}},
		}
	}
	if cfg.HighReasoning {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(defaultThinkingBudget),
		}
	}

	parts := []*genai.Part{{Text: prompt}}
	for _, att := range attachments {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: att.MediaType,
				Data:     att.Bytes,
			},
		})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	result, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	return result.Text(), nil
}
