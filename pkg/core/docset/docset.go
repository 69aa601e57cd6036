// Package docset renders a set of prepared documents into oracle call inputs:
// usable text is inlined into the prompt, vision-only documents ride along as
// binary attachments.
package docset

import (
	"fmt"
	"strings"

	"fiscal_blueprint/pkg/core/llm"
	"fiscal_blueprint/pkg/models"
)

// DefaultMaxCharsPerDoc bounds each inlined document excerpt.
const DefaultMaxCharsPerDoc = 20000

// Payload is the rendered input of one oracle call.
type Payload struct {
	Text        string
	Attachments []llm.Attachment
	DocIDs      []string
}

// Build renders documents. forceVision makes every document an attachment
// regardless of usable text (the bank extractor's retry path).
func Build(docs []models.PreparedDocument, maxCharsPerDoc int, forceVision bool) Payload {
	if maxCharsPerDoc <= 0 {
		maxCharsPerDoc = DefaultMaxCharsPerDoc
	}

	var sb strings.Builder
	var payload Payload
	for _, doc := range docs {
		payload.DocIDs = append(payload.DocIDs, doc.ID)

		if doc.HasUsableText && !forceVision {
			text := doc.Text
			if len(text) > maxCharsPerDoc {
				text = text[:maxCharsPerDoc] + "... [truncated]"
			}
			sb.WriteString(fmt.Sprintf("=== Document: %s ===\n%s\n\n", doc.Filename, text))
			continue
		}

		payload.Attachments = append(payload.Attachments, llm.Attachment{
			MediaType: doc.MediaType,
			Filename:  doc.Filename,
			Bytes:     doc.Bytes,
		})
		sb.WriteString(fmt.Sprintf("=== Document: %s === (attached as binary)\n\n", doc.Filename))
	}
	payload.Text = strings.TrimSpace(sb.String())
	return payload
}
