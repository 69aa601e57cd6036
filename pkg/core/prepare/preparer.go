// Package prepare normalizes raw dossier documents to a uniform shape:
// original bytes plus best-effort extracted text, with a per-document
// decision on whether downstream extraction can rely on the text or must
// fall back to vision-based analysis of the binary.
package prepare

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"fiscal_blueprint/pkg/models"
	"fiscal_blueprint/pkg/core/policy"
)

// ExtractedText is the contract consumed from the external text-recognition
// service. The usability threshold is applied here, not in the service.
type ExtractedText struct {
	Text         string
	CharCount    int
	CharsPerPage float64
}

// TextExtractor abstracts the OCR / text-from-PDF collaborator.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, filename string) (*ExtractedText, error)
}

// Preparer decides per document whether extraction proceeds from text.
type Preparer struct {
	extractor TextExtractor
	pol       *policy.Policy
}

// NewPreparer creates a preparer. extractor may be nil, in which case every
// non-HTML document is treated as vision-only.
func NewPreparer(extractor TextExtractor, pol *policy.Policy) *Preparer {
	if pol == nil {
		pol = policy.Default()
	}
	return &Preparer{extractor: extractor, pol: pol}
}

// Prepare annotates every document with its usable-text decision. Extraction
// errors are swallowed: a document that cannot yield text is demoted to
// vision-only, never fatal.
func (p *Preparer) Prepare(ctx context.Context, docs []models.RawDocument) []models.PreparedDocument {
	out := make([]models.PreparedDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		prepared := models.PreparedDocument{RawDocument: doc}

		switch {
		case isHTML(doc.MediaType):
			text := htmlToText(doc.Bytes)
			prepared.Text = text
			prepared.CharCount = len(text)
			prepared.CharsPerPage = float64(len(text))
		case isTextRepresentable(doc.MediaType) && p.extractor != nil:
			res, err := p.extractor.ExtractText(ctx, doc.Bytes, doc.Filename)
			if err != nil {
				fmt.Printf("Warning: text extraction failed for %s: %v (vision-only)\n", doc.Filename, err)
				break
			}
			prepared.Text = res.Text
			prepared.CharCount = res.CharCount
			prepared.CharsPerPage = res.CharsPerPage
		case isPlainText(doc.MediaType):
			prepared.Text = string(doc.Bytes)
			prepared.CharCount = len(prepared.Text)
			prepared.CharsPerPage = float64(len(prepared.Text))
		}

		prepared.HasUsableText = p.usable(prepared)
		if !prepared.HasUsableText {
			// Near-empty OCR output from scanned pages must not be trusted.
			prepared.Text = ""
		}
		out = append(out, prepared)
	}
	return out
}

// usable guards against near-empty OCR output: text counts only above a
// minimum character density.
func (p *Preparer) usable(doc models.PreparedDocument) bool {
	if strings.TrimSpace(doc.Text) == "" {
		return false
	}
	if doc.CharCount < p.pol.MinTotalChars {
		return false
	}
	return doc.CharsPerPage >= p.pol.MinCharsPerPage
}

func isHTML(mediaType string) bool {
	return strings.HasPrefix(mediaType, "text/html")
}

func isPlainText(mediaType string) bool {
	return strings.HasPrefix(mediaType, "text/")
}

func isTextRepresentable(mediaType string) bool {
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/pdf":
		return true
	}
	return false
}

// htmlToText strips markup, scripts and styles and returns readable text.
func htmlToText(data []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	text := doc.Text()

	var sb strings.Builder
	lastBlank := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !lastBlank {
				sb.WriteByte('\n')
				lastBlank = true
			}
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
		lastBlank = false
	}
	return strings.TrimSpace(sb.String())
}
