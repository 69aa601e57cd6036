// Package utils holds the tolerant structured-decoding boundary between the
// oracle's free-form text and the pipeline's typed results, plus small
// markdown helpers. All "find JSON in this text" logic lives here.
package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	validator "github.com/go-playground/validator/v10"
	hjson "github.com/hjson/hjson-go/v4"
)

var validate = validator.New()

// Decode extracts a JSON document from free-form oracle output into target.
// Fallback order: strict parse, fenced code block, brace/bracket scan,
// json-repair, hjson. Returns an error only when every strategy fails;
// callers then degrade the stage to its default result.
func Decode(raw string, target interface{}) error {
	candidates := []string{strings.TrimSpace(raw)}

	if fenced := extractFencedBlock(raw); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if scanned := extractBraceSpan(raw); scanned != "" {
		candidates = append(candidates, scanned)
	}

	var lastErr error
	for _, cand := range candidates {
		if cand == "" {
			continue
		}
		// Strict parse
		if err := json.Unmarshal([]byte(cand), target); err == nil {
			return nil
		} else {
			lastErr = err
		}
		// Repair pass
		if repaired, err := jsonrepair.RepairJSON(cand); err == nil {
			if err := json.Unmarshal([]byte(repaired), target); err == nil {
				return nil
			} else {
				lastErr = err
			}
		}
		// Hjson, most lenient
		if err := hjson.Unmarshal([]byte(cand), target); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	return fmt.Errorf("no parseable JSON in oracle output: %w", lastErr)
}

// DecodeValidated decodes and then runs struct-tag validation on the result.
func DecodeValidated(raw string, target interface{}) error {
	if err := Decode(raw, target); err != nil {
		return err
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("decoded JSON failed validation: %w", err)
	}
	return nil
}

// extractFencedBlock returns the contents of the first ```json (or bare ```)
// fenced block, if any.
func extractFencedBlock(raw string) string {
	idx := strings.Index(raw, "```")
	if idx < 0 {
		return ""
	}
	rest := raw[idx+3:]
	if strings.HasPrefix(rest, "json") {
		rest = rest[4:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// extractBraceSpan returns the outermost {...} or [...] span in the text.
func extractBraceSpan(raw string) string {
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(raw, pair[0])
		end := strings.LastIndexByte(raw, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(raw[start : end+1])
		}
	}
	return ""
}
