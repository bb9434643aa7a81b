package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParseSource tags how a structured payload was recovered from model output.
// Callers log the tag and record it on the call audit row.
type ParseSource string

const (
	// SourceDirect means the raw output parsed as JSON without recovery.
	SourceDirect ParseSource = "direct"
	// SourceExtracted means JSON was recovered from fences or surrounding text.
	SourceExtracted ParseSource = "extracted"
	// SourceFallback means a caller-provided recovery produced the payload.
	SourceFallback ParseSource = "fallback"
	// SourceSynthetic means the payload was synthesized from unparseable text.
	SourceSynthetic ParseSource = "synthetic"
)

// ParseStructuredJSON parses JSON from model output in two stages: the raw
// text first, then candidates recovered from markdown code fences and
// surrounding prose. The returned source tag records which stage succeeded.
func ParseStructuredJSON(content string) (json.RawMessage, ParseSource, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, "", fmt.Errorf("empty structured output")
	}

	if normalized, ok := tryParse(content); ok {
		return normalized, SourceDirect, nil
	}

	var candidates []string
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		if normalized, ok := tryParse(candidate); ok {
			return normalized, SourceExtracted, nil
		}
	}

	return nil, "", fmt.Errorf("failed to parse structured JSON")
}

func tryParse(candidate string) (json.RawMessage, bool) {
	var parsed any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, false
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return nil, false
	}
	return normalized, true
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if objectStart < arrayStart {
			start = objectStart
			closeChar = "}"
		} else {
			start = arrayStart
			closeChar = "]"
		}
	case objectStart >= 0:
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// compiledSchemas caches compiled schemas by their raw text. The study
// schema is a package constant, so each distinct schema compiles once.
var compiledSchemas sync.Map

func compileSchema(schemaRaw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaRaw)
	if cached, ok := compiledSchemas.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaRaw)); err != nil {
		return nil, fmt.Errorf("failed to load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile structured schema: %w", err)
	}

	actual, _ := compiledSchemas.LoadOrStore(key, schema)
	return actual.(*jsonschema.Schema), nil
}

// ValidateStructuredJSON validates parsed JSON against the canonical schema.
func ValidateStructuredJSON(schemaRaw, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 || len(parsed) == 0 {
		return nil
	}

	schema, err := compileSchema(schemaRaw)
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("failed to decode structured JSON for validation: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}
