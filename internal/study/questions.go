package study

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/berea-study/berea/internal/providers"
)

// questionTemperature is deliberately high so repeated batches vary.
const questionTemperature = 1.0

// listMarker strips leading bullets and numbering from fallback-parsed lines.
var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// GenerateQuestions asks the provider for count distinct study questions.
// The reply is parsed as a JSON string array first; free-form line output is
// accepted as a fallback. The returned source tag records which path ran.
func GenerateQuestions(ctx context.Context, client providers.LLMClient, count int) ([]string, providers.ParseSource, *providers.ChatResult, error) {
	if count <= 0 {
		return nil, "", nil, fmt.Errorf("question count must be positive, got %d", count)
	}

	result, err := client.Chat(ctx, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "user", Content: questionBatchPrompt(count)},
		},
		Temperature: questionTemperature,
	})
	if err != nil {
		return nil, "", result, err
	}

	questions, source := parseQuestionList(result.Content)
	if len(questions) == 0 {
		return nil, "", result, fmt.Errorf("no questions in provider response")
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions, source, result, nil
}

// parseQuestionList recovers a question list from model output.
func parseQuestionList(content string) ([]string, providers.ParseSource) {
	raw, source, err := providers.ParseStructuredJSON(content)
	if err == nil {
		var items []string
		if jsonErr := json.Unmarshal(raw, &items); jsonErr == nil {
			return cleanQuestions(items), source
		}
	}

	// Line-by-line fallback for prose replies.
	var items []string
	for _, line := range strings.Split(content, "\n") {
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), `"`)
		if line == "" || line == "```" || strings.HasPrefix(line, "```") {
			continue
		}
		items = append(items, line)
	}
	return cleanQuestions(items), providers.SourceFallback
}

func cleanQuestions(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, q := range items {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}
