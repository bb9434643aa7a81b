package study

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/berea-study/berea/internal/providers"
)

const (
	answerTemperature = 0.7

	// syntheticAnswerLimit caps the text salvaged into a synthetic payload.
	syntheticAnswerLimit = 500

	defaultRefusalMessage = "This service covers questions about the Bible, scripture, theology, and biblical history. Please ask a biblical topic."
)

// AnswerResult is a generated study answer plus provenance for auditing.
type AnswerResult struct {
	Response *StudyResponse
	// Raw is the normalized JSON persisted for this answer.
	Raw json.RawMessage
	// Source records how the payload was recovered from model output.
	Source providers.ParseSource
	// Chat is the underlying provider call, for audit recording.
	Chat *providers.ChatResult
}

// GenerateAnswer produces a structured study answer for a question.
//
// Recovery ladder: schema-constrained JSON, then JSON extracted from fences
// or prose, then a synthetic minimal payload built from the raw text. A
// provider safety block becomes a refusal payload rather than an error; a
// refusal (isRelevant=false) is a valid answer and persists like any other.
func GenerateAnswer(ctx context.Context, client providers.LLMClient, question string) (*AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}

	chat, err := client.Chat(ctx, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: answerPrompt(question)},
		},
		Temperature: answerTemperature,
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: ResponseSchema(),
		},
	})
	if err != nil {
		if providers.IsSafetyBlock(err) {
			return refusalResult(chat), nil
		}
		return nil, err
	}

	if resp, raw, source, ok := parseAnswer(chat.Content); ok {
		return &AnswerResult{Response: resp, Raw: raw, Source: source, Chat: chat}, nil
	}

	return syntheticResult(question, chat)
}

// parseAnswer runs the two-stage parser and schema validation.
func parseAnswer(content string) (*StudyResponse, json.RawMessage, providers.ParseSource, bool) {
	raw, source, err := providers.ParseStructuredJSON(content)
	if err != nil {
		return nil, nil, "", false
	}
	if err := providers.ValidateStructuredJSON(ResponseSchema(), raw); err != nil {
		return nil, nil, "", false
	}

	var resp StudyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, "", false
	}
	if resp.IsRelevant && resp.Content == nil {
		return nil, nil, "", false
	}
	return &resp, raw, source, true
}

// syntheticResult salvages unparseable but non-empty output into a minimal
// valid payload so the text is not lost.
func syntheticResult(question string, chat *providers.ChatResult) (*AnswerResult, error) {
	text := strings.TrimSpace(chat.Content)
	if text == "" {
		return nil, fmt.Errorf("empty answer from provider")
	}
	if len(text) > syntheticAnswerLimit {
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character.
		cut := syntheticAnswerLimit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	resp := &StudyResponse{
		IsRelevant: true,
		Content: &StudyContent{
			LiteralAnswer: text,
			SearchTopic:   question,
			GeographicalAnchor: GeographicalAnchor{
				Location: "Jerusalem",
				Region:   "Judea",
			},
			ScriptureReferences:      []ScriptureReference{},
			OriginalLanguageAnalysis: []OriginalWord{},
			CommentarySynthesis:      []Commentary{},
			BiblicalBookFrequency:    []BookStats{},
		},
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthetic answer: %w", err)
	}
	return &AnswerResult{
		Response: resp,
		Raw:      raw,
		Source:   providers.SourceSynthetic,
		Chat:     chat,
	}, nil
}

// refusalResult converts a provider safety block into a refusal payload.
func refusalResult(chat *providers.ChatResult) *AnswerResult {
	resp := &StudyResponse{
		IsRelevant:     false,
		RefusalMessage: defaultRefusalMessage,
	}
	raw, _ := json.Marshal(resp)
	return &AnswerResult{
		Response: resp,
		Raw:      raw,
		Source:   providers.SourceSynthetic,
		Chat:     chat,
	}
}
