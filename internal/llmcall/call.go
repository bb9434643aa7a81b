// Package llmcall provides LLM call recording for traceability. Every
// provider call is written to the llm_calls audit table with its operation,
// timing, token usage, and outcome.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/berea-study/berea/internal/providers"
	"github.com/berea-study/berea/internal/store"
)

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	// Operation names the pipeline step, e.g. "questions" or "answer".
	Operation string

	// ParseSource records how structured output was recovered, when known.
	ParseSource providers.ParseSource
}

// FromChatResult builds an audit row from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *store.LLMCall {
	if result == nil {
		return nil
	}

	call := &store.LLMCall{
		ID:               uuid.New(),
		Provider:         result.Provider,
		Model:            result.ModelUsed,
		Operation:        opts.Operation,
		Status:           "success",
		ParseSource:      string(opts.ParseSource),
		DurationMs:       int(result.ExecutionTime.Milliseconds()),
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		CreatedAt:        time.Now(),
	}

	if !result.Success {
		call.Status = result.ErrorType
		if call.Status == "" {
			call.Status = "error"
		}
		if result.ErrorMessage != "" {
			msg := result.ErrorMessage
			call.Error = &msg
		}
	}

	return call
}
