package llmcall

import (
	"context"
	"testing"
	"time"

	"github.com/berea-study/berea/internal/providers"
	"github.com/berea-study/berea/internal/store"
)

func TestFromChatResultSuccess(t *testing.T) {
	result := &providers.ChatResult{
		Provider:         "gemini",
		ModelUsed:        "gemini-2.5-flash",
		PromptTokens:     120,
		CompletionTokens: 300,
		ExecutionTime:    1500 * time.Millisecond,
		Success:          true,
	}

	call := FromChatResult(result, RecordOptions{
		Operation:   "answer",
		ParseSource: providers.SourceDirect,
	})
	if call == nil {
		t.Fatal("FromChatResult returned nil")
	}
	if call.Status != "success" {
		t.Errorf("status = %q, want success", call.Status)
	}
	if call.Operation != "answer" || call.ParseSource != "direct" {
		t.Errorf("operation/source = %q/%q", call.Operation, call.ParseSource)
	}
	if call.DurationMs != 1500 {
		t.Errorf("duration_ms = %d, want 1500", call.DurationMs)
	}
	if call.Error != nil {
		t.Errorf("error set on success: %v", *call.Error)
	}
}

func TestFromChatResultFailure(t *testing.T) {
	result := &providers.ChatResult{
		Provider:     "gemini",
		ModelUsed:    "gemini-2.5-flash",
		Success:      false,
		ErrorType:    "rate_limit",
		ErrorMessage: "429 from upstream",
	}

	call := FromChatResult(result, RecordOptions{Operation: "questions"})
	if call.Status != "rate_limit" {
		t.Errorf("status = %q, want rate_limit", call.Status)
	}
	if call.Error == nil || *call.Error != "429 from upstream" {
		t.Errorf("error = %v", call.Error)
	}
}

func TestFromChatResultNil(t *testing.T) {
	if call := FromChatResult(nil, RecordOptions{}); call != nil {
		t.Errorf("expected nil call, got %+v", call)
	}
}

func TestRecordSyncWritesRow(t *testing.T) {
	st := store.NewMemoryStore()
	rec := NewRecorder(st, nil)

	err := rec.RecordSync(context.Background(), &providers.ChatResult{
		Provider:  "gemini",
		ModelUsed: "gemini-2.5-flash",
		Success:   true,
	}, RecordOptions{Operation: "answer"})
	if err != nil {
		t.Fatalf("RecordSync failed: %v", err)
	}

	calls, err := st.ListLLMCalls(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].Operation != "answer" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestRecorderNilSafe(t *testing.T) {
	var rec *Recorder
	rec.Record(&providers.ChatResult{}, RecordOptions{})
	if err := rec.RecordSync(context.Background(), &providers.ChatResult{}, RecordOptions{}); err != nil {
		t.Errorf("nil recorder RecordSync = %v", err)
	}
}
