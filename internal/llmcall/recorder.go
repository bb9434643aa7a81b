package llmcall

import (
	"context"
	"log/slog"
	"time"

	"github.com/berea-study/berea/internal/providers"
	"github.com/berea-study/berea/internal/store"
)

// recordTimeout bounds the background insert so a wedged database cannot
// leak goroutines indefinitely.
const recordTimeout = 10 * time.Second

// Recorder handles fire-and-forget LLM call recording.
type Recorder struct {
	store  store.Store
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to the given store.
func NewRecorder(st store.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: st, logger: logger}
}

// Record captures an LLM call asynchronously. It never blocks the caller;
// insert failures are logged and dropped.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r == nil || r.store == nil {
		return
	}
	call := FromChatResult(result, opts)
	if call == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.store.InsertLLMCall(ctx, call); err != nil {
			r.logger.Warn("failed to record llm call",
				"operation", call.Operation,
				"provider", call.Provider,
				"error", err)
		}
	}()
}

// RecordSync captures an LLM call inline. Tests and shutdown paths use it
// when the write must be visible before continuing.
func (r *Recorder) RecordSync(ctx context.Context, result *providers.ChatResult, opts RecordOptions) error {
	if r == nil || r.store == nil {
		return nil
	}
	call := FromChatResult(result, opts)
	if call == nil {
		return nil
	}
	return r.store.InsertLLMCall(ctx, call)
}
