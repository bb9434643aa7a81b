package providers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const MockClientName = "mock"

// MockReply is a scripted response for the mock client.
type MockReply struct {
	Text string
	Err  error
}

// MockClient is an LLMClient for testing. Replies are served from a queue;
// when the queue is empty DefaultText is returned. Every request is recorded.
type MockClient struct {
	DefaultText string
	Latency     time.Duration

	mu       sync.Mutex
	replies  []MockReply
	requests []*ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		DefaultText: "mock response",
	}
}

// Enqueue appends a scripted text reply.
func (c *MockClient) Enqueue(text string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, MockReply{Text: text})
	return c
}

// EnqueueError appends a scripted error reply.
func (c *MockClient) EnqueueError(err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, MockReply{Err: err})
	return c
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Model returns the mock model name.
func (c *MockClient) Model() string {
	return "mock-model"
}

// Chat serves the next scripted reply.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	c.mu.Lock()
	c.requests = append(c.requests, req)
	count := len(c.requests)
	var reply *MockReply
	if len(c.replies) > 0 {
		r := c.replies[0]
		c.replies = c.replies[1:]
		reply = &r
	}
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: c.Model(),
		Attempts:  1,
	}

	if reply != nil && reply.Err != nil {
		result.Success = false
		result.ErrorType = "mock_failure"
		result.ErrorMessage = reply.Err.Error()
		result.ExecutionTime = time.Since(start)
		return result, reply.Err
	}

	text := c.DefaultText
	if reply != nil {
		text = reply.Text
	}

	result.Success = true
	result.Content = text
	result.FinishReason = "STOP"
	result.ExecutionTime = time.Since(start)

	// Simulate token counting
	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	result.PromptTokens = promptTokens
	result.CompletionTokens = len(text) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens

	return result, nil
}

// Requests returns all recorded requests.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Reset clears recorded requests and pending replies.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = nil
	c.replies = nil
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)
