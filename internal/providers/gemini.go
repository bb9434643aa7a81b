package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	GeminiName    = "gemini"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	// Rate limiting
	RPM        int           // Requests per minute (default: 10)
	MaxRetries int           // Max retry attempts (default: 3)
	RetryDelay time.Duration // Base delay between retries (default: 1s)
}

// GeminiClient implements LLMClient using the Gemini REST API.
type GeminiClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	limiter      *RateLimiter
	rpm          int
	maxRetries   int
	retryDelay   time.Duration
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = GeminiBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.5-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM == 0 {
		cfg.RPM = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &GeminiClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:    NewRateLimiter(cfg.RPM),
		rpm:        cfg.RPM,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *GeminiClient) Name() string {
	return GeminiName
}

// Model returns the default model.
func (c *GeminiClient) Model() string {
	return c.defaultModel
}

// Limiter exposes the client's rate limiter for status reporting.
func (c *GeminiClient) Limiter() *RateLimiter {
	return c.limiter
}

// Chat sends a chat completion request.
func (c *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	gReq, err := buildGeminiRequest(req)
	if err != nil {
		return nil, err
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  GeminiName,
		ModelUsed: model,
	}

	gResp, attempts, httpErr := c.doRequest(ctx, model, gReq)
	result.Attempts = attempts
	result.ExecutionTime = time.Since(start)

	if httpErr != nil {
		result.Success = false
		result.ErrorType = "http_error"
		if IsRateLimit(httpErr) {
			result.ErrorType = "rate_limit"
		}
		result.ErrorMessage = httpErr.Error()
		return result, httpErr
	}

	if gResp.PromptFeedback != nil && gResp.PromptFeedback.BlockReason != "" {
		err := &SafetyError{Reason: gResp.PromptFeedback.BlockReason}
		result.Success = false
		result.ErrorType = "safety_block"
		result.ErrorMessage = err.Error()
		return result, err
	}

	if len(gResp.Candidates) == 0 {
		result.Success = false
		result.ErrorType = "empty_response"
		result.ErrorMessage = "no candidates in response"
		return result, fmt.Errorf("no candidates in response")
	}

	cand := gResp.Candidates[0]
	result.FinishReason = cand.FinishReason
	if cand.FinishReason == "SAFETY" || cand.FinishReason == "RECITATION" {
		err := &SafetyError{Reason: cand.FinishReason}
		result.Success = false
		result.ErrorType = "safety_block"
		result.ErrorMessage = err.Error()
		return result, err
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}

	result.Success = true
	result.Content = sb.String()
	result.PromptTokens = gResp.UsageMetadata.PromptTokenCount
	result.CompletionTokens = gResp.UsageMetadata.CandidatesTokenCount
	result.TotalTokens = gResp.UsageMetadata.TotalTokenCount
	result.ExecutionTime = time.Since(start)

	return result, nil
}

// buildGeminiRequest converts a ChatRequest into the Gemini wire format.
// System messages become the systemInstruction; the rest become contents.
func buildGeminiRequest(req *ChatRequest) (*geminiRequest, error) {
	gReq := &geminiRequest{}

	for _, m := range req.Messages {
		content := geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		if m.Role == "system" {
			sys := content
			gReq.SystemInstruction = &sys
			continue
		}
		content.Role = "user"
		gReq.Contents = append(gReq.Contents, content)
	}
	if len(gReq.Contents) == 0 {
		return nil, fmt.Errorf("chat request has no user messages")
	}

	cfg := &geminiGenerationConfig{
		MaxOutputTokens: req.MaxTokens,
	}
	if req.Temperature > 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	if req.ResponseFormat != nil && len(req.ResponseFormat.JSONSchema) > 0 {
		schema, err := toGeminiSchema(req.ResponseFormat.JSONSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to adapt response schema: %w", err)
		}
		cfg.ResponseMimeType = "application/json"
		cfg.ResponseSchema = schema
	}
	gReq.GenerationConfig = cfg

	return gReq, nil
}

// doRequest makes an HTTP request to Gemini with rate limiting and retry logic.
func (c *GeminiClient) doRequest(ctx context.Context, model string, body *geminiRequest) (*geminiResponse, int, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, attempts, err
		}
		attempts++

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, attempts, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			// Network error, retry
			lastErr = fmt.Errorf("request failed: %w", err)
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.Record429(c.retryDelay)
			lastErr = &RateLimitError{}
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, string(respBody))
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, attempts, fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, string(respBody))
		}

		var gResp geminiResponse
		if err := json.Unmarshal(respBody, &gResp); err != nil {
			return nil, attempts, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		return &gResp, attempts, nil
	}

	if IsRateLimit(lastErr) {
		return nil, attempts, lastErr
	}
	return nil, attempts, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// sleepWithJitter sleeps for a duration with jitter, respecting context cancellation.
func (c *GeminiClient) sleepWithJitter(ctx context.Context, attempt int) {
	// Base delay with exponential backoff: 1s, 2s, 4s, ...
	baseDelay := c.retryDelay * time.Duration(1<<attempt)
	if baseDelay > 30*time.Second {
		baseDelay = 30 * time.Second
	}

	// Add jitter: -20% to +30%
	jitter := time.Duration(float64(baseDelay) * (0.8 + 0.5*float64(time.Now().UnixNano()%1000)/1000))

	select {
	case <-ctx.Done():
	case <-time.After(jitter):
	}
}

// toGeminiSchema converts a JSON-schema document to the OpenAPI subset the
// Gemini API accepts: type names uppercased, unsupported keywords removed.
func toGeminiSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var root any
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}

	adaptGeminiSchemaNode(root)

	out, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize adapted schema: %w", err)
	}
	return out, nil
}

func adaptGeminiSchemaNode(node any) {
	switch n := node.(type) {
	case map[string]any:
		if t, ok := n["type"].(string); ok {
			n["type"] = strings.ToUpper(t)
		}
		delete(n, "$schema")
		delete(n, "additionalProperties")
		for _, v := range n {
			adaptGeminiSchemaNode(v)
		}
	case []any:
		for _, v := range n {
			adaptGeminiSchemaNode(v)
		}
	}
}

// Gemini API types

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxOutputTokens  int             `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Verify interface
var _ LLMClient = (*GeminiClient)(nil)
