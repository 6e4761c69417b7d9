package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	apperrors "sceneforge/internal/errors"
	"sceneforge/internal/logging"
	"sceneforge/internal/ports"
)

// Options configures an OpenAI-compatible chat completions client.
type Options struct {
	Model  string
	APIKey string
	// BaseURL points at an OpenAI-compatible endpoint; empty selects the
	// OpenAI API itself.
	BaseURL string
	// Timeout bounds one completion request; zero means 120s.
	Timeout time.Duration
	// Headers are extra headers sent with every request.
	Headers map[string]string
	Logger  logging.Logger
}

// openaiClient speaks the OpenAI-compatible chat completions API. Vision
// input rides along as image_url content parts.
type openaiClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	logger     logging.Logger
}

// NewOpenAIClient builds a client for one model.
func NewOpenAIClient(opts Options) (ports.LLMClient, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &openaiClient{
		model:      opts.Model,
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		headers:    opts.Headers,
		logger:     logging.OrNop(opts.Logger),
	}, nil
}

func (c *openaiClient) Model() string {
	return c.model
}

func (c *openaiClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	oaiReq := map[string]any{
		"model":       c.model,
		"messages":    convertMessages(req.Messages),
		"temperature": req.Temperature,
		"stream":      false,
	}
	if req.MaxTokens > 0 {
		oaiReq["max_tokens"] = req.MaxTokens
	}
	if len(req.StopSequences) > 0 {
		oaiReq["stop"] = append([]string(nil), req.StopSequences...)
	}

	body, err := json.Marshal(oaiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("=== LLM Request ===")
	c.logger.Debug("URL: POST %s/chat/completions", c.baseURL)
	c.logger.Debug("Model: %s, messages: %d", c.model, len(req.Messages))
	c.logger.Debug("Body: %s", redactDataURIs(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("=== LLM Response ===")
	c.logger.Debug("Status: %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewHTTPStatusError(resp.StatusCode, resp.Status, trimForLog(respBody))
	}

	var oaiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if oaiResp.Error != nil && oaiResp.Error.Message != "" {
		msg := oaiResp.Error.Message
		if oaiResp.Error.Type != "" {
			msg = oaiResp.Error.Type + ": " + msg
		}
		return nil, apperrors.NewHTTPStatusError(resp.StatusCode, resp.Status, msg)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, apperrors.NewTransient(errors.New("no choices in response"), "model returned an empty response")
	}

	result := &ports.CompletionResponse{
		Content:    oaiResp.Choices[0].Message.Content,
		StopReason: oaiResp.Choices[0].FinishReason,
		Usage: ports.TokenUsage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      oaiResp.Usage.TotalTokens,
		},
	}

	c.logger.Debug("Stop: %s, content: %d chars, usage: %d+%d=%d tokens",
		result.StopReason, len(result.Content),
		result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.TotalTokens)

	return result, nil
}

// convertMessages maps the neutral message shape to the wire format. A
// message with images becomes a content-part array; plain text stays a
// string so non-vision models keep working.
func convertMessages(msgs []ports.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, msg := range msgs {
		entry := map[string]any{"role": msg.Role}
		if len(msg.Images) == 0 {
			entry["content"] = msg.Content
			out = append(out, entry)
			continue
		}
		parts := make([]map[string]any, 0, len(msg.Images)+1)
		if msg.Content != "" {
			parts = append(parts, map[string]any{"type": "text", "text": msg.Content})
		}
		for _, url := range msg.Images {
			if url == "" {
				continue
			}
			parts = append(parts, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": url},
			})
		}
		entry["content"] = parts
		out = append(out, entry)
	}
	return out
}

var dataURIPattern = regexp.MustCompile(`(data:[a-zA-Z0-9.+/-]+;base64,)[A-Za-z0-9+/=]{64,}`)

// redactDataURIs keeps debug logs readable when screenshots ride in the
// request as base64 data URLs.
func redactDataURIs(body []byte) string {
	return dataURIPattern.ReplaceAllString(string(body), "${1}<base64 omitted>")
}

func trimForLog(body []byte) string {
	const maxLen = 400
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
