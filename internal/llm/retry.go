package llm

import (
	"context"

	apperrors "sceneforge/internal/errors"
	"sceneforge/internal/logging"
	"sceneforge/internal/ports"
)

// retryClient wraps an LLM client with transient-failure retry. Rate limits
// and upstream 5xx map to HTTPStatusError in the inner client, so the shared
// classifier decides what is worth another attempt.
type retryClient struct {
	inner  ports.LLMClient
	retry  apperrors.RetryConfig
	logger logging.Logger
}

// NewRetryClient wraps client with the given retry policy. A zero MaxAttempts
// selects the default policy.
func NewRetryClient(client ports.LLMClient, retry apperrors.RetryConfig, logger logging.Logger) ports.LLMClient {
	if retry.MaxAttempts <= 0 {
		retry = apperrors.DefaultRetryConfig()
	}
	return &retryClient{
		inner:  client,
		retry:  retry,
		logger: logging.OrNop(logger),
	}
}

func (c *retryClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	return apperrors.RetryWithResult(ctx, c.retry, c.logger, func(ctx context.Context) (*ports.CompletionResponse, error) {
		return c.inner.Complete(ctx, req)
	})
}

func (c *retryClient) Model() string {
	return c.inner.Model()
}
