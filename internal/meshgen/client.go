package meshgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "sceneforge/internal/errors"
	"sceneforge/internal/logging"
)

// API is the surface of the external generation service the poller drives.
type API interface {
	// Submit starts a generation job and returns its id.
	Submit(ctx context.Context, input GenerationInput) (string, error)
	// Status reports the job's current state.
	Status(ctx context.Context, jobID string) (JobStatus, error)
	// Assets lists the downloadable asset URLs of a finished job.
	Assets(ctx context.Context, jobID string) ([]string, error)
}

// ClientConfig configures the HTTP client for the generation API.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each HTTP request; zero means 30s.
	Timeout time.Duration
	// Retry overrides the transient-failure retry policy; the zero value
	// selects the default (3 attempts, exponential backoff).
	Retry apperrors.RetryConfig
	// Logger receives request logs; nil means silent.
	Logger logging.Logger
}

// Client talks to the generation API over HTTP. Submit and Assets retry
// transient failures themselves; Status does not — the poller tolerates a
// failed poll and simply polls again.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      apperrors.RetryConfig
	logger     logging.Logger
}

// NewClient builds a Client. BaseURL is required.
func NewClient(config ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("meshgen: base URL is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retry := config.Retry
	if retry.MaxAttempts <= 0 {
		retry = apperrors.DefaultRetryConfig()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		logger:     logging.OrNop(config.Logger),
	}, nil
}

func (c *Client) Submit(ctx context.Context, input GenerationInput) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode generation input: %w", err)
	}
	return apperrors.RetryWithResult(ctx, c.retry, c.logger, func(ctx context.Context) (string, error) {
		var out struct {
			ID string `json:"id"`
		}
		if err := c.do(ctx, http.MethodPost, "/v1/generations", body, &out); err != nil {
			return "", err
		}
		if out.ID == "" {
			return "", apperrors.NewPermanent(nil, "generation API returned no job id")
		}
		return out.ID, nil
	})
}

func (c *Client) Status(ctx context.Context, jobID string) (JobStatus, error) {
	var status JobStatus
	err := c.do(ctx, http.MethodGet, "/v1/generations/"+jobID, nil, &status)
	return status, err
}

func (c *Client) Assets(ctx context.Context, jobID string) ([]string, error) {
	return apperrors.RetryWithResult(ctx, c.retry, c.logger, func(ctx context.Context) ([]string, error) {
		var out struct {
			Assets []struct {
				URL    string `json:"url"`
				Format string `json:"format,omitempty"`
			} `json:"assets"`
		}
		if err := c.do(ctx, http.MethodGet, "/v1/generations/"+jobID+"/assets", nil, &out); err != nil {
			return nil, err
		}
		urls := make([]string, 0, len(out.Assets))
		for _, asset := range out.Assets {
			if asset.URL != "" {
				urls = append(urls, asset.URL)
			}
		}
		return urls, nil
	})
}

// do issues one request and decodes the JSON response into out. Non-2xx
// statuses become HTTPStatusError so the retry layer can classify them.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("meshgen %s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read generation API response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewHTTPStatusError(resp.StatusCode, resp.Status, fmt.Sprintf("generation API %s %s: %s", method, path, summarize(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode generation API response: %w", err)
	}
	return nil
}

func summarize(data []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(data))
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
