package meshgen

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "sceneforge/internal/errors"
	"sceneforge/internal/logging"
)

// URLValidator checks that a candidate asset URL is actually reachable.
type URLValidator interface {
	Probe(ctx context.Context, url string) error
}

// HeadValidator probes URLs with a HEAD request under its own timeout,
// retrying transient failures a small number of times.
type HeadValidator struct {
	httpClient *http.Client
	retry      apperrors.RetryConfig
	logger     logging.Logger
}

// ValidatorConfig configures a HeadValidator.
type ValidatorConfig struct {
	// Timeout bounds one probe; zero means 10s.
	Timeout time.Duration
	// Retries is how many extra attempts follow a transient failure; zero
	// means 2.
	Retries int
	// Logger receives probe logs; nil means silent.
	Logger logging.Logger
}

// NewHeadValidator builds a HeadValidator from config.
func NewHeadValidator(config ValidatorConfig) *HeadValidator {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := config.Retries
	if retries <= 0 {
		retries = 2
	}
	return &HeadValidator{
		httpClient: &http.Client{Timeout: timeout},
		retry: apperrors.RetryConfig{
			MaxAttempts:  retries + 1,
			BaseDelay:    500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			JitterFactor: 0.25,
		},
		logger: logging.OrNop(config.Logger),
	}
}

// Probe issues a HEAD request and succeeds on any 2xx/3xx status. Some CDNs
// reject HEAD with 405; those fall back to a body-less GET.
func (v *HeadValidator) Probe(ctx context.Context, url string) error {
	return apperrors.Retry(ctx, v.retry, v.logger, func(ctx context.Context) error {
		status, err := v.probeOnce(ctx, http.MethodHead, url)
		if err != nil {
			return err
		}
		if status == http.StatusMethodNotAllowed {
			status, err = v.probeOnce(ctx, http.MethodGet, url)
			if err != nil {
				return err
			}
		}
		if status >= 200 && status < 400 {
			return nil
		}
		return apperrors.NewHTTPStatusError(status, http.StatusText(status), fmt.Sprintf("probe %s", url))
	})
}

func (v *HeadValidator) probeOnce(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, apperrors.NewPermanent(err, fmt.Sprintf("invalid candidate URL %s", url))
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}
