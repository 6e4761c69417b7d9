package meshgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sceneforge/internal/logging"
	"sceneforge/internal/observability"
)

// Poller drives a generation job from submission to a validated asset URL.
// Generate never returns a Go error: every failure mode is folded into a
// GenerationResult with Recoverable set, so the calling loop can always
// continue with other tools.
type Poller struct {
	api          API
	validator    URLValidator
	statuses     *StatusTable
	logger       logging.Logger
	metrics      *observability.Metrics
	pollInterval time.Duration
	roundDelay   time.Duration
	maxRounds    int
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	API       API
	Validator URLValidator
	Statuses  *StatusTable
	Logger    logging.Logger
	Metrics   *observability.Metrics

	// PollInterval is the gap between job status polls; zero means 3s.
	PollInterval time.Duration
	// RoundDelay is the pause between validation rounds; zero means 5s.
	RoundDelay time.Duration
	// MaxRounds bounds validation attempts; zero means 20.
	MaxRounds int
}

// NewPoller builds a Poller from config. API is required.
func NewPoller(config PollerConfig) (*Poller, error) {
	if config.API == nil {
		return nil, fmt.Errorf("meshgen: poller requires an API client")
	}
	validator := config.Validator
	if validator == nil {
		validator = NewHeadValidator(ValidatorConfig{Logger: config.Logger})
	}
	statuses := config.Statuses
	if statuses == nil {
		statuses = NewStatusTable(TableConfig{Logger: config.Logger})
	}
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	roundDelay := config.RoundDelay
	if roundDelay <= 0 {
		roundDelay = 5 * time.Second
	}
	maxRounds := config.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 20
	}
	return &Poller{
		api:          config.API,
		validator:    validator,
		statuses:     statuses,
		logger:       logging.OrNop(config.Logger),
		metrics:      config.Metrics,
		pollInterval: pollInterval,
		roundDelay:   roundDelay,
		maxRounds:    maxRounds,
	}, nil
}

// Statuses exposes the table tracking request progress.
func (p *Poller) Statuses() *StatusTable {
	return p.statuses
}

// Generate submits input, polls the job to completion, and probes the
// returned asset URLs until one answers. The first reachable URL wins, in
// the order the generation API listed them.
func (p *Poller) Generate(ctx context.Context, input GenerationInput) GenerationResult {
	requestID := uuid.NewString()
	p.statuses.Begin(requestID, input.Prompt)

	jobID, err := p.api.Submit(ctx, input)
	if err != nil {
		return p.fail(requestID, fmt.Sprintf("submit generation job: %v", err))
	}
	p.logger.Info("meshgen: request %s submitted as job %s", requestID, jobID)

	if err := p.awaitJob(ctx, requestID, jobID); err != nil {
		return p.fail(requestID, err.Error())
	}

	urls, err := p.api.Assets(ctx, jobID)
	if err != nil {
		return p.fail(requestID, fmt.Sprintf("fetch generated assets: %v", err))
	}
	if len(urls) == 0 {
		return p.fail(requestID, "generation job finished without asset URLs")
	}

	modelURL, err := p.validateCandidates(ctx, requestID, urls)
	if err != nil {
		return p.fail(requestID, err.Error())
	}

	p.statuses.Complete(requestID, modelURL)
	p.metrics.IncGenerationOutcome("completed")
	p.logger.Info("meshgen: request %s completed with %s", requestID, modelURL)
	return GenerationResult{
		Success:   true,
		RequestID: requestID,
		ModelURL:  modelURL,
		ModelURLs: urls,
	}
}

// awaitJob polls the job until it reports done or failed. Transient poll
// errors are logged and the next tick tries again; only job-level failure or
// context cancellation ends the wait early.
func (p *Poller) awaitJob(ctx context.Context, requestID, jobID string) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("generation cancelled while polling job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}

		status, err := p.api.Status(ctx, jobID)
		if err != nil {
			p.logger.Warn("meshgen: poll job %s: %v (will retry)", jobID, err)
			continue
		}
		if status.Failed() {
			reason := status.Error
			if reason == "" {
				reason = "job reported failure without detail"
			}
			return fmt.Errorf("generation job %s failed: %s", jobID, reason)
		}
		if status.Done() {
			p.logger.Debug("meshgen: job %s done, request %s moving to asset validation", jobID, requestID)
			return nil
		}
		p.logger.Debug("meshgen: job %s still %s", jobID, status.State)
	}
}

// validateCandidates probes every candidate URL in rounds until one answers.
// Within a round the probes run in parallel; preference still follows the
// API's ordering, so an earlier URL beats a later one that also validated.
func (p *Poller) validateCandidates(ctx context.Context, requestID string, urls []string) (string, error) {
	for round := 1; round <= p.maxRounds; round++ {
		if url, ok := p.probeRound(ctx, urls); ok {
			if round > 1 {
				p.logger.Info("meshgen: request %s validated %s on round %d", requestID, url, round)
			}
			return url, nil
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("generation cancelled during asset validation: %w", err)
		}
		if round < p.maxRounds {
			p.logger.Debug("meshgen: request %s round %d/%d found no reachable asset, waiting %s",
				requestID, round, p.maxRounds, p.roundDelay)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("generation cancelled during asset validation: %w", ctx.Err())
			case <-time.After(p.roundDelay):
			}
		}
	}
	return "", fmt.Errorf("no candidate asset URL validated after %d rounds: %s",
		p.maxRounds, strings.Join(urls, ", "))
}

// probeRound probes all URLs concurrently and returns the reachable one with
// the lowest index.
func (p *Poller) probeRound(ctx context.Context, urls []string) (string, bool) {
	results := make([]error, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		g.Go(func() error {
			results[i] = p.validator.Probe(gctx, url)
			return nil
		})
	}
	_ = g.Wait()
	for i, err := range results {
		if err == nil {
			return urls[i], true
		}
		p.logger.Debug("meshgen: candidate %s not reachable: %v", urls[i], err)
	}
	return "", false
}

// fail records the failure and wraps it in a recoverable result.
func (p *Poller) fail(requestID, errMsg string) GenerationResult {
	p.statuses.Fail(requestID, errMsg)
	p.metrics.IncGenerationOutcome("failed")
	p.logger.Warn("meshgen: request %s failed: %s", requestID, errMsg)
	return GenerationResult{
		RequestID:   requestID,
		Error:       errMsg,
		Recoverable: true,
	}
}
