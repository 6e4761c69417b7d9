package meshgen

import (
	"context"
	"sort"
	"sync"
	"time"

	"sceneforge/internal/logging"
	"sceneforge/internal/ports"
)

// Lifecycle states reported for a generation request.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// GenerationStatus is the queryable record of one generation request.
type GenerationStatus struct {
	RequestID string    `json:"request_id"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
	Prompt    string    `json:"prompt,omitempty"`
	ModelURL  string    `json:"model_url,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// StatusTable tracks in-flight and finished generation requests so callers
// can poll progress out of band. Finished entries stay queryable until they
// age out.
type StatusTable struct {
	mu      sync.RWMutex
	entries map[string]*GenerationStatus
	clock   ports.Clock
	maxAge  time.Duration
	logger  logging.Logger
}

// TableConfig configures a StatusTable.
type TableConfig struct {
	// MaxAge is how long an entry stays queryable after its StartTime;
	// zero means one hour.
	MaxAge time.Duration
	Clock  ports.Clock
	Logger logging.Logger
}

// NewStatusTable builds an empty table.
func NewStatusTable(config TableConfig) *StatusTable {
	maxAge := config.MaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	clock := config.Clock
	if clock == nil {
		clock = ports.SystemClock()
	}
	return &StatusTable{
		entries: make(map[string]*GenerationStatus),
		clock:   clock,
		maxAge:  maxAge,
		logger:  logging.OrNop(config.Logger),
	}
}

// Begin records a new pending request.
func (t *StatusTable) Begin(requestID, prompt string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[requestID] = &GenerationStatus{
		RequestID: requestID,
		Status:    StatusPending,
		StartTime: t.clock.Now(),
		Prompt:    prompt,
	}
}

// Complete marks a request as finished with its validated model URL.
func (t *StatusTable) Complete(requestID, modelURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.entries[requestID]; ok {
		s.Status = StatusCompleted
		s.ModelURL = modelURL
		s.Error = ""
	}
}

// Fail marks a request as failed with a human-readable reason.
func (t *StatusTable) Fail(requestID, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.entries[requestID]; ok {
		s.Status = StatusFailed
		s.Error = errMsg
	}
}

// Get returns a copy of the status for requestID.
func (t *StatusTable) Get(requestID string) (GenerationStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.entries[requestID]
	if !ok {
		return GenerationStatus{}, false
	}
	return *s, true
}

// List returns copies of all tracked statuses, newest first.
func (t *StatusTable) List() []GenerationStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]GenerationStatus, 0, len(t.entries))
	for _, s := range t.entries {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].RequestID < out[j].RequestID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// Prune drops entries whose StartTime is older than MaxAge and reports how
// many were removed.
func (t *StatusTable) Prune() int {
	cutoff := t.clock.Now().Add(-t.maxAge)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, s := range t.entries {
		if s.StartTime.Before(cutoff) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports how many entries are currently tracked.
func (t *StatusTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// StartGC sweeps aged-out entries every interval until ctx is cancelled.
func (t *StatusTable) StartGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := t.Prune(); n > 0 {
					t.logger.Debug("meshgen: pruned %d expired generation status entries", n)
				}
			}
		}
	}()
}
