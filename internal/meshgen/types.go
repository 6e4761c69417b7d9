package meshgen

// Mesh generation parameter values accepted by the external API.
const (
	MeshModeTriangle = "triangle"
	MeshModeQuad     = "quad"

	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"

	MaterialPBR    = "pbr"
	MaterialShaded = "shaded"
	MaterialUnlit  = "unlit"
)

// GenerationInput carries the parameters of one asset generation job. Either
// Prompt or ImageURLs must be set.
type GenerationInput struct {
	Prompt    string   `json:"prompt,omitempty"`
	ImageURLs []string `json:"image_urls,omitempty"`
	MeshMode  string   `json:"mesh_mode,omitempty"`
	Quality   string   `json:"quality,omitempty"`
	Material  string   `json:"material,omitempty"`
}

// GenerationResult is the structured outcome of a generation run. The poller
// never lets an error escape its boundary: every failure path fills Error and
// marks the result recoverable so the calling loop can continue with other
// tools.
type GenerationResult struct {
	Success     bool     `json:"success"`
	RequestID   string   `json:"request_id"`
	ModelURL    string   `json:"model_url,omitempty"`
	ModelURLs   []string `json:"model_urls,omitempty"`
	Error       string   `json:"error,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

// JobState is the remote job lifecycle as reported by the generation API.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Subtask is one sub-job of a generation job.
type Subtask struct {
	ID    string   `json:"id"`
	State JobState `json:"status"`
}

// JobStatus is one poll answer from the generation API.
type JobStatus struct {
	ID       string    `json:"id"`
	State    JobState  `json:"status"`
	Error    string    `json:"error,omitempty"`
	Subtasks []Subtask `json:"subtasks,omitempty"`
}

// Done reports whether the job and every sub-job finished successfully.
func (s JobStatus) Done() bool {
	if s.State != JobDone {
		return false
	}
	for _, sub := range s.Subtasks {
		if sub.State != JobDone {
			return false
		}
	}
	return true
}

// Failed reports whether the job or any sub-job failed.
func (s JobStatus) Failed() bool {
	if s.State == JobFailed {
		return true
	}
	for _, sub := range s.Subtasks {
		if sub.State == JobFailed {
			return true
		}
	}
	return false
}
