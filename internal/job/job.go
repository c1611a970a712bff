// Package job implements the asynchronous submit/poll orchestrator used when
// a generation cannot complete within a direct-call timeout. Submission is
// idempotent: the same key never creates two remote jobs, locally (registry)
// or remotely (Idempotency-Key header).
package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status is the remote job lifecycle state. Transitions only via the remote
// status endpoint; terminal states are immutable once reached.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusSucceeded || s == StatusFailed }

// Handle identifies a submitted job.
type Handle struct {
	ID        string
	StatusURL string
	Key       string // idempotency key the job was submitted under
}

// Snapshot is one observation of a job's state.
type Snapshot struct {
	ID              string `json:"job_id"`
	Status          Status `json:"status"`
	PercentComplete *int   `json:"percent,omitempty"`
	ETASeconds      *int   `json:"eta_seconds,omitempty"`
	Result          string `json:"result,omitempty"`
	ErrorMessage    string `json:"error,omitempty"`
}

// SubmitSpec is the durable work description sent to the job endpoint.
type SubmitSpec struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Endpoint locates one provider's async job API.
type Endpoint struct {
	Target    string // diagnostic label, typically the provider id
	SubmitURL string
	Headers   map[string]string
}

// ErrWindowExceeded means the caller-specified poll window elapsed. This is
// a soft deadline: the remote job may still complete, the caller just stops
// waiting for it.
var ErrWindowExceeded = errors.New("job: poll window exceeded")

// ErrAbandoned means the poll transport itself failed. The job's true state
// is unknown, not negative; callers proceed to their own fallback.
var ErrAbandoned = errors.New("job: polling abandoned, job state unknown")

// FailedError is a job that reached the failed terminal state.
type FailedError struct {
	ID      string
	Message string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.ID, e.Message)
}

// NewIdempotencyKey mints a fresh key for callers that have no natural one.
func NewIdempotencyKey() string {
	return ulid.Make().String()
}

// PollConfig tunes the shared poll-with-backoff loop.
type PollConfig struct {
	BaseDelay time.Duration // initial wait before the first poll
	Growth    float64       // per-poll delay multiplier
	Cap       time.Duration // delay ceiling
	MaxWindow time.Duration // soft deadline on total wait
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		BaseDelay: 2 * time.Second,
		Growth:    1.25,
		Cap:       5 * time.Second,
		MaxWindow: 3 * time.Minute,
	}
}

func (c PollConfig) sanitized() PollConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.Growth < 1 {
		c.Growth = 1
	}
	if c.Cap < c.BaseDelay {
		c.Cap = c.BaseDelay
	}
	if c.MaxWindow <= 0 {
		c.MaxWindow = 3 * time.Minute
	}
	return c
}

// ProgressFunc receives non-terminal snapshots during polling. It must not
// block; the loop calls it inline.
type ProgressFunc func(Snapshot)
