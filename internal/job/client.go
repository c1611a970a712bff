package job

import (
	"context"
	"sync"
	"time"

	"github.com/mfeltman/blueprint/internal/httpx"
)

// Client submits jobs and polls them to completion.
type Client struct {
	exec *httpx.Executor

	mu       sync.Mutex
	inflight map[string]*submission

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// submission is the local idempotency record for one key. The first caller
// performs the wire call; concurrent duplicates wait on done.
type submission struct {
	done   chan struct{}
	handle Handle
	err    error
}

func NewClient(exec *httpx.Executor) *Client {
	return &Client{
		exec:     exec,
		inflight: map[string]*submission{},
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// Submit creates a remote job, or returns the handle of the job already
// submitted under key. The key also travels as the Idempotency-Key header so
// a submit whose response was lost in transit still maps to one remote job.
func (c *Client) Submit(ctx context.Context, ep Endpoint, spec SubmitSpec, key string) (Handle, error) {
	if key == "" {
		key = NewIdempotencyKey()
	}

	c.mu.Lock()
	if s, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-s.done:
			return s.handle, s.err
		case <-ctx.Done():
			return Handle{}, ctx.Err()
		}
	}
	s := &submission{done: make(chan struct{})}
	c.inflight[key] = s
	c.mu.Unlock()

	headers := map[string]string{"Idempotency-Key": key}
	for k, v := range ep.Headers {
		headers[k] = v
	}
	var out struct {
		JobID     string `json:"job_id"`
		StatusURL string `json:"status_url"`
	}
	err := c.exec.PostJSON(ctx, ep.Target, ep.SubmitURL, headers, spec, &out)
	if err == nil && out.JobID == "" {
		err = httpx.NewTransportFailure(ep.Target, errJobIDMissing)
	}

	if err != nil {
		// A definitive rejection means no job exists under this key; drop the
		// record so a later submit can try again. The wire header covers the
		// ambiguous (timeout/transport) cases.
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		s.err = err
		close(s.done)
		return Handle{}, err
	}

	s.handle = Handle{ID: out.JobID, StatusURL: out.StatusURL, Key: key}
	close(s.done)
	return s.handle, nil
}

// Await polls h with growing intervals until a terminal state, the poll
// window, or ctx ends. Non-terminal snapshots are surfaced through
// onProgress. A transport failure while polling returns ErrAbandoned: the
// job's state is unknown, not negative, and the remote job is not canceled.
func (c *Client) Await(ctx context.Context, ep Endpoint, h Handle, cfg PollConfig, onProgress ProgressFunc) (Snapshot, error) {
	cfg = cfg.sanitized()
	deadline := c.now().Add(cfg.MaxWindow)
	delay := cfg.BaseDelay

	for {
		wait := delay
		if remaining := deadline.Sub(c.now()); remaining < wait {
			wait = remaining
		}
		if err := c.sleep(ctx, wait); err != nil {
			return Snapshot{}, err
		}

		var snap Snapshot
		if err := c.exec.GetJSON(ctx, ep.Target, h.StatusURL, ep.Headers, &snap); err != nil {
			if ctx.Err() != nil {
				return Snapshot{}, ctx.Err()
			}
			return Snapshot{}, ErrAbandoned
		}
		if snap.ID == "" {
			snap.ID = h.ID
		}

		switch snap.Status {
		case StatusSucceeded:
			return snap, nil
		case StatusFailed:
			return snap, &FailedError{ID: snap.ID, Message: snap.ErrorMessage}
		}

		if onProgress != nil {
			onProgress(snap)
		}
		if !c.now().Before(deadline) {
			return snap, ErrWindowExceeded
		}
		delay = time.Duration(float64(delay) * cfg.Growth)
		if delay > cfg.Cap {
			delay = cfg.Cap
		}
	}
}

// Run is Submit followed by Await.
func (c *Client) Run(ctx context.Context, ep Endpoint, spec SubmitSpec, key string, cfg PollConfig, onProgress ProgressFunc) (Snapshot, error) {
	h, err := c.Submit(ctx, ep, spec, key)
	if err != nil {
		return Snapshot{}, err
	}
	return c.Await(ctx, ep, h, cfg, onProgress)
}

var errJobIDMissing = &jobIDMissingError{}

type jobIDMissingError struct{}

func (*jobIDMissingError) Error() string { return "submit response missing job_id" }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
