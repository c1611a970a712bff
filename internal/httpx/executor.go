package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// Request is the wire-level call the executor performs. Immutable once
// constructed; the executor never mutates it across attempts.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is a settled 2xx result.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Executor performs HTTP calls with a per-call deadline, retry with
// exponential backoff on retryable failures, and status classification.
// It holds no shared mutable state beyond the underlying http.Client.
type Executor struct {
	client *http.Client
	policy RetryPolicy

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(policy RetryPolicy) *Executor {
	return &Executor{
		// Avoid short client-level timeouts; the per-call context deadline
		// governs cancellation instead.
		client: &http.Client{Timeout: 0},
		policy: policy.sanitized(),
		sleep:  sleepCtx,
	}
}

func (e *Executor) Policy() RetryPolicy { return e.policy }

// Do performs the request against target under the executor's policy.
// target is a diagnostic label (typically the provider id) carried on
// every Failure produced.
func (e *Executor) Do(ctx context.Context, target string, req Request) (*Response, error) {
	return e.DoWithPolicy(ctx, target, req, e.policy)
}

// DoWithPolicy is Do with a per-call policy override.
//
// The deadline covers the whole call including retries and backoff pauses.
// Once it fires, any in-flight attempt is canceled and a TimeoutFailure is
// returned; a late-arriving success is disregarded. On exhausting retries
// the last observed failure is returned with its original cause intact.
func (e *Executor) DoWithPolicy(ctx context.Context, target string, req Request, policy RetryPolicy) (*Response, error) {
	policy = policy.sanitized()
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := DelayForAttempt(attempt, policy, target+":"+req.URL)
			if ra := retryAfterOf(lastErr); ra != nil && *ra > delay {
				delay = *ra
			}
			if err := e.sleep(ctx, delay); err != nil {
				return nil, timeoutOrCanceled(ctx, target, lastErr)
			}
		}

		resp, err := e.attempt(ctx, target, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, timeoutOrCanceled(ctx, target, err)
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (e *Executor) attempt(ctx context.Context, target string, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, NewTransportFailure(target, err)
	}
	if len(req.Body) > 0 && req.Headers["Content-Type"] == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutOrCanceled(ctx, target, nil)
		}
		return nil, NewTransportFailure(target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutOrCanceled(ctx, target, nil)
		}
		return nil, NewTransportFailure(target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ra := ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return nil, FromStatus(target, resp.StatusCode, errorMessageOf(raw), ra)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// PostJSON marshals body, POSTs it, and decodes the 2xx response into out
// (skipped when out is nil).
func (e *Executor) PostJSON(ctx context.Context, target, url string, headers map[string]string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := e.Do(ctx, target, Request{Method: http.MethodPost, URL: url, Headers: headers, Body: b})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Body, out)
}

// GetJSON fetches url and decodes the 2xx response into out. No retries:
// callers that poll own their schedule.
func (e *Executor) GetJSON(ctx context.Context, target, url string, headers map[string]string, out any) error {
	once := e.policy
	once.MaxAttempts = 1
	resp, err := e.DoWithPolicy(ctx, target, Request{Method: http.MethodGet, URL: url, Headers: headers}, once)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Body, out)
}

// errorMessageOf pulls {"message": ...} out of an error body when present,
// falling back to the raw text.
func errorMessageOf(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
	}
	return string(raw)
}

func retryAfterOf(err error) *time.Duration {
	var f Failure
	if errors.As(err, &f) {
		return f.RetryAfter()
	}
	return nil
}

// timeoutOrCanceled folds a dead context into the taxonomy: a fired deadline
// is a TimeoutFailure, an explicit caller cancel propagates as-is.
func timeoutOrCanceled(ctx context.Context, target string, last error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg := "deadline exceeded"
		if last != nil {
			msg = "deadline exceeded; last failure: " + last.Error()
		}
		return NewTimeoutFailure(target, msg)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if last != nil {
		return last
	}
	return NewTimeoutFailure(target, "canceled")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		// Still observe cancellation between attempts.
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
