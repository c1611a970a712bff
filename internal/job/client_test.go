package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfeltman/blueprint/internal/httpx"
)

func newTestClient() *Client {
	c := NewClient(httpx.NewExecutor(httpx.RetryPolicy{
		MaxAttempts:       1,
		BaseDelay:         time.Millisecond,
		BackoffMultiplier: 1.0,
		Timeout:           5 * time.Second,
	}))
	// Collapse poll waits so tests run fast.
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func TestSubmit_SameKeyReturnsSameHandle(t *testing.T) {
	var submits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&submits, 1)
		if got := r.Header.Get("Idempotency-Key"); got == "" {
			t.Errorf("missing Idempotency-Key header")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"job_id":     fmt.Sprintf("job-%d", n),
			"status_url": "http://unused",
		})
	}))
	defer srv.Close()

	c := newTestClient()
	ep := Endpoint{Target: "p", SubmitURL: srv.URL}
	h1, err := c.Submit(context.Background(), ep, SubmitSpec{Prompt: "x", Model: "m"}, "key-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h2, err := c.Submit(context.Background(), ep, SubmitSpec{Prompt: "x", Model: "m"}, "key-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h1.ID != h2.ID {
		t.Fatalf("two job ids for one key: %s vs %s", h1.ID, h2.ID)
	}
	if n := atomic.LoadInt32(&submits); n != 1 {
		t.Fatalf("submits = %d want 1", n)
	}
}

func TestSubmit_ConcurrentDuplicatesShareOneFlight(t *testing.T) {
	var submits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&submits, 1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1", "status_url": "http://unused"})
	}))
	defer srv.Close()

	c := newTestClient()
	ep := Endpoint{Target: "p", SubmitURL: srv.URL}

	var wg sync.WaitGroup
	ids := make([]string, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := c.Submit(context.Background(), ep, SubmitSpec{Prompt: "x"}, "shared")
			if err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
			ids[i] = h.ID
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, id := range ids {
		if id != "job-1" {
			t.Fatalf("ids = %v", ids)
		}
	}
	if n := atomic.LoadInt32(&submits); n != 1 {
		t.Fatalf("submits = %d want 1", n)
	}
}

func TestSubmit_RejectedKeyCanBeResubmitted(t *testing.T) {
	var submits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&submits, 1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "job-2", "status_url": "http://unused"})
	}))
	defer srv.Close()

	c := newTestClient()
	ep := Endpoint{Target: "p", SubmitURL: srv.URL}
	if _, err := c.Submit(context.Background(), ep, SubmitSpec{}, "k"); err == nil {
		t.Fatalf("expected rejection")
	}
	h, err := c.Submit(context.Background(), ep, SubmitSpec{}, "k")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if h.ID != "job-2" {
		t.Fatalf("id = %s", h.ID)
	}
}

func TestAwait_RunningThenSucceeded(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&polls, 1) {
		case 1:
			_ = json.NewEncoder(w).Encode(Snapshot{ID: "j", Status: StatusRunning, PercentComplete: intp(20)})
		case 2:
			_ = json.NewEncoder(w).Encode(Snapshot{ID: "j", Status: StatusRunning, PercentComplete: intp(70)})
		default:
			_ = json.NewEncoder(w).Encode(Snapshot{ID: "j", Status: StatusSucceeded, Result: "OK"})
		}
	}))
	defer srv.Close()

	c := newTestClient()
	var seen []int
	snap, err := c.Await(context.Background(), Endpoint{Target: "p"}, Handle{ID: "j", StatusURL: srv.URL},
		DefaultPollConfig(), func(s Snapshot) {
			if s.PercentComplete != nil {
				seen = append(seen, *s.PercentComplete)
			}
		})
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if snap.Result != "OK" {
		t.Fatalf("result = %q", snap.Result)
	}
	if n := atomic.LoadInt32(&polls); n != 3 {
		t.Fatalf("polls = %d want 3 (must stop at terminal state)", n)
	}
	if len(seen) != 2 || seen[0] != 20 || seen[1] != 70 {
		t.Fatalf("progress = %v", seen)
	}
}

func TestAwait_FailedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Snapshot{ID: "j", Status: StatusFailed, ErrorMessage: "boom"})
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.Await(context.Background(), Endpoint{Target: "p"}, Handle{ID: "j", StatusURL: srv.URL}, DefaultPollConfig(), nil)
	var fe *FailedError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v want *FailedError", err)
	}
	if fe.Message != "boom" {
		t.Fatalf("message = %q", fe.Message)
	}
}

func TestAwait_TransportErrorMeansAbandoned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from the first poll

	c := newTestClient()
	_, err := c.Await(context.Background(), Endpoint{Target: "p"}, Handle{ID: "j", StatusURL: srv.URL}, DefaultPollConfig(), nil)
	if !errors.Is(err, ErrAbandoned) {
		t.Fatalf("got %v want ErrAbandoned", err)
	}
}

func TestAwait_WindowExceededIsSoftDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Snapshot{ID: "j", Status: StatusRunning})
	}))
	defer srv.Close()

	c := newTestClient()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.sleep = func(ctx context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}

	cfg := PollConfig{BaseDelay: 2 * time.Second, Growth: 1.25, Cap: 5 * time.Second, MaxWindow: 30 * time.Second}
	snap, err := c.Await(context.Background(), Endpoint{Target: "p"}, Handle{ID: "j", StatusURL: srv.URL}, cfg, nil)
	if !errors.Is(err, ErrWindowExceeded) {
		t.Fatalf("got %v want ErrWindowExceeded", err)
	}
	if snap.Status != StatusRunning {
		t.Fatalf("snapshot should carry the last observed state, got %q", snap.Status)
	}
}

func TestAwait_DelayGrowsAndCaps(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) >= 8 {
			_ = json.NewEncoder(w).Encode(Snapshot{ID: "j", Status: StatusSucceeded, Result: "done"})
			return
		}
		_ = json.NewEncoder(w).Encode(Snapshot{ID: "j", Status: StatusRunning})
	}))
	defer srv.Close()

	c := newTestClient()
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	cfg := PollConfig{BaseDelay: 2 * time.Second, Growth: 1.25, Cap: 4 * time.Second, MaxWindow: time.Hour}
	if _, err := c.Await(context.Background(), Endpoint{Target: "p"}, Handle{ID: "j", StatusURL: srv.URL}, cfg, nil); err != nil {
		t.Fatalf("Await: %v", err)
	}
	for i := 1; i < len(waits); i++ {
		if waits[i] < waits[i-1] {
			t.Fatalf("delay decreased: %v", waits)
		}
		if waits[i] > cfg.Cap {
			t.Fatalf("delay exceeded cap: %v", waits)
		}
	}
	if waits[0] != cfg.BaseDelay {
		t.Fatalf("first wait = %v want %v", waits[0], cfg.BaseDelay)
	}
}

func TestNewIdempotencyKey_Unique(t *testing.T) {
	a, b := NewIdempotencyKey(), NewIdempotencyKey()
	if a == "" || a == b {
		t.Fatalf("keys: %q %q", a, b)
	}
}

func intp(v int) *int { return &v }
