package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Failure is the unified error interface returned by the executor and the
// job client. Every remote failure carries enough context for the cascade
// to decide between retrying, escalating, and surfacing.
type Failure interface {
	error
	Target() string
	StatusCode() int
	Retryable() bool
	RetryAfter() *time.Duration
}

type failureBase struct {
	target     string
	statusCode int
	message    string
	retryable  bool
	retryAfter *time.Duration
}

func (f *failureBase) Error() string {
	msg := strings.TrimSpace(f.message)
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s error (status=%d): %s", f.target, f.statusCode, msg)
}
func (f *failureBase) Target() string             { return f.target }
func (f *failureBase) StatusCode() int            { return f.statusCode }
func (f *failureBase) Retryable() bool            { return f.retryable }
func (f *failureBase) RetryAfter() *time.Duration { return f.retryAfter }

// AuthenticationFailure covers 401/403: credentials are wrong, retrying
// cannot help.
type AuthenticationFailure struct{ failureBase }

// RateLimitFailure covers 429. Retryable; the executor honors Retry-After
// when the server supplies one.
type RateLimitFailure struct{ failureBase }

// ServerFailure covers 5xx.
type ServerFailure struct{ failureBase }

// ClientFailure covers 4xx other than 401/403/429. The request itself is
// malformed for this target; the cascade escalates instead of retrying.
type ClientFailure struct{ failureBase }

// TimeoutFailure means the local deadline fired before the remote call
// settled. A late-arriving success is disregarded once this is produced.
type TimeoutFailure struct{ failureBase }

// TransportFailure wraps connection-level errors (DNS, refused, reset)
// where no HTTP status was observed. Retryable.
type TransportFailure struct{ failureBase }

// FromStatus classifies a non-2xx HTTP status into the failure taxonomy.
func FromStatus(target string, statusCode int, message string, retryAfter *time.Duration) Failure {
	base := failureBase{
		target:     strings.TrimSpace(target),
		statusCode: statusCode,
		message:    message,
		retryAfter: retryAfter,
	}
	switch {
	case statusCode == 401 || statusCode == 403:
		base.retryable = false
		return &AuthenticationFailure{base}
	case statusCode == 429:
		base.retryable = true
		return &RateLimitFailure{base}
	case statusCode >= 500:
		base.retryable = true
		return &ServerFailure{base}
	default:
		base.retryable = false
		return &ClientFailure{base}
	}
}

// NewTimeoutFailure constructs the failure produced when the per-call
// deadline fires. Not retryable within the same executor call; the budget
// is already spent.
func NewTimeoutFailure(target string, message string) Failure {
	return &TimeoutFailure{failureBase{
		target:    strings.TrimSpace(target),
		message:   message,
		retryable: false,
	}}
}

// NewTransportFailure wraps a network-level error with no HTTP status.
func NewTransportFailure(target string, err error) Failure {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &TransportFailure{failureBase{
		target:    strings.TrimSpace(target),
		message:   msg,
		retryable: true,
	}}
}

// ParseRetryAfter parses the Retry-After header value.
// Supported forms:
// - integer seconds
// - HTTP-date (RFC 7231)
func ParseRetryAfter(v string, now time.Time) *time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		return &d
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}

func IsTimeout(err error) bool {
	var f *TimeoutFailure
	return errors.As(err, &f)
}

func IsAuthentication(err error) bool {
	var f *AuthenticationFailure
	return errors.As(err, &f)
}

// IsRetryable reports whether err is a Failure the executor may retry.
// Non-Failure errors are never retried.
func IsRetryable(err error) bool {
	var f Failure
	if !errors.As(err, &f) {
		return false
	}
	return f.Retryable()
}
