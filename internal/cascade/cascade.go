// Package cascade sequences generation strategies from highest quality to
// the deterministic local safety net, committing to the first usable output.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mfeltman/blueprint/internal/httpx"
)

// Outcome classifies one strategy attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// Strategy is one concrete way of producing the desired text. Attempt
// returns usable text or an error; empty/whitespace output counts as
// failure. Skip, when set, lets a strategy excuse itself (e.g. the selected
// provider has no job endpoint) without consuming an attempt.
type Strategy struct {
	Name    string
	Timeout time.Duration
	Skip    func() bool
	Attempt func(ctx context.Context) (string, error)
}

// Attempt is the diagnostic record of one strategy execution.
type Attempt struct {
	StrategyName string
	StartedAt    time.Time
	Outcome      Outcome
	Err          error
}

// Result is the committed output of a cascade run.
type Result struct {
	Text         string
	StrategyUsed string
	Attempts     []Attempt
}

// Degraded reports whether a strategy actually failed before the winner.
// A skipped rung alone does not count: skipping is routing, not failure.
func (r Result) Degraded() bool {
	for _, a := range r.Attempts {
		if a.StrategyName == r.StrategyUsed && a.Outcome == OutcomeSuccess {
			return false
		}
		if a.Outcome == OutcomeError || a.Outcome == OutcomeTimeout {
			return true
		}
	}
	return false
}

// Run executes strategies strictly in order, each wrapped in its own
// timeout and attempted at most once. Strategy k+1 never starts before k
// has definitively failed. Run never returns an error as long as the final
// strategy upholds its never-fail contract; a cascade whose every strategy
// fails is a configuration bug and is reported as such.
func Run(ctx context.Context, strategies []Strategy) (Result, error) {
	res := Result{}
	for _, s := range strategies {
		if s.Skip != nil && s.Skip() {
			res.Attempts = append(res.Attempts, Attempt{
				StrategyName: s.Name, StartedAt: time.Now(), Outcome: OutcomeSkipped,
			})
			continue
		}

		att := Attempt{StrategyName: s.Name, StartedAt: time.Now()}
		text, err := runOne(ctx, s)
		switch {
		case err == nil && strings.TrimSpace(text) != "":
			att.Outcome = OutcomeSuccess
			res.Attempts = append(res.Attempts, att)
			res.Text = text
			res.StrategyUsed = s.Name
			return res, nil
		case err != nil && ctx.Err() == nil && isTimeout(err):
			att.Outcome = OutcomeTimeout
			att.Err = err
		case err != nil:
			att.Outcome = OutcomeError
			att.Err = err
		default:
			att.Outcome = OutcomeError
			att.Err = fmt.Errorf("strategy %s returned empty output", s.Name)
		}
		res.Attempts = append(res.Attempts, att)

		// A dead parent context means the caller is gone; stop escalating.
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}
	return res, fmt.Errorf("all %d strategies failed; the terminal strategy must not fail", len(strategies))
}

func runOne(ctx context.Context, s Strategy) (text string, err error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	defer func() {
		// A panicking strategy is a failed strategy, not a failed cascade.
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("strategy %s panicked: %v", s.Name, r)
		}
	}()
	return s.Attempt(ctx)
}

// isTimeout matches both the executor's timeout failure and a raw deadline
// error from the per-strategy context.
func isTimeout(err error) bool {
	return httpx.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)
}
