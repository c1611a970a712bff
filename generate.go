package blueprint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mfeltman/blueprint/internal/cascade"
	"github.com/mfeltman/blueprint/internal/httpx"
	"github.com/mfeltman/blueprint/internal/job"
	"github.com/mfeltman/blueprint/internal/provider"
	"github.com/mfeltman/blueprint/internal/report"
	"github.com/mfeltman/blueprint/internal/respcache"
)

// GenerateSpec is everything a caller declares about one report request.
// Routing fields feed provider selection; Facts feed repair and the local
// safety net.
type GenerateSpec struct {
	Prompt       string
	SystemPrompt string

	// AuxContext carries supplementary material (research notes, uploaded
	// text). The simplified strategy drops it to shrink the request.
	AuxContext []string

	InputKind            provider.InputKind
	RequiredCapabilities []provider.Capability
	MaxLatency           provider.LatencyClass
	ContextSizeHint      int
	Model                string
	PreferredProvider    string

	Temperature     *float64
	MaxOutputTokens *int

	// IdempotencyKey dedupes the async job submission across retries of the
	// surrounding operation. Empty means a fresh key is minted per run.
	IdempotencyKey string

	Facts report.Facts

	// OnProgress, when set, receives non-terminal job snapshots.
	OnProgress job.ProgressFunc
}

func (s GenerateSpec) routing() provider.Request {
	return provider.Request{
		InputKind:            s.InputKind,
		RequiredCapabilities: s.RequiredCapabilities,
		MaxLatency:           s.MaxLatency,
		ContextSizeHint:      s.ContextSizeHint,
		Model:                s.Model,
		PreferredProvider:    s.PreferredProvider,
	}
}

// usedBy records which provider and model produced the winning text. The
// cascade stops at the first success, so the last write is the winner.
type usedBy struct {
	provider string
	model    string
}

const (
	strategyJob        = "async-job"
	strategyFast       = "direct-fast"
	strategySimplified = "simplified"
	strategyMinimal    = "minimal"
	strategyLocal      = "local"
)

// Token and timeout budgets shrink with each rung of the cascade.
const (
	fastMaxTokens       = 2048
	simplifiedMaxTokens = 1024
	minimalMaxTokens    = 512

	fastTimeout       = 45 * time.Second
	simplifiedTimeout = 25 * time.Second
	minimalTimeout    = 15 * time.Second
)

func (o *Orchestrator) strategies(primary provider.Profile, spec GenerateSpec, used *usedBy) []cascade.Strategy {
	key := spec.IdempotencyKey
	if key == "" {
		key = job.NewIdempotencyKey()
	}

	return []cascade.Strategy{
		{
			Name: strategyJob,
			Skip: func() bool { return !primary.SupportsJobs() },
			Attempt: func(ctx context.Context) (string, error) {
				snap, err := o.jobs.Run(ctx, jobEndpoint(primary), job.SubmitSpec{
					Prompt:      fullPrompt(spec),
					Model:       primary.DefaultModel,
					Temperature: spec.Temperature,
					MaxTokens:   spec.MaxOutputTokens,
				}, key, o.poll, spec.OnProgress)
				if err != nil {
					return "", err
				}
				used.provider, used.model = primary.ID, primary.DefaultModel
				return snap.Result, nil
			},
		},
		{
			Name:    strategyFast,
			Timeout: fastTimeout,
			Attempt: func(ctx context.Context) (string, error) {
				text, err := o.callWithFallbacks(ctx, primary, directCall{
					model:       fastModel(primary),
					prompt:      fullPrompt(spec),
					system:      spec.SystemPrompt,
					temperature: spec.Temperature,
					maxTokens:   capTokens(spec.MaxOutputTokens, fastMaxTokens),
					record:      used,
				})
				return text, err
			},
		},
		{
			Name:    strategySimplified,
			Timeout: simplifiedTimeout,
			Attempt: func(ctx context.Context) (string, error) {
				return o.callWithFallbacks(ctx, primary, directCall{
					model:     fastModel(primary),
					prompt:    simplifiedPrompt(spec),
					maxTokens: simplifiedMaxTokens,
					record:    used,
				})
			},
		},
		{
			Name:    strategyMinimal,
			Timeout: minimalTimeout,
			Attempt: func(ctx context.Context) (string, error) {
				prov := o.cheapestProvider(primary)
				text, err := o.callDirect(ctx, prov, directCall{
					model:     minimalModel(prov),
					prompt:    minimalPrompt(spec.Facts),
					maxTokens: minimalMaxTokens,
					record:    used,
				})
				return text, err
			},
		},
		{
			// The terminal rung: deterministic, local, never fails.
			Name: strategyLocal,
			Attempt: func(ctx context.Context) (string, error) {
				used.provider, used.model = "local", ""
				return report.SynthesizeText(spec.Facts), nil
			},
		},
	}
}

// directCall is one provider-bound completion request.
type directCall struct {
	model       string
	prompt      string
	system      string
	temperature *float64
	maxTokens   int
	record      *usedBy
}

// callWithFallbacks tries prov, then its fixed fallback list, stopping at
// the first success. Fallbacks only engage on outright failure; a timeout
// is left to the cascade's own escalation.
func (o *Orchestrator) callWithFallbacks(ctx context.Context, prov provider.Profile, call directCall) (string, error) {
	ladder := append([]provider.Profile{prov}, o.router.Fallbacks(prov.ID)...)
	var lastErr error
	for _, p := range ladder {
		if ctx.Err() != nil {
			break
		}
		text, err := o.callDirect(ctx, p, call)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if httpx.IsTimeout(err) {
			break
		}
		o.log.Debug("provider failed, trying fallback",
			zap.String("provider", p.ID), zap.Error(err))
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return "", lastErr
}

func (o *Orchestrator) callDirect(ctx context.Context, prov provider.Profile, call directCall) (string, error) {
	body := map[string]any{
		"model":    call.model,
		"messages": chatMessages(call.system, call.prompt),
	}
	if call.temperature != nil {
		body["temperature"] = *call.temperature
	}
	if call.maxTokens > 0 {
		body["max_tokens"] = call.maxTokens
	}

	var out map[string]any
	err := o.exec.PostJSON(ctx, prov.ID, prov.BaseURL, authHeaders(prov), body, &out)
	if err != nil {
		return "", err
	}
	text, err := extractText(out, prov.TextPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", prov.ID, err)
	}
	if call.record != nil {
		call.record.provider, call.record.model = prov.ID, call.model
	}
	return text, nil
}

func chatMessages(system, prompt string) []map[string]string {
	msgs := make([]map[string]string, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": system})
	}
	return append(msgs, map[string]string{"role": "user", "content": prompt})
}

func jobEndpoint(p provider.Profile) job.Endpoint {
	return job.Endpoint{Target: p.ID, SubmitURL: p.JobURL, Headers: authHeaders(p)}
}

func authHeaders(p provider.Profile) map[string]string {
	if p.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + p.APIKey}
}

func fastModel(p provider.Profile) string {
	if p.FastModel != "" {
		return p.FastModel
	}
	return p.DefaultModel
}

func minimalModel(p provider.Profile) string {
	if p.MinimalModel != "" {
		return p.MinimalModel
	}
	return fastModel(p)
}

// cheapestProvider picks the lowest cost-per-token profile, falling back to
// the primary when the registry scan finds nothing better.
func (o *Orchestrator) cheapestProvider(primary provider.Profile) provider.Profile {
	best := primary
	for _, p := range o.reg.All() {
		if p.CostPerToken < best.CostPerToken {
			best = p
		}
	}
	return best
}

func capTokens(requested *int, ceiling int) int {
	if requested != nil && *requested > 0 && *requested < ceiling {
		return *requested
	}
	return ceiling
}

// researchCache keys respcache by topic and payload.
type researchCache struct {
	c *respcache.Cache
}

func newResearchCache(ttl time.Duration) *researchCache {
	return &researchCache{c: respcache.New(ttl)}
}

func (r *researchCache) get(topic, data string) (string, bool) {
	return r.c.Get(respcache.Fingerprint("research", topic, data))
}

func (r *researchCache) put(topic, data, text string) {
	r.c.Put(respcache.Fingerprint("research", topic, data), text)
}
