// Package blueprint turns a report request into a finished structured
// result despite unreliable, slow, rate-limited, or partially-failing
// upstream AI services. The Orchestrator is the only surface the rest of
// the application needs: GenerateReport and Research.
package blueprint

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mfeltman/blueprint/internal/cascade"
	"github.com/mfeltman/blueprint/internal/httpx"
	"github.com/mfeltman/blueprint/internal/job"
	"github.com/mfeltman/blueprint/internal/provider"
	"github.com/mfeltman/blueprint/internal/report"
)

// ErrNoProviders is the one hard, caller-visible failure: a total
// misconfiguration that must fail loudly instead of masking as a degraded
// report.
var ErrNoProviders = errors.New("blueprint: no providers configured")

// Config assembles an Orchestrator. Everything is passed in; there is no
// process-global state.
type Config struct {
	Providers *provider.Registry
	Retry     httpx.RetryPolicy // zero value means DefaultRetryPolicy
	Poll      job.PollConfig    // zero value means DefaultPollConfig
	CacheTTL  time.Duration     // research cache TTL, default 10m
	Logger    *zap.Logger       // nil means zap.NewNop
}

// Orchestrator coordinates provider routing, request execution, async
// jobs, the fallback cascade, and report repair. Safe for concurrent use;
// independent requests interleave freely.
type Orchestrator struct {
	reg    *provider.Registry
	router *provider.Router
	exec   *httpx.Executor
	jobs   *job.Client
	cache  *researchCache
	poll   job.PollConfig
	log    *zap.Logger
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Providers == nil || cfg.Providers.Len() == 0 {
		return nil, ErrNoProviders
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = httpx.DefaultRetryPolicy()
	}
	poll := cfg.Poll
	if poll.BaseDelay == 0 {
		poll = job.DefaultPollConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	exec := httpx.NewExecutor(retry)
	return &Orchestrator{
		reg:    cfg.Providers,
		router: provider.NewRouter(cfg.Providers),
		exec:   exec,
		jobs:   job.NewClient(exec),
		cache:  newResearchCache(cfg.CacheTTL),
		poll:   poll,
		log:    log,
	}, nil
}

// NewFromConfigFile loads the YAML provider config at path and builds an
// Orchestrator around it. Any Providers already set on cfg are replaced.
func NewFromConfigFile(path string, cfg Config) (*Orchestrator, error) {
	reg, err := provider.LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	cfg.Providers = reg
	return New(cfg)
}

// ReportResult is the caller-facing outcome of GenerateReport.
type ReportResult struct {
	Report   report.StructuredReport
	Content  string // canonical JSON rendering of Report
	Provider string
	Model    string

	// Degraded is true when anything below the primary strategy produced
	// the text; the UI shows a quality disclaimer in that case.
	Degraded     bool
	StrategyUsed string
	Attempts     []cascade.Attempt
}

// GenerateReport runs the full cascade for spec and always yields a
// schema-valid structured report. The only errors it returns are caller
// cancellation and configuration-level failures; upstream flakiness is
// absorbed by degradation, terminally by the deterministic local report.
func (o *Orchestrator) GenerateReport(ctx context.Context, spec GenerateSpec) (*ReportResult, error) {
	primary, err := o.router.Select(spec.routing())
	if err != nil {
		return nil, err
	}
	o.log.Debug("report generation routed",
		zap.String("provider", primary.ID),
		zap.String("model", primary.DefaultModel))

	used := &usedBy{provider: "local"}
	res, err := cascade.Run(ctx, o.strategies(primary, spec, used))
	if err != nil {
		return nil, err
	}

	rep := report.Repair(res.Text, spec.Facts)
	content, err := rep.MarshalText()
	if err != nil {
		return nil, err
	}

	o.log.Info("report generated",
		zap.String("strategy", res.StrategyUsed),
		zap.String("provider", used.provider),
		zap.Bool("degraded", res.Degraded()))

	return &ReportResult{
		Report:       rep,
		Content:      content,
		Provider:     used.provider,
		Model:        used.model,
		Degraded:     res.Degraded(),
		StrategyUsed: res.StrategyUsed,
		Attempts:     res.Attempts,
	}, nil
}

// Research answers a research topic with provider-backed text. Results are
// cached by request fingerprint so concurrent wizard stages asking the same
// question share one flight's answer. Unlike GenerateReport there is no
// synthetic fallback: a research miss is an error the caller may ignore.
func (o *Orchestrator) Research(ctx context.Context, topic, data string) (string, error) {
	if cached, ok := o.cache.get(topic, data); ok {
		o.log.Debug("research cache hit", zap.String("topic", topic))
		return cached, nil
	}

	prov, err := o.router.Select(provider.Request{
		InputKind:            provider.InputText,
		RequiredCapabilities: []provider.Capability{provider.CapResearch},
	})
	if err != nil {
		return "", err
	}

	prompt := researchPrompt(topic, data)
	text, err := o.callWithFallbacks(ctx, prov, directCall{
		model:     prov.DefaultModel,
		prompt:    prompt,
		maxTokens: 2048,
	})
	if err != nil {
		o.log.Warn("research failed", zap.String("topic", topic), zap.Error(err))
		return "", err
	}
	o.cache.put(topic, data, text)
	return text, nil
}
