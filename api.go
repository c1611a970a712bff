package blueprint

import (
	"github.com/mfeltman/blueprint/internal/cascade"
	"github.com/mfeltman/blueprint/internal/httpx"
	"github.com/mfeltman/blueprint/internal/job"
	"github.com/mfeltman/blueprint/internal/provider"
	"github.com/mfeltman/blueprint/internal/report"
)

// Aliases surfacing the caller-facing types of the internal packages, so
// consumers configure and read results without reaching into internal paths.
type (
	// Provider configuration and routing inputs.
	Profile      = provider.Profile
	Registry     = provider.Registry
	Capability   = provider.Capability
	InputKind    = provider.InputKind
	LatencyClass = provider.LatencyClass

	// Execution tuning.
	RetryPolicy = httpx.RetryPolicy
	PollConfig  = job.PollConfig

	// Job progress reporting.
	JobSnapshot  = job.Snapshot
	ProgressFunc = job.ProgressFunc

	// Report shapes.
	Facts            = report.Facts
	StructuredReport = report.StructuredReport
	Section          = report.Section

	// Cascade diagnostics.
	Attempt = cascade.Attempt
	Outcome = cascade.Outcome
)

const (
	CapText      = provider.CapText
	CapVision    = provider.CapVision
	CapAudio     = provider.CapAudio
	CapVideo     = provider.CapVideo
	CapResearch  = provider.CapResearch
	CapReasoning = provider.CapReasoning
	CapDocuments = provider.CapDocuments

	LatencyLow    = provider.LatencyLow
	LatencyMedium = provider.LatencyMedium
	LatencyHigh   = provider.LatencyHigh

	InputText     = provider.InputText
	InputImage    = provider.InputImage
	InputAudio    = provider.InputAudio
	InputVideo    = provider.InputVideo
	InputDocument = provider.InputDocument

	// Placeholder is the literal that marks a mandatory report entry with no
	// backing fact.
	Placeholder = report.Placeholder
)

// NewRegistry validates profiles and builds the provider registry.
func NewRegistry(profiles []Profile) (*Registry, error) {
	return provider.NewRegistry(profiles)
}

// LoadRegistry reads a YAML provider config from disk; API keys are resolved
// from the environment variables the file names.
func LoadRegistry(path string) (*Registry, error) {
	return provider.LoadRegistry(path)
}

// ParseRegistry builds a registry from raw YAML config bytes.
func ParseRegistry(b []byte) (*Registry, error) {
	return provider.ParseRegistry(b)
}

// ValidateReport checks the mandatory-section invariant against the schema.
func ValidateReport(r StructuredReport) error {
	return report.Validate(r)
}

// DefaultRetryPolicy returns the executor's standard retry tuning.
func DefaultRetryPolicy() RetryPolicy { return httpx.DefaultRetryPolicy() }

// DefaultPollConfig returns the standard job poll tuning.
func DefaultPollConfig() PollConfig { return job.DefaultPollConfig() }

// NewIdempotencyKey mints a fresh submission key for callers that have no
// natural one.
func NewIdempotencyKey() string { return job.NewIdempotencyKey() }
