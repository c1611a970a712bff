package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Capability is a declared ability of a provider used for routing decisions.
type Capability string

const (
	CapText      Capability = "text"
	CapVision    Capability = "vision"
	CapAudio     Capability = "audio"
	CapVideo     Capability = "video"
	CapResearch  Capability = "research"
	CapReasoning Capability = "reasoning"
	CapDocuments Capability = "documents"
)

// LatencyClass buckets providers by typical response latency.
type LatencyClass string

const (
	LatencyLow    LatencyClass = "low"
	LatencyMedium LatencyClass = "medium"
	LatencyHigh   LatencyClass = "high"
)

// InputKind is the primary input modality of a generation request.
type InputKind string

const (
	InputText     InputKind = "text"
	InputImage    InputKind = "image"
	InputAudio    InputKind = "audio"
	InputVideo    InputKind = "video"
	InputDocument InputKind = "document"
)

// Profile is the static configuration for one upstream AI service. Loaded at
// process start and never mutated at runtime.
type Profile struct {
	ID                  string       `yaml:"id"`
	BaseURL             string       `yaml:"base_url"`
	JobURL              string       `yaml:"job_url,omitempty"`
	APIKey              string       `yaml:"api_key,omitempty"`
	DefaultModel        string       `yaml:"default_model"`
	FastModel           string       `yaml:"fast_model,omitempty"`
	MinimalModel        string       `yaml:"minimal_model,omitempty"`
	Capabilities        []Capability `yaml:"capabilities"`
	ContextWindowTokens int          `yaml:"context_window_tokens"`
	LatencyClass        LatencyClass `yaml:"latency_class"`
	CostPerToken        float64      `yaml:"cost_per_token"`

	// ModelPatterns are doublestar globs; a request naming a model routes to
	// the profile whose pattern matches it.
	ModelPatterns []string `yaml:"model_patterns,omitempty"`

	// TextPath locates the generated text in the provider's response JSON,
	// as a dot path (e.g. "choices.0.message.content"). Empty means common
	// shapes are probed.
	TextPath string `yaml:"text_path,omitempty"`

	// Fallbacks is the fixed, hand-specified alternate order for this
	// provider, used only when the primary fails outright.
	Fallbacks []string `yaml:"fallbacks,omitempty"`
}

func (p Profile) Has(c Capability) bool {
	for _, have := range p.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// MatchesModel reports whether model matches one of the profile's patterns.
func (p Profile) MatchesModel(model string) bool {
	model = strings.TrimSpace(model)
	if model == "" {
		return false
	}
	for _, pat := range p.ModelPatterns {
		if ok, err := doublestar.Match(pat, model); err == nil && ok {
			return true
		}
	}
	return false
}

// SupportsJobs reports whether the profile exposes an async job endpoint.
func (p Profile) SupportsJobs() bool { return strings.TrimSpace(p.JobURL) != "" }

// Registry holds the configured provider profiles. Read-only after
// construction and safe for shared use.
type Registry struct {
	profiles []Profile
	byID     map[string]Profile
}

// NewRegistry validates the profiles and fallback lists. An empty profile
// set is a configuration error, not a degraded mode.
func NewRegistry(profiles []Profile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	byID := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("provider profile missing id")
		}
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("duplicate provider id: %s", id)
		}
		if strings.TrimSpace(p.BaseURL) == "" {
			return nil, fmt.Errorf("provider %s: base_url is required", id)
		}
		if strings.TrimSpace(p.DefaultModel) == "" {
			return nil, fmt.Errorf("provider %s: default_model is required", id)
		}
		byID[id] = p
	}
	for _, p := range profiles {
		if len(p.Fallbacks) > 2 {
			return nil, fmt.Errorf("provider %s: at most 2 fallbacks allowed, got %d", p.ID, len(p.Fallbacks))
		}
		seen := map[string]bool{}
		for _, fb := range p.Fallbacks {
			if fb == p.ID {
				return nil, fmt.Errorf("provider %s: lists itself as a fallback", p.ID)
			}
			if _, ok := byID[fb]; !ok {
				return nil, fmt.Errorf("provider %s: unknown fallback %s", p.ID, fb)
			}
			if seen[fb] {
				return nil, fmt.Errorf("provider %s: duplicate fallback %s", p.ID, fb)
			}
			seen[fb] = true
		}
	}
	return &Registry{profiles: append([]Profile(nil), profiles...), byID: byID}, nil
}

func (r *Registry) Get(id string) (Profile, bool) {
	p, ok := r.byID[strings.TrimSpace(id)]
	return p, ok
}

func (r *Registry) Len() int { return len(r.profiles) }

// All returns profiles in stable (config) order.
func (r *Registry) All() []Profile {
	return append([]Profile(nil), r.profiles...)
}

// IDs returns the configured provider ids, sorted.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
