package provider

import (
	"fmt"
	"strings"
)

// Request is the routing view of a generation request: only the declared
// needs the router branches on.
type Request struct {
	InputKind            InputKind
	RequiredCapabilities []Capability
	MaxLatency           LatencyClass // empty means no latency requirement
	ContextSizeHint      int
	Model                string // explicit model, resolved via profile patterns
	PreferredProvider    string
}

func (req Request) requires(c Capability) bool {
	for _, have := range req.RequiredCapabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Router maps a request's declared needs to a provider. Selection is
// deterministic: ties break on config order.
type Router struct {
	reg *Registry
}

func NewRouter(reg *Registry) *Router { return &Router{reg: reg} }

// Select picks the provider for req.
//
// Precedence: explicit preferred provider, explicit model pattern, research
// capability, then input-kind rules, then the cost-effective default.
func (r *Router) Select(req Request) (Profile, error) {
	if id := strings.TrimSpace(req.PreferredProvider); id != "" {
		if p, ok := r.reg.Get(id); ok {
			return p, nil
		}
		// An unknown override falls through to normal routing rather than
		// failing the whole request.
	}
	if m := strings.TrimSpace(req.Model); m != "" {
		for _, p := range r.reg.profiles {
			if p.MatchesModel(m) {
				return p, nil
			}
		}
	}
	if req.requires(CapResearch) {
		if p, ok := r.firstWith(CapResearch); ok {
			return p, nil
		}
	}

	switch req.InputKind {
	case InputImage:
		if req.MaxLatency == LatencyLow {
			if p, ok := r.lowestLatency(CapVision); ok {
				return p, nil
			}
		}
		if p, ok := r.firstWithAll(CapVision, CapDocuments); ok {
			return p, nil
		}
		if p, ok := r.firstWith(CapVision); ok {
			return p, nil
		}
	case InputAudio, InputVideo:
		if p, ok := r.largestContext(); ok {
			return p, nil
		}
	case InputDocument:
		if p, ok := r.firstWith(CapDocuments); ok {
			if req.ContextSizeHint > 0 && req.ContextSizeHint > p.ContextWindowTokens {
				if big, okBig := r.largestContext(); okBig && big.ContextWindowTokens > p.ContextWindowTokens {
					return big, nil
				}
			}
			return p, nil
		}
	default: // text
		if req.MaxLatency == LatencyLow {
			if p, ok := r.lowestLatency(CapText); ok {
				return p, nil
			}
		}
		if p, ok := r.firstWith(CapReasoning); ok {
			return p, nil
		}
	}

	if p, ok := r.cheapest(); ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("no provider satisfies request")
}

// Fallbacks returns the fixed alternate order for providerID. The list
// never includes providerID itself (enforced at registry construction).
func (r *Router) Fallbacks(providerID string) []Profile {
	p, ok := r.reg.Get(providerID)
	if !ok {
		return nil
	}
	out := make([]Profile, 0, len(p.Fallbacks))
	for _, id := range p.Fallbacks {
		if fb, ok := r.reg.Get(id); ok {
			out = append(out, fb)
		}
	}
	return out
}

func (r *Router) firstWith(c Capability) (Profile, bool) {
	for _, p := range r.reg.profiles {
		if p.Has(c) {
			return p, true
		}
	}
	return Profile{}, false
}

func (r *Router) firstWithAll(caps ...Capability) (Profile, bool) {
	for _, p := range r.reg.profiles {
		all := true
		for _, c := range caps {
			if !p.Has(c) {
				all = false
				break
			}
		}
		if all {
			return p, true
		}
	}
	return Profile{}, false
}

func (r *Router) lowestLatency(c Capability) (Profile, bool) {
	var best Profile
	found := false
	for _, p := range r.reg.profiles {
		if !p.Has(c) {
			continue
		}
		if !found || latencyRank(p.LatencyClass) < latencyRank(best.LatencyClass) {
			best = p
			found = true
		}
	}
	return best, found
}

func (r *Router) largestContext() (Profile, bool) {
	var best Profile
	found := false
	for _, p := range r.reg.profiles {
		if !found || p.ContextWindowTokens > best.ContextWindowTokens {
			best = p
			found = true
		}
	}
	return best, found
}

func (r *Router) cheapest() (Profile, bool) {
	var best Profile
	found := false
	for _, p := range r.reg.profiles {
		if !found || p.CostPerToken < best.CostPerToken {
			best = p
			found = true
		}
	}
	return best, found
}

func latencyRank(c LatencyClass) int {
	switch c {
	case LatencyLow:
		return 0
	case LatencyMedium:
		return 1
	case LatencyHigh:
		return 2
	default:
		return 3
	}
}
