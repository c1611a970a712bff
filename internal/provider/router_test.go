package provider

import "testing"

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]Profile{
		{
			ID: "athena", BaseURL: "https://athena.example", JobURL: "https://athena.example/jobs",
			DefaultModel: "athena-large", FastModel: "athena-small",
			Capabilities:        []Capability{CapText, CapReasoning, CapVision, CapDocuments},
			ContextWindowTokens: 200_000, LatencyClass: LatencyMedium, CostPerToken: 0.000008,
			ModelPatterns: []string{"athena-*"},
			Fallbacks:     []string{"hermes"},
		},
		{
			ID: "hermes", BaseURL: "https://hermes.example",
			DefaultModel: "hermes-flash", MinimalModel: "hermes-nano",
			Capabilities:        []Capability{CapText, CapVision},
			ContextWindowTokens: 32_000, LatencyClass: LatencyLow, CostPerToken: 0.000001,
			Fallbacks: []string{"athena"},
		},
		{
			ID: "odin", BaseURL: "https://odin.example",
			DefaultModel:        "odin-research",
			Capabilities:        []Capability{CapText, CapResearch},
			ContextWindowTokens: 1_000_000, LatencyClass: LatencyHigh, CostPerToken: 0.000020,
			Fallbacks: []string{"athena", "hermes"},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestSelect_PreferredProviderWins(t *testing.T) {
	r := NewRouter(testRegistry(t))
	p, err := r.Select(Request{PreferredProvider: "odin", InputKind: InputText})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.ID != "odin" {
		t.Fatalf("got %s want odin", p.ID)
	}
}

func TestSelect_UnknownPreferredFallsThrough(t *testing.T) {
	r := NewRouter(testRegistry(t))
	p, err := r.Select(Request{PreferredProvider: "nope", InputKind: InputText})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.ID != "athena" { // reasoning-capable text default
		t.Fatalf("got %s want athena", p.ID)
	}
}

func TestSelect_ModelPattern(t *testing.T) {
	r := NewRouter(testRegistry(t))
	p, err := r.Select(Request{Model: "athena-large-2", InputKind: InputText})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.ID != "athena" {
		t.Fatalf("got %s want athena", p.ID)
	}
}

func TestSelect_ResearchCapability(t *testing.T) {
	r := NewRouter(testRegistry(t))
	p, err := r.Select(Request{InputKind: InputText, RequiredCapabilities: []Capability{CapResearch}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.ID != "odin" {
		t.Fatalf("got %s want odin", p.ID)
	}
}

func TestSelect_InputKinds(t *testing.T) {
	r := NewRouter(testRegistry(t))
	cases := []struct {
		name string
		req  Request
		want string
	}{
		{"image low latency", Request{InputKind: InputImage, MaxLatency: LatencyLow}, "hermes"},
		{"image default", Request{InputKind: InputImage}, "athena"}, // vision+documents
		{"audio largest context", Request{InputKind: InputAudio}, "odin"},
		{"video largest context", Request{InputKind: InputVideo}, "odin"},
		{"document fits window", Request{InputKind: InputDocument, ContextSizeHint: 50_000}, "athena"},
		{"document exceeds window", Request{InputKind: InputDocument, ContextSizeHint: 500_000}, "odin"},
		{"text low latency", Request{InputKind: InputText, MaxLatency: LatencyLow}, "hermes"},
		{"text default reasoning", Request{InputKind: InputText}, "athena"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := r.Select(tc.req)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if p.ID != tc.want {
				t.Fatalf("got %s want %s", p.ID, tc.want)
			}
		})
	}
}

func TestSelect_Deterministic(t *testing.T) {
	r := NewRouter(testRegistry(t))
	req := Request{InputKind: InputText}
	first, err := r.Select(req)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	for i := 0; i < 10; i++ {
		p, err := r.Select(req)
		if err != nil || p.ID != first.ID {
			t.Fatalf("run %d: got %s,%v want %s", i, p.ID, err, first.ID)
		}
	}
}

func TestFallbacks_OrderAndExclusion(t *testing.T) {
	r := NewRouter(testRegistry(t))
	fbs := r.Fallbacks("odin")
	if len(fbs) != 2 || fbs[0].ID != "athena" || fbs[1].ID != "hermes" {
		t.Fatalf("fallbacks = %+v", fbs)
	}
	for _, fb := range fbs {
		if fb.ID == "odin" {
			t.Fatalf("fallback list includes the provider itself")
		}
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	base := Profile{ID: "a", BaseURL: "https://a", DefaultModel: "m"}
	cases := []struct {
		name     string
		profiles []Profile
	}{
		{"empty", nil},
		{"missing id", []Profile{{BaseURL: "https://a", DefaultModel: "m"}}},
		{"missing base_url", []Profile{{ID: "a", DefaultModel: "m"}}},
		{"missing default_model", []Profile{{ID: "a", BaseURL: "https://a"}}},
		{"duplicate id", []Profile{base, base}},
		{"self fallback", []Profile{{ID: "a", BaseURL: "https://a", DefaultModel: "m", Fallbacks: []string{"a"}}}},
		{"unknown fallback", []Profile{{ID: "a", BaseURL: "https://a", DefaultModel: "m", Fallbacks: []string{"z"}}}},
		{"too many fallbacks", []Profile{
			{ID: "a", BaseURL: "https://a", DefaultModel: "m", Fallbacks: []string{"b", "c", "d"}},
			{ID: "b", BaseURL: "https://b", DefaultModel: "m"},
			{ID: "c", BaseURL: "https://c", DefaultModel: "m"},
			{ID: "d", BaseURL: "https://d", DefaultModel: "m"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry(tc.profiles); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseRegistry_YAML(t *testing.T) {
	t.Setenv("TEST_ATHENA_KEY", "sk-test")
	reg, err := ParseRegistry([]byte(`
providers:
  - id: athena
    base_url: https://athena.example
    job_url: https://athena.example/v1/jobs
    api_key_env: TEST_ATHENA_KEY
    default_model: athena-large
    fast_model: athena-small
    capabilities: [text, reasoning, vision, documents]
    context_window_tokens: 200000
    latency_class: medium
    cost_per_token: 0.000008
    model_patterns: ["athena-*"]
    text_path: "output.text"
  - id: hermes
    base_url: https://hermes.example
    default_model: hermes-flash
    capabilities: [text]
    context_window_tokens: 32000
    latency_class: low
    cost_per_token: 0.000001
    fallbacks: [athena]
`))
	if err != nil {
		t.Fatalf("ParseRegistry: %v", err)
	}
	p, ok := reg.Get("athena")
	if !ok {
		t.Fatalf("athena missing")
	}
	if p.APIKey != "sk-test" {
		t.Fatalf("api key = %q", p.APIKey)
	}
	if !p.SupportsJobs() {
		t.Fatalf("athena should support jobs")
	}
	if p.TextPath != "output.text" {
		t.Fatalf("text_path = %q", p.TextPath)
	}
	if reg.Len() != 2 {
		t.Fatalf("len = %d", reg.Len())
	}
}
