package report

import (
	"encoding/json"
	"strings"
)

// Repair turns raw model output into a schema-valid StructuredReport. Parse
// failures never surface: an unparsable payload degrades to the synthesized
// structure. Every mandatory section absent or empty is filled with a
// fact-derived default, or the Placeholder literal where no fact exists.
//
// Idempotent: Repair(Repair(x).MarshalText()) == Repair(x).
func Repair(raw string, facts Facts) StructuredReport {
	r, ok := parseReport(raw)
	if !ok {
		return Synthesize(facts)
	}
	fill(&r, facts)
	return r
}

// RepairReport is Repair for callers that already hold a parsed report.
func RepairReport(r StructuredReport, facts Facts) StructuredReport {
	fill(&r, facts)
	return r
}

// parseReport extracts the first JSON object from raw and decodes it.
// Models wrap JSON in prose and code fences often enough that a bare
// Unmarshal is not sufficient.
func parseReport(raw string) (StructuredReport, bool) {
	var r StructuredReport
	body := extractJSON(raw)
	if body == "" {
		return r, false
	}
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return StructuredReport{}, false
	}
	// A decodable object that contains none of the known sections is noise,
	// not a report.
	any := false
	for _, s := range r.sections() {
		if strings.TrimSpace(s.Narrative) != "" || len(s.Items) > 0 {
			any = true
			break
		}
	}
	return r, any
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// fill enforces the mandatory-section invariant in place. Only empty slots
// are written, so a second pass is a no-op.
func fill(r *StructuredReport, facts Facts) {
	defs := sectionDefaults(facts)
	secs := r.sections()
	for i, name := range SectionNames {
		sec := secs[i]
		def := defs[name]
		sec.Items = compactItems(sec.Items)
		if strings.TrimSpace(sec.Narrative) == "" {
			sec.Narrative = def.Narrative
		}
		if len(sec.Items) == 0 {
			sec.Items = append(sec.Items, def.Items...)
		}
	}
}

func compactItems(items []string) []string {
	out := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			out = append(out, it)
		}
	}
	return out
}

// sectionDefaults builds the fact-derived fallback content for each section.
// An audience default is the caller's audience string, never an invented one.
func sectionDefaults(facts Facts) map[string]Section {
	orDefault := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return Placeholder
		}
		return strings.TrimSpace(v)
	}

	objective := orDefault(facts.Objective)
	audience := orDefault(facts.Audience)
	timeline := orDefault(facts.Timeline)
	budget := orDefault(facts.BudgetCeiling)

	title := strings.TrimSpace(facts.Title)
	if title == "" {
		title = "the program"
	}

	riskItems := []string{}
	for _, c := range facts.Constraints {
		if strings.TrimSpace(c) != "" {
			riskItems = append(riskItems, "Constraint: "+strings.TrimSpace(c))
		}
	}
	if len(riskItems) == 0 {
		riskItems = []string{Placeholder}
	}

	return map[string]Section{
		"summary": {
			Narrative: "Overview of " + title + ".",
			Items:     []string{"Objective: " + objective},
		},
		"solution": {
			Narrative: "Proposed approach for " + title + ".",
			Items:     []string{Placeholder},
		},
		"learner_analysis": {
			Narrative: "Audience: " + audience + ".",
			Items:     []string{"Primary audience: " + audience},
		},
		"technology_talent": {
			Narrative: "Technology and talent considerations for " + title + ".",
			Items:     []string{Placeholder},
		},
		"delivery_plan": {
			Narrative: "Delivery timeline: " + timeline + ".",
			Items:     []string{"Timeline: " + timeline},
		},
		"measurement": {
			Narrative: "Success measures for " + title + ".",
			Items:     []string{Placeholder},
		},
		"budget": {
			Narrative: "Budget envelope: " + budget + ".",
			Items:     []string{"Budget ceiling: " + budget},
		},
		"risks": {
			Narrative: "Known risks and constraints.",
			Items:     riskItems,
		},
		"next_steps": {
			Narrative: "Immediate next steps for " + title + ".",
			Items:     []string{Placeholder},
		},
	}
}
