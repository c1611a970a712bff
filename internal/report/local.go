package report

// Synthesize builds a structurally valid report entirely from caller facts
// using fixed templates. No network, no model: this is the terminal safety
// net of the cascade and never fails.
func Synthesize(facts Facts) StructuredReport {
	var r StructuredReport
	fill(&r, facts)
	return r
}

// SynthesizeText is Synthesize rendered to the canonical JSON form the
// cascade hands to Repair.
func SynthesizeText(facts Facts) string {
	text, err := Synthesize(facts).MarshalText()
	if err != nil {
		// The report type is plain structs and strings; marshaling cannot
		// fail on real input. Keep the guarantee anyway.
		return "{}"
	}
	return text
}
