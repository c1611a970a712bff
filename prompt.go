package blueprint

import (
	"fmt"
	"strings"

	"github.com/mfeltman/blueprint/internal/report"
)

// fullPrompt assembles the richest request: system framing, the caller's
// prompt, auxiliary context, and the output contract.
func fullPrompt(spec GenerateSpec) string {
	var b strings.Builder
	if strings.TrimSpace(spec.SystemPrompt) != "" {
		b.WriteString(spec.SystemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString(spec.Prompt)
	for _, aux := range spec.AuxContext {
		if strings.TrimSpace(aux) == "" {
			continue
		}
		b.WriteString("\n\n--- context ---\n")
		b.WriteString(aux)
	}
	b.WriteString("\n\n")
	b.WriteString(outputContract)
	return b.String()
}

// simplifiedPrompt drops the auxiliary context and the system framing; the
// degraded rung trades fidelity for a smaller, faster request.
func simplifiedPrompt(spec GenerateSpec) string {
	return spec.Prompt + "\n\n" + outputContract
}

// minimalPrompt is a fixed template over the caller's facts. It asks the
// smallest possible question that can still yield a structured report.
func minimalPrompt(facts report.Facts) string {
	var b strings.Builder
	b.WriteString("Write a brief program report as JSON.\n")
	writeFact(&b, "Title", facts.Title)
	writeFact(&b, "Organization", facts.Organization)
	writeFact(&b, "Audience", facts.Audience)
	writeFact(&b, "Objective", facts.Objective)
	writeFact(&b, "Timeline", facts.Timeline)
	writeFact(&b, "Budget ceiling", facts.BudgetCeiling)
	for _, c := range facts.Constraints {
		writeFact(&b, "Constraint", c)
	}
	b.WriteString("\n")
	b.WriteString(outputContract)
	return b.String()
}

func researchPrompt(topic, data string) string {
	if strings.TrimSpace(data) == "" {
		return fmt.Sprintf("Research the following topic and summarize the findings:\n%s", topic)
	}
	return fmt.Sprintf("Research the following topic and summarize the findings:\n%s\n\nRelevant data:\n%s", topic, data)
}

func writeFact(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(strings.TrimSpace(value))
	b.WriteString("\n")
}

// outputContract pins the response shape to the mandatory report sections.
// Kept terse: degraded rungs include it too.
var outputContract = "Respond with a single JSON object whose keys are: " +
	strings.Join(report.SectionNames, ", ") +
	". Each section is an object with a \"narrative\" string and an \"items\" array of strings."
