// Package report defines the structured report shape, validates it against
// a JSON Schema, and repairs malformed or incomplete model output into a
// guaranteed-valid result.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Facts are the caller-supplied ground truths about the engagement. Repair
// and the local synthesizer draw defaults from here, never from invention.
type Facts struct {
	Title         string
	Organization  string
	Audience      string
	Objective     string
	Timeline      string
	BudgetCeiling string
	Constraints   []string
}

// Placeholder marks a mandatory entry that had no backing fact. It is a
// fixed literal so downstream UI can detect and style it.
const Placeholder = "pending — requires stakeholder input"

// Section is one named part of the report: a scalar narrative plus a list
// of concrete entries.
type Section struct {
	Narrative string   `json:"narrative"`
	Items     []string `json:"items"`
}

func (s Section) populated() bool {
	if strings.TrimSpace(s.Narrative) == "" {
		return false
	}
	for _, it := range s.Items {
		if strings.TrimSpace(it) != "" {
			return true
		}
	}
	return false
}

// StructuredReport is the fixed set of named sections. Every section is
// mandatory: present with a narrative and at least one populated item after
// Repair runs.
type StructuredReport struct {
	Summary          Section `json:"summary"`
	Solution         Section `json:"solution"`
	LearnerAnalysis  Section `json:"learner_analysis"`
	TechnologyTalent Section `json:"technology_talent"`
	DeliveryPlan     Section `json:"delivery_plan"`
	Measurement      Section `json:"measurement"`
	Budget           Section `json:"budget"`
	Risks            Section `json:"risks"`
	NextSteps        Section `json:"next_steps"`
}

// SectionNames lists the sections in presentation order.
var SectionNames = []string{
	"summary", "solution", "learner_analysis", "technology_talent",
	"delivery_plan", "measurement", "budget", "risks", "next_steps",
}

// sections returns addressable references in SectionNames order.
func (r *StructuredReport) sections() []*Section {
	return []*Section{
		&r.Summary, &r.Solution, &r.LearnerAnalysis, &r.TechnologyTalent,
		&r.DeliveryPlan, &r.Measurement, &r.Budget, &r.Risks, &r.NextSteps,
	}
}

// MarshalText renders the report as canonical indented JSON. Deterministic:
// equal reports produce byte-identical output.
func (r StructuredReport) MarshalText() (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

const schemaJSON = `{
  "type": "object",
  "required": ["summary", "solution", "learner_analysis", "technology_talent",
               "delivery_plan", "measurement", "budget", "risks", "next_steps"],
  "additionalProperties": false,
  "properties": {
    "summary":           {"$ref": "#/$defs/section"},
    "solution":          {"$ref": "#/$defs/section"},
    "learner_analysis":  {"$ref": "#/$defs/section"},
    "technology_talent": {"$ref": "#/$defs/section"},
    "delivery_plan":     {"$ref": "#/$defs/section"},
    "measurement":       {"$ref": "#/$defs/section"},
    "budget":            {"$ref": "#/$defs/section"},
    "risks":             {"$ref": "#/$defs/section"},
    "next_steps":        {"$ref": "#/$defs/section"}
  },
  "$defs": {
    "section": {
      "type": "object",
      "required": ["narrative", "items"],
      "properties": {
        "narrative": {"type": "string", "minLength": 1},
        "items": {
          "type": "array",
          "minItems": 1,
          "items": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("report.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("report.json")
	})
	return schema, schemaErr
}

// Validate checks the mandatory-section invariant against the schema.
func Validate(r StructuredReport) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("report schema: %w", err)
	}
	return nil
}
