package models

import "time"

// TemplateKind names one entry of the prompt template catalogue.
type TemplateKind string

const (
	TemplateFactsheet          TemplateKind = "factsheet"
	TemplateFactsheetVersion   TemplateKind = "factsheet_version"
	TemplateFeatureComparison  TemplateKind = "feature_comparison"
	TemplateRoadmap            TemplateKind = "roadmap"
	TemplateFAQ                TemplateKind = "faq"
	TemplateABTest             TemplateKind = "ab_test"
	TemplateContentSuggestions TemplateKind = "content_suggestions"
	TemplateSEOAudit           TemplateKind = "seo_audit"
	TemplateFundCommentary     TemplateKind = "fund_commentary"
)

// PromptSpec is an instruction template plus the fields substituted into it.
type PromptSpec struct {
	Kind                TemplateKind      `json:"kind" yaml:"kind"`
	InstructionTemplate string            `json:"instruction_template" yaml:"instruction_template"`
	Fields              map[string]string `json:"fields" yaml:"fields"`
}

// GenerationResult is one completion and the prompt that produced it. It is
// never mutated after creation.
type GenerationResult struct {
	Variant      int        `json:"variant" yaml:"variant"`
	Text         string     `json:"text" yaml:"text"`
	Prompt       string     `json:"prompt" yaml:"prompt"`
	SourcePrompt PromptSpec `json:"source_prompt" yaml:"source_prompt"`
	Model        string     `json:"model,omitempty" yaml:"model,omitempty"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
}
