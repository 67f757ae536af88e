// Package prompt turns named fields into prompt strings by substituting them
// into a fixed catalogue of instruction templates.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var builtinTemplates []byte

// placeholder matches {field_name}.
var placeholder = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

type Template struct {
	Description string            `yaml:"description"`
	Required    []string          `yaml:"required"`
	Defaults    map[string]string `yaml:"defaults"`
	Text        string            `yaml:"template"`
}

// Placeholders lists the field names a template references, in order of
// first appearance.
func (t Template) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(t.Text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

type catalogue struct {
	Templates map[models.TemplateKind]Template `yaml:"templates"`
}

// Builder holds the template catalogue. It is read-only after construction.
type Builder struct {
	templates map[models.TemplateKind]Template
}

// NewBuilder loads the built-in catalogue.
func NewBuilder() (*Builder, error) {
	return LoadBuilder("")
}

// LoadBuilder loads the built-in catalogue and, when path is set, overlays
// the templates defined in that YAML file.
func LoadBuilder(path string) (*Builder, error) {
	var base catalogue
	if err := yaml.Unmarshal(builtinTemplates, &base); err != nil {
		return nil, fmt.Errorf("failed to parse built-in templates: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read templates file: %w", err)
		}
		var extra catalogue
		if err := yaml.Unmarshal(data, &extra); err != nil {
			return nil, fmt.Errorf("failed to parse templates file %s: %w", path, err)
		}
		for kind, tpl := range extra.Templates {
			base.Templates[kind] = tpl
		}
	}

	for kind, tpl := range base.Templates {
		if strings.TrimSpace(tpl.Text) == "" {
			return nil, fmt.Errorf("template %q has no text", kind)
		}
	}

	return &Builder{templates: base.Templates}, nil
}

// Kinds returns the available template kinds sorted by name.
func (b *Builder) Kinds() []models.TemplateKind {
	kinds := make([]models.TemplateKind, 0, len(b.templates))
	for k := range b.templates {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (b *Builder) Template(kind models.TemplateKind) (Template, bool) {
	t, ok := b.templates[kind]
	return t, ok
}

// Build substitutes fields into the template of kind. Values are inserted
// verbatim; placeholders without a value or default become empty. Build does
// not modify fields and returns the same string for the same input.
func (b *Builder) Build(fields map[string]string, kind models.TemplateKind) (string, error) {
	tpl, ok := b.templates[kind]
	if !ok {
		return "", fmt.Errorf("unknown template kind %q", kind)
	}

	return placeholder.ReplaceAllStringFunc(tpl.Text, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := fields[name]; ok && strings.TrimSpace(v) != "" {
			return v
		}
		return tpl.Defaults[name]
	}), nil
}

// Spec returns the PromptSpec for fields and kind with defaults applied.
func (b *Builder) Spec(fields map[string]string, kind models.TemplateKind) (models.PromptSpec, error) {
	tpl, ok := b.templates[kind]
	if !ok {
		return models.PromptSpec{}, fmt.Errorf("unknown template kind %q", kind)
	}

	merged := make(map[string]string, len(tpl.Defaults)+len(fields))
	for k, v := range tpl.Defaults {
		merged[k] = v
	}
	for k, v := range fields {
		if strings.TrimSpace(v) != "" || merged[k] == "" {
			merged[k] = v
		}
	}

	return models.PromptSpec{
		Kind:                kind,
		InstructionTemplate: tpl.Text,
		Fields:              merged,
	}, nil
}

// Validate reports every required field of kind that is blank in fields as a
// single ValidationError. Names listed in provided are filled in later by the
// caller and are not checked.
func (b *Builder) Validate(kind models.TemplateKind, fields map[string]string, provided ...string) error {
	tpl, ok := b.templates[kind]
	if !ok {
		return fmt.Errorf("unknown template kind %q", kind)
	}

	exempt := make(map[string]bool, len(provided))
	for _, p := range provided {
		exempt[p] = true
	}

	var missing []string
	for _, name := range tpl.Required {
		if exempt[name] {
			continue
		}
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &models.ValidationError{Missing: missing}
	}
	return nil
}
