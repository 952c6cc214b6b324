package chat

import (
	_ "embed"
	"fmt"
	"html"
	"strings"
	"sync"
	"text/template"

	"github.com/goccy/go-yaml"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed tools.yaml
var defaultToolTable []byte

// toolTable is the YAML layout of the description table
type toolTable struct {
	Tools []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"tools"`
}

// ToolDescriber turns tool calls into short human readable lines
type ToolDescriber struct {
	templates map[string]*template.Template
	policy    *bluemonday.Policy
}

var (
	defaultDescriber     *ToolDescriber
	defaultDescriberOnce sync.Once
)

// DefaultToolDescriber returns the describer built from the embedded table
func DefaultToolDescriber() *ToolDescriber {
	defaultDescriberOnce.Do(func() {
		d, err := NewToolDescriber(defaultToolTable)
		if err != nil {
			panic(fmt.Sprintf("embedded tool table: %v", err))
		}
		defaultDescriber = d
	})
	return defaultDescriber
}

// NewToolDescriber parses a YAML description table
func NewToolDescriber(data []byte) (*ToolDescriber, error) {
	var table toolTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse tool table: %w", err)
	}

	d := &ToolDescriber{
		templates: make(map[string]*template.Template, len(table.Tools)),
		policy:    bluemonday.StrictPolicy(),
	}
	for _, tool := range table.Tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("tool table: entry without name")
		}
		tmpl, err := template.New(tool.Name).Option("missingkey=error").Parse(tool.Description)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
		}
		d.templates[tool.Name] = tmpl
	}
	return d, nil
}

// Describe renders the description for a call. Unknown tools, and inputs
// missing a field the template needs, fall back to "Using tool: <name>".
func (d *ToolDescriber) Describe(name string, input any) string {
	fallback := "Using tool: " + d.clean(name)

	tmpl, ok := d.templates[name]
	if !ok {
		return fallback
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, input); err != nil {
		return fallback
	}

	out := d.clean(b.String())
	if out == "" {
		return fallback
	}
	return out
}

// clean strips markup and collapses whitespace
func (d *ToolDescriber) clean(s string) string {
	s = html.UnescapeString(d.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
