package prompts

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\.([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// PromptTemplate represents a string template that can be formatted.
type PromptTemplate struct {
	Template string
}

// NewPromptTemplate creates a new prompt template.
func NewPromptTemplate(template string) PromptTemplate {
	return PromptTemplate{Template: template}
}

// Format substitutes variables in the template string in a single pass, so
// values that themselves contain placeholders are left untouched.
// Variables are in the format `{{.variable_name}}`.
func (p PromptTemplate) Format(vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(p.Template)
}

// Variables lists the distinct placeholder names in order of first use.
func (p PromptTemplate) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(p.Template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
