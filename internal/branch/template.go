package branch

import (
	"strings"

	"github.com/vilaca/branchsmith/internal/domain"
)

// Template is a branch category and the shape of the names it renders.
type Template struct {
	Type        domain.TaskType `json:"type" yaml:"type"`
	Prefix      string          `json:"prefix" yaml:"prefix"`
	Description string          `json:"description" yaml:"description"`
	// IncludeID appends the task id suffix as the final segment.
	IncludeID bool `json:"includeId" yaml:"includeId"`
}

// Pattern returns the placeholder form of the template, for display only.
func (t Template) Pattern() string {
	if t.IncludeID {
		return "{prefix}/{service}-{title}-{id}"
	}
	return "{prefix}/{service}-{title}"
}

var templates = [...]Template{
	{Type: domain.TaskTypeFeature, Prefix: "feature", Description: "New feature development branch", IncludeID: true},
	{Type: domain.TaskTypeBugfix, Prefix: "bugfix", Description: "Bug fix branch", IncludeID: true},
	{Type: domain.TaskTypeHotfix, Prefix: "hotfix", Description: "Urgent production fix branch", IncludeID: true},
	{Type: domain.TaskTypeRefactor, Prefix: "refactor", Description: "Code refactoring branch"},
	{Type: domain.TaskTypeDocs, Prefix: "docs", Description: "Documentation update branch"},
}

// Templates returns a copy of every template in canonical type order.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates[:])
	return out
}

// TemplateFor returns the template for a task type, falling back to feature.
func TemplateFor(t domain.TaskType) Template {
	for _, tmpl := range templates {
		if tmpl.Type == t {
			return tmpl
		}
	}
	return templates[0]
}

// Render assembles a branch name from already-cleaned segments. Segments are
// written verbatim; nothing inside them is interpreted.
func Render(t Template, service, title, id string) string {
	var b strings.Builder
	b.Grow(len(t.Prefix) + len(service) + len(title) + len(id) + 3)
	b.WriteString(t.Prefix)
	b.WriteByte('/')
	b.WriteString(service)
	b.WriteByte('-')
	b.WriteString(title)
	if t.IncludeID {
		b.WriteByte('-')
		b.WriteString(id)
	}
	return b.String()
}
