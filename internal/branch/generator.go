package branch

import (
	"strconv"
	"strings"
	"time"

	"github.com/vilaca/branchsmith/internal/domain"
)

const (
	// MaxBranchLength is the longest branch name the generator emits.
	MaxBranchLength = 100

	// IDSuffixLength is how many trailing id characters end a branch name.
	IDSuffixLength = 6

	// DefaultSeparatorReserve is the room kept for separators when a long
	// title has to be shortened.
	DefaultSeparatorReserve = 10

	// DefaultEmptySlugPlaceholder stands in for a title or service that
	// cleans down to nothing.
	DefaultEmptySlugPlaceholder = "item"

	minSeparatorReserve = 3
	maxSeparatorReserve = 30
)

// Request describes the task a branch name is generated for.
type Request struct {
	TaskTitle   string           `json:"taskTitle" yaml:"taskTitle"`
	ServiceName string           `json:"serviceName" yaml:"serviceName"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Priority    domain.Priority  `json:"priority,omitempty" yaml:"priority,omitempty"`
	TaskType    *domain.TaskType `json:"taskType,omitempty" yaml:"taskType,omitempty"`
	TaskID      string           `json:"taskId,omitempty" yaml:"taskId,omitempty"`
	Assignee    string           `json:"assignee,omitempty" yaml:"assignee,omitempty"`
}

// RequestForTask builds a request for one service from a task record.
func RequestForTask(task domain.Task, serviceName string) Request {
	return Request{
		TaskTitle:   task.Title,
		ServiceName: serviceName,
		Description: task.Description,
		Priority:    task.Priority,
		TaskType:    task.Type,
		TaskID:      task.ID,
		Assignee:    task.Assignee,
	}
}

// Result is a generated branch name and the category that produced it.
type Result struct {
	BranchName string          `json:"branchName" yaml:"branchName"`
	TaskType   domain.TaskType `json:"taskType" yaml:"taskType"`
	Template   Template        `json:"template" yaml:"template"`
}

// Generator renders branch names. The zero value is not usable; call NewGenerator.
type Generator struct {
	now         func() time.Time
	reserve     int
	placeholder string
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the time source for the id fallback.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithSeparatorReserve overrides DefaultSeparatorReserve. Values are clamped
// so a shortened name always fits MaxBranchLength and keeps a non-empty title.
func WithSeparatorReserve(n int) Option {
	return func(g *Generator) {
		g.reserve = max(minSeparatorReserve, min(n, maxSeparatorReserve))
	}
}

// WithEmptySlugPlaceholder overrides DefaultEmptySlugPlaceholder. The value
// is itself slugified; an unusable value keeps the default.
func WithEmptySlugPlaceholder(s string) Option {
	return func(g *Generator) {
		if slug := Slugify(s); slug != "" {
			g.placeholder = slug
		}
	}
}

// NewGenerator returns a Generator with defaults applied, then opts.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		now:         time.Now,
		reserve:     DefaultSeparatorReserve,
		placeholder: DefaultEmptySlugPlaceholder,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGenerator = NewGenerator()

// Generate renders a branch name with the default generator.
func Generate(req Request) string {
	return defaultGenerator.Generate(req).BranchName
}

// ResolveType returns the explicit task type, or the classifier's choice.
func (g *Generator) ResolveType(req Request) domain.TaskType {
	if req.TaskType != nil && *req.TaskType != "" {
		return *req.TaskType
	}
	return Classify(req.TaskTitle, req.Description, req.Priority)
}

// Generate renders the branch name for req.
func (g *Generator) Generate(req Request) Result {
	return g.generate(req, g.ResolveType(req))
}

func (g *Generator) generate(req Request, taskType domain.TaskType) Result {
	tmpl := TemplateFor(taskType)
	service := g.slugOrPlaceholder(req.ServiceName)
	title := g.slugOrPlaceholder(req.TaskTitle)
	id := g.idSuffix(req.TaskID)

	name := Render(tmpl, service, title, id)
	if len(name) > MaxBranchLength {
		limit := MaxBranchLength - len(tmpl.Prefix) - len(service) - len(id) - g.reserve
		if limit < len(title) {
			title = strings.TrimRight(title[:max(limit, 1)], "-")
		}
		name = Render(tmpl, service, title, id)
	}

	return Result{BranchName: name, TaskType: tmpl.Type, Template: tmpl}
}

func (g *Generator) slugOrPlaceholder(text string) string {
	if slug := Slugify(text); slug != "" {
		return slug
	}
	return g.placeholder
}

// idSuffix returns the last IDSuffixLength ref-safe characters of taskID,
// or of the current Unix time in milliseconds when taskID has none.
func (g *Generator) idSuffix(taskID string) string {
	id := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1
	}, taskID)
	if id == "" {
		id = strconv.FormatInt(g.now().UnixMilli(), 10)
	}
	if len(id) > IDSuffixLength {
		id = id[len(id)-IDSuffixLength:]
	}
	return id
}
