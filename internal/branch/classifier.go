package branch

import (
	"strings"

	"github.com/vilaca/branchsmith/internal/domain"
)

// rule maps a predicate over the lower-cased task text to a task type.
type rule struct {
	match func(text string, priority domain.Priority) bool
	typ   domain.TaskType
}

var (
	urgentKeywords   = []string{"紧急", "修复", "bug", "错误", "urgent", "fix", "error"}
	bugKeywords      = []string{"修复", "bug", "错误", "问题", "fix", "error", "problem"}
	refactorKeywords = []string{"重构", "优化", "优化性能", "refactor", "optimize"}
	docsKeywords     = []string{"文档", "说明", "readme", "docs", "documentation"}
)

// Order matters: the first matching rule wins.
var rules = []rule{
	{
		match: func(text string, p domain.Priority) bool {
			return p == domain.PriorityHigh && containsAny(text, urgentKeywords)
		},
		typ: domain.TaskTypeHotfix,
	},
	{match: keywordRule(bugKeywords), typ: domain.TaskTypeBugfix},
	{match: keywordRule(refactorKeywords), typ: domain.TaskTypeRefactor},
	{match: keywordRule(docsKeywords), typ: domain.TaskTypeDocs},
}

// Classify infers a task type from its title, description and priority.
// Matching is plain substring containment; feature is the fallback.
func Classify(title, description string, priority domain.Priority) domain.TaskType {
	text := strings.ToLower(title + " " + description)
	priority = priority.OrDefault()
	for _, r := range rules {
		if r.match(text, priority) {
			return r.typ
		}
	}
	return domain.TaskTypeFeature
}

func keywordRule(keywords []string) func(string, domain.Priority) bool {
	return func(text string, _ domain.Priority) bool {
		return containsAny(text, keywords)
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
