package branch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/branchsmith/internal/domain"
)

func typePtr(t domain.TaskType) *domain.TaskType { return &t }

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

// TestGenerate_ChineseTitle covers transliteration end to end.
func TestGenerate_ChineseTitle(t *testing.T) {
	// Act
	got := Generate(Request{
		TaskTitle:   "用户登录功能",
		ServiceName: "auth-service",
		Priority:    domain.PriorityMedium,
		TaskType:    typePtr(domain.TaskTypeFeature),
		TaskID:      "abc123456",
	})

	// Assert
	assert.Equal(t, "feature/auth-service-user-login-feature-123456", got)
	assert.True(t, Validate(got).IsValid)
}

func TestGenerator_Generate(t *testing.T) {
	g := NewGenerator(WithClock(fixedClock(1700000123456)))

	testCases := []struct {
		name     string
		req      Request
		want     string
		wantType domain.TaskType
	}{
		{
			name:     "inferred bugfix",
			req:      Request{TaskTitle: "Fix login bug", ServiceName: "Auth Service", TaskID: "T-42"},
			want:     "bugfix/auth-service-fix-login-bug-T42",
			wantType: domain.TaskTypeBugfix,
		},
		{
			name:     "hotfix from high priority",
			req:      Request{TaskTitle: "Payment error", ServiceName: "billing", Priority: domain.PriorityHigh, TaskID: "987654321"},
			want:     "hotfix/billing-payment-error-654321",
			wantType: domain.TaskTypeHotfix,
		},
		{
			name:     "refactor has no id",
			req:      Request{TaskTitle: "Refactor cache layer", ServiceName: "api", TaskID: "123456"},
			want:     "refactor/api-refactor-cache-layer",
			wantType: domain.TaskTypeRefactor,
		},
		{
			name:     "docs has no id",
			req:      Request{TaskTitle: "Write docs", ServiceName: "api"},
			want:     "docs/api-write-docs",
			wantType: domain.TaskTypeDocs,
		},
		{
			name:     "clock fallback",
			req:      Request{TaskTitle: "New dashboard", ServiceName: "web"},
			want:     "feature/web-new-dashboard-123456",
			wantType: domain.TaskTypeFeature,
		},
		{
			name:     "id with only separators uses clock",
			req:      Request{TaskTitle: "New dashboard", ServiceName: "web", TaskID: "--//"},
			want:     "feature/web-new-dashboard-123456",
			wantType: domain.TaskTypeFeature,
		},
		{
			name:     "explicit type beats classifier",
			req:      Request{TaskTitle: "Fix typo", ServiceName: "web", TaskType: typePtr(domain.TaskTypeDocs)},
			want:     "docs/web-fix-typo",
			wantType: domain.TaskTypeDocs,
		},
		{
			name:     "empty slugs use placeholder",
			req:      Request{TaskTitle: "!!!", ServiceName: "???", TaskID: "1"},
			want:     "feature/item-item-1",
			wantType: domain.TaskTypeFeature,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Generate(tt.req)
			assert.Equal(t, tt.want, res.BranchName)
			assert.Equal(t, tt.wantType, res.TaskType)
			assert.True(t, Validate(res.BranchName).IsValid, Validate(res.BranchName).Errors)
		})
	}
}

// TestGenerator_LongNamesAreShortened verifies the single truncation pass.
func TestGenerator_LongNamesAreShortened(t *testing.T) {
	// Arrange
	g := NewGenerator()
	req := Request{
		TaskTitle:   strings.Repeat("title ", 20),
		ServiceName: strings.Repeat("service-", 10),
		TaskID:      "abcdef",
		TaskType:    typePtr(domain.TaskTypeFeature),
	}

	// Act
	res := g.Generate(req)

	// Assert
	require.LessOrEqual(t, len(res.BranchName), MaxBranchLength)
	assert.True(t, Validate(res.BranchName).IsValid, Validate(res.BranchName).Errors)
	assert.True(t, strings.HasPrefix(res.BranchName, "feature/service-service-"))
	assert.True(t, strings.HasSuffix(res.BranchName, "-abcdef"))

	// service slug is 50 chars, so the title gets 100-7-50-6-10 = 27
	title := strings.TrimSuffix(strings.TrimPrefix(res.BranchName, "feature/"+Slugify(req.ServiceName)+"-"), "-abcdef")
	assert.LessOrEqual(t, len(title), 27)
}

func TestGenerator_Options(t *testing.T) {
	g := NewGenerator(WithEmptySlugPlaceholder("Untitled Task"), WithSeparatorReserve(-5))
	assert.Equal(t, "untitled-task", g.placeholder)
	assert.Equal(t, minSeparatorReserve, g.reserve)

	g = NewGenerator(WithEmptySlugPlaceholder("***"), WithSeparatorReserve(500))
	assert.Equal(t, DefaultEmptySlugPlaceholder, g.placeholder)
	assert.Equal(t, maxSeparatorReserve, g.reserve)
}

func TestRequestForTask(t *testing.T) {
	task := domain.Task{ID: "t1", Title: "Fix bug", Description: "d", Priority: domain.PriorityHigh}

	req := RequestForTask(task, "svc")

	assert.Equal(t, Request{TaskTitle: "Fix bug", ServiceName: "svc", Description: "d", Priority: domain.PriorityHigh, TaskID: "t1"}, req)
}

func TestTemplates(t *testing.T) {
	tmpls := Templates()
	require.Len(t, tmpls, len(domain.TaskTypes))
	for i, tt := range domain.TaskTypes {
		assert.Equal(t, tt, tmpls[i].Type)
		assert.Equal(t, string(tt), tmpls[i].Prefix)
	}

	// callers get a copy
	tmpls[0].Prefix = "mutated"
	assert.Equal(t, "feature", TemplateFor(domain.TaskTypeFeature).Prefix)

	assert.Equal(t, "feature", TemplateFor("chore").Prefix)
	assert.Equal(t, "{prefix}/{service}-{title}", TemplateFor(domain.TaskTypeDocs).Pattern())
}

// TestRender_NoPlaceholderExpansion verifies segments are written verbatim.
func TestRender_NoPlaceholderExpansion(t *testing.T) {
	got := Render(TemplateFor(domain.TaskTypeFeature), "{title}", "{id}", "1")
	assert.Equal(t, "feature/{title}-{id}-1", got)
}

func TestCheckoutCommand(t *testing.T) {
	cmd := CheckoutCommand("feature/x-1", "")

	assert.True(t, strings.HasPrefix(cmd, "git fetch origin && (git checkout feature/x-1 2>/dev/null"))
	assert.Contains(t, cmd, "refs/remotes/origin/feature/x-1")
	assert.Contains(t, cmd, "git checkout -b feature/x-1 origin/main && git push -u origin feature/x-1")
}
