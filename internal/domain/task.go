package domain

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// OrDefault returns the priority, or medium when empty.
func (p Priority) OrDefault() Priority {
	if p == "" {
		return PriorityMedium
	}
	return p
}

// ParsePriority normalizes raw input. Empty input yields medium.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	}
	return "", fmt.Errorf("invalid priority %q (want low, medium or high)", raw)
}

// TaskType is the branch category a task maps to.
type TaskType string

const (
	TaskTypeFeature  TaskType = "feature"
	TaskTypeBugfix   TaskType = "bugfix"
	TaskTypeHotfix   TaskType = "hotfix"
	TaskTypeRefactor TaskType = "refactor"
	TaskTypeDocs     TaskType = "docs"
)

// TaskTypes lists every task type in canonical order.
var TaskTypes = []TaskType{
	TaskTypeFeature,
	TaskTypeBugfix,
	TaskTypeHotfix,
	TaskTypeRefactor,
	TaskTypeDocs,
}

// ParseTaskType validates and normalizes a task type.
func ParseTaskType(raw string) (TaskType, error) {
	t := TaskType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range TaskTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid task type %q", raw)
}

// TaskStatus is the kanban column a task sits in.
type TaskStatus string

const (
	TaskStatusBacklog    TaskStatus = "backlog"
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
)

// Task is the input record branch names are derived from.
type Task struct {
	ID              string          `json:"id" yaml:"id"`
	Title           string          `json:"title" yaml:"title"`
	Description     string          `json:"description,omitempty" yaml:"description,omitempty"`
	Status          TaskStatus      `json:"status,omitempty" yaml:"status,omitempty"`
	Priority        Priority        `json:"priority,omitempty" yaml:"priority,omitempty"`
	Type            *TaskType       `json:"type,omitempty" yaml:"type,omitempty"`
	Assignee        string          `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	ServiceBranches []ServiceBranch `json:"serviceBranches,omitempty" yaml:"serviceBranches,omitempty"`
	CreatedAt       time.Time       `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}
