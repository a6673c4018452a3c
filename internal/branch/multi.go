package branch

import "github.com/vilaca/branchsmith/internal/domain"

// ServiceResult is the branch generated for one service of a multi-service task.
type ServiceResult struct {
	ServiceName string          `json:"serviceName" yaml:"serviceName"`
	BranchName  string          `json:"branchName" yaml:"branchName"`
	TaskType    domain.TaskType `json:"taskType" yaml:"taskType"`
}

// GenerateMulti generates one branch per service with the default generator.
func GenerateMulti(taskTitle string, services []string, opts Request) []ServiceResult {
	return defaultGenerator.GenerateMulti(taskTitle, services, opts)
}

// GenerateMulti generates one branch per service, in input order. The task
// type is resolved once so every service lands in the same category.
// opts.TaskTitle and opts.ServiceName are ignored.
func (g *Generator) GenerateMulti(taskTitle string, services []string, opts Request) []ServiceResult {
	opts.TaskTitle = taskTitle
	taskType := g.ResolveType(opts)

	results := make([]ServiceResult, 0, len(services))
	for _, svc := range services {
		opts.ServiceName = svc
		res := g.generate(opts, taskType)
		results = append(results, ServiceResult{
			ServiceName: svc,
			BranchName:  res.BranchName,
			TaskType:    res.TaskType,
		})
	}
	return results
}
