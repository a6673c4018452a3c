package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vilaca/branchsmith/internal/branch"
	"github.com/vilaca/branchsmith/internal/domain"
)

type generateOptions struct {
	services    []string
	priority    string
	taskType    string
	taskID      string
	description string
	output      string
}

type generateOutput struct {
	branch.Result `yaml:",inline"`
	Validation    branch.Validation `json:"validation" yaml:"validation"`
}

func newGenerateCmd(a *app) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <task title>",
		Short: "Generate branch names for a task",
		Long: `Generate the branch name for a task title and one or more services.

Examples:
  branchsmith generate "用户登录功能" --service auth-service --id PROJ-123456
  branchsmith generate "fix login bug" -s svc-a -s svc-b -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, a, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringArrayVarP(&opts.services, "service", "s", nil, "service name (repeatable)")
	cmd.Flags().StringVarP(&opts.priority, "priority", "p", "", "task priority: low, medium or high")
	cmd.Flags().StringVarP(&opts.taskType, "type", "t", "", "force a task type instead of classifying")
	cmd.Flags().StringVar(&opts.taskID, "id", "", "task id; its last 6 characters end the branch name")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "task description, used for classification")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputText, "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, opts *generateOptions, title string) error {
	priority, err := domain.ParsePriority(opts.priority)
	if err != nil {
		return err
	}
	req := branch.Request{
		TaskTitle:   title,
		Description: opts.description,
		Priority:    priority,
		TaskID:      opts.taskID,
	}
	if opts.taskType != "" {
		t, err := domain.ParseTaskType(opts.taskType)
		if err != nil {
			return err
		}
		req.TaskType = &t
	}

	gen := a.generator()
	out := cmd.OutOrStdout()

	if len(opts.services) == 1 {
		req.ServiceName = opts.services[0]
		res := gen.Generate(req)
		result := generateOutput{Result: res, Validation: branch.Validate(res.BranchName)}
		return render(out, opts.output, result, func(w io.Writer) {
			fmt.Fprintf(w, "%s %s %s\n", mark(result.Validation.IsValid), res.BranchName, gray("("+string(res.TaskType)+")"))
		})
	}

	results := gen.GenerateMulti(title, opts.services, req)
	return render(out, opts.output, results, func(w io.Writer) {
		for _, r := range results {
			fmt.Fprintf(w, "%s %-20s %s\n", mark(branch.Validate(r.BranchName).IsValid), r.ServiceName, r.BranchName)
		}
	})
}

func newValidateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:         "validate <branch name>...",
		Short:       "Check branch names against the naming rules",
		Long:        `Validate one or more branch names. Exits with status 1 if any is invalid.`,
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			type named struct {
				BranchName        string `json:"branchName" yaml:"branchName"`
				branch.Validation `yaml:",inline"`
			}
			results := make([]named, len(args))
			allValid := true
			for i, name := range args {
				results[i] = named{BranchName: name, Validation: branch.Validate(name)}
				allValid = allValid && results[i].IsValid
			}

			err := render(cmd.OutOrStdout(), output, results, func(w io.Writer) {
				for _, r := range results {
					if r.IsValid {
						fmt.Fprintf(w, "%s %s\n", mark(true), r.BranchName)
						continue
					}
					fmt.Fprintf(w, "%s %s: %s\n", mark(false), r.BranchName, strings.Join(r.Errors, "; "))
				}
			})
			if err != nil {
				return err
			}
			if !allValid {
				return errValidationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var description, priority string
	cmd := &cobra.Command{
		Use:         "classify <task title>",
		Short:       "Show the task type a title maps to",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParsePriority(priority)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), branch.Classify(strings.Join(args, " "), description, p))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "task priority: low, medium or high")
	return cmd
}

func newTemplatesCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:         "templates",
		Short:       "List the branch templates",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			templates := branch.Templates()
			return render(cmd.OutOrStdout(), output, templates, func(w io.Writer) {
				for _, t := range templates {
					fmt.Fprintf(w, "%-9s %-34s %s\n", cyan(string(t.Type)), t.Pattern(), gray(t.Description))
				}
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")
	return cmd
}

func newCheckoutCmd(a *app) *cobra.Command {
	var base, serviceName string
	cmd := &cobra.Command{
		Use:   "checkout <branch name>",
		Short: "Print a one-line git command that checks out or creates a branch",
		Long: `Print a git command that switches to the branch if it exists locally,
tracks it if only origin has it, and otherwise creates it from the base
branch and pushes it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := branch.Validate(args[0]).Err(); err != nil {
				return err
			}
			if base == "" && serviceName != "" {
				base = a.cfg.Service(serviceName).TargetMasterBranch()
			}
			fmt.Fprintln(cmd.OutOrStdout(), branch.CheckoutCommand(args[0], base))
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "branch to create from (default: the service's master branch, else main)")
	cmd.Flags().StringVarP(&serviceName, "service", "s", "", "configured service to take the base branch from")
	return cmd
}
