package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vilaca/branchsmith/internal/domain"
	"github.com/vilaca/branchsmith/internal/server"
	"github.com/vilaca/branchsmith/internal/service"
)

func newPRCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pr",
		Short: "Open, inspect and merge GitHub pull requests",
	}
	cmd.AddCommand(newPRCreateCmd(a), newPRStatusCmd(a), newPRMergeCmd(a))
	return cmd
}

func newPRCreateCmd(a *app) *cobra.Command {
	var req service.CreatePRRequest
	var output string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a pull request for a branch",
		Long: `Open a pull request from --head into --base (default: the service's
test branch) in the service's repository.

Example:
  branchsmith pr create -s auth-service --head feature/auth-service-login-123456 --title "User login"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prs := newPRService(a, nil, server.NewStdLogger())
			pr, err := prs.CreateForBranch(cmd.Context(), req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, pr, func(w io.Writer) {
				fmt.Fprintf(w, "%s #%d %s\n", mark(true), pr.Number, pr.HTMLURL)
			})
		},
	}
	cmd.Flags().StringVarP(&req.ServiceName, "service", "s", "", "service name")
	cmd.Flags().StringVar(&req.Title, "title", "", "pull request title")
	cmd.Flags().StringVar(&req.Head, "head", "", "branch to merge")
	cmd.Flags().StringVar(&req.Base, "base", "", "target branch")
	cmd.Flags().StringVar(&req.Body, "body", "", "pull request description")
	cmd.Flags().StringVar(&req.ConfigID, "github", "", "GitHub config id (default: the service's, else the default one)")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("head")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newPRStatusCmd(a *app) *cobra.Command {
	var req service.StatusRequest
	var output string
	cmd := &cobra.Command{
		Use:   "status <pull request url>",
		Short: "Show a pull request and its checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.PullRequestURL = args[0]
			prs := newPRService(a, nil, server.NewStdLogger())
			status, err := prs.Status(cmd.Context(), req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, status, func(w io.Writer) {
				printStatus(w, status)
			})
		},
	}
	cmd.Flags().StringVarP(&req.ServiceName, "service", "s", "", "service name")
	cmd.Flags().StringVar(&req.ConfigID, "github", "", "GitHub config id")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func printStatus(w io.Writer, status *domain.PullRequestStatus) {
	state := status.State
	if status.Merged {
		state = "merged"
	}
	fmt.Fprintf(w, "%s #%d %s\n", cyan(state), status.Number, status.Title)
	fmt.Fprintf(w, "  %s <- %s\n", status.BaseRef, status.HeadRef)

	mergeable := "unknown"
	if status.Mergeable != nil {
		mergeable = fmt.Sprintf("%t", *status.Mergeable)
	}
	fmt.Fprintf(w, "  mergeable: %s %s\n", mergeable, gray(status.MergeableState))

	if status.Checks == nil {
		fmt.Fprintf(w, "  checks: %s\n", gray("unavailable"))
	} else {
		c := status.Checks
		fmt.Fprintf(w, "  checks: %s (%d/%d completed, %d failed)\n", c.State, c.CompletedCount, c.TotalCount, c.FailedCount)
	}
	fmt.Fprintf(w, "  %s can merge\n", mark(status.CanMerge()))
}

func newPRMergeCmd(a *app) *cobra.Command {
	var req service.MergeRequest
	var method string
	cmd := &cobra.Command{
		Use:   "merge <pull request url>",
		Short: "Merge a pull request that is open, mergeable and green",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.PullRequestURL = args[0]
			req.Method = domain.MergeMethod(method)
			prs := newPRService(a, nil, server.NewStdLogger())
			result, err := prs.Merge(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", mark(result.Merged), result.Message, gray(result.SHA))
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.ServiceName, "service", "s", "", "service name")
	cmd.Flags().StringVar(&req.ConfigID, "github", "", "GitHub config id")
	cmd.Flags().StringVar(&method, "method", string(domain.MergeMethodMerge), "merge method: merge, squash or rebase")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}
