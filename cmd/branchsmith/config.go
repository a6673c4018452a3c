package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vilaca/branchsmith/internal/config"
	"github.com/vilaca/branchsmith/internal/domain"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a starter configuration file",
		Long:        `Write a starter configuration to --config, or ~/.branchsmith/branchsmith.yaml. Existing files are never overwritten.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfgFile
			if path == "" {
				path = filepath.Join(config.Dir(), config.FileName+".yaml")
			}

			starter := config.Default()
			starter.GitHub.Configs = []config.GitHubConfig{
				{ID: "default", Name: "GitHub", Domain: domain.GitHubDomain, Owner: "your-org", Default: true},
			}
			starter.Services = []domain.Service{
				{Name: "example-service", TestBranch: domain.DefaultTestBranch, MasterBranch: domain.DefaultMasterBranch},
			}

			if err := config.Write(path, starter); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", mark(true), path)
			fmt.Fprintln(cmd.OutOrStdout(), gray("Set the token with GITHUB_TOKEN or github.configs[].token."))
			return nil
		},
	}

	cmd.AddCommand(initCmd)
	return cmd
}
