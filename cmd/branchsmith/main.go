package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vilaca/branchsmith/internal/branch"
	"github.com/vilaca/branchsmith/internal/config"
)

// errValidationFailed makes the process exit 1 without printing an error;
// the offending names have already been reported.
var errValidationFailed = errors.New("validation failed")

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

// app holds state shared by every command.
type app struct {
	cfgFile string
	cfg     *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errValidationFailed) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "branchsmith",
		Short: "Derive, validate and ship task branches",
		Long: `branchsmith turns task titles into Git branch names following fixed
templates, validates branch names, and opens and tracks the GitHub pull
requests that take those branches to test and production.

Configuration is read from --config, ./branchsmith.yaml or
~/.branchsmith/branchsmith.yaml, then overridden by BRANCHSMITH_* variables
(and GITHUB_TOKEN, GITHUB_OWNER, GITHUB_URL, PORT).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./branchsmith.yaml or ~/.branchsmith/branchsmith.yaml)")

	root.AddCommand(
		newServeCmd(a),
		newGenerateCmd(a),
		newValidateCmd(),
		newClassifyCmd(),
		newTemplatesCmd(),
		newCheckoutCmd(a),
		newPRCmd(a),
		newConfigCmd(a),
	)
	return root
}

// generator returns a branch generator tuned by the loaded configuration.
func (a *app) generator() *branch.Generator {
	return branch.NewGenerator(
		branch.WithSeparatorReserve(a.cfg.Branch.SeparatorReserve),
		branch.WithEmptySlugPlaceholder(a.cfg.Branch.EmptySlugPlaceholder),
	)
}
