package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formulary/formulary/pkg/formula"
)

func newValidateCommand() *cobra.Command {
	var (
		noPolicy   bool
		policyDirs []string
	)

	cmd := &cobra.Command{
		Use:   "validate <formula.yaml>",
		Short: "Validate a formula descriptor",
		Long: `Validate a formula descriptor without resolving or installing.

This command checks:
  - YAML syntax validity
  - Schema conformance (required fields, digest format, tier values)
  - Descriptor invariants (unique dependency names, test command shape)
  - Policy compliance (OPA/rego) unless --no-policy`,
		Example: `  # Validate a formula
  formulary validate hawk-tui.yaml

  # Validate with custom policies
  formulary validate hawk-tui.yaml --policy-dir ./policies`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := formula.NewParser().ParseFile(args[0])
			if err != nil {
				return err
			}

			if !noPolicy {
				if err := checkPolicy(cmd.Context(), f, policyDirs, "validate", false); err != nil {
					return err
				}
			}

			if jsonOutput {
				return printJSON(f)
			}
			fmt.Printf("%s %s is valid (%d dependencies, license %s)\n",
				f.Name, f.Source.URL, len(f.Dependencies), f.License)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noPolicy, "no-policy", false, "skip policy evaluation")
	cmd.Flags().StringArrayVar(&policyDirs, "policy-dir", nil, "additional policy directory (repeatable)")

	return cmd
}
