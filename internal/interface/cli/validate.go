package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/capability"
	"github.com/ThomasRohde/strands-cli-sub001/internal/infrastructure/loader"
)

func newValidateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <spec.yaml>",
		Short: "Check a specification against the supported feature surface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := loader.LoadFile(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			report := capability.NewChecker(capability.DefaultConfig()).Check(sp)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else if report.Supported {
				fmt.Fprintf(out, "OK: %s (%s pattern, %d agents)\n",
					sp.Name, sp.Pattern.Type, len(sp.Agents))
			} else {
				fmt.Fprintf(out, "NOT SUPPORTED: %s (%d issues)\n", sp.Name, len(report.Issues))
				for _, issue := range report.Issues {
					fmt.Fprintf(out, "  %s\n    %s\n    fix: %s\n", issue.Pointer, issue.Reason, issue.Remediation)
				}
			}

			if !report.Supported {
				return fmt.Errorf("specification %s is not supported", sp.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full report as JSON")
	return cmd
}
