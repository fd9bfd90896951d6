package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/executor"
	"github.com/ThomasRohde/strands-cli-sub001/internal/application/usecase/orchestrate"
	"github.com/ThomasRohde/strands-cli-sub001/internal/infrastructure/loader"
)

func newRunCmd() *cobra.Command {
	var varFlags []string

	cmd := &cobra.Command{
		Use:   "run <spec.yaml>",
		Short: "Run a workflow specification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVars(varFlags)
			if err != nil {
				return err
			}
			sp, err := loader.LoadFile(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}

			c, err := newContainer(cmd.Context(), globalConfig)
			if err != nil {
				return err
			}
			defer c.Close()

			uc, err := c.useCase(sp)
			if err != nil {
				return err
			}
			res, err := uc.Run(cmd.Context(), orchestrate.RunInput{Spec: sp, Variables: vars})
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "run variable override, key=value (repeatable)")
	return cmd
}

// parseVars turns repeated key=value flags into a map
func parseVars(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(flags))
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", f)
		}
		vars[key] = value
	}
	return vars, nil
}

// printResult renders the outcome of a run or resume call. A paused run is
// a success from the CLI's point of view; the caller resumes it later.
func printResult(cmd *cobra.Command, res *orchestrate.Result) error {
	out := cmd.OutOrStdout()
	switch res.Outcome.Kind {
	case executor.OutcomeCompleted:
		fmt.Fprintln(out, res.Outcome.Result.LastResponse)
		for _, a := range res.ArtifactsWritten {
			GetLogger().Info("artifact written: %s", a)
		}
		GetLogger().Info("session %s completed in %s", res.SessionID, res.Outcome.Result.Duration.Round(time.Millisecond))
		return nil

	case executor.OutcomePaused:
		meta := res.Outcome.Interrupt
		fmt.Fprintf(out, "Session paused at gate %q (%s)\n", meta.Name, meta.Type)
		fmt.Fprintf(out, "  session:   %s\n", res.SessionID)
		fmt.Fprintf(out, "  interrupt: %s\n", meta.InterruptID)
		if meta.Prompt != "" {
			fmt.Fprintf(out, "  prompt:    %s\n", meta.Prompt)
		}
		if meta.TimeoutAt != nil {
			fmt.Fprintf(out, "  timeout:   %s (fallback: %s)\n", meta.TimeoutAt.Format(time.RFC3339), meta.Fallback)
		}
		keys := make([]string, 0, len(meta.DataToReview))
		for k := range meta.DataToReview {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %s\n", k, meta.DataToReview[k])
		}
		fmt.Fprintf(out, "Resume with: strands resume <spec.yaml> --session %s --action approve|reject|modify|defer\n", res.SessionID)
		return nil

	default:
		return res.Outcome.Err
	}
}
