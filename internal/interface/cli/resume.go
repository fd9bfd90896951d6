package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/usecase/orchestrate"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/infrastructure/loader"
)

func newResumeCmd() *cobra.Command {
	var (
		sessionID string
		action    string
		feedback  string
		varFlags  []string
	)

	cmd := &cobra.Command{
		Use:   "resume <spec.yaml>",
		Short: "Resume a paused session with a gate decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := session.ParseSessionID(sessionID)
			if err != nil {
				return fmt.Errorf("invalid --session: %w", err)
			}
			act := session.Action(action)
			if !act.IsValid() {
				return fmt.Errorf("invalid --action %q (use approve, reject, modify or defer)", action)
			}
			if act == session.ActionModify && feedback == "" {
				return fmt.Errorf("--action modify requires --feedback")
			}
			overrides, err := parseVars(varFlags)
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
			res, err := uc.Resume(cmd.Context(), orchestrate.ResumeInput{
				Spec:      sp,
				SessionID: id,
				Response: session.InterruptResponse{
					Action:            act,
					Feedback:          feedback,
					VariableOverrides: overrides,
				},
			})
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume (required)")
	cmd.Flags().StringVar(&action, "action", "", "gate decision: approve, reject, modify or defer (required)")
	cmd.Flags().StringVar(&feedback, "feedback", "", "feedback text, required for modify")
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "variable override applied on resume, key=value (repeatable)")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
