// Package cli is the command-line surface of the workflow engine: run,
// resume, validate, sessions and version.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	appconfig "github.com/ThomasRohde/strands-cli-sub001/internal/app/config"
	infraconfig "github.com/ThomasRohde/strands-cli-sub001/internal/infrastructure/config"
	"github.com/spf13/afero"
)

// globalConfig holds the loaded configuration for all commands
var globalConfig appconfig.Config

// NewRoot builds the root command with every subcommand attached
func NewRoot() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "strands",
		Short:         "Declarative multi-agent workflow engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Priority: setting.json > ENV > defaults
			baseDir := infraconfig.DefaultHome
			if home := os.Getenv("STRANDS_HOME"); home != "" {
				baseDir = home
			}
			cfg, err := infraconfig.LoadSettings(afero.NewOsFs(), baseDir)
			if err != nil {
				return err
			}
			globalConfig = cfg

			level := cfg.StderrLevel()
			if logLevel != "" {
				level = logLevel
			}
			InitGlobalLogger(level)
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "stderr log level (debug, info, warn, error)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}
