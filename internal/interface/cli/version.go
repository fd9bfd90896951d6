package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ThomasRohde/strands-cli-sub001/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "strands %s (%s, %s/%s)\n",
				buildinfo.GetVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
