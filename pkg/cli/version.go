package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scenestream %s", build.Version)
			if build.Commit != "" {
				fmt.Fprintf(out, " (commit %s)", build.Commit)
			}
			if build.Date != "" {
				fmt.Fprintf(out, " built %s", build.Date)
			}
			fmt.Fprintf(out, " %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
