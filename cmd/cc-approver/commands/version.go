package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"ccapprover/internal/version"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cc-approver version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cc-approver %s %s/%s\n", version.Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
