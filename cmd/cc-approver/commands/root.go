package commands

import (
	"github.com/spf13/cobra"

	"ccapprover/internal/tui"
)

// NewRootCmd creates the root command. Invoking with no subcommand
// launches the interactive menu.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cc-approver",
		Short: "LLM-backed permission hook for coding agents",
		Long: `cc-approver decides allow/deny/ask for tool invocations proposed by a
coding agent, steered by natural-language policy text in layered
.claude/settings files. It installs itself as a PreToolUse hook and can
compile an optimized decision program from labeled examples.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogger(logLevelOverride)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := tui.MainMenu()
			if err != nil {
				return err
			}
			switch action {
			case tui.ActionInit:
				return initInteractive(cmd.OutOrStdout())
			case tui.ActionOptimize:
				return optimizeInteractive(cmd.Context(), cmd.OutOrStdout())
			default:
				return nil
			}
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewOptimizeCmd(),
		NewHookCmd(),
		NewVersionCmd(),
	)

	return cmd
}
