package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ccapprover/internal/approver"
	"ccapprover/internal/hook"
	"ccapprover/internal/provider"
	"ccapprover/internal/settings"
)

func NewHookCmd() *cobra.Command {
	var historyBytes int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Run one PreToolUse decision",
		Long: `Reads the tool-use payload from stdin and writes one JSON decision line
to stdout. Malformed input never fails the hook; a failing decision
call does.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose || verboseFromEnv() {
				if err := configureLogger("debug"); err != nil {
					return err
				}
			}

			runner := &hook.Runner{
				Env:        settings.DetectEnv(),
				In:         cmd.InOrStdin(),
				Out:        cmd.OutOrStdout(),
				NewProgram: newDecisionProgram,
			}
			if cmd.Flags().Changed("history-bytes") {
				runner.HistoryBytesOverride = &historyBytes
			}
			return runner.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&historyBytes, "history-bytes", 0, "Override configured historyBytes")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log debug detail to stderr")

	return cmd
}

func verboseFromEnv() bool {
	v := viper.New()
	v.SetEnvPrefix("CC_APPROVER")
	v.AutomaticEnv()
	return v.GetBool("verbose")
}

// newDecisionProgram wires the provider-backed predictor, binding the
// compiled artifact when one loaded.
func newDecisionProgram(ctx context.Context, cfg settings.DspyConfig, compiled *approver.CompiledProgram) (approver.Program, error) {
	m, err := provider.NewChatModel(ctx, cfg.Model, provider.DefaultParams())
	if err != nil {
		return nil, err
	}
	if compiled != nil {
		return compiled.Bind(m), nil
	}
	return approver.NewPredictor(m), nil
}
