package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ccapprover/internal/settings"
	"ccapprover/internal/tui"
)

// hookCommand is what gets registered in the settings file and what
// the marker-based dedup recognizes on re-registration.
const hookCommand = "cc-approver hook"

type initOptions struct {
	Scope        string
	Model        string
	HistoryBytes int
	Matcher      string
	Timeout      int
	PolicyText   string

	// nil means "not supplied"; these overwrite unconditionally when set.
	PromptModel     *string
	EvalModel       *string
	ReflectionModel *string
}

func NewInitCmd() *cobra.Command {
	var opts initOptions
	var promptModel, evalModel, reflectionModel string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Install the PreToolUse hook and seed settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().NFlag() == 0 {
				return initInteractive(cmd.OutOrStdout())
			}
			if cmd.Flags().Changed("prompt-model") {
				opts.PromptModel = &promptModel
			}
			if cmd.Flags().Changed("eval-model") {
				opts.EvalModel = &evalModel
			}
			if cmd.Flags().Changed("reflection-model") {
				opts.ReflectionModel = &reflectionModel
			}
			return runInit(cmd.OutOrStdout(), settings.DetectEnv(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Scope, "scope", "project", "Settings scope (project|global)")
	cmd.Flags().StringVar(&opts.Model, "model", settings.DefaultModel, "Task model identifier")
	cmd.Flags().IntVar(&opts.HistoryBytes, "history-bytes", settings.DefaultHistoryBytes, "Transcript tail bytes passed to the model")
	cmd.Flags().StringVar(&opts.Matcher, "matcher", settings.DefaultMatcher, "Tool name regex the hook matches")
	cmd.Flags().IntVar(&opts.Timeout, "timeout", settings.DefaultTimeout, "Hook timeout in seconds")
	cmd.Flags().StringVar(&opts.PolicyText, "policy-text", settings.DefaultPolicy, "Initial policy text")
	cmd.Flags().StringVar(&promptModel, "prompt-model", "", "Model used to propose instructions during optimization")
	cmd.Flags().StringVar(&evalModel, "eval-model", "", "Model used for held-out evaluation")
	cmd.Flags().StringVar(&reflectionModel, "reflection-model", "", "Model used for gepa reflection")

	return cmd
}

func initInteractive(out io.Writer) error {
	answers, err := tui.InitWizard(settings.DefaultModel, settings.DefaultMatcher, settings.DefaultPolicy, settings.DefaultTimeout)
	if err != nil {
		return err
	}
	return runInit(out, settings.DetectEnv(), initOptions{
		Scope:        answers.Scope,
		Model:        answers.Model,
		HistoryBytes: answers.HistoryBytes,
		Matcher:      answers.Matcher,
		Timeout:      answers.Timeout,
		PolicyText:   answers.PolicyText,
	})
}

// runInit performs the read-modify-write registration cycle against
// the scope's settings file, preserving every unrelated section.
func runInit(out io.Writer, env settings.Env, opts initOptions) error {
	targetPath := env.ProjectPath()
	compiledPath := settings.DefaultCompiledPath
	if opts.Scope == "global" {
		targetPath = env.GlobalPath()
		compiledPath = settings.CompiledModelPath(env.HomeDir)
	}

	current, ok := settings.Read(targetPath)
	if !ok {
		current = map[string]any{}
	}

	settings.EnsurePolicyText(current, opts.PolicyText)
	settings.EnsureDspyConfig(current, settings.DspyOptions{
		Model:           opts.Model,
		HistoryBytes:    opts.HistoryBytes,
		CompiledPath:    compiledPath,
		PromptModel:     opts.PromptModel,
		EvalModel:       opts.EvalModel,
		ReflectionModel: opts.ReflectionModel,
	})
	settings.MergeHook(current, hookCommand, opts.Matcher, opts.Timeout)

	if err := settings.Write(targetPath, current); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	fmt.Fprintf(out, "Initialized settings at %s\n", targetPath)
	return nil
}
