package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ccapprover/internal/optimizer"
	"ccapprover/internal/settings"
	"ccapprover/internal/tui"
)

type optimizeOptions struct {
	Scope           string
	Train           string
	Val             string
	Optimizer       string
	Auto            string
	TaskModel       string
	PromptModel     string
	ReflectionModel string
	EvalModel       string
	Save            string
	HistoryBytes    int
}

func NewOptimizeCmd() *cobra.Command {
	var opts optimizeOptions

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Compile the approver from JSONL labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Train == "" {
				return optimizeInteractive(cmd.Context(), cmd.OutOrStdout())
			}
			return runOptimize(cmd.Context(), cmd.OutOrStdout(), settings.DetectEnv(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Scope, "scope", "project", "Where the compiled program is saved (project|global)")
	cmd.Flags().StringVar(&opts.Train, "train", "", "Training JSONL path")
	cmd.Flags().StringVar(&opts.Val, "val", "", "Validation JSONL path (empty for a deterministic split)")
	cmd.Flags().StringVar(&opts.Optimizer, "optimizer", "", "Optimizer strategy (mipro|gepa)")
	cmd.Flags().StringVar(&opts.Auto, "auto", "", "Effort level (light|medium|heavy)")
	cmd.Flags().StringVar(&opts.TaskModel, "task-model", "", "Task model identifier")
	cmd.Flags().StringVar(&opts.PromptModel, "prompt-model", "", "Instruction-proposal model")
	cmd.Flags().StringVar(&opts.ReflectionModel, "reflection-model", "", "gepa reflection model")
	cmd.Flags().StringVar(&opts.EvalModel, "eval-model", "", "Held-out evaluation model")
	cmd.Flags().StringVar(&opts.Save, "save", "", "Compiled program output path")
	cmd.Flags().IntVar(&opts.HistoryBytes, "history-bytes", 0, "Transcript tail bytes for examples with a transcript_path")

	return cmd
}

func optimizeInteractive(ctx context.Context, out io.Writer) error {
	answers, err := tui.OptimizeWizard(settings.DefaultModel)
	if err != nil {
		return err
	}
	return runOptimize(ctx, out, settings.DetectEnv(), optimizeOptions{
		Scope:        answers.Scope,
		Train:        answers.Train,
		Val:          answers.Val,
		Optimizer:    answers.Optimizer,
		Auto:         answers.Auto,
		TaskModel:    answers.TaskModel,
		HistoryBytes: answers.HistoryBytes,
	})
}

func runOptimize(ctx context.Context, out io.Writer, env settings.Env, opts optimizeOptions) error {
	active, _ := settings.LoadChain(env)
	cfg := settings.ResolveDspy(active, env)

	savePath := opts.Save
	if savePath == "" {
		if opts.Scope == "global" {
			savePath = settings.CompiledModelPath(env.HomeDir)
		} else {
			savePath = cfg.CompiledModelPath
		}
	}

	warmStart := firstExisting(
		savePath,
		settings.CompiledModelPath(env.ProjectDir),
		settings.CompiledModelPath(env.HomeDir),
	)

	compiled, accuracy, err := optimizer.New().Compile(ctx, optimizer.Options{
		TaskModel:       firstNonEmpty(opts.TaskModel, cfg.Model),
		PromptModel:     firstNonEmpty(opts.PromptModel, cfg.PromptModel),
		ReflectionModel: firstNonEmpty(opts.ReflectionModel, cfg.ReflectionModel),
		EvalModel:       firstNonEmpty(opts.EvalModel, cfg.EvalModel),
		Optimizer:       firstNonEmpty(opts.Optimizer, cfg.Optimizer),
		Auto:            firstNonEmpty(opts.Auto, cfg.Auto),
		HistoryBytes:    opts.HistoryBytes,
		WarmStart:       warmStart,
	}, opts.Train, opts.Val, settings.PolicyText(active))
	if err != nil {
		return err
	}

	if err := compiled.Save(savePath); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved compiled program to %s\n", savePath)
	fmt.Fprintf(out, "Dev accuracy: %.3f\n", accuracy)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
