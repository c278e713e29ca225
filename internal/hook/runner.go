package hook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"ccapprover/internal/approver"
	"ccapprover/internal/audit"
	"ccapprover/internal/settings"
)

// payload is the runtime input read from stdin. Unknown fields are
// ignored; an unparseable payload degrades to the zero value.
type payload struct {
	ToolName       string         `json:"tool_name"`
	ToolInput      map[string]any `json:"tool_input"`
	TranscriptPath string         `json:"transcript_path"`
}

// Output is the single line the hook prints for the host agent.
type Output struct {
	HookSpecificOutput SpecificOutput `json:"hookSpecificOutput"`
}

// SpecificOutput carries the PreToolUse permission decision.
type SpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason"`
}

// ProgramFactory builds the decision program for a resolved model
// configuration. Tests substitute a stub; production wires the
// provider-backed predictor, binding the compiled artifact when one
// loaded.
type ProgramFactory func(ctx context.Context, cfg settings.DspyConfig, compiled *approver.CompiledProgram) (approver.Program, error)

// Runner executes one hook invocation: read payload, resolve settings,
// decide, emit. It holds no state between invocations; every run reads
// the current on-disk configuration.
type Runner struct {
	Env        settings.Env
	In         io.Reader
	Out        io.Writer
	NewProgram ProgramFactory

	// HistoryBytesOverride replaces the configured historyBytes when
	// set (the hook command's --history-bytes flag).
	HistoryBytesOverride *int
}

// Run performs a single decision pass. Malformed input never errors;
// a failing decision call does, so a broken hook is visibly broken
// instead of silently defaulting.
func (r *Runner) Run(ctx context.Context) error {
	var p payload
	if err := json.NewDecoder(r.In).Decode(&p); err != nil {
		slog.Debug("malformed hook payload, treating as empty", "error", err)
		p = payload{}
	}
	if p.ToolInput == nil {
		p.ToolInput = map[string]any{}
	}

	active, activePath := settings.LoadChain(r.Env)
	cfg := settings.ResolveDspy(active, r.Env)
	if r.HistoryBytesOverride != nil {
		cfg.HistoryBytes = *r.HistoryBytesOverride
	}
	policy := settings.ResolvePolicy(r.Env, active)
	slog.Debug("settings resolved",
		"path", activePath, "model", cfg.Model, "history_bytes", cfg.HistoryBytes)

	history := approver.Tail(p.TranscriptPath, cfg.HistoryBytes)

	compiled := approver.LoadCompiled([]string{
		cfg.CompiledModelPath,
		settings.CompiledModelPath(r.Env.ProjectDir),
		settings.CompiledModelPath(r.Env.HomeDir),
	})

	program, err := r.NewProgram(ctx, cfg, compiled)
	if err != nil {
		return err
	}

	toolInputJSON := approver.MarshalToolInput(p.ToolInput)
	res, err := program.Run(ctx, approver.Request{
		Policy:        policy,
		Tool:          p.ToolName,
		ToolInputJSON: toolInputJSON,
		HistoryTail:   history,
	})
	if err != nil {
		return err
	}

	decision := approver.NormalizeDecision(res.Decision)
	reason := approver.TruncateReason(res.Reason)

	if cfg.DecisionLog != "" {
		record := audit.Record{
			Time:           time.Now().UTC(),
			ToolName:       p.ToolName,
			ToolInputJSON:  toolInputJSON,
			Decision:       decision,
			Reason:         reason,
			TranscriptPath: p.TranscriptPath,
		}
		if err := audit.NewLog(cfg.DecisionLog).Append(record); err != nil {
			slog.Debug("decision log append failed", "path", cfg.DecisionLog, "error", err)
		}
	}

	return json.NewEncoder(r.Out).Encode(Output{
		HookSpecificOutput: SpecificOutput{
			HookEventName:            settings.HookEventName,
			PermissionDecision:       decision,
			PermissionDecisionReason: reason,
		},
	})
}
