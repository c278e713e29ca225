package settings

import "strings"

const (
	// HookEventName is the only hook event this tool manages.
	HookEventName = "PreToolUse"

	// HookMarker identifies our own hook entry inside a command string,
	// robust against matcher changes across re-registration.
	HookMarker = "cc-approver"

	DefaultMatcher = "Bash|Edit|Write"
	DefaultTimeout = 60

	// DefaultPolicy seeds approverInstructions on first init.
	DefaultPolicy = "Deny destructive ops; ask on ambiguous; allow read-only or tests."
)

// DspyOptions are the registration inputs for the dspyApprover section.
// The pointer fields overwrite unconditionally when non-nil; everything
// else is first-write-wins.
type DspyOptions struct {
	Model           string
	HistoryBytes    int
	CompiledPath    string
	Optimizer       string
	Auto            string
	PromptModel     *string
	EvalModel       *string
	ReflectionModel *string
}

// EnsurePolicyText fills policy.approverInstructions only when the
// field is absent or not a string. An existing string value is never
// overwritten, empty included.
func EnsurePolicyText(settings map[string]any, defaultText string) map[string]any {
	pol := subObject(settings, "policy")
	if _, ok := pol["approverInstructions"].(string); !ok {
		pol["approverInstructions"] = defaultText
	}
	return settings
}

// EnsureDspyConfig seeds the dspyApprover section. Core fields keep
// their existing values; the three auxiliary model fields are set
// whenever the caller supplies them explicitly.
func EnsureDspyConfig(settings map[string]any, opts DspyOptions) map[string]any {
	if opts.Optimizer == "" {
		opts.Optimizer = DefaultOptimizer
	}
	if opts.Auto == "" {
		opts.Auto = DefaultAuto
	}

	cfg := subObject(settings, "dspyApprover")
	setIfMissing(cfg, "model", opts.Model)
	setIfMissing(cfg, "historyBytes", opts.HistoryBytes)
	setIfMissing(cfg, "compiledModelPath", opts.CompiledPath)
	setIfMissing(cfg, "optimizer", opts.Optimizer)
	setIfMissing(cfg, "auto", opts.Auto)

	if opts.PromptModel != nil {
		cfg["promptModel"] = *opts.PromptModel
	}
	if opts.EvalModel != nil {
		cfg["evalModel"] = *opts.EvalModel
	}
	if opts.ReflectionModel != nil {
		cfg["reflectionModel"] = *opts.ReflectionModel
	}
	return settings
}

// MergeHook registers the PreToolUse command idempotently: an existing
// group whose command contains HookMarker is updated in place, anything
// else is left alone, and a fresh group is appended when no marker is
// found. Malformed entries in the hook list are skipped, never an
// error.
func MergeHook(settings map[string]any, command, matcher string, timeout int) map[string]any {
	hooks := subObject(settings, "hooks")
	groups, _ := hooks[HookEventName].([]any)

	for _, rawGroup := range groups {
		group, ok := rawGroup.(map[string]any)
		if !ok {
			continue
		}
		specs, _ := group["hooks"].([]any)
		for _, rawSpec := range specs {
			spec, ok := rawSpec.(map[string]any)
			if !ok {
				continue
			}
			existing, _ := spec["command"].(string)
			if !strings.Contains(existing, HookMarker) {
				continue
			}
			group["matcher"] = matcher
			spec["command"] = command
			spec["timeout"] = timeout
			return settings
		}
	}

	hooks[HookEventName] = append(groups, map[string]any{
		"matcher": matcher,
		"hooks": []any{
			map[string]any{"type": "command", "command": command, "timeout": timeout},
		},
	})
	return settings
}

func subObject(settings map[string]any, key string) map[string]any {
	if m, ok := settings[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	settings[key] = m
	return m
}

func setIfMissing(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
