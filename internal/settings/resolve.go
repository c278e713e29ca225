package settings

import (
	"log/slog"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Defaults for the dspyApprover section.
const (
	DefaultModel        = "openrouter/google/gemini-2.5-flash-lite"
	DefaultHistoryBytes = 0
	DefaultCompiledPath = ProjectDirToken + "/.claude/models/approver.compiled.json"
	DefaultOptimizer    = "mipro"
	DefaultAuto         = "light"
)

// ProjectDirToken is substituted with the active project root wherever
// it appears inside compiledModelPath.
const ProjectDirToken = "$CLAUDE_PROJECT_DIR"

// Merge strategies for layered policy text.
const (
	MergeAppend  = "append"
	MergePrepend = "prepend"
	MergeReplace = "replace"
)

// DspyConfig is the typed view of the dspyApprover section with all
// defaults applied and the project-dir token already substituted.
type DspyConfig struct {
	Model             string `mapstructure:"model"`
	HistoryBytes      int    `mapstructure:"historyBytes"`
	CompiledModelPath string `mapstructure:"compiledModelPath"`
	PromptModel       string `mapstructure:"promptModel"`
	EvalModel         string `mapstructure:"evalModel"`
	ReflectionModel   string `mapstructure:"reflectionModel"`
	Optimizer         string `mapstructure:"optimizer"`
	Auto              string `mapstructure:"auto"`

	// DecisionLog enables the append-only decision record when set.
	DecisionLog string `mapstructure:"decisionLog"`
}

// LoadChain resolves the active configuration: the first file in the
// chain that parses as an object wins wholesale, no deep merge. When
// nothing exists the project-shared path is returned as the implied
// write target for a later init.
func LoadChain(env Env) (map[string]any, string) {
	for _, path := range env.Paths() {
		if parsed, ok := Read(path); ok {
			return parsed, path
		}
	}
	return map[string]any{}, env.ProjectPath()
}

// ResolveDspy extracts the dspyApprover section from the active
// configuration. A malformed section degrades to defaults.
func ResolveDspy(active map[string]any, env Env) DspyConfig {
	var cfg DspyConfig
	if raw, ok := active["dspyApprover"].(map[string]any); ok {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
		})
		if err == nil {
			if err := dec.Decode(raw); err != nil {
				slog.Debug("dspyApprover section malformed, using defaults", "error", err)
				cfg = DspyConfig{}
			}
		}
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HistoryBytes < 0 {
		cfg.HistoryBytes = DefaultHistoryBytes
	}
	if cfg.CompiledModelPath == "" {
		cfg.CompiledModelPath = DefaultCompiledPath
	}
	if cfg.Optimizer == "" {
		cfg.Optimizer = DefaultOptimizer
	}
	if cfg.Auto == "" {
		cfg.Auto = DefaultAuto
	}
	cfg.CompiledModelPath = strings.ReplaceAll(cfg.CompiledModelPath, ProjectDirToken, env.ProjectDir)
	cfg.DecisionLog = strings.ReplaceAll(cfg.DecisionLog, ProjectDirToken, env.ProjectDir)
	return cfg
}

// PolicyText is the flat policy lookup: policy.approverInstructions on
// the active configuration, or empty.
func PolicyText(active map[string]any) string {
	pol, _ := active["policy"].(map[string]any)
	text, _ := pol["approverInstructions"].(string)
	return text
}

// MergedPolicy is the layered policy resolution. It reads the
// user-global and project-local files independently of the active
// chain and combines their policy text according to the local file's
// mergeStrategy. Only when both sides carry text does the labeled
// merge markup appear.
func MergedPolicy(env Env) string {
	global, _ := Read(env.GlobalPath())
	local, _ := Read(env.LocalPath())

	globalText := policyField(global, "globalInstructions")
	localText := policyField(local, "localInstructions")

	switch mergeStrategy(local) {
	case MergeReplace:
		return localText
	case MergePrepend:
		if globalText == "" {
			return localText
		}
		if localText == "" {
			return globalText
		}
		return "== PROJECT-SPECIFIC RULES (HIGHEST PRIORITY) ==\n" + localText +
			"\n\n== GLOBAL RULES ==\n" + globalText
	default:
		if globalText == "" {
			return localText
		}
		if localText == "" {
			return globalText
		}
		return "== GLOBAL RULES ==\n" + globalText +
			"\n\n== PROJECT-SPECIFIC RULES ==\n" + localText
	}
}

// ResolvePolicy is the single entry point for policy text: the layered
// cross-scope merge when global or local scope carries policy text,
// otherwise the active configuration's flat field.
func ResolvePolicy(env Env, active map[string]any) string {
	if merged := MergedPolicy(env); merged != "" {
		return merged
	}
	return PolicyText(active)
}

func policyField(settings map[string]any, scopedKey string) string {
	pol, _ := settings["policy"].(map[string]any)
	if text, ok := pol[scopedKey].(string); ok && text != "" {
		return text
	}
	text, _ := pol["approverInstructions"].(string)
	return text
}

func mergeStrategy(local map[string]any) string {
	pol, _ := local["policy"].(map[string]any)
	strategy, _ := pol["mergeStrategy"].(string)
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case MergePrepend:
		return MergePrepend
	case MergeReplace:
		return MergeReplace
	default:
		return MergeAppend
	}
}
