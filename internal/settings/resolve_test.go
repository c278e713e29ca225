package settings

import (
	"os"
	"testing"
)

func testEnv(t *testing.T) Env {
	t.Helper()
	return Env{ProjectDir: t.TempDir(), HomeDir: t.TempDir()}
}

func writeSettings(t *testing.T, path string, settings map[string]any) {
	t.Helper()
	if err := Write(path, settings); err != nil {
		t.Fatalf("Write(%s): %v", path, err)
	}
}

func TestLoadChain_FirstParsedWins(t *testing.T) {
	env := testEnv(t)
	writeSettings(t, env.LocalPath(), map[string]any{"marker": "local"})
	writeSettings(t, env.ProjectPath(), map[string]any{"marker": "project"})
	writeSettings(t, env.GlobalPath(), map[string]any{"marker": "global"})

	active, path := LoadChain(env)
	if active["marker"] != "local" {
		t.Fatalf("marker = %v, want local", active["marker"])
	}
	if path != env.LocalPath() {
		t.Fatalf("path = %s, want %s", path, env.LocalPath())
	}
}

func TestLoadChain_NoDeepMerge(t *testing.T) {
	env := testEnv(t)
	writeSettings(t, env.ProjectPath(), map[string]any{
		"dspyApprover": map[string]any{"model": "openai/gpt-4o-mini"},
	})
	writeSettings(t, env.GlobalPath(), map[string]any{
		"dspyApprover": map[string]any{"historyBytes": float64(4096)},
	})

	active, _ := LoadChain(env)
	cfg := ResolveDspy(active, env)
	if cfg.Model != "openai/gpt-4o-mini" {
		t.Fatalf("Model = %q", cfg.Model)
	}
	// The global file loses wholesale; its historyBytes must not leak in.
	if cfg.HistoryBytes != DefaultHistoryBytes {
		t.Fatalf("HistoryBytes = %d, want default %d", cfg.HistoryBytes, DefaultHistoryBytes)
	}
}

func TestLoadChain_SkipsUnparseableLayer(t *testing.T) {
	env := testEnv(t)
	writeSettings(t, env.LocalPath(), map[string]any{})
	if err := os.WriteFile(env.LocalPath(), []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	writeSettings(t, env.ProjectPath(), map[string]any{"marker": "project"})

	active, path := LoadChain(env)
	if active["marker"] != "project" {
		t.Fatalf("marker = %v, want project", active["marker"])
	}
	if path != env.ProjectPath() {
		t.Fatalf("path = %s, want project path", path)
	}
}

func TestLoadChain_EmptyChain(t *testing.T) {
	env := testEnv(t)
	active, path := LoadChain(env)
	if len(active) != 0 {
		t.Fatalf("active = %#v, want empty", active)
	}
	if path != env.ProjectPath() {
		t.Fatalf("path = %s, want project path", path)
	}
}

func TestResolveDspy_Defaults(t *testing.T) {
	env := testEnv(t)
	cfg := ResolveDspy(map[string]any{}, env)

	if cfg.Model != DefaultModel {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.HistoryBytes != 0 {
		t.Errorf("HistoryBytes = %d", cfg.HistoryBytes)
	}
	if cfg.Optimizer != "mipro" || cfg.Auto != "light" {
		t.Errorf("Optimizer/Auto = %q/%q", cfg.Optimizer, cfg.Auto)
	}
	want := CompiledModelPath(env.ProjectDir)
	if cfg.CompiledModelPath != want {
		t.Errorf("CompiledModelPath = %q, want %q", cfg.CompiledModelPath, want)
	}
}

func TestResolveDspy_TokenSubstitution(t *testing.T) {
	env := testEnv(t)
	active := map[string]any{
		"dspyApprover": map[string]any{
			"compiledModelPath": ProjectDirToken + "/models/custom.json",
		},
	}
	cfg := ResolveDspy(active, env)
	want := env.ProjectDir + "/models/custom.json"
	if cfg.CompiledModelPath != want {
		t.Fatalf("CompiledModelPath = %q, want %q", cfg.CompiledModelPath, want)
	}
}

func TestResolveDspy_DecisionLogDisabledByDefault(t *testing.T) {
	env := testEnv(t)
	cfg := ResolveDspy(map[string]any{}, env)
	if cfg.DecisionLog != "" {
		t.Fatalf("DecisionLog = %q, want empty", cfg.DecisionLog)
	}

	active := map[string]any{
		"dspyApprover": map[string]any{
			"decisionLog": ProjectDirToken + "/.claude/logs/decisions.jsonl",
		},
	}
	cfg = ResolveDspy(active, env)
	if cfg.DecisionLog != env.ProjectDir+"/.claude/logs/decisions.jsonl" {
		t.Fatalf("DecisionLog = %q", cfg.DecisionLog)
	}
}

func TestResolveDspy_JSONNumbers(t *testing.T) {
	env := testEnv(t)
	// Numbers arrive as float64 after a JSON round trip.
	active := map[string]any{
		"dspyApprover": map[string]any{"historyBytes": float64(2048)},
	}
	cfg := ResolveDspy(active, env)
	if cfg.HistoryBytes != 2048 {
		t.Fatalf("HistoryBytes = %d, want 2048", cfg.HistoryBytes)
	}
}

func TestPolicyText(t *testing.T) {
	if got := PolicyText(map[string]any{}); got != "" {
		t.Fatalf("empty settings: %q", got)
	}
	active := map[string]any{
		"policy": map[string]any{"approverInstructions": "allow tests"},
	}
	if got := PolicyText(active); got != "allow tests" {
		t.Fatalf("got %q", got)
	}
}

func TestMergedPolicy_AppendDefault(t *testing.T) {
	env := testEnv(t)
	writeSettings(t, env.GlobalPath(), map[string]any{
		"policy": map[string]any{"globalInstructions": "global rules"},
	})
	writeSettings(t, env.LocalPath(), map[string]any{
		"policy": map[string]any{"localInstructions": "local rules"},
	})

	got := MergedPolicy(env)
	want := "== GLOBAL RULES ==\nglobal rules\n\n== PROJECT-SPECIFIC RULES ==\nlocal rules"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMergedPolicy_Prepend(t *testing.T) {
	env := testEnv(t)
	writeSettings(t, env.GlobalPath(), map[string]any{
		"policy": map[string]any{"globalInstructions": "global rules"},
	})
	writeSettings(t, env.LocalPath(), map[string]any{
		"policy": map[string]any{
			"localInstructions": "local rules",
			"mergeStrategy":     "prepend",
		},
	})

	got := MergedPolicy(env)
	want := "== PROJECT-SPECIFIC RULES (HIGHEST PRIORITY) ==\nlocal rules\n\n== GLOBAL RULES ==\nglobal rules"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMergedPolicy_ReplaceDiscardsGlobal(t *testing.T) {
	env := testEnv(t)
	writeSettings(t, env.GlobalPath(), map[string]any{
		"policy": map[string]any{"globalInstructions": "global rules"},
	})
	writeSettings(t, env.LocalPath(), map[string]any{
		"policy": map[string]any{
			"localInstructions": "local rules",
			"mergeStrategy":     "replace",
		},
	})

	if got := MergedPolicy(env); got != "local rules" {
		t.Fatalf("got %q, want local rules", got)
	}
}

func TestMergedPolicy_SingleSideUnlabeled(t *testing.T) {
	env := testEnv(t)
	writeSettings(t, env.GlobalPath(), map[string]any{
		"policy": map[string]any{"globalInstructions": "only global"},
	})

	got := MergedPolicy(env)
	if got != "only global" {
		t.Fatalf("got %q, want only global without labels", got)
	}
}

func TestMergedPolicy_ScopedFallsBackToFlat(t *testing.T) {
	env := testEnv(t)
	writeSettings(t, env.LocalPath(), map[string]any{
		"policy": map[string]any{"approverInstructions": "flat local"},
	})

	if got := MergedPolicy(env); got != "flat local" {
		t.Fatalf("got %q, want flat local", got)
	}
}

func TestResolvePolicy_FlatFallback(t *testing.T) {
	env := testEnv(t)
	writeSettings(t, env.ProjectPath(), map[string]any{
		"policy": map[string]any{"approverInstructions": "project policy"},
	})

	active, _ := LoadChain(env)
	if got := ResolvePolicy(env, active); got != "project policy" {
		t.Fatalf("got %q, want project policy", got)
	}
}

func TestResolvePolicy_MergedWins(t *testing.T) {
	env := testEnv(t)
	writeSettings(t, env.LocalPath(), map[string]any{
		"policy": map[string]any{"localInstructions": "local wins"},
	})
	writeSettings(t, env.ProjectPath(), map[string]any{
		"policy": map[string]any{"approverInstructions": "project policy"},
	})

	active, _ := LoadChain(env)
	if got := ResolvePolicy(env, active); got != "local wins" {
		t.Fatalf("got %q, want local wins", got)
	}
}
