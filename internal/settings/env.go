package settings

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Env carries the directories every resolver and runtime call operates
// against. It is constructed once at process start; nothing below this
// layer inspects the environment on its own.
type Env struct {
	ProjectDir string
	HomeDir    string
}

// DetectEnv resolves the active project and home directories.
// CLAUDE_PROJECT_DIR wins over the working directory, matching the host
// agent's convention for hook processes.
func DetectEnv() Env {
	v := viper.New()
	_ = v.BindEnv("project_dir", "CLAUDE_PROJECT_DIR")
	v.AutomaticEnv()

	projectDir := v.GetString("project_dir")
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		projectDir = wd
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return Env{ProjectDir: projectDir, HomeDir: homeDir}
}

// LocalPath is the project-local override file, highest precedence.
func (e Env) LocalPath() string {
	return filepath.Join(e.ProjectDir, ".claude", "settings.local.json")
}

// ProjectPath is the project-shared settings file.
func (e Env) ProjectPath() string {
	return filepath.Join(e.ProjectDir, ".claude", "settings.json")
}

// GlobalPath is the user-global settings file, lowest precedence.
func (e Env) GlobalPath() string {
	return filepath.Join(e.HomeDir, ".claude", "settings.json")
}

// Paths returns the settings chain in precedence order.
func (e Env) Paths() [3]string {
	return [3]string{e.LocalPath(), e.ProjectPath(), e.GlobalPath()}
}

// CompiledModelPath returns the default compiled-program location for a
// scope directory (project root or home).
func CompiledModelPath(dir string) string {
	return filepath.Join(dir, ".claude", "models", "approver.compiled.json")
}
