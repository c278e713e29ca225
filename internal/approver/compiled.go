package approver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cloudwego/eino/components/model"
)

const compiledVersion = 1

type compiledFile struct {
	Version      int    `json:"version"`
	Instructions string `json:"instructions,omitempty"`
	Demos        []Demo `json:"demos,omitempty"`
}

// CompiledProgram is the serialized optimization artifact: refined
// instructions plus selected demos. Bind attaches it to a chat model to
// make it runnable.
type CompiledProgram struct {
	Instructions string
	Demos        []Demo
}

// Bind builds a runnable predictor from the compiled artifact.
func (c *CompiledProgram) Bind(m model.ChatModel) *Predictor {
	return &Predictor{model: m, Instructions: c.Instructions, Demos: c.Demos}
}

// Save writes the artifact atomically, creating parent directories.
func (c *CompiledProgram) Save(path string) error {
	encoded, err := json.MarshalIndent(compiledFile{
		Version:      compiledVersion,
		Instructions: c.Instructions,
		Demos:        c.Demos,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal compiled program: %w", err)
	}
	encoded = append(encoded, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create compiled program dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, "approver-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp compiled program: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(encoded); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp compiled program: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp compiled program: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace compiled program: %w", err)
	}
	return nil
}

// LoadCompiled returns the first candidate that exists and parses, or
// nil when none do. Load failures are expected (stale path, corrupt
// artifact) and only logged at debug level.
func LoadCompiled(candidates []string) *CompiledProgram {
	for _, path := range candidates {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Debug("compiled program unavailable", "path", path, "error", err)
			continue
		}
		var parsed compiledFile
		if err := json.Unmarshal(data, &parsed); err != nil {
			slog.Debug("compiled program corrupt", "path", path, "error", err)
			continue
		}
		return &CompiledProgram{Instructions: parsed.Instructions, Demos: parsed.Demos}
	}
	return nil
}
