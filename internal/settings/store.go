package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	settingsFileMode = 0644
	settingsDirMode  = 0755
)

// Read loads a settings file as a generic JSON object. Missing files,
// unreadable files and parse failures all report !ok so callers fall
// through to the next source in the chain. Unknown sections survive a
// read-modify-write cycle because the full object is kept as-is.
func Read(path string) (map[string]any, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("settings file unavailable", "path", path, "error", err)
		return nil, false
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		slog.Debug("settings file is not a JSON object", "path", path, "error", err)
		return nil, false
	}
	if parsed == nil {
		slog.Debug("settings file holds JSON null", "path", path)
		return nil, false
	}
	return parsed, true
}

// Write persists a settings object, creating parent directories as
// needed. The write goes through a temp file and rename so a concurrent
// hook read never observes a half-written file.
func Write(path string, settings map[string]any) error {
	encoded, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	encoded = append(encoded, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, settingsDirMode); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "settings-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(encoded); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := tmpFile.Chmod(settingsFileMode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp settings file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp settings file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("replace settings: rename failed (%v), remove failed (%v)", err, removeErr)
		}
		if retryErr := os.Rename(tmpPath, path); retryErr != nil {
			return fmt.Errorf("replace settings after remove: %w", retryErr)
		}
	}
	return nil
}
