package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	logFileMode = 0644
	logDirMode  = 0755
)

// Record is one permission decision written as a single JSON line. The
// field names match what the training loader accepts, so a decision log
// can be relabeled and fed straight back into optimization.
type Record struct {
	Time           time.Time `json:"time"`
	ToolName       string    `json:"tool_name"`
	ToolInputJSON  string    `json:"tool_input_json"`
	Decision       string    `json:"decision"`
	Reason         string    `json:"reason,omitempty"`
	TranscriptPath string    `json:"transcript_path,omitempty"`
}

// Log appends decision records to a JSONL file.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog creates an append-only decision log at path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append writes one record as one JSONL line.
func (l *Log) Append(record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), logDirMode); err != nil {
		return fmt.Errorf("create decision log dir: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return fmt.Errorf("open decision log: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal decision record: %w", err)
	}
	encoded = append(encoded, '\n')

	if _, err := file.Write(encoded); err != nil {
		return fmt.Errorf("append decision record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync decision log: %w", err)
	}
	return nil
}
