package training

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ccapprover/internal/approver"
)

// Example is one normalized labeled record ready for optimization.
type Example struct {
	Policy        string
	Tool          string
	ToolInputJSON string
	HistoryTail   string
	Label         string
}

// ReadJSONL loads labeled examples from an append-only JSONL log.
// Unparseable lines and records without a valid label are skipped so a
// partially malformed file degrades to a smaller usable set; an
// unreadable file is an error the caller must surface. An empty result
// is likewise the caller's responsibility to report.
func ReadJSONL(path, policy string, historyBytes int) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open training data: %w", err)
	}
	defer f.Close()

	var examples []Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			slog.Debug("skipping invalid training line", "error", err)
			continue
		}
		if ex, ok := normalizeRecord(record, policy, historyBytes); ok {
			examples = append(examples, ex)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}
	return examples, nil
}

// normalizeRecord maps a raw record onto the decision contract's
// shape. Records whose label is not allow/deny/ask are rejected.
func normalizeRecord(record map[string]any, policy string, historyBytes int) (Example, bool) {
	tool, _ := record["tool_name"].(string)
	if tool == "" {
		// Legacy field name.
		tool, _ = record["tool"].(string)
	}

	label, _ := record["label"].(string)
	if label == "" {
		label, _ = record["decision"].(string)
	}
	label = approver.NormalizeLabel(label)
	if label == "" {
		return Example{}, false
	}

	return Example{
		Policy:        policy,
		Tool:          tool,
		ToolInputJSON: normalizeToolInput(record),
		HistoryTail:   readHistory(record, historyBytes),
		Label:         label,
	}, true
}

func normalizeToolInput(record map[string]any) string {
	if s, ok := record["tool_input_json"].(string); ok {
		return s
	}
	switch v := record["tool_input"].(type) {
	case map[string]any, []any:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	if s, ok := record["tool_input_preview"].(string); ok {
		return s
	}
	return "{}"
}

func readHistory(record map[string]any, historyBytes int) string {
	if tail, ok := record["history_tail"].(string); ok && tail != "" {
		return tail
	}
	if historyBytes <= 0 {
		return ""
	}
	path, _ := record["transcript_path"].(string)
	return approver.Tail(path, historyBytes)
}
