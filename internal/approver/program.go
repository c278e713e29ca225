package approver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Request is the full input of one decision call.
type Request struct {
	Policy        string
	Tool          string
	ToolInputJSON string
	HistoryTail   string
}

// Result is the raw decision returned by a program, before
// normalization and truncation.
type Result struct {
	Decision string
	Reason   string
}

// Program produces a permission decision. Implementations may be the
// plain zero-shot predictor or a compiled program bound to a model.
type Program interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Demo is one few-shot demonstration embedded in a compiled program.
type Demo struct {
	Policy        string `json:"policy"`
	Tool          string `json:"tool"`
	ToolInputJSON string `json:"tool_input_json"`
	HistoryTail   string `json:"history_tail,omitempty"`
	Decision      string `json:"decision"`
	Reason        string `json:"reason,omitempty"`
}

const defaultInstructions = `Decide permission for a tool use requested by a coding agent.
You receive the policy, the tool name, the tool input as JSON and an optional
transcript tail. Reply with a JSON object {"decision": "...", "reason": "..."}
where decision is exactly one of allow, deny or ask and reason is short.`

// Predictor is the decision program: instructions plus optional
// few-shot demos driving a single chat-model call.
type Predictor struct {
	model        model.ChatModel
	Instructions string
	Demos        []Demo
}

// NewPredictor builds the uncompiled default program.
func NewPredictor(m model.ChatModel) *Predictor {
	return &Predictor{model: m}
}

// Run performs one decision call. Model errors propagate: a broken
// decision call must be visible, not silently defaulted.
func (p *Predictor) Run(ctx context.Context, req Request) (Result, error) {
	resp, err := p.model.Generate(ctx, p.buildMessages(req))
	if err != nil {
		return Result{}, fmt.Errorf("decision call: %w", err)
	}
	return parseResult(resp.Content), nil
}

func (p *Predictor) buildMessages(req Request) []*schema.Message {
	instructions := p.Instructions
	if instructions == "" {
		instructions = defaultInstructions
	}

	messages := make([]*schema.Message, 0, 2*len(p.Demos)+2)
	messages = append(messages, &schema.Message{Role: schema.System, Content: instructions})

	for _, demo := range p.Demos {
		messages = append(messages, &schema.Message{
			Role: schema.User,
			Content: formatRequest(Request{
				Policy:        demo.Policy,
				Tool:          demo.Tool,
				ToolInputJSON: demo.ToolInputJSON,
				HistoryTail:   demo.HistoryTail,
			}),
		})
		reply, _ := json.Marshal(map[string]string{"decision": demo.Decision, "reason": demo.Reason})
		messages = append(messages, &schema.Message{Role: schema.Assistant, Content: string(reply)})
	}

	messages = append(messages, &schema.Message{Role: schema.User, Content: formatRequest(req)})
	return messages
}

func formatRequest(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "policy: %s\n", req.Policy)
	fmt.Fprintf(&b, "tool: %s\n", req.Tool)
	fmt.Fprintf(&b, "tool_input_json: %s\n", req.ToolInputJSON)
	if req.HistoryTail != "" {
		fmt.Fprintf(&b, "history_tail: %s\n", req.HistoryTail)
	}
	return b.String()
}

// parseResult extracts decision and reason from a model reply. The
// reply is usually the requested JSON object, possibly wrapped in prose
// or a code fence; labeled lines are the fallback.
func parseResult(content string) Result {
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			var parsed struct {
				Decision string `json:"decision"`
				Reason   string `json:"reason"`
			}
			if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err == nil && parsed.Decision != "" {
				return Result{Decision: parsed.Decision, Reason: parsed.Reason}
			}
		}
	}

	var result Result
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "decision":
			if result.Decision == "" {
				result.Decision = strings.TrimSpace(value)
			}
		case "reason":
			if result.Reason == "" {
				result.Reason = strings.TrimSpace(value)
			}
		}
	}
	if result.Decision == "" {
		result.Decision = strings.TrimSpace(content)
	}
	return result
}

// MarshalToolInput serializes a tool input for the decision prompt,
// bounded to MaxToolInputJSON characters.
func MarshalToolInput(input map[string]any) string {
	if input == nil {
		return "{}"
	}
	data, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}
	return truncateRunes(string(data), MaxToolInputJSON)
}
