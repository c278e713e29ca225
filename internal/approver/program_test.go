package approver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type stubModel struct {
	reply    string
	err      error
	received []*schema.Message
}

func (s *stubModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.received = input
	if s.err != nil {
		return nil, s.err
	}
	return &schema.Message{Role: schema.Assistant, Content: s.reply}, nil
}

func (s *stubModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (s *stubModel) BindTools(toolInfos []*schema.ToolInfo) error {
	return nil
}

func TestPredictorRun_JSONReply(t *testing.T) {
	m := &stubModel{reply: `{"decision": "deny", "reason": "rm -rf"}`}
	p := NewPredictor(m)

	res, err := p.Run(context.Background(), Request{
		Policy:        "deny destructive",
		Tool:          "Bash",
		ToolInputJSON: `{"command":"rm -rf /"}`,
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Decision != "deny" || res.Reason != "rm -rf" {
		t.Fatalf("res = %+v", res)
	}
}

func TestPredictorRun_FencedJSONReply(t *testing.T) {
	m := &stubModel{reply: "```json\n{\"decision\": \"allow\", \"reason\": \"read only\"}\n```"}
	p := NewPredictor(m)

	res, err := p.Run(context.Background(), Request{Tool: "Bash"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Decision != "allow" || res.Reason != "read only" {
		t.Fatalf("res = %+v", res)
	}
}

func TestPredictorRun_LabeledLinesFallback(t *testing.T) {
	m := &stubModel{reply: "decision: ask\nreason: unclear intent"}
	p := NewPredictor(m)

	res, err := p.Run(context.Background(), Request{Tool: "Edit"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Decision != "ask" || res.Reason != "unclear intent" {
		t.Fatalf("res = %+v", res)
	}
}

func TestPredictorRun_BareWordFallback(t *testing.T) {
	m := &stubModel{reply: "allow"}
	p := NewPredictor(m)

	res, err := p.Run(context.Background(), Request{Tool: "Write"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Decision != "allow" {
		t.Fatalf("res = %+v", res)
	}
}

func TestPredictorRun_ModelErrorPropagates(t *testing.T) {
	wantErr := errors.New("upstream unavailable")
	p := NewPredictor(&stubModel{err: wantErr})

	_, err := p.Run(context.Background(), Request{Tool: "Bash"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped upstream error", err)
	}
}

func TestBuildMessages_DemoOrderAndContent(t *testing.T) {
	m := &stubModel{reply: `{"decision":"allow"}`}
	p := NewPredictor(m)
	p.Instructions = "custom instructions"
	p.Demos = []Demo{
		{Policy: "p", Tool: "Bash", ToolInputJSON: `{"command":"ls"}`, Decision: "allow", Reason: "listing"},
	}

	if _, err := p.Run(context.Background(), Request{Policy: "p", Tool: "Bash", ToolInputJSON: "{}"}); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	msgs := m.received
	if len(msgs) != 4 {
		t.Fatalf("message count = %d, want system + demo pair + request", len(msgs))
	}
	if msgs[0].Role != schema.System || msgs[0].Content != "custom instructions" {
		t.Errorf("system message = %+v", msgs[0])
	}
	if msgs[1].Role != schema.User || !strings.Contains(msgs[1].Content, `tool_input_json: {"command":"ls"}`) {
		t.Errorf("demo user message = %+v", msgs[1])
	}
	if msgs[2].Role != schema.Assistant || !strings.Contains(msgs[2].Content, `"decision":"allow"`) {
		t.Errorf("demo assistant message = %+v", msgs[2])
	}
	if msgs[3].Role != schema.User || !strings.Contains(msgs[3].Content, "tool: Bash") {
		t.Errorf("request message = %+v", msgs[3])
	}
}

func TestFormatRequest_HistoryOnlyWhenPresent(t *testing.T) {
	without := formatRequest(Request{Policy: "p", Tool: "Bash", ToolInputJSON: "{}"})
	if strings.Contains(without, "history_tail") {
		t.Errorf("empty history rendered: %q", without)
	}
	with := formatRequest(Request{Policy: "p", Tool: "Bash", ToolInputJSON: "{}", HistoryTail: "tail"})
	if !strings.Contains(with, "history_tail: tail") {
		t.Errorf("history missing: %q", with)
	}
}
