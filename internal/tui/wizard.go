package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// field is one prompt in a wizard sequence; an empty answer takes the
// default.
type field struct {
	label        string
	defaultValue string
}

type formModel struct {
	fields  []field
	answers []string
	index   int
	input   textinput.Model
	aborted bool
}

func newFormModel(fields []field) formModel {
	input := textinput.New()
	input.Placeholder = fields[0].defaultValue
	input.Focus()
	return formModel{
		fields:  fields,
		answers: make([]string, len(fields)),
		input:   input,
	}
}

func (m formModel) Init() tea.Cmd { return textinput.Blink }

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			answer := m.input.Value()
			if answer == "" {
				answer = m.fields[m.index].defaultValue
			}
			m.answers[m.index] = answer
			m.index++
			if m.index >= len(m.fields) {
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.input.Placeholder = m.fields[m.index].defaultValue
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m formModel) View() string {
	if m.index >= len(m.fields) {
		return ""
	}
	s := titleStyle.Render("cc-approver") + "\n\n"
	for i := 0; i < m.index; i++ {
		s += dimStyle.Render(fmt.Sprintf("%s: %s", m.fields[i].label, m.answers[i])) + "\n"
	}
	s += selectedStyle.Render(m.fields[m.index].label) + "\n"
	s += m.input.View() + "\n\n"
	s += dimStyle.Render("enter accept · esc cancel") + "\n"
	return s
}

func runForm(fields []field) ([]string, error) {
	final, err := tea.NewProgram(newFormModel(fields)).Run()
	if err != nil {
		return nil, fmt.Errorf("run wizard: %w", err)
	}
	m := final.(formModel)
	if m.aborted {
		return nil, fmt.Errorf("wizard cancelled")
	}
	return m.answers, nil
}

// InitAnswers are the wizard-collected init parameters.
type InitAnswers struct {
	Scope        string
	Model        string
	HistoryBytes int
	Matcher      string
	Timeout      int
	PolicyText   string
}

// InitWizard collects the init parameters interactively.
func InitWizard(defaultModel, defaultMatcher, defaultPolicy string, defaultTimeout int) (InitAnswers, error) {
	answers, err := runForm([]field{
		{label: "Scope (project/global)", defaultValue: "project"},
		{label: "Model", defaultValue: defaultModel},
		{label: "History bytes (0 disables transcript context)", defaultValue: "0"},
		{label: "Tool matcher regex", defaultValue: defaultMatcher},
		{label: "Hook timeout seconds", defaultValue: strconv.Itoa(defaultTimeout)},
		{label: "Policy text", defaultValue: defaultPolicy},
	})
	if err != nil {
		return InitAnswers{}, err
	}

	historyBytes, err := strconv.Atoi(answers[2])
	if err != nil || historyBytes < 0 {
		return InitAnswers{}, fmt.Errorf("invalid history bytes: %q", answers[2])
	}
	timeout, err := strconv.Atoi(answers[4])
	if err != nil || timeout <= 0 {
		return InitAnswers{}, fmt.Errorf("invalid timeout: %q", answers[4])
	}

	return InitAnswers{
		Scope:        answers[0],
		Model:        answers[1],
		HistoryBytes: historyBytes,
		Matcher:      answers[3],
		Timeout:      timeout,
		PolicyText:   answers[5],
	}, nil
}

// OptimizeAnswers are the wizard-collected optimize parameters.
type OptimizeAnswers struct {
	Scope        string
	Train        string
	Val          string
	Optimizer    string
	Auto         string
	TaskModel    string
	HistoryBytes int
}

// OptimizeWizard collects the optimize parameters interactively.
func OptimizeWizard(defaultModel string) (OptimizeAnswers, error) {
	answers, err := runForm([]field{
		{label: "Scope (project/global)", defaultValue: "project"},
		{label: "Training JSONL path", defaultValue: "train.jsonl"},
		{label: "Validation JSONL path (empty to split)", defaultValue: ""},
		{label: "Optimizer (mipro/gepa)", defaultValue: "mipro"},
		{label: "Effort (light/medium/heavy)", defaultValue: "light"},
		{label: "Task model", defaultValue: defaultModel},
		{label: "History bytes", defaultValue: "0"},
	})
	if err != nil {
		return OptimizeAnswers{}, err
	}

	historyBytes, err := strconv.Atoi(answers[6])
	if err != nil || historyBytes < 0 {
		return OptimizeAnswers{}, fmt.Errorf("invalid history bytes: %q", answers[6])
	}

	return OptimizeAnswers{
		Scope:        answers[0],
		Train:        answers[1],
		Val:          answers[2],
		Optimizer:    answers[3],
		Auto:         answers[4],
		TaskModel:    answers[5],
		HistoryBytes: historyBytes,
	}, nil
}
