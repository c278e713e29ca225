package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Action is a top-level menu selection.
type Action int

const (
	ActionQuit Action = iota
	ActionInit
	ActionOptimize
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#8E4EC6")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8E4EC6")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

type menuItem struct {
	label  string
	action Action
}

type menuModel struct {
	items  []menuItem
	cursor int
	choice Action
}

func newMenuModel() menuModel {
	return menuModel{
		items: []menuItem{
			{label: "Init — install the PreToolUse hook and seed settings", action: ActionInit},
			{label: "Optimize — compile the approver from labeled examples", action: ActionOptimize},
			{label: "Quit", action: ActionQuit},
		},
	}
}

func (m menuModel) Init() tea.Cmd { return nil }

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		m.choice = m.items[m.cursor].action
		return m, tea.Quit
	case "q", "esc", "ctrl+c":
		m.choice = ActionQuit
		return m, tea.Quit
	}
	return m, nil
}

func (m menuModel) View() string {
	s := titleStyle.Render("cc-approver") + "\n\n"
	for i, item := range m.items {
		if i == m.cursor {
			s += selectedStyle.Render("> "+item.label) + "\n"
		} else {
			s += "  " + item.label + "\n"
		}
	}
	s += "\n" + dimStyle.Render("↑/↓ move · enter select · q quit") + "\n"
	return s
}

// MainMenu runs the top-level interactive menu and returns the chosen
// action.
func MainMenu() (Action, error) {
	final, err := tea.NewProgram(newMenuModel()).Run()
	if err != nil {
		return ActionQuit, fmt.Errorf("run menu: %w", err)
	}
	return final.(menuModel).choice, nil
}
