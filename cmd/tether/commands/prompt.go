package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MEKXH/tether/internal/approval"
	"github.com/MEKXH/tether/internal/mode"
	"github.com/MEKXH/tether/internal/render"
	"github.com/MEKXH/tether/internal/turn"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type approvalChoice int

const (
	choicePending approvalChoice = iota
	choiceApprove
	choiceReject
	choiceApproveAll
	choiceCancel
)

type approvalKeys struct {
	Approve    key.Binding
	Reject     key.Binding
	ApproveAll key.Binding
	Cancel     key.Binding
}

func defaultApprovalKeys() approvalKeys {
	return approvalKeys{
		Approve:    key.NewBinding(key.WithKeys("y", "Y", "enter"), key.WithHelp("y", "approve")),
		Reject:     key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "reject")),
		ApproveAll: key.NewBinding(key.WithKeys("a", "A"), key.WithHelp("a", "approve + auto-accept edits")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel turn")),
	}
}

func (k approvalKeys) help() string {
	bindings := []key.Binding{k.Approve, k.Reject, k.ApproveAll, k.Cancel}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

var (
	promptTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#8E4EC6")).Padding(0, 1)
	promptBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#8E4EC6")).Padding(0, 1)
	promptDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	promptOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E8B57")).Bold(true)
	promptDenyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D14D41")).Bold(true)
)

// approvalModel is the bubbletea model for one approval prompt.
type approvalModel struct {
	prompt  approval.Prompt
	preview string
	keys    approvalKeys
	choice  approvalChoice
	now     func() time.Time
}

func newApprovalModel(p approval.Prompt, preview string) approvalModel {
	return approvalModel{
		prompt:  p,
		preview: preview,
		keys:    defaultApprovalKeys(),
		now:     time.Now,
	}
}

// countdownMsg re-renders the expiry countdown.
type countdownMsg time.Time

// countdown schedules the next redraw while the prompt can still expire.
func (m approvalModel) countdown() tea.Cmd {
	if m.prompt.ExpiresAt.IsZero() || m.choice != choicePending {
		return nil
	}
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return countdownMsg(t) })
}

func (m approvalModel) Init() tea.Cmd {
	return m.countdown()
}

func (m approvalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(countdownMsg); ok {
		return m, m.countdown()
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Cancel):
		m.choice = choiceCancel
	case key.Matches(keyMsg, m.keys.Approve):
		m.choice = choiceApprove
	case key.Matches(keyMsg, m.keys.ApproveAll):
		m.choice = choiceApproveAll
	case key.Matches(keyMsg, m.keys.Reject):
		m.choice = choiceReject
	default:
		return m, nil
	}
	return m, tea.Quit
}

func (m approvalModel) View() string {
	switch m.choice {
	case choiceApprove:
		return promptOKStyle.Render("✓ approved "+m.prompt.ToolName) + "\n"
	case choiceApproveAll:
		return promptOKStyle.Render("✓ approved "+m.prompt.ToolName+", mode is now auto-accept") + "\n"
	case choiceReject:
		return promptDenyStyle.Render("✗ rejected "+m.prompt.ToolName) + "\n"
	case choiceCancel:
		return promptDenyStyle.Render("✗ turn cancelled") + "\n"
	}

	var b strings.Builder
	b.WriteString(promptTitleStyle.Render("Approval required: " + m.prompt.ToolName))
	b.WriteString("\n")
	if m.prompt.Rationale != "" {
		b.WriteString(promptDimStyle.Render(m.prompt.Rationale))
		b.WriteString("\n")
	}
	if preview := strings.TrimSpace(m.preview); preview != "" {
		b.WriteString(promptBoxStyle.Render(preview))
		b.WriteString("\n")
	}
	if !m.prompt.ExpiresAt.IsZero() {
		left := m.prompt.ExpiresAt.Sub(m.now()).Round(time.Second)
		if left < 0 {
			left = 0
		}
		b.WriteString(promptDimStyle.Render(fmt.Sprintf("expires in %s", left)))
		b.WriteString("\n")
	}
	b.WriteString(promptDimStyle.Render(m.keys.help()))
	b.WriteString("\n")
	return b.String()
}

// terminalPrompter asks on the terminal with a bubbletea program per prompt.
type terminalPrompter struct {
	modes    *mode.Store
	renderer render.Renderer
	in       io.Reader
	out      io.Writer
	// onCancel is called when the user cancels the turn from the prompt.
	onCancel func()
}

func (p *terminalPrompter) Prompt(ctx context.Context, pr approval.Prompt) (bool, error) {
	m := newApprovalModel(pr, render.Markdown(p.renderer, pr.Preview))
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.in != nil {
		opts = append(opts, tea.WithInput(p.in))
	}
	if p.out != nil {
		opts = append(opts, tea.WithOutput(p.out))
	}

	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return false, context.Cause(ctx)
		}
		return false, fmt.Errorf("approval prompt: %w", err)
	}
	result, ok := final.(approvalModel)
	if !ok {
		return false, errors.New("approval prompt: unexpected model")
	}
	return p.resolve(result.choice)
}

func (p *terminalPrompter) resolve(choice approvalChoice) (bool, error) {
	switch choice {
	case choiceApprove:
		return true, nil
	case choiceApproveAll:
		if p.modes != nil {
			if err := p.modes.Set(mode.AutoAccept); err != nil {
				return false, err
			}
		}
		return true, nil
	case choiceCancel:
		if p.onCancel != nil {
			p.onCancel()
		}
		return false, turn.ErrCancelled
	default:
		return false, nil
	}
}

// fixedPrompter answers every prompt the same way; used by non-interactive runs.
type fixedPrompter bool

func (f fixedPrompter) Prompt(ctx context.Context, pr approval.Prompt) (bool, error) {
	return bool(f), nil
}
