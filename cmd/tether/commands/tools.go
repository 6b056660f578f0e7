package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MEKXH/tether/internal/config"
	"github.com/MEKXH/tether/internal/mode"
	"github.com/MEKXH/tether/internal/policy"
	"github.com/MEKXH/tether/internal/tools"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func NewToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List tools and when each one asks for approval",
		RunE:  runTools,
	}
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}
	registry, err := buildRegistry(cfg, workspacePath)
	if err != nil {
		return err
	}
	renderToolTable(os.Stdout, registry)
	return nil
}

// renderToolTable prints one row per tool with its policy and, for every
// mode, whether a call would wait for approval.
func renderToolTable(w io.Writer, registry *tools.Registry) {
	const (
		wName   = 12
		wPolicy = 8
		wMode   = 12
	)
	var (
		headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#8E4EC6")).Padding(0, 1)
		colHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).MarginRight(1)
		sepStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
		cellStyle      = lipgloss.NewStyle().MarginRight(1)
		askColor       = lipgloss.Color("#D14D41")
		autoColor      = lipgloss.Color("#2E8B57")
	)

	fmt.Fprintln(w, headerStyle.Render("Tools"))

	headers := []string{
		colHeaderStyle.Width(wName).Render("NAME"),
		colHeaderStyle.Width(wPolicy).Render("POLICY"),
	}
	separators := []string{
		sepStyle.Render(strings.Repeat("─", wName)),
		sepStyle.Render(strings.Repeat("─", wPolicy)),
	}
	evaluators := make([]policy.Evaluator, 0, len(mode.All))
	for _, m := range mode.All {
		headers = append(headers, colHeaderStyle.Width(wMode).Render(strings.ToUpper(m.String())))
		separators = append(separators, sepStyle.Render(strings.Repeat("─", wMode)))
		evaluators = append(evaluators, policy.NewEvaluator(mode.NewStore(m)))
	}
	fmt.Fprintf(w, "  %s\n", lipgloss.JoinHorizontal(lipgloss.Top, headers...))
	fmt.Fprintf(w, "  %s\n", lipgloss.JoinHorizontal(lipgloss.Top, separators...))

	for _, c := range registry.List() {
		cells := []string{
			cellStyle.Width(wName).Render(c.Name()),
			cellStyle.Width(wPolicy).Render(c.ApprovalPolicy().String()),
		}
		for _, ev := range evaluators {
			text, color := "auto", autoColor
			if ev.RequiresApproval(c, "{}").Required {
				text, color = "ask", askColor
			}
			cells = append(cells, cellStyle.Width(wMode).Foreground(color).Render(text))
		}
		fmt.Fprintf(w, "  %s\n", lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	fmt.Fprintln(w)
}
