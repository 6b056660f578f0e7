package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/MEKXH/tether/internal/agent"
	"github.com/MEKXH/tether/internal/approval"
	"github.com/MEKXH/tether/internal/config"
	"github.com/MEKXH/tether/internal/controller"
	"github.com/MEKXH/tether/internal/mode"
	"github.com/MEKXH/tether/internal/policy"
	"github.com/MEKXH/tether/internal/provider"
	"github.com/MEKXH/tether/internal/render"
	"github.com/MEKXH/tether/internal/turn"
	"github.com/MEKXH/tether/internal/version"
	"github.com/charmbracelet/lipgloss"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/cobra"
)

var (
	chatBannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#8E4EC6")).Padding(0, 1)
	chatModeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8E4EC6")).Bold(true)
	chatToolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	chatFailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D14D41"))
)

func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session in the workspace",
		RunE:  runChat,
	}
	cmd.Flags().String("mode", "", "Initial mode (normal|plan|auto-accept)")
	return cmd
}

// chatSession is one interactive session.
type chatSession struct {
	env      *runtimeEnv
	loop     *agent.Loop
	ctrl     *controller.Controller
	renderer render.Renderer
	out      io.Writer
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	modeFlag, _ := cmd.Flags().GetString("mode")
	env, err := newRuntime(cfg, modeFlag)
	if err != nil {
		return err
	}

	chatModel, err := provider.NewChatModel(ctx, cfg)
	if err != nil {
		return fmt.Errorf("no model available: %w (edit %s)", err, config.ConfigPath())
	}

	var renderer render.Renderer
	if r, err := render.NewMarkdown(0); err != nil {
		slog.Warn("markdown renderer unavailable", "error", err)
	} else {
		renderer = r
	}

	coordinator := turn.NewCoordinator(ctx)
	prompter := &terminalPrompter{
		modes:    env.modes,
		renderer: renderer,
		onCancel: func() { coordinator.CancelAll() },
	}
	session, err := newChatSession(env, chatModel, coordinator, prompter, renderer, os.Stdout)
	if err != nil {
		return err
	}
	return session.run(ctx, os.Stdin)
}

func newChatSession(env *runtimeEnv, chatModel model.BaseChatModel, coordinator *turn.Coordinator, prompter approval.Prompter, renderer render.Renderer, out io.Writer) (*chatSession, error) {
	ctrl := env.controller(prompter)
	loop, err := agent.NewLoop(agent.Options{
		Model:         chatModel,
		Controller:    ctrl,
		Coordinator:   coordinator,
		Context:       agent.NewContextBuilder(env.workspace, env.modes, env.registry.Names),
		Metrics:       env.metrics,
		MaxIterations: env.cfg.Agents.Defaults.MaxToolIterations,
	})
	if err != nil {
		return nil, err
	}

	s := &chatSession{env: env, loop: loop, ctrl: ctrl, renderer: renderer, out: out}
	loop.OnDelta = func(chunk string) { fmt.Fprint(s.out, chunk) }
	ctrl.OnToolStart = func(req controller.Request) {
		fmt.Fprintln(s.out, chatToolStyle.Render("● "+req.Name+" "+summarizeArgs(req.Arguments)))
	}
	ctrl.OnToolFinish = func(req controller.Request, res controller.Result) {
		fmt.Fprintln(s.out, toolResultLine(res))
		if res.Kind == controller.KindSuccess && s.showsResult(req.Name) {
			fmt.Fprint(s.out, render.Markdown(s.renderer, ctrl.Preview(req, &res.Content)))
		}
	}
	return s, nil
}

// showsResult reports whether a finished call's preview is worth printing:
// edits and commands are, reads are not.
func (s *chatSession) showsResult(name string) bool {
	c, err := s.env.registry.Get(name)
	if err != nil {
		return false
	}
	static, ok := c.ApprovalPolicy().(policy.Static)
	return !ok || bool(static)
}

// toolResultLine is the one-line summary printed after each call.
func toolResultLine(res controller.Result) string {
	if res.Kind == controller.KindSuccess {
		return chatToolStyle.Render("  ✓ " + res.Name)
	}
	first, _, _ := strings.Cut(strings.TrimSpace(res.Content), "\n")
	return chatFailStyle.Render(fmt.Sprintf("  ✗ %s (%s) %s", res.Name, res.Kind, truncateRunes(first, 120)))
}

func summarizeArgs(argsJSON string) string {
	compact := strings.Join(strings.Fields(argsJSON), " ")
	return truncateRunes(compact, 80)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

func (s *chatSession) promptLine() string {
	return chatModeStyle.Render("["+s.env.modes.Current().String()+"]") + " › "
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, chatBannerStyle.Render(version.String()))
	fmt.Fprintf(s.out, "Workspace: %s\nType /help for commands. Ctrl-C cancels a running turn; Ctrl-C when idle exits.\n", s.env.workspace)

	lines := newLineReader(in)
	quit := make(chan struct{}, 1)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if s.loop.Coordinator().CancelAll() == 0 {
				select {
				case quit <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		fmt.Fprint(s.out, "\n"+s.promptLine())
		var input string
		select {
		case <-quit:
			fmt.Fprintln(s.out)
			return nil
		case line, ok := <-lines.next():
			if !ok {
				return nil
			}
			input = strings.TrimSpace(line)
		}
		if input == "" {
			continue
		}
		handled, exit := s.handleCommand(input)
		if exit {
			return nil
		}
		if handled {
			continue
		}
		s.turn(ctx, input)
	}
}

func (s *chatSession) turn(ctx context.Context, input string) {
	_, err := s.loop.Process(ctx, input)
	switch {
	case errors.Is(err, turn.ErrCancelled):
		fmt.Fprintln(s.out, "\n"+chatFailStyle.Render("(turn cancelled)"))
	case err != nil:
		fmt.Fprintln(s.out, "\n"+chatFailStyle.Render("Error: "+err.Error()))
	default:
		// The reply was already streamed through OnDelta.
		fmt.Fprintln(s.out)
	}
}

// handleCommand runs a slash command. exit reports that the session should end.
func (s *chatSession) handleCommand(input string) (handled, exit bool) {
	if !strings.HasPrefix(input, "/") {
		return false, false
	}
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/exit", "/quit":
		return true, true
	case "/mode":
		if len(fields) == 1 {
			fmt.Fprintf(s.out, "mode: %s\n", s.env.modes.Cycle())
			return true, false
		}
		m, err := mode.Parse(strings.Join(fields[1:], " "))
		if err != nil {
			fmt.Fprintln(s.out, chatFailStyle.Render(err.Error()))
			return true, false
		}
		if err := s.env.modes.Set(m); err != nil {
			fmt.Fprintln(s.out, chatFailStyle.Render(err.Error()))
			return true, false
		}
		fmt.Fprintf(s.out, "mode: %s\n", m)
	case "/reset", "/new":
		s.loop.Reset()
		fmt.Fprintln(s.out, "conversation cleared")
	case "/tools":
		fmt.Fprintln(s.out, strings.Join(s.env.registry.Names(), ", "))
	case "/help":
		fmt.Fprintln(s.out, render.Markdown(s.renderer, chatHelp))
	default:
		fmt.Fprintln(s.out, chatFailStyle.Render("unknown command "+fields[0]+"; try /help"))
	}
	return true, false
}

const chatHelp = `| command | effect |
|---|---|
| /mode [normal\|plan\|auto-accept] | set the mode, or cycle it without an argument |
| /reset | clear the conversation |
| /tools | list tools |
| /exit | quit |`

// lineReader reads a line only when asked, so stdin is left alone while an
// approval prompt owns the terminal.
type lineReader struct {
	requests chan struct{}
	lines    chan string
}

func newLineReader(in io.Reader) *lineReader {
	r := &lineReader{requests: make(chan struct{}, 1), lines: make(chan string)}
	go func() {
		defer close(r.lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for range r.requests {
			if !scanner.Scan() {
				return
			}
			r.lines <- scanner.Text()
		}
	}()
	return r
}

// next asks for one line and returns the channel it will arrive on. The
// channel is closed at end of input.
func (r *lineReader) next() <-chan string {
	select {
	case r.requests <- struct{}{}:
	default:
	}
	return r.lines
}
