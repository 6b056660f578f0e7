package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MEKXH/tether/internal/agent"
	"github.com/MEKXH/tether/internal/approval"
	"github.com/MEKXH/tether/internal/config"
	"github.com/MEKXH/tether/internal/mode"
	"github.com/MEKXH/tether/internal/provider"
	"github.com/MEKXH/tether/internal/render"
	"github.com/MEKXH/tether/internal/turn"
	"github.com/spf13/cobra"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <message>",
		Short: "Run one message to completion and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runOnce,
	}
	cmd.Flags().String("mode", "", "Initial mode (normal|plan|auto-accept)")
	cmd.Flags().String("approve", "ask", "How gated calls are answered: ask, yes or no")
	return cmd
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
		return fmt.Errorf("no model available: %w", err)
	}

	var renderer render.Renderer
	if r, err := render.NewMarkdown(0); err != nil {
		slog.Warn("markdown renderer unavailable", "error", err)
	} else {
		renderer = r
	}

	coordinator := turn.NewCoordinator(context.Background())
	approveFlag, _ := cmd.Flags().GetString("approve")
	prompter, err := prompterFor(approveFlag, env.modes, renderer, func() { coordinator.CancelAll() })
	if err != nil {
		return err
	}

	loop, err := agent.NewLoop(agent.Options{
		Model:         chatModel,
		Controller:    env.controller(prompter),
		Coordinator:   coordinator,
		Context:       agent.NewContextBuilder(env.workspace, env.modes, env.registry.Names),
		Metrics:       env.metrics,
		MaxIterations: cfg.Agents.Defaults.MaxToolIterations,
	})
	if err != nil {
		return err
	}

	reply, err := loop.Process(ctx, strings.Join(args, " "))
	if errors.Is(err, turn.ErrCancelled) {
		fmt.Fprintln(os.Stderr, "turn cancelled")
		return err
	}
	if err != nil {
		return err
	}

	think, body, hasThink := render.ResponseParts(reply, renderer)
	if hasThink && think != "" {
		fmt.Print(promptDimStyle.Render(think))
	}
	fmt.Print(body)
	return nil
}

// prompterFor maps the --approve flag to a prompter.
func prompterFor(answer string, modes *mode.Store, renderer render.Renderer, onCancel func()) (approval.Prompter, error) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "ask":
		return &terminalPrompter{modes: modes, renderer: renderer, onCancel: onCancel}, nil
	case "yes", "y":
		return fixedPrompter(true), nil
	case "no", "n":
		return fixedPrompter(false), nil
	default:
		return nil, fmt.Errorf("invalid --approve value %q (valid: ask, yes, no)", answer)
	}
}
