package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/MEKXH/tether/internal/approval"
	"github.com/MEKXH/tether/internal/audit"
	"github.com/MEKXH/tether/internal/config"
	"github.com/MEKXH/tether/internal/controller"
	"github.com/MEKXH/tether/internal/metrics"
	"github.com/MEKXH/tether/internal/mode"
	"github.com/MEKXH/tether/internal/policy"
	"github.com/MEKXH/tether/internal/tools"
)

// runtimeEnv is everything one process needs to run turns against a workspace.
type runtimeEnv struct {
	cfg       *config.Config
	workspace string
	stateDir  string
	modes     *mode.Store
	registry  *tools.Registry
	approvals *approval.Service
	audit     *audit.Writer
	metrics   *metrics.RuntimeMetrics
}

// newRuntime builds the registry and state services. modeOverride, when set,
// replaces controller.initial_mode.
func newRuntime(cfg *config.Config, modeOverride string) (*runtimeEnv, error) {
	workspace, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}

	initial := cfg.InitialMode()
	if strings.TrimSpace(modeOverride) != "" {
		initial, err = mode.Parse(modeOverride)
		if err != nil {
			return nil, err
		}
	}
	modes := mode.Global()
	if err := modes.Set(initial); err != nil {
		return nil, err
	}

	registry, err := buildRegistry(cfg, workspace)
	if err != nil {
		return nil, err
	}

	stateDir := config.StateDir(workspace)
	env := &runtimeEnv{
		cfg:       cfg,
		workspace: workspace,
		stateDir:  stateDir,
		modes:     modes,
		registry:  registry,
		approvals: approval.NewService(stateDir),
		audit:     audit.NewWriter(stateDir),
		metrics:   metrics.NewRuntimeMetrics(stateDir),
	}

	// Requests left pending by an earlier process can never be answered.
	if stale, err := env.approvals.CancelPending("abandoned by a previous session"); err != nil {
		slog.Warn("failed to sweep stale approvals", "error", err)
	} else if len(stale) > 0 {
		slog.Info("cancelled stale approval requests", "count", len(stale))
	}
	return env, nil
}

func buildRegistry(cfg *config.Config, workspace string) (*tools.Registry, error) {
	ws := tools.NewWorkspace(workspace)
	ws.Hidden = cfg.Tools.Filesystem.Hidden
	ws.ReadOnly = cfg.Tools.Filesystem.ReadOnly

	registry := tools.NewRegistry()
	err := tools.RegisterDefaults(registry, tools.Options{
		Workspace:        ws,
		ExecTimeout:      cfg.ExecTimeout(),
		ExecUnrestricted: !cfg.Tools.Exec.RestrictToWorkspace,
		Web: tools.WebOptions{
			Timeout:          cfg.FetchTimeout(),
			FetchMaxBytes:    int(cfg.Tools.Web.Fetch.MaxBytes),
			SearchAPIKey:     cfg.Tools.Web.Search.APIKey,
			SearchMaxResults: cfg.Tools.Web.Search.MaxResults,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	slog.Debug("registered tools", "count", len(registry.Names()), "tools", registry.Names())
	return registry, nil
}

// controller wires the invocation controller; prompter answers gated calls.
func (e *runtimeEnv) controller(prompter approval.Prompter) *controller.Controller {
	var approver controller.Approver
	if prompter != nil {
		approver = approval.NewGate(e.approvals, prompter, e.cfg.ApprovalTTL())
	}
	return controller.New(controller.Options{
		Registry:    e.registry,
		Evaluator:   policy.NewEvaluator(e.modes),
		Approver:    approver,
		OutputLimit: e.cfg.Controller.OutputLimit,
		Audit:       e.audit,
		Metrics:     e.metrics,
	})
}
