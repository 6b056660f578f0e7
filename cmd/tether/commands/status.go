package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/MEKXH/tether/internal/approval"
	"github.com/MEKXH/tether/internal/config"
	"github.com/MEKXH/tether/internal/controller"
	"github.com/MEKXH/tether/internal/metrics"
	"github.com/MEKXH/tether/internal/provider"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, tools and runtime counters for the workspace",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}
	stateDir := config.StateDir(workspacePath)

	fmt.Println("=== Tether Status ===")
	fmt.Println()

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'tether init')")
	}

	fmt.Printf("\nWorkspace: %s\n", workspacePath)
	workspaceMode := strings.TrimSpace(cfg.Agents.Defaults.WorkspaceMode)
	if workspaceMode == "" {
		workspaceMode = "cwd"
	}
	fmt.Printf("  Mode:  %s\n", workspaceMode)
	fmt.Printf("  State: %s\n", stateDir)

	fmt.Println("\nModel:")
	if described, err := provider.Describe(cfg); err != nil {
		fmt.Printf("  %s (%v)\n", cfg.Agents.Defaults.Model, err)
	} else {
		fmt.Printf("  %s\n", described)
	}

	fmt.Println("\nController:")
	fmt.Printf("  Initial mode: %s\n", cfg.InitialMode())
	limit := cfg.Controller.OutputLimit
	if limit <= 0 {
		limit = controller.DefaultOutputLimit
	}
	fmt.Printf("  Output limit: %d chars\n", limit)
	if ttl := cfg.ApprovalTTL(); ttl > 0 {
		fmt.Printf("  Approval TTL: %s\n", ttl)
	} else {
		fmt.Println("  Approval TTL: none")
	}
	fmt.Printf("  Exec:         timeout=%ds, restrict_to_workspace=%v\n", cfg.Tools.Exec.Timeout, cfg.Tools.Exec.RestrictToWorkspace)

	fmt.Println("\nTools:")
	if registry, err := buildRegistry(cfg, workspacePath); err != nil {
		fmt.Printf("  unavailable (%v)\n", err)
	} else {
		for _, c := range registry.List() {
			fmt.Printf("  %s: approval=%s\n", c.Name(), c.ApprovalPolicy())
		}
	}

	fmt.Println("\nApprovals:")
	pending, err := approval.NewService(stateDir).List(approval.Query{Status: approval.StatusPending})
	if err != nil {
		fmt.Printf("  unavailable (%v)\n", err)
	} else {
		fmt.Printf("  Pending: %d\n", len(pending))
	}

	fmt.Println("\nRuntime:")
	snapshot, err := metrics.ReadRuntimeSnapshot(stateDir)
	switch {
	case err != nil:
		fmt.Printf("  unavailable (%v)\n", err)
	case !snapshot.HasData():
		fmt.Println("  no runtime data yet")
	default:
		printRuntimeSnapshot(snapshot)
	}
	return nil
}

func printRuntimeSnapshot(s metrics.RuntimeSnapshot) {
	fmt.Printf("  Turns:      %d (%d cancelled)\n", s.Turn.Total, s.Turn.Cancelled)
	fmt.Printf("  Tool calls: %d (%d executed)\n", s.Tool.Total, s.Tool.Executed)
	for _, kind := range controller.Kinds {
		if n := s.Tool.Count(string(kind)); n > 0 {
			fmt.Printf("    %-18s %d (%.0f%%)\n", kind, n, s.Tool.Ratio(string(kind))*100)
		}
	}
	if s.Tool.Executed > 0 {
		fmt.Printf("  Latency:    avg=%.0fms p95~%dms max=%dms\n", s.Tool.AvgLatencyMs(), s.Tool.P95ProxyLatencyMs, s.Tool.MaxLatencyMs)
	}
	if !s.UpdatedAt.IsZero() {
		fmt.Printf("  Updated:    %s\n", s.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}
