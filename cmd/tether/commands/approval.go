package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/MEKXH/tether/internal/approval"
	"github.com/MEKXH/tether/internal/config"
	"github.com/spf13/cobra"
)

func NewApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Inspect the approval request log",
	}

	cmd.AddCommand(
		newApprovalListCmd(),
		newApprovalPruneCmd(),
	)

	return cmd
}

func newApprovalListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approval requests",
		RunE:  runApprovalList,
	}
	cmd.Flags().String("status", string(approval.StatusPending), "Filter by status (pending|approved|rejected|expired|cancelled|all)")
	cmd.Flags().String("tool", "", "Filter by tool name")
	return cmd
}

func newApprovalPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Expire pending requests past their TTL",
		RunE:  runApprovalPrune,
	}
	cmd.Flags().Bool("all", false, "Cancel every pending request, expired or not")
	return cmd
}

func runApprovalList(cmd *cobra.Command, args []string) error {
	svc, err := loadApprovalService()
	if err != nil {
		return err
	}

	status := string(approval.StatusPending)
	tool := ""
	if cmd != nil {
		status, _ = cmd.Flags().GetString("status")
		tool, _ = cmd.Flags().GetString("tool")
	}
	query := approval.Query{ToolName: tool}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "all" && status != "" {
		query.Status = approval.RequestStatus(status)
		if !query.Status.Valid() {
			return fmt.Errorf("invalid status %q", status)
		}
	}

	requests, err := svc.List(query)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		if query.Status == approval.StatusPending {
			fmt.Println("No pending approvals.")
		} else {
			fmt.Println("No approvals.")
		}
		return nil
	}

	for _, req := range requests {
		fmt.Printf("%s %-10s %-9s %s", req.ID, req.ToolName, req.Status, req.RequestedAt.Local().Format(time.DateTime))
		if req.DecisionNote != "" {
			fmt.Printf(" (%s)", req.DecisionNote)
		}
		fmt.Println()
	}
	return nil
}

func runApprovalPrune(cmd *cobra.Command, args []string) error {
	svc, err := loadApprovalService()
	if err != nil {
		return err
	}

	all := false
	if cmd != nil {
		all, _ = cmd.Flags().GetBool("all")
	}

	expired, err := svc.ExpirePending()
	if err != nil {
		return err
	}
	fmt.Printf("Expired %d request(s).\n", len(expired))
	if !all {
		return nil
	}
	cancelled, err := svc.CancelPending("cancelled from the command line")
	if err != nil {
		return err
	}
	fmt.Printf("Cancelled %d request(s).\n", len(cancelled))
	return nil
}

func loadApprovalService() (*approval.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}
	return approval.NewService(config.StateDir(workspacePath)), nil
}
