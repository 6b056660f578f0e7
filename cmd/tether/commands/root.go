package commands

import (
	"github.com/MEKXH/tether/internal/config"
	"github.com/MEKXH/tether/internal/version"
	"github.com/spf13/cobra"
)

var logLevelOverride string

// configFree lists commands that must work before a config file exists.
var configFree = map[string]bool{"init": true, "version": true}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tether",
		Short:         "tether - a terminal coding agent with gated tool calls",
		Long:          `tether lets a language model read, edit and run commands in a local project. File edits and shell commands wait for your approval unless the mode says otherwise.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if !configFree[cmd.Name()] {
				loaded, err := config.Load()
				if err != nil {
					return err
				}
				cfg = loaded
			}
			return configureLogger(cfg, logLevelOverride, cmd.Name() == "chat")
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewChatCmd(),
		NewRunCmd(),
		NewToolsCmd(),
		NewClassifyCmd(),
		NewApprovalCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)
	return cmd
}
