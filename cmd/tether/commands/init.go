package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MEKXH/tether/internal/config"
	"github.com/spf13/cobra"
)

const projectNotesTemplate = `# Project notes

Instructions in this file are added to the system prompt of every session
started in this directory.

- Build:
- Test:
- Conventions:
`

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the tether config and prepare this directory as a workspace",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	cfg := config.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", config.ConfigDir(), err)
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Config: %s\n", configPath)
	}

	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}
	stateDir := config.StateDir(workspacePath)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", stateDir, err)
	}

	notesPath := filepath.Join(workspacePath, "TETHER.md")
	if _, err := os.Stat(notesPath); os.IsNotExist(err) {
		if err := os.WriteFile(notesPath, []byte(projectNotesTemplate), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", notesPath, err)
		}
	}

	fmt.Printf("Workspace: %s\n", workspacePath)
	fmt.Printf("State:     %s\n", stateDir)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to add your API keys\n", configPath)
	fmt.Printf("2. Describe the project in %s\n", notesPath)
	fmt.Printf("3. Run 'tether chat' to start a session\n")

	return nil
}
