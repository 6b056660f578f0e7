package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MEKXH/tether/internal/mode"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Agents.Defaults.MaxToolIterations != 20 {
		t.Errorf("expected MaxToolIterations=20, got %d", cfg.Agents.Defaults.MaxToolIterations)
	}
	if cfg.Agents.Defaults.Temperature != 0.7 {
		t.Errorf("expected Temperature=0.7, got %f", cfg.Agents.Defaults.Temperature)
	}
	if cfg.Controller.OutputLimit != 4000 {
		t.Errorf("expected OutputLimit=4000, got %d", cfg.Controller.OutputLimit)
	}
	if cfg.InitialMode() != mode.Normal {
		t.Errorf("expected normal initial mode, got %s", cfg.InitialMode())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "negative iterations", mutate: func(c *Config) { c.Agents.Defaults.MaxToolIterations = -1 }, wantErr: "max_tool_iterations"},
		{name: "temperature", mutate: func(c *Config) { c.Agents.Defaults.Temperature = 2.5 }, wantErr: "temperature"},
		{name: "max tokens", mutate: func(c *Config) { c.Agents.Defaults.MaxTokens = 0 }, wantErr: "max_tokens"},
		{name: "workspace mode", mutate: func(c *Config) { c.Agents.Defaults.WorkspaceMode = "home" }, wantErr: "workspace_mode"},
		{name: "path without workspace", mutate: func(c *Config) { c.Agents.Defaults.WorkspaceMode = "path" }, wantErr: "workspace must be non-empty"},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
		{name: "log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "exec timeout", mutate: func(c *Config) { c.Tools.Exec.Timeout = -5 }, wantErr: "tools.exec.timeout"},
		{name: "search results", mutate: func(c *Config) { c.Tools.Web.Search.MaxResults = 50 }, wantErr: "max_results"},
		{name: "output limit", mutate: func(c *Config) { c.Controller.OutputLimit = -1 }, wantErr: "output_limit"},
		{name: "approval ttl", mutate: func(c *Config) { c.Controller.ApprovalTTL = -1 }, wantErr: "approval_ttl"},
		{name: "initial mode", mutate: func(c *Config) { c.Controller.InitialMode = "yolo" }, wantErr: "initial_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agents.Defaults.MaxToolIterations = 0
	cfg.Log.Level = " DEBUG "
	cfg.Tools.Exec.Timeout = 0
	cfg.Controller.OutputLimit = 0
	cfg.Controller.InitialMode = "auto_accept"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.Agents.Defaults.MaxToolIterations != 20 || cfg.Tools.Exec.Timeout != 60 || cfg.Controller.OutputLimit != 4000 {
		t.Fatalf("zero values not defaulted: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected normalised level, got %q", cfg.Log.Level)
	}
	if cfg.InitialMode() != mode.AutoAccept {
		t.Fatalf("expected auto-accept, got %s", cfg.InitialMode())
	}
	if cfg.ExecTimeout() != time.Minute {
		t.Fatalf("unexpected exec timeout %s", cfg.ExecTimeout())
	}
}

func TestLoadFrom_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Controller.OutputLimit != 4000 {
		t.Fatalf("unexpected config %+v", cfg.Controller)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
}

func TestLoadFrom_ReadsFileWithLooseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
  "agents": {"defaults": {"model": "gpt-4o", "max_tokens": 1024, "maxToolIterations": 7}},
  "controller": {"output_limit": 1200, "initial-mode": "plan", "approval_ttl": 30},
  "tools": {"filesystem": {"read_only": ["vendor/**"]}}
}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Agents.Defaults.Model != "gpt-4o" || cfg.Agents.Defaults.MaxToolIterations != 7 {
		t.Fatalf("unexpected agent defaults %+v", cfg.Agents.Defaults)
	}
	if cfg.Controller.OutputLimit != 1200 || cfg.InitialMode() != mode.Plan || cfg.ApprovalTTL() != 30*time.Second {
		t.Fatalf("unexpected controller config %+v", cfg.Controller)
	}
	if len(cfg.Tools.Filesystem.ReadOnly) != 1 || cfg.Tools.Filesystem.ReadOnly[0] != "vendor/**" {
		t.Fatalf("unexpected filesystem config %+v", cfg.Tools.Filesystem)
	}
	if cfg.Tools.Exec.Timeout != 60 {
		t.Fatalf("unset keys should keep defaults, got exec timeout %d", cfg.Tools.Exec.Timeout)
	}
}

func TestLoadFrom_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"controller": {"output_limit": -3}}`), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadFrom(path); err == nil || !strings.Contains(err.Error(), "output_limit") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWorkspacePathChecked(t *testing.T) {
	cfg := DefaultConfig()
	wd, _ := os.Getwd()
	got, err := cfg.WorkspacePathChecked()
	if err != nil || got != wd {
		t.Fatalf("cwd mode: got %q, %v", got, err)
	}

	dir := t.TempDir()
	cfg.Agents.Defaults.WorkspaceMode = "path"
	cfg.Agents.Defaults.Workspace = dir
	got, err = cfg.WorkspacePathChecked()
	if err != nil || got != dir {
		t.Fatalf("path mode: got %q, %v", got, err)
	}

	cfg.Agents.Defaults.Workspace = ""
	if _, err := cfg.WorkspacePathChecked(); err == nil {
		t.Fatal("expected error for empty path workspace")
	}
}

func TestStateDir(t *testing.T) {
	got := StateDir(filepath.Join("tmp", "proj"))
	want := filepath.Join("tmp", "proj", ".tether", "state")
	if got != want {
		t.Fatalf("StateDir = %q, want %q", got, want)
	}
}
