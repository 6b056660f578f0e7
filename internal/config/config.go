package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MEKXH/tether/internal/mode"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Agents     AgentsConfig     `mapstructure:"agents" json:"agents"`
	Providers  ProvidersConfig  `mapstructure:"providers" json:"providers"`
	Log        LogConfig        `mapstructure:"log" json:"log"`
	Tools      ToolsConfig      `mapstructure:"tools" json:"tools"`
	Controller ControllerConfig `mapstructure:"controller" json:"controller"`
}

// AgentsConfig agent settings
type AgentsConfig struct {
	Defaults AgentDefaults `mapstructure:"defaults" json:"defaults"`
}

// AgentDefaults default agent parameters
type AgentDefaults struct {
	Workspace         string  `mapstructure:"workspace" json:"workspace"`
	WorkspaceMode     string  `mapstructure:"workspace_mode" json:"workspace_mode"`
	Model             string  `mapstructure:"model" json:"model"`
	MaxTokens         int     `mapstructure:"max_tokens" json:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature" json:"temperature"`
	MaxToolIterations int     `mapstructure:"max_tool_iterations" json:"max_tool_iterations"`
}

// ProvidersConfig LLM provider settings
type ProvidersConfig struct {
	OpenRouter ProviderConfig `mapstructure:"openrouter" json:"openrouter"`
	Claude     ProviderConfig `mapstructure:"claude" json:"claude"`
	OpenAI     ProviderConfig `mapstructure:"openai" json:"openai"`
	DeepSeek   ProviderConfig `mapstructure:"deepseek" json:"deepseek"`
	Ollama     ProviderConfig `mapstructure:"ollama" json:"ollama"`
}

// ProviderConfig single provider settings
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	File   string `mapstructure:"file" json:"file"`
	Format string `mapstructure:"format" json:"format"` // text or json
}

// ToolsConfig tool settings
type ToolsConfig struct {
	Web        WebToolsConfig       `mapstructure:"web" json:"web"`
	Exec       ExecToolConfig       `mapstructure:"exec" json:"exec"`
	Filesystem FilesystemToolConfig `mapstructure:"filesystem" json:"filesystem"`
}

// WebToolsConfig web tool settings
type WebToolsConfig struct {
	Fetch  WebFetchConfig  `mapstructure:"fetch" json:"fetch"`
	Search WebSearchConfig `mapstructure:"search" json:"search"`
}

// WebFetchConfig web_fetch settings
type WebFetchConfig struct {
	Timeout  int   `mapstructure:"timeout" json:"timeout"` // seconds
	MaxBytes int64 `mapstructure:"max_bytes" json:"max_bytes"`
}

// WebSearchConfig brave search settings
type WebSearchConfig struct {
	APIKey     string `mapstructure:"api_key" json:"api_key"`
	MaxResults int    `mapstructure:"max_results" json:"max_results"`
}

// ExecToolConfig shell exec settings
type ExecToolConfig struct {
	Timeout             int  `mapstructure:"timeout" json:"timeout"` // seconds
	RestrictToWorkspace bool `mapstructure:"restrict_to_workspace" json:"restrict_to_workspace"`
}

// FilesystemToolConfig holds workspace-relative doublestar patterns.
type FilesystemToolConfig struct {
	Hidden   []string `mapstructure:"hidden" json:"hidden"`
	ReadOnly []string `mapstructure:"read_only" json:"read_only"`
}

// ControllerConfig invocation controller settings
type ControllerConfig struct {
	OutputLimit int    `mapstructure:"output_limit" json:"output_limit"` // characters
	InitialMode string `mapstructure:"initial_mode" json:"initial_mode"`
	ApprovalTTL int    `mapstructure:"approval_ttl" json:"approval_ttl"` // seconds, 0 waits forever
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				WorkspaceMode:     "cwd",
				Model:             "anthropic/claude-sonnet-4-5",
				MaxTokens:         8192,
				Temperature:       0.7,
				MaxToolIterations: 20,
			},
		},
		Providers: ProvidersConfig{},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tools: ToolsConfig{
			Web: WebToolsConfig{
				Fetch: WebFetchConfig{
					Timeout:  30,
					MaxBytes: 1 << 20,
				},
				Search: WebSearchConfig{
					MaxResults: 5,
				},
			},
			Exec: ExecToolConfig{
				Timeout:             60,
				RestrictToWorkspace: true,
			},
			Filesystem: FilesystemToolConfig{
				Hidden:   []string{".git/**", ".tether/**", ".env", "**/.env"},
				ReadOnly: []string{},
			},
		},
		Controller: ControllerConfig{
			OutputLimit: 4000,
			InitialMode: string(mode.Normal),
		},
	}
}

// ConfigDir returns the tether config directory
func ConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return filepath.Join(homeDir, ".tether")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from the default path, creating it with defaults when missing.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from path, creating it with defaults when missing.
// TETHER_* environment variables override file values.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := SaveTo(configPath, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	if err := decodeFile(configPath, cfg); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// decodeFile overlays the JSON file at path onto cfg. Keys match fields
// regardless of case, underscores and dashes.
func decodeFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("TETHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return looseKey(mapKey) == looseKey(fieldName)
		}
	})
}

var looseKeyReplacer = strings.NewReplacer("_", "", "-", "")

func looseKey(key string) string {
	return strings.ToLower(looseKeyReplacer.Replace(key))
}

// Save saves config to the default path.
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes cfg as indented JSON, readable only by the owner.
func SaveTo(configPath string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0o600)
}

// Validate checks that the configuration values are within acceptable ranges
// and fills zero values with defaults.
func (c *Config) Validate() error {
	for _, check := range []func() error{c.validateAgent, c.validateLog, c.validateTools, c.validateController} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// orDefault rejects a negative value and replaces zero with def.
func orDefault[T int | int64](key string, v *T, def T) error {
	if *v < 0 {
		return fmt.Errorf("%s must not be negative, got %d", key, *v)
	}
	if *v == 0 {
		*v = def
	}
	return nil
}

var workspaceModes = []string{"default", "cwd", "path"}

func (c *Config) validateAgent() error {
	d := &c.Agents.Defaults
	if err := orDefault("agents.defaults.max_tool_iterations", &d.MaxToolIterations, 20); err != nil {
		return err
	}
	if d.Temperature < 0 || d.Temperature > 2.0 {
		return fmt.Errorf("agents.defaults.temperature must be between 0 and 2.0, got %f", d.Temperature)
	}
	if d.MaxTokens <= 0 {
		return fmt.Errorf("agents.defaults.max_tokens must be > 0, got %d", d.MaxTokens)
	}

	wsMode := strings.ToLower(strings.TrimSpace(d.WorkspaceMode))
	if wsMode == "" {
		return nil
	}
	if !slices.Contains(workspaceModes, wsMode) {
		return fmt.Errorf("agents.defaults.workspace_mode must be one of: %s; got %q", strings.Join(workspaceModes, ", "), d.WorkspaceMode)
	}
	if wsMode == "path" && strings.TrimSpace(d.Workspace) == "" {
		return fmt.Errorf("agents.defaults.workspace must be non-empty when workspace_mode is \"path\"")
	}
	return nil
}

var logLevels = []string{"debug", "info", "warn", "error"}

func (c *Config) validateLog() error {
	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch {
	case level == "":
		level = "info"
	case !slices.Contains(logLevels, level):
		return fmt.Errorf("log.level must be one of %s; got %q", strings.Join(logLevels, ", "), c.Log.Level)
	}
	c.Log.Level = level

	format := strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch format {
	case "":
		format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json; got %q", c.Log.Format)
	}
	c.Log.Format = format
	return nil
}

func (c *Config) validateTools() error {
	t := &c.Tools
	if err := orDefault("tools.exec.timeout", &t.Exec.Timeout, 60); err != nil {
		return err
	}
	if err := orDefault("tools.web.fetch.timeout", &t.Web.Fetch.Timeout, 30); err != nil {
		return err
	}
	if err := orDefault("tools.web.fetch.max_bytes", &t.Web.Fetch.MaxBytes, 1<<20); err != nil {
		return err
	}
	if t.Web.Search.MaxResults > 20 {
		return fmt.Errorf("tools.web.search.max_results must be between 0 and 20, got %d", t.Web.Search.MaxResults)
	}
	return orDefault("tools.web.search.max_results", &t.Web.Search.MaxResults, 5)
}

func (c *Config) validateController() error {
	ctrl := &c.Controller
	if err := orDefault("controller.output_limit", &ctrl.OutputLimit, 4000); err != nil {
		return err
	}
	if ctrl.ApprovalTTL < 0 {
		return fmt.Errorf("controller.approval_ttl must not be negative, got %d", ctrl.ApprovalTTL)
	}
	if strings.TrimSpace(ctrl.InitialMode) == "" {
		ctrl.InitialMode = string(mode.Normal)
	}
	m, err := mode.Parse(ctrl.InitialMode)
	if err != nil {
		return fmt.Errorf("controller.initial_mode: %w", err)
	}
	ctrl.InitialMode = string(m)
	return nil
}

// InitialMode returns the parsed start-up mode. Validate must have succeeded.
func (c *Config) InitialMode() mode.Mode {
	m, err := mode.Parse(c.Controller.InitialMode)
	if err != nil {
		return mode.Normal
	}
	return m
}

// ExecTimeout returns the exec tool timeout.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.Tools.Exec.Timeout) * time.Second
}

// FetchTimeout returns the web tool request timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Tools.Web.Fetch.Timeout) * time.Second
}

// ApprovalTTL returns how long an approval prompt stays open; zero means no limit.
func (c *Config) ApprovalTTL() time.Duration {
	return time.Duration(c.Controller.ApprovalTTL) * time.Second
}

// WorkspacePath returns the expanded workspace path
func (c *Config) WorkspacePath() string {
	path, err := c.WorkspacePathChecked()
	if err != nil {
		return filepath.Join(ConfigDir(), "workspace")
	}
	return path
}

// WorkspacePathChecked returns the expanded workspace path or an error if invalid.
func (c *Config) WorkspacePathChecked() (string, error) {
	wsMode := strings.TrimSpace(c.Agents.Defaults.WorkspaceMode)
	if strings.EqualFold(wsMode, "default") {
		return filepath.Join(ConfigDir(), "workspace"), nil
	}
	if wsMode == "" || strings.EqualFold(wsMode, "cwd") {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve cwd: %w", err)
		}
		return wd, nil
	}
	if !strings.EqualFold(wsMode, "path") {
		return "", fmt.Errorf("unknown workspace_mode: %s", wsMode)
	}
	if c.Agents.Defaults.Workspace == "" {
		return "", fmt.Errorf("workspace is required when workspace_mode=path")
	}
	if c.Agents.Defaults.Workspace[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory for workspace path: %w", err)
		}
		rest := c.Agents.Defaults.Workspace[1:]
		rest = strings.TrimPrefix(rest, string(filepath.Separator))
		rest = strings.TrimPrefix(rest, "/")
		return filepath.Join(homeDir, rest), nil
	}
	return filepath.Abs(c.Agents.Defaults.Workspace)
}

// StateDir returns where approvals, audit events and metrics are kept for a workspace.
func StateDir(workspace string) string {
	return filepath.Join(workspace, ".tether", "state")
}
