// Package config holds all gobook configuration, loaded from .gobook/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gobook configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Kernel session management
	Kernel KernelConfig `yaml:"kernel"`

	// Sandbox bridge
	Bridge BridgeConfig `yaml:"bridge"`

	// Notebook document
	Notebook NotebookConfig `yaml:"notebook"`

	// Output normalization
	Output OutputConfig `yaml:"output"`

	// Execution history store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// KernelConfig configures the kernel session manager.
type KernelConfig struct {
	// StartupTimeout bounds session creation. On expiry the manager
	// transitions to error with a retryable cause.
	StartupTimeout time.Duration `yaml:"startup_timeout"`

	// ExecuteTimeout is the default per-execution timeout.
	ExecuteTimeout time.Duration `yaml:"execute_timeout"`

	// KeepaliveInterval is the fixed keepalive ping interval.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`

	// StuckThreshold is the advisory stuck-detection timer. It only raises
	// a flag for user messaging, never forces a transition.
	StuckThreshold time.Duration `yaml:"stuck_threshold"`
}

// BridgeConfig configures the sandboxed interpreter worker.
type BridgeConfig struct {
	// ScratchDir is the sandbox working directory root. Empty means a
	// per-kernel temp directory.
	ScratchDir string `yaml:"scratch_dir"`

	// ExtraImports extends the stdlib import whitelist.
	ExtraImports []string `yaml:"extra_imports"`
}

// NotebookConfig configures the cell document model.
type NotebookConfig struct {
	// AutosaveDelay is the debounce window collapsing bursts of edits.
	AutosaveDelay time.Duration `yaml:"autosave_delay"`

	// WatchFile enables fsnotify reload events for external edits.
	WatchFile bool `yaml:"watch_file"`
}

// OutputConfig configures the output normalizer.
type OutputConfig struct {
	// TruncateLimit is the max bytes of a text output kept for transcript use.
	TruncateLimit int `yaml:"truncate_limit"`
}

// StoreConfig configures the execution history store.
type StoreConfig struct {
	// DatabasePath is the sqlite file. Empty disables history recording.
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Name:    "gobook",
		Version: "0.1.0",
		Kernel: KernelConfig{
			StartupTimeout:    30 * time.Second,
			ExecuteTimeout:    5 * time.Minute,
			KeepaliveInterval: 30 * time.Second,
			StuckThreshold:    2 * time.Minute,
		},
		Notebook: NotebookConfig{
			AutosaveDelay: time.Second,
			WatchFile:     false,
		},
		Output: OutputConfig{
			TruncateLimit: 4000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the workspace's .gobook/config.yaml,
// applying defaults for anything unset. A missing file is not an error.
func Load(workspace string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(workspace, ".gobook", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Kernel.StartupTimeout == 0 {
		c.Kernel.StartupTimeout = d.Kernel.StartupTimeout
	}
	if c.Kernel.ExecuteTimeout == 0 {
		c.Kernel.ExecuteTimeout = d.Kernel.ExecuteTimeout
	}
	if c.Kernel.KeepaliveInterval == 0 {
		c.Kernel.KeepaliveInterval = d.Kernel.KeepaliveInterval
	}
	if c.Kernel.StuckThreshold == 0 {
		c.Kernel.StuckThreshold = d.Kernel.StuckThreshold
	}
	if c.Notebook.AutosaveDelay == 0 {
		c.Notebook.AutosaveDelay = d.Notebook.AutosaveDelay
	}
	if c.Output.TruncateLimit == 0 {
		c.Output.TruncateLimit = d.Output.TruncateLimit
	}
}

// Save writes the configuration to the workspace's .gobook/config.yaml.
func (c *Config) Save(workspace string) error {
	dir := filepath.Join(workspace, ".gobook")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644)
}
