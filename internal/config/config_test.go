package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Kernel.StartupTimeout != 30*time.Second {
		t.Errorf("startup timeout = %v, want 30s", cfg.Kernel.StartupTimeout)
	}
	if cfg.Output.TruncateLimit != 4000 {
		t.Errorf("truncate limit = %d, want 4000", cfg.Output.TruncateLimit)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	ws := t.TempDir()
	dir := filepath.Join(ws, ".gobook")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := `kernel:
  startup_timeout: 5s
notebook:
  watch_file: true
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Kernel.StartupTimeout != 5*time.Second {
		t.Errorf("startup timeout = %v, want 5s", cfg.Kernel.StartupTimeout)
	}
	// Unset fields keep defaults.
	if cfg.Kernel.KeepaliveInterval != 30*time.Second {
		t.Errorf("keepalive = %v, want default 30s", cfg.Kernel.KeepaliveInterval)
	}
	if !cfg.Notebook.WatchFile {
		t.Error("watch_file should be true")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	ws := t.TempDir()
	cfg := Default()
	cfg.Kernel.StartupTimeout = 7 * time.Second
	cfg.Store.DatabasePath = "history.db"

	if err := cfg.Save(ws); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(ws)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Kernel.StartupTimeout != 7*time.Second {
		t.Errorf("startup timeout = %v, want 7s", loaded.Kernel.StartupTimeout)
	}
	if loaded.Store.DatabasePath != "history.db" {
		t.Errorf("database path = %q", loaded.Store.DatabasePath)
	}
}
