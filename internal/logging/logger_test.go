package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, ws, content string) {
	t.Helper()
	dir := filepath.Join(ws, ".gobook")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestInitializeWithoutConfig(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(Close)

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if IsDebugMode() {
		t.Error("debug mode should default to off without config")
	}

	// Logging must be a silent no-op in production mode.
	Get(CategoryKernel).Info("should not be written")
	if _, err := os.Stat(filepath.Join(ws, ".gobook", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not exist in production mode")
	}
}

func TestCategoryFiltering(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(Close)

	writeConfig(t, ws, `logging:
  debug_mode: true
  level: debug
  categories:
    kernel: true
    bridge: false
`)
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !IsCategoryEnabled(CategoryKernel) {
		t.Error("kernel category should be enabled")
	}
	if IsCategoryEnabled(CategoryBridge) {
		t.Error("bridge category should be disabled")
	}
	// Unlisted categories default to enabled in debug mode.
	if !IsCategoryEnabled(CategoryNotebook) {
		t.Error("unlisted category should default to enabled")
	}
}

func TestLogFileWritten(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(Close)

	writeConfig(t, ws, `logging:
  debug_mode: true
  level: debug
`)
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Kernel("session %s created", "abc")
	Close()

	entries, err := os.ReadDir(filepath.Join(ws, ".gobook", "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_kernel.log") {
			data, err := os.ReadFile(filepath.Join(ws, ".gobook", "logs", e.Name()))
			if err != nil {
				t.Fatalf("read log: %v", err)
			}
			if !strings.Contains(string(data), "session abc created") {
				t.Errorf("log content missing message: %q", string(data))
			}
			found = true
		}
	}
	if !found {
		t.Error("kernel log file not written")
	}
}
