package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gobook/internal/bridge"
	"gobook/internal/config"
	"gobook/internal/kernel"
	"gobook/internal/logging"
	"gobook/internal/notebook"
	"gobook/internal/store"
)

var version = "0.1.0"

var (
	// Global flags
	verbose   bool
	workspace string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gobook",
	Short: "gobook - collaborative Go notebook engine",
	Long: `gobook runs Go notebooks: ordered documents of code and markdown cells
executed against a persistent, sandboxed interpreter session. State defined
by one cell is visible to the next, like a REPL with a transcript.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if workspace == "" {
			if workspace, err = os.Getwd(); err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}
		return logging.Initialize(workspace)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Close()
	},
}

// runCmd executes a notebook file headlessly
var runCmd = &cobra.Command{
	Use:   "run [notebook-file]",
	Short: "Execute every code cell of a notebook and print the transcript",
	Long: `Loads a notebook file, starts a fresh interpreter session, executes the
code cells top to bottom (each sees the side effects of the ones before it),
prints the transcript, and saves the result back to the file.

Cells that fail are reported and the run continues; the exit code is non-zero
if any cell failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runNotebook,
}

// historyCmd lists recent executions
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent cell executions from the history store",
	RunE:  showHistory,
}

// versionCmd prints the version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gobook version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gobook %s\n", version)
	},
}

var historyLimit int

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall run timeout")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of executions to show")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runNotebook executes every code cell of the given file in order.
func runNotebook(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := args[0]
	logger.Info("Running notebook", zap.String("path", path))

	b := bridge.New(bridge.Config{
		ScratchDir:   cfg.Bridge.ScratchDir,
		ExtraImports: cfg.Bridge.ExtraImports,
	})
	defer b.Close()

	km := kernel.NewManager(b, cfg.Kernel)
	defer km.Close(context.Background())

	if err := km.CreateSession(ctx); err != nil {
		if se := km.LastError(); se != nil {
			return fmt.Errorf("kernel session failed: %s", se.Message())
		}
		return fmt.Errorf("kernel session failed: %w", err)
	}

	nb, err := notebook.Load(path, km, cfg.Notebook, cfg.Output)
	if err != nil {
		return err
	}
	defer nb.Close()
	nb.Bind(path)

	if cfg.Store.DatabasePath != "" {
		hs, err := store.Open(cfg.Store.DatabasePath)
		if err != nil {
			logger.Warn("History store unavailable", zap.Error(err))
		} else {
			defer hs.Close()
			nb.SetHistoryRecorder(hs)
		}
	}

	if cfg.Notebook.WatchFile {
		fw, err := notebook.NewFileWatcher(path, func() {
			logger.Warn("Notebook file changed on disk during the run; saving will overwrite the external edit", zap.String("path", path))
		})
		if err != nil {
			logger.Warn("File watcher unavailable", zap.Error(err))
		} else if err := fw.Start(ctx); err != nil {
			logger.Warn("File watcher unavailable", zap.Error(err))
		} else {
			defer fw.Stop()
		}
	}

	if nb.Len() == 0 {
		fmt.Println("notebook is empty")
		return nil
	}

	if err := nb.RunAllCells(ctx); err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	failed := printTranscript(nb)

	if err := nb.Save(path); err != nil {
		return fmt.Errorf("failed to save notebook: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d cell(s) failed", failed)
	}
	return nil
}

// printTranscript writes the post-run document to stdout and returns the
// number of failed code cells.
func printTranscript(nb *notebook.Notebook) int {
	failed := 0
	for _, c := range nb.Cells() {
		switch c.Type {
		case notebook.CellCode:
			header := fmt.Sprintf("In [%d]:", c.ExecutionCount)
			if c.ExecutionState == notebook.ExecError {
				header = "In [!]:"
				failed++
			}
			fmt.Println(header)
			fmt.Println(indent(c.Content))
			if summary, ok := nb.OutputSummary(c.ID); ok && summary != "" {
				fmt.Println("Out:")
				fmt.Println(indent(summary))
			}
		case notebook.CellMarkdown, notebook.CellText:
			fmt.Println(c.Content)
		}
		fmt.Println()
	}
	return failed
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}

// showHistory prints recent executions from the sqlite history store.
func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Store.DatabasePath == "" {
		return fmt.Errorf("history recording is disabled (store.database_path is empty)")
	}

	hs, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer hs.Close()

	records, err := hs.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no executions recorded")
		return nil
	}

	for _, r := range records {
		status := "ok"
		if !r.Success {
			status = "ERR"
		}
		code := r.Code
		if idx := strings.IndexByte(code, '\n'); idx >= 0 {
			code = code[:idx] + " ..."
		}
		fmt.Printf("%s  [%s]  %4dms  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), status, r.DurationMs, code)
	}
	return nil
}
