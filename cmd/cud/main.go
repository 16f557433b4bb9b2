// Package main is the entry point for the Claude usage dashboard. The root
// command runs the TUI; subcommands cover headless serving and maintenance.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-usage-dashboard/internal/app"
	"github.com/j-veylop/claude-usage-dashboard/internal/config"
	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
	"github.com/j-veylop/claude-usage-dashboard/internal/services"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/tabs/dashboard"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/tabs/history"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/tabs/info"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/tabs/tokens"
	"github.com/j-veylop/claude-usage-dashboard/internal/version"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   version.Name,
		Short: "Claude usage dashboard: quota monitor and token usage gateway",
		Long: `Shows Claude subscription quota utilization and per-session token usage.

The dashboard polls the usage API with the credentials written by the Claude
CLI and runs a local HTTP gateway that accepts token reports from hooks.

Keyboard shortcuts:
  1-4             Switch between tabs (Usage, History, Tokens, Info)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Navigate lists
  r               Refresh data
  ?               Toggle help
  q, Ctrl+C       Quit`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context())
		},
	}
	root.SetVersionTemplate(version.Info() + "\n")

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <data dir>/config.yaml)")

	root.AddCommand(
		serveCmd(),
		compactCmd(),
		statsCmd(),
		secretCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig reads the configuration and points the logger at w.
func loadConfig(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat, w)
	return cfg, nil
}

// openLogFile returns the log destination while the TUI owns the terminal.
func openLogFile(cfg *config.Config) (io.WriteCloser, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	return os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

func runTUI(ctx context.Context) error {
	cfg, err := loadConfig(io.Discard)
	if err != nil {
		return err
	}
	if f, err := openLogFile(cfg); err == nil {
		defer f.Close()
		logger.Setup(cfg.LogLevel, cfg.LogFormat, f)
	}

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	if err := mgr.StartGateway(ctx); err != nil {
		logger.Warn("token gateway not started", "error", err)
	}

	model := app.NewModel(mgr)
	state := model.GetState()
	model.SetTabs([]app.Tab{
		dashboard.New(state),
		history.New(state, mgr),
		tokens.New(state, mgr),
		info.New(state, mgr),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		if _, ok := <-sigChan; ok {
			p.Send(tea.Quit())
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
