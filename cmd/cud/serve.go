package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
	"github.com/j-veylop/claude-usage-dashboard/internal/services"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the usage poller and token gateway without the TUI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mgr, err := services.NewManager(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer func() {
				if closeErr := mgr.Close(); closeErr != nil {
					logger.Error("error closing services", "error", closeErr)
				}
			}()

			if err := startGateway(ctx, mgr); err != nil {
				return err
			}
			logger.Info("serving", "poll_interval", cfg.PollInterval, "storage", mgr.StorageEnabled())

			<-ctx.Done()
			logger.Info("shutting down")
			return nil
		},
	}
}

type gatewayStarter interface {
	StartGateway(ctx context.Context) error
	GatewayAddr() net.Addr
}

// startGateway starts the token gateway. Without storage there is nothing
// to ingest into, so serve keeps polling and only logs.
func startGateway(ctx context.Context, gw gatewayStarter) error {
	err := gw.StartGateway(ctx)
	switch {
	case errors.Is(err, services.ErrStorageDisabled):
		logger.Warn("token gateway disabled, storage unavailable", "error", err)
		return nil
	case err != nil:
		return fmt.Errorf("failed to start token gateway: %w", err)
	}
	logger.Info("token gateway listening", "addr", gw.GatewayAddr().String())
	return nil
}
