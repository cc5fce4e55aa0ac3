package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"private-stake-go/internal/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSweeperCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sweeper",
		Short: "Periodically retry recovery of stranded burners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			services, err := openServices(cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			s := services.NewSweeper()
			if once {
				_, err := s.RunOnce(ctx)
				return err
			}

			if addr := services.Config.Metrics.ListenAddr; addr != "" {
				go func() {
					if err := metrics.Serve(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
						zap.L().Error("Metrics server stopped", zap.Error(err))
					}
				}()
			}

			if err := s.Start(ctx); err != nil {
				return err
			}
			zap.L().Info("Press Ctrl+C to stop")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan

			zap.L().Info("Shutdown signal received, stopping sweeper...")
			cancel()

			done := make(chan struct{})
			go func() {
				s.Stop()
				close(done)
			}()

			select {
			case <-done:
				zap.L().Info("Sweeper stopped gracefully")
			case <-time.After(30 * time.Second):
				zap.L().Warn("Forced shutdown after timeout")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "sweep once and exit")
	return cmd
}
