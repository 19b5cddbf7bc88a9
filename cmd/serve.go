package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"snapshot-restore/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backup and restore HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.watchdog.Start(ctx)

	srv := server.New(a.cfg, a.logger, a.catalog, a.store, a.storage,
		a.runner, a.planner, a.executor, a.verifier)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeoutDuration())
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
