package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"incidentkb/internal/server"
	"incidentkb/internal/usecase"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the incident tools over HTTP",
	Long: `Start an HTTP server exposing ingestion, the incident tools and, when a
planner is configured, question answering.

Examples:
  incidentkb serve
  incidentkb serve --addr 0.0.0.0:8088`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var ask *usecase.AskUseCase
	if asker, err := a.asker(); err != nil {
		a.logger.Warn("ask endpoint disabled", zap.Error(err))
	} else {
		ask = asker
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.ServerAddr()
	}
	srv := server.NewServer(a.memory, a.tools, a.ingest, ask, addr, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return a.report(err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
