package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rescue/internal/app"
	"rescue/internal/platform/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and notification hub",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer telemetry.Shutdown(context.WithoutCancel(ctx), shutdownTracing, log)

	a, err := app.New(ctx, cfg, log, true)
	if err != nil {
		log.ErrorContext(ctx, "startup failed", "error", err)
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}
