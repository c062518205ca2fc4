package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the streaming sync endpoint without the scheduler",
	Long:  "Starts only the HTTP server: POST /api/sync/stream for interactive runs, GET /api/runs for history.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := mustApp(ctx, false, logger)
	defer a.Close()

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	if err := server.New(a.orch, a.store, a.notify, logger).ListenAndServe(ctx, addr); err != nil {
		logger.Error("server error", "error", err)
		a.Close()
		os.Exit(1)
	}
	logger.Info("goodbye")
	return nil
}
