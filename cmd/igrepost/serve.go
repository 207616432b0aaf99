package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"igrepost/pkg/logger"
	"igrepost/pkg/progress"
	"igrepost/pkg/server"
	"igrepost/pkg/ui"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status endpoint and the HTML dashboard",
	Long: `Serve GET/POST /api/progress and a dashboard page at /.

The record is kept in the first configured backend:
  - a Redis-compatible REST API (KV_REST_API_URL and KV_REST_API_TOKEN)
  - a Redis server (REDIS_URL)
  - process memory

If a persistent backend fails, the server keeps answering from memory.`,
	Example: `  # Local dashboard on port 3000, memory backed
  igrepost serve

  # Persist the record in Redis
  REDIS_URL=redis://localhost:6379/0 igrepost serve --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default 0.0.0.0)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default 3000)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"host": serveHost,
		"port": servePort,
	})
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	ctx := cmd.Context()

	store, backend, err := progress.NewStore(ctx, cfg.Server, log)
	if err != nil {
		return fmt.Errorf("failed to open status store: %w", err)
	}

	srv := server.New(store, log, server.WithBackend(backend))
	addr := cfg.Server.Addr()
	errCh := srv.Start(addr)

	ui.PrintInfo("Dashboard", fmt.Sprintf("http://%s/", addr))
	ui.PrintInfo("Backend", string(backend))

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	ui.PrintSuccess("Server stopped")
	return nil
}
