package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"strider/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the strider gateway server",
		Long: `Start the strider gateway server.

This command starts the HTTP gateway that provides:
- REST API endpoints for launching and inspecting runs
- WebSocket streaming of live run events
- The cron task scheduler (when enabled in config)

The server listens on the configured host and port (default: 127.0.0.1:8080).`,
		Example: `  # Start server with default configuration
  strider serve

  # Start server on a custom port
  strider serve --port 9090

  # Start server with verbose logging
  strider serve --verbose`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	log := cliCtx.Logger

	log.Info().Msg("Starting strider server...")

	srv, err := server.NewServer(server.ServerConfig{
		ConfigPath:  cliCtx.ConfigPath,
		StoragePath: cliCtx.StoragePath,
		Version:     Version,
		Logger:      *log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Flag overrides apply to the server's own config copy.
	cfg := srv.Config()
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Gateway.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Gateway.Host = host
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info().
		Str("address", fmt.Sprintf("http://%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)).
		Msg("Server started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("Shutting down server...")
	case err := <-srv.ErrorChan():
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			return err
		}
	}

	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}
