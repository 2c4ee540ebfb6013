package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		port     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "roomchat-server",
		Short: "Run the room chat WebSocket server",
		Long: `roomchat-server serves room-based chat over WebSocket.

Configuration is read from the environment (and a .env file when present).
Flags override the matching variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env file is fine.
			_ = godotenv.Load()

			cfg, err := server.NewConfigFromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return run(cmd.Context(), *cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", ":8080", "listen address, overrides SERVER_PORT")
	cmd.Flags().StringVar(&logLevel, "log-level", "INFO", "DEBUG, INFO, WARN or ERROR, overrides LOG_LEVEL")
	return cmd
}

func run(ctx context.Context, cfg server.Config) error {
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := server.New(cfg, log)
	if err != nil {
		return err
	}
	cfg = s.Config()
	log.Info("Starting room chat server",
		"port", cfg.Port,
		"origins", cfg.AllowedOrigins,
		"reap_policy", cfg.ReapPolicy,
		"history_limit", cfg.HistoryLimit,
	)

	s.Start()
	httpServer := server.CreateServer(cfg.Port, s.Routes())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer, log)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			_ = s.Shutdown(cfg.ShutdownTimeout)
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	return errors.Join(
		server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log),
		s.Shutdown(cfg.ShutdownTimeout),
	)
}
