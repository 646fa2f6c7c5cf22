package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/shellbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/shellbridge/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		configFile string
		port       string
		host       string
		dev        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if configFile != "" {
				if err := cfg.ApplyFile(configFile); err != nil {
					return err
				}
			}
			// CLI flags override env vars and the config file
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("dev") {
				cfg.Logging.Development = dev
				if dev {
					cfg.Logging.Level = "debug"
				}
			}
			return runServer(cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file (overrides "+config.FileEnv+")")
	cmd.Flags().StringVarP(&port, "port", "p", "8000", "Server port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Development mode (colored logs, debug level)")
	return cmd
}

func runServer(cfg *config.Config) error {
	srv, err := server.NewServer(cfg, server.Deps{})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		if err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
