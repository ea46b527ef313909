package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/server"
)

var serveConfig string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve terminal sessions over HTTP and WebSocket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(serveConfig)
		if err != nil {
			return err
		}

		srv, err := server.NewServer(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errChan := make(chan error, 1)
		go func() {
			errChan <- srv.Run()
		}()

		var runErr error
		select {
		case <-ctx.Done():
		case runErr = <-errChan:
		}

		shutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Close(shutdown); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "YAML configuration file")
}
