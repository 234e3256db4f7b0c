package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio/abilliotest"
	"github.com/information-sharing-networks/abillio-demo/internal/config"
	"github.com/information-sharing-networks/abillio-demo/internal/logger"
	"github.com/information-sharing-networks/abillio-demo/internal/server"
	"github.com/information-sharing-networks/abillio-demo/internal/version"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	// the distroless image has no CA bundle
	_ "golang.org/x/crypto/x509roots/fallback"
)

// @title			abillio demo
// @description	Demo site and signed proxy for the abillio API
// @license.name	MIT
// @host			localhost:3000
// @accept			json
// @produce		json
func main() {
	cmd := &cobra.Command{
		Use:   "abillio-demo",
		Short: "abillio API demo server",
		Long: `Serves the abillio demo pages and a signed proxy to the abillio API.

Configuration is read from the environment (ABILLIO_API_URL, ABILLIO_API_KEY, ABILLIO_API_SECRET, PORT ...).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	cmd.Version = version.Get().String()

	cmd.AddCommand(newRequestCommand(), newMockUpstreamCommand(), newLoadCommand())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and creates the logger used by every command
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		// the logger level is not known yet
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		return nil, nil, err
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
	slog.SetDefault(appLogger)
	return cfg, appLogger, nil
}

func run() error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}

	appLogger.Info("Starting abillio demo", slog.String("version", version.Get().Version))

	client, err := abillio.NewClient(cfg.Credentials(),
		abillio.WithTimeout(cfg.AbillioTimeout),
		abillio.WithLogger(appLogger),
	)
	if err != nil {
		appLogger.Error("Failed to create abillio client", slog.String("error", err.Error()))
		return err
	}

	srv, err := server.NewServer(cfg, appLogger, client)
	if err != nil {
		appLogger.Error("Failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Set up graceful shutdown handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// newRequestCommand sends one signed request and prints the JSON response
func newRequestCommand() *cobra.Command {
	var (
		method string
		data   string
		query  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "request <endpoint>",
		Short: "Send a signed request to the abillio API",
		Example: `  abillio-demo request services --query lang=lv --query p=2
  abillio-demo request freelancers --method POST --data '{"email": "anna@example.com"}'`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := loadConfig()
			if err != nil {
				return err
			}

			client, err := abillio.NewClient(cfg.Credentials(),
				abillio.WithTimeout(cfg.AbillioTimeout),
				abillio.WithLogger(appLogger),
			)
			if err != nil {
				return err
			}

			var payload any
			if data != "" {
				payload = json.RawMessage(data)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := client.Request(ctx, args[0], payload, strings.ToUpper(method), query)
			if err != nil {
				var apiErr *abillio.Error
				if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), string(apiErr.Body))
				}
				return err
			}

			_, err = cmd.OutOrStdout().Write(pretty.Pretty(result))
			return err
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method (GET or POST)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON object sent as the signed payload")
	cmd.Flags().StringToStringVarP(&query, "query", "q", nil, "query parameter as key=value (repeatable)")

	return cmd
}

// newMockUpstreamCommand runs a local stand-in for the abillio API that checks signatures made with the configured credentials
func newMockUpstreamCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "mock-upstream",
		Short: "Run a fake abillio API for local development",
		Long: `Runs a fake abillio API that verifies request signatures made with ABILLIO_API_KEY and ABILLIO_API_SECRET.

Point the demo at it with ABILLIO_API_URL=http://localhost:8090`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := loadConfig()
			if err != nil {
				return err
			}

			fake := abilliotest.NewFake(cfg.AbillioAPIKey, cfg.AbillioAPISecret)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           fake,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serverErr := make(chan error, 1)
			go func() {
				appLogger.Info("mock abillio API listening", slog.String("address", addr))
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					serverErr <- err
				}
			}()

			select {
			case err := <-serverErr:
				return fmt.Errorf("mock upstream failed to start: %w", err)
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8090", "listen address")

	return cmd
}
