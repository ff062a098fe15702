package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenstack/greenstack/internal/api"
	"github.com/greenstack/greenstack/internal/api/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard behind the local control API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	_ = flags.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := cli.log
	cfg := cli.cfg

	addr := cfg.Server.Addr
	if flags.IsSet("server.addr") {
		addr = flags.GetString("server.addr")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	client := cli.deviceClient()
	d, err := cli.dashboard(client, func() {
		log.Info().Msg("dashboard reloaded")
	})
	if err != nil {
		return err
	}
	d.Load(ctx)
	defer func() {
		d.Close()
		d.Wait()
	}()

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		Metrics:         metrics,
		Dashboard:       d,
		Registry:        cli.registry,
		DeviceURL:       client.BaseURL(),
		ActionRateLimit: middleware.PerMinute(cfg.Server.RateLimit),
	})

	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WiFi actions wait on the device for up to the action timeout.
		WriteTimeout: cfg.Device.ActionTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("device_url", client.BaseURL()).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
