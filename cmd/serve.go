package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/siae-sistema/cardlink/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web enrollment station",
		Long: `Starts the card enrollment station on the specified port.

The station page keeps a hidden input focused for the card reader. An operator
starts an enrollment for a student, the student taps the card three times, and
the verified UID is linked through the local store or the attendance backend.`,
		Example: `  # Start server on the configured port (8888 by default)
  cardlink serve

  # Start server on custom port, linking through the backend
  cardlink serve --port 3000 --backend http://127.0.0.1:8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if port == "" {
				port = cfg.Server.Port
			}

			svc, closeSvc, err := openService(cfg)
			if err != nil {
				return err
			}
			defer closeSvc()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			handler := handlers.New(cfg.Capture(), svc, reg)
			stationDone := make(chan struct{})
			go func() {
				defer close(stationDone)
				if err := handler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("Capture station stopped", "err", err)
				}
			}()

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: handler.Routes(reg),
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Enrollment station available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelShutdown()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				cancel()
				<-stationDone
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides server.port)")

	return cmd
}
