package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/siae-sistema/cardlink/internal/capture"
	"github.com/siae-sistema/cardlink/internal/kiosk"
	"github.com/siae-sistema/cardlink/internal/wedge"
	"github.com/spf13/cobra"
)

func newAccessCmd(g *globalFlags) *cobra.Command {
	var (
		device      string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "access",
		Short: "Run the access kiosk",
		Long: `Registers an access for every card tapped on the reader, at most once per
card per day, until interrupted.`,
		Example: `  # Kiosk reading from the terminal, recording in the local store
  cardlink access

  # Kiosk on an evdev reader with metrics exposed
  cardlink access --device /dev/input/event5 --metrics-addr :9100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if device == "" {
				device = cfg.Reader.Device
			}

			svc, closeSvc, err := openService(cfg)
			if err != nil {
				return err
			}
			defer closeSvc()

			var metrics *kiosk.Metrics
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				metrics = kiosk.NewMetrics(reg)
				server := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
				go func() {
					slog.Info("Kiosk metrics available", "addr", metricsAddr)
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						slog.Error("Metrics server failed", "err", err)
					}
				}()
				defer server.Close()
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			field := wedge.NewField()
			k := kiosk.New(kiosk.Config{
				UIDLength:     cfg.Reader.UIDLength,
				Debounce:      cfg.Reader.Debounce,
				FocusInterval: cfg.Reader.FocusInterval,
			}, field, svc, func(r kiosk.Result) { printResult(out, r) }, metrics)
			field.OnChange(k.Input)

			if err := startReader(ctx, device, field); err != nil {
				return err
			}
			fmt.Fprintln(out, "Tap a card to register access (Ctrl+C to stop)")

			if err := k.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "evdev device of the reader (overrides reader.device)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

func printResult(w io.Writer, r kiosk.Result) {
	switch r.Status {
	case kiosk.StatusRegistered:
		fmt.Fprintf(w, "Access registered for %s at %s\n", r.UID, r.Access.RecordedAt.Format("15:04:05"))
	case kiosk.StatusDuplicate:
		if r.Access.RecordedAt.IsZero() {
			fmt.Fprintf(w, "Access for %s was already registered today\n", r.UID)
			return
		}
		fmt.Fprintf(w, "Access for %s was already registered today at %s\n", r.UID, r.Access.RecordedAt.Format("15:04:05"))
	case kiosk.StatusUnknown:
		fmt.Fprintf(w, "Card %s is not linked. Link the card first.\n", r.UID)
	case kiosk.StatusMalformed:
		fmt.Fprintln(w, capture.MalformedMessage)
	default:
		fmt.Fprintf(w, "Failed to register access: %v\n", r.Err)
	}
}
