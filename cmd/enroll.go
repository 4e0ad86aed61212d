package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/siae-sistema/cardlink/internal/capture"
	"github.com/siae-sistema/cardlink/internal/wedge"
	"github.com/spf13/cobra"
)

func newEnrollCmd(g *globalFlags) *cobra.Command {
	var (
		studentID string
		name      string
		device    string
	)

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Link a card to a student from the terminal",
		Long: `Captures a card UID and links it to a student.

The card must be tapped three times; the UID is accepted only when all three
reads agree. Without --device the reader is expected to type into this terminal.`,
		Example: `  # Enroll with a reader typing into the terminal
  cardlink enroll --student A0123 --name "Ana Torres"

  # Enroll with a reader grabbed through evdev
  cardlink enroll --student A0123 --device /dev/input/event5`,
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

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			p := &progress{w: out}
			result := make(chan error, 1)
			field := wedge.NewField()

			var ctrl *capture.Controller
			ctrl = capture.NewController(cfg.Capture(), field, capture.Hooks{
				OnAccepted: func(uid capture.UID) {
					go func() {
						ctrl.SetSaving(true)
						err := svc.LinkCard(ctx, studentID, string(uid))
						ctrl.SetSaving(false)
						if err == nil {
							fmt.Fprintf(out, "Linked card %s to %s\n", uid, studentID)
						}
						result <- err
					}()
				},
				OnChange: p.update,
			}, nil)
			field.OnChange(ctrl.Input)

			done := make(chan struct{})
			go func() {
				defer close(done)
				ctrl.Run(ctx)
			}()
			defer func() {
				cancel()
				<-done
			}()

			if err := startReader(ctx, device, field); err != nil {
				return err
			}

			target := name
			if target == "" {
				target = studentID
			}
			ctrl.Open(target)
			fmt.Fprintf(out, "Tap the card for %s %d times\n", target, capture.RequiredReads)

			select {
			case err := <-result:
				ctrl.Close()
				if err != nil {
					return fmt.Errorf("failed to link card: %w", err)
				}
				return nil
			case <-ctx.Done():
				slog.Info("Enrollment cancelled", "student_id", studentID)
				if errors.Is(ctx.Err(), context.Canceled) {
					return nil
				}
				return ctx.Err()
			}
		},
	}

	cmd.Flags().StringVarP(&studentID, "student", "s", "", "Student ID to link the card to")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name shown while capturing")
	cmd.Flags().StringVarP(&device, "device", "d", "", "evdev device of the reader (overrides reader.device)")
	_ = cmd.MarkFlagRequired("student")

	return cmd
}

// progress prints capture progress as snapshots change.
type progress struct {
	w    io.Writer
	mu   sync.Mutex
	last capture.Snapshot
}

func (p *progress) update(s capture.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.last = s }()

	if !s.Open {
		return
	}
	if s.Count > p.last.Count && s.Count <= len(s.Readings) {
		fmt.Fprintf(p.w, "Read %d/%d: %s\n", s.Count, s.Required, s.Readings[s.Count-1])
	}
	if s.LastError != "" && s.LastError != p.last.LastError {
		fmt.Fprintln(p.w, s.LastError)
	}
	if s.Phase == capture.PhaseAccepted && p.last.Phase != capture.PhaseAccepted {
		fmt.Fprintf(p.w, "Card %s verified\n", s.UID)
	}
	if s.Saving && !p.last.Saving {
		fmt.Fprintln(p.w, "Saving...")
	}
}
