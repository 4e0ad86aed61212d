// Package kiosk runs the access station: every valid card read registers one
// access, with no multi-read consensus.
package kiosk

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/siae-sistema/cardlink/internal/capture"
	"github.com/siae-sistema/cardlink/internal/models"
	"github.com/siae-sistema/cardlink/internal/storage"
)

// queueSize bounds reads waiting for the registrar.
const queueSize = 8

var ErrBusy = errors.New("too many reads waiting for registration")

// Registrar records an access for a card UID.
type Registrar interface {
	RegisterAccess(ctx context.Context, uid string) (models.Access, error)
}

type Status int

const (
	StatusRegistered Status = iota
	StatusDuplicate
	StatusUnknown
	StatusMalformed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "registered"
	case StatusDuplicate:
		return "duplicate"
	case StatusUnknown:
		return "unknown"
	case StatusMalformed:
		return "malformed"
	default:
		return "failed"
	}
}

// Result is the outcome of one card read.
type Result struct {
	UID    capture.UID
	Status Status
	Access models.Access
	Err    error
}

type Config struct {
	UIDLength     int
	Debounce      time.Duration
	FocusInterval time.Duration
}

// Kiosk reads cards from a Field and registers each valid read.
type Kiosk struct {
	cfg      Config
	field    capture.Field
	reg      Registrar
	onResult func(Result)
	metrics  *Metrics

	inputs  chan string
	queue   chan capture.UID
	results chan Result
	done    chan struct{}
}

// New creates a kiosk. onResult is called from the Run goroutine.
func New(cfg Config, field capture.Field, reg Registrar, onResult func(Result), metrics *Metrics) *Kiosk {
	if cfg.UIDLength <= 0 {
		cfg.UIDLength = capture.DefaultUIDLength
	}
	return &Kiosk{
		cfg:      cfg,
		field:    field,
		reg:      reg,
		onResult: onResult,
		metrics:  metrics,
		inputs:   make(chan string),
		queue:    make(chan capture.UID, queueSize),
		results:  make(chan Result),
		done:     make(chan struct{}),
	}
}

// Input delivers the field's full value after a change.
func (k *Kiosk) Input(value string) {
	select {
	case k.inputs <- value:
	case <-k.done:
	}
}

// Run reads and registers cards until ctx is cancelled.
func (k *Kiosk) Run(ctx context.Context) error {
	defer close(k.done)

	debounce := capture.NewDebouncer(k.cfg.Debounce)
	defer debounce.Stop()
	focus := capture.NewFocusDaemon(k.field, k.cfg.FocusInterval)
	focus.Arm()
	defer focus.Disarm()

	workCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Go(func() { k.work(workCtx) })
	defer wg.Wait()
	defer cancel()

	k.retain(focus)
	slog.Info("Access kiosk ready")

	var pending string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v := <-k.inputs:
			pending = v
			if v != "" {
				debounce.Touch()
			}
		case <-debounce.C():
			debounce.Fired()
			if k.complete(pending) {
				pending = ""
			}
		case <-focus.C():
			k.retain(focus)
		case r := <-k.results:
			k.report(r)
		}
	}
}

// complete handles a finished burst and reports whether it was consumed.
func (k *Kiosk) complete(burst string) bool {
	uid, err := capture.Validate(burst, k.cfg.UIDLength)
	switch {
	case errors.Is(err, capture.ErrIncomplete):
		slog.Debug("Burst too short, waiting for more input", "pending", burst)
		return false
	case err != nil:
		k.field.Clear()
		k.report(Result{Status: StatusMalformed, Err: err})
		return true
	}

	k.field.Clear()
	select {
	case k.queue <- uid:
	default:
		k.report(Result{UID: uid, Status: StatusFailed, Err: ErrBusy})
	}
	return true
}

func (k *Kiosk) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case uid := <-k.queue:
			access, err := k.reg.RegisterAccess(ctx, string(uid))
			r := Result{UID: uid, Status: classify(err), Access: access, Err: err}
			select {
			case k.results <- r:
			case <-ctx.Done():
				return
			}
		}
	}
}

func classify(err error) Status {
	switch {
	case err == nil:
		return StatusRegistered
	case errors.Is(err, storage.ErrDuplicateAccess):
		return StatusDuplicate
	case errors.Is(err, storage.ErrCardNotFound):
		return StatusUnknown
	default:
		return StatusFailed
	}
}

func (k *Kiosk) report(r Result) {
	k.metrics.read(r.Status)
	switch r.Status {
	case StatusRegistered:
		slog.Info("Access registered", "uid", r.UID, "at", r.Access.RecordedAt)
	case StatusDuplicate:
		slog.Info("Access already registered today", "uid", r.UID, "at", r.Access.RecordedAt)
	case StatusUnknown:
		slog.Warn("Card is not linked", "uid", r.UID)
	case StatusMalformed:
		slog.Info("Rejected malformed card read", "err", r.Err)
	default:
		slog.Error("Failed to register access", "uid", r.UID, "err", r.Err)
	}
	if k.onResult != nil {
		k.onResult(r)
	}
}

func (k *Kiosk) retain(focus *capture.FocusDaemon) {
	changed, err := focus.Retain()
	if err != nil {
		slog.Warn("Unable to focus reader input", "err", err)
		return
	}
	if changed {
		slog.Debug("Reader input refocused")
	}
}
