package capture

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSubmitDelay leaves the accepted UID on screen briefly before handing it off.
const DefaultSubmitDelay = 200 * time.Millisecond

// Config holds the reader-specific tunables of the capture protocol.
type Config struct {
	UIDLength     int
	Debounce      time.Duration
	SubmitDelay   time.Duration // zero submits immediately
	FocusInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		UIDLength:     DefaultUIDLength,
		Debounce:      DefaultDebounce,
		SubmitDelay:   DefaultSubmitDelay,
		FocusInterval: DefaultFocusInterval,
	}
}

// Hooks are called from the controller's event loop. They must not block and
// must not call back into the Controller synchronously.
type Hooks struct {
	// OnAccepted receives the agreed UID, once per successful session.
	OnAccepted func(UID)
	// OnClose is called when the operator dismisses the dialog.
	OnClose func()
	// OnChange receives a snapshot after every state change.
	OnChange func(Snapshot)
}

type eventKind int

const (
	evOpen eventKind = iota
	evInput
	evSaving
	evDismiss
	evClose
	evSnapshot
)

type event struct {
	kind  eventKind
	text  string
	flag  bool
	reply chan Snapshot
}

// attempt is a session together with every timer acting on it.
// Dropping the attempt after stop() is the only way a session ends.
type attempt struct {
	session   *Session
	debounce  *Debouncer
	focus     *FocusDaemon
	submit    *time.Timer
	submitted bool
}

func (a *attempt) submitC() <-chan time.Time {
	if a.submit == nil {
		return nil
	}
	return a.submit.C
}

func (a *attempt) stop() {
	a.debounce.Stop()
	a.focus.Disarm()
	if a.submit != nil {
		a.submit.Stop()
		a.submit = nil
	}
}

// Controller runs the capture protocol for one dialog on a single event loop.
// All session state is owned by the goroutine executing Run.
type Controller struct {
	cfg     Config
	field   Field
	hooks   Hooks
	metrics *Metrics

	events chan event
	done   chan struct{}
	cur    *attempt
}

func NewController(cfg Config, field Field, hooks Hooks, metrics *Metrics) *Controller {
	if cfg.UIDLength <= 0 {
		cfg.UIDLength = DefaultUIDLength
	}
	return &Controller{
		cfg:     cfg,
		field:   field,
		hooks:   hooks,
		metrics: metrics,
		events:  make(chan event),
		done:    make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled. It must be called exactly once.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.teardown("shutdown")

	for {
		var debounceC, submitC, focusC <-chan time.Time
		if a := c.cur; a != nil {
			debounceC = a.debounce.C()
			submitC = a.submitC()
			focusC = a.focus.C()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ev)
		case <-debounceC:
			c.completeBurst()
		case <-submitC:
			c.submitAccepted()
		case <-focusC:
			c.retainFocus()
		}
	}
}

// Open starts a new session for target, discarding any current one.
func (c *Controller) Open(target string) {
	c.post(event{kind: evOpen, text: target})
}

// Input delivers an input-changed event carrying the field's full value.
func (c *Controller) Input(value string) {
	c.post(event{kind: evInput, text: value})
}

// SetSaving marks whether the caller is persisting the accepted UID.
func (c *Controller) SetSaving(saving bool) {
	c.post(event{kind: evSaving, flag: saving})
}

// Dismiss reports that the operator asked to close the dialog.
func (c *Controller) Dismiss() {
	c.post(event{kind: evDismiss})
}

// Close discards the current session and cancels all of its timers.
func (c *Controller) Close() {
	c.post(event{kind: evClose})
}

// Snapshot returns the current state. A stopped controller reports a closed session.
func (c *Controller) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !c.post(event{kind: evSnapshot, reply: reply}) {
		return closedSnapshot()
	}
	return <-reply
}

func (c *Controller) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evOpen:
		c.open(ev.text)
	case evInput:
		c.input(ev.text)
	case evSaving:
		c.setSaving(ev.flag)
	case evDismiss:
		if c.cur != nil && c.hooks.OnClose != nil {
			c.hooks.OnClose()
		}
	case evClose:
		if c.cur != nil {
			slog.Info("Capture session closed", "target", c.cur.session.Target())
		}
		c.teardown("closed")
		c.notify()
	case evSnapshot:
		ev.reply <- c.snapshot()
	}
}

func (c *Controller) open(target string) {
	c.teardown("reopened")
	c.cur = &attempt{
		session:  NewSession(target, c.cfg.UIDLength),
		debounce: NewDebouncer(c.cfg.Debounce),
		focus:    NewFocusDaemon(c.field, c.cfg.FocusInterval),
	}
	c.field.Clear()
	c.cur.focus.Arm()
	slog.Info("Capture session opened", "target", target)
	c.retainFocus()
	c.notify()
}

func (c *Controller) input(value string) {
	a := c.cur
	if a == nil {
		return
	}
	if !a.session.Input(value) {
		if value != "" {
			c.field.Clear()
		}
		return
	}
	a.debounce.Touch()
	c.notify()
}

func (c *Controller) setSaving(saving bool) {
	a := c.cur
	if a == nil {
		return
	}
	a.session.SetSaving(saving)
	if saving {
		a.debounce.Stop()
		a.focus.Disarm()
	} else if a.session.Collecting() {
		a.focus.Arm()
	}
	c.notify()
}

func (c *Controller) completeBurst() {
	a := c.cur
	a.debounce.Fired()

	outcome := a.session.Complete()
	c.metrics.burst(outcome)

	switch outcome {
	case OutcomeIncomplete:
		slog.Debug("Burst too short, waiting for more input", "pending", a.session.Pending())
		return
	case OutcomeIgnored:
		c.field.Clear()
	case OutcomeMalformed:
		c.field.Clear()
		slog.Info("Rejected malformed card read", "target", a.session.Target())
	case OutcomeRead:
		c.field.Clear()
		slog.Info("Card read", "target", a.session.Target(), "count", len(a.session.Readings()))
	case OutcomeAccepted:
		c.field.Clear()
		a.focus.Disarm()
		c.metrics.session("accepted")
		uid, _ := a.session.UID()
		slog.Info("Card readings agree", "target", a.session.Target(), "uid", uid)
		if c.cfg.SubmitDelay > 0 {
			a.submit = time.NewTimer(c.cfg.SubmitDelay)
		} else {
			c.submitAccepted()
		}
	case OutcomeRejected:
		c.field.Clear()
		c.metrics.session("mismatch")
		slog.Warn("Card readings disagree, restarting capture", "target", a.session.Target())
		a.focus.Arm()
		c.retainFocus()
	}
	c.notify()
}

func (c *Controller) submitAccepted() {
	a := c.cur
	a.submit = nil
	if a.submitted {
		return
	}
	uid, ok := a.session.UID()
	if !ok {
		return
	}
	a.submitted = true
	if c.hooks.OnAccepted != nil {
		c.hooks.OnAccepted(uid)
	}
}

func (c *Controller) retainFocus() {
	a := c.cur
	if a == nil {
		return
	}
	if !a.session.Collecting() {
		a.focus.Disarm()
		return
	}
	changed, err := a.focus.Retain()
	if err != nil {
		slog.Warn("Unable to focus capture field", "err", err)
		return
	}
	if changed {
		c.metrics.reclaim()
		slog.Debug("Capture field refocused")
	}
}

func (c *Controller) teardown(reason string) {
	a := c.cur
	if a == nil {
		return
	}
	c.cur = nil
	a.stop()
	c.field.Clear()
	if _, ok := a.session.UID(); !ok {
		c.metrics.session(reason)
	}
}

func (c *Controller) notify() {
	if c.hooks.OnChange != nil {
		c.hooks.OnChange(c.snapshot())
	}
}

func (c *Controller) snapshot() Snapshot {
	if c.cur == nil {
		return closedSnapshot()
	}
	return c.cur.session.Snapshot()
}

func closedSnapshot() Snapshot {
	return Snapshot{Phase: PhaseIdle, Readings: []UID{}, Required: RequiredReads}
}
