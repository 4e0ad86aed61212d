package capture

import "time"

// DefaultDebounce is the quiet interval that ends a burst on the reference reader.
const DefaultDebounce = 100 * time.Millisecond

// Debouncer signals on C once no Touch has happened for the quiet interval.
// Every Touch pushes the deadline back, so one quiet period yields one signal.
type Debouncer struct {
	quiet time.Duration
	timer *time.Timer
	armed bool
}

func NewDebouncer(quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultDebounce
	}
	return &Debouncer{quiet: quiet}
}

// Touch restarts the countdown.
func (d *Debouncer) Touch() {
	if d.timer == nil {
		d.timer = time.NewTimer(d.quiet)
	} else {
		d.timer.Reset(d.quiet)
	}
	d.armed = true
}

// C returns the channel that fires when the burst is over, or nil while idle.
// The caller must call Fired after receiving from it.
func (d *Debouncer) C() <-chan time.Time {
	if !d.armed {
		return nil
	}
	return d.timer.C
}

// Fired marks the pending signal as consumed.
func (d *Debouncer) Fired() {
	d.armed = false
}

// Armed reports whether a burst is in progress.
func (d *Debouncer) Armed() bool {
	return d.armed
}

// Stop cancels any pending signal.
func (d *Debouncer) Stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.armed = false
}
