package capture

import "time"

// DefaultFocusInterval is how often the capture field's focus is checked.
const DefaultFocusInterval = 100 * time.Millisecond

// Field is the input the card reader types into.
//
// Focus must make the field the exclusive destination of reader keystrokes:
// a focus command for a browser input, a device grab for an evdev reader.
type Field interface {
	Focused() bool
	Focus() error
	Clear()
}

// FocusDaemon periodically pulls focus back to the capture field while armed.
type FocusDaemon struct {
	interval time.Duration
	field    Field
	ticker   *time.Ticker
	armed    bool
}

func NewFocusDaemon(field Field, interval time.Duration) *FocusDaemon {
	if interval <= 0 {
		interval = DefaultFocusInterval
	}
	return &FocusDaemon{interval: interval, field: field}
}

// Arm starts ticking. It is a no-op when already armed.
func (f *FocusDaemon) Arm() {
	if f.armed {
		return
	}
	if f.ticker == nil {
		f.ticker = time.NewTicker(f.interval)
	} else {
		f.ticker.Reset(f.interval)
	}
	f.armed = true
}

// Disarm stops ticking without touching the field.
func (f *FocusDaemon) Disarm() {
	if f.ticker != nil {
		f.ticker.Stop()
	}
	f.armed = false
}

func (f *FocusDaemon) Armed() bool {
	return f.armed
}

// C returns the tick channel, or nil while disarmed.
func (f *FocusDaemon) C() <-chan time.Time {
	if !f.armed {
		return nil
	}
	return f.ticker.C
}

// Retain focuses the field if something else holds focus.
// It reports whether a focus change was attempted.
func (f *FocusDaemon) Retain() (bool, error) {
	if f.field.Focused() {
		return false, nil
	}
	return true, f.field.Focus()
}
