// Package wedge turns keyboard-emulating card readers into text field input.
package wedge

import (
	"sync"
	"unicode"
)

// Field is the text input a keyboard-wedge reader types into.
// It is safe for concurrent use.
type Field struct {
	mu       sync.Mutex
	value    string
	focused  bool
	onChange func(string)
	focus    func() error
}

func NewField() *Field {
	return &Field{}
}

// OnChange sets the hook that receives the full value after every user or
// reader edit. Set it before any source starts typing.
func (f *Field) OnChange(fn func(string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = fn
}

// SetFocusFunc sets how focus is acquired. Without one the field focuses itself.
func (f *Field) SetFocusFunc(fn func() error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focus = fn
}

// Type appends a printable rune. Control keys such as Enter are dropped.
func (f *Field) Type(r rune) {
	if !unicode.IsPrint(r) {
		return
	}
	f.mu.Lock()
	f.value += string(r)
	value, hook := f.value, f.onChange
	f.mu.Unlock()

	if hook != nil {
		hook(value)
	}
}

// Set replaces the whole value, as a browser input event does.
func (f *Field) Set(value string) {
	f.mu.Lock()
	f.value = value
	hook := f.onChange
	f.mu.Unlock()

	if hook != nil {
		hook(value)
	}
}

func (f *Field) Value() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Clear empties the field. Programmatic clears do not call the change hook.
func (f *Field) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = ""
}

func (f *Field) Focused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focused
}

func (f *Field) Focus() error {
	f.mu.Lock()
	fn := f.focus
	f.mu.Unlock()

	if fn != nil {
		if err := fn(); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = true
	return nil
}

// Blur records that focus moved elsewhere.
func (f *Field) Blur() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = false
}
