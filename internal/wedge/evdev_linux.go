//go:build linux

package wedge

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

const (
	evKey     = 0x01
	keyPress  = 1
	eviocgrab = 0x40044590 // _IOW('E', 0x90, int)
)

// inputEvent mirrors struct input_event.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Evdev reads a reader exposed as /dev/input/eventN. Focusing the field
// grabs the device so its keystrokes reach no other program.
type Evdev struct {
	path  string
	file  *os.File
	field *Field
}

func OpenEvdev(path string, field *Field) (*Evdev, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open input device %s: %w", path, err)
	}
	e := &Evdev{path: path, file: f, field: field}
	field.SetFocusFunc(e.grab)
	return e, nil
}

func (e *Evdev) grab() error {
	if err := unix.IoctlSetInt(int(e.file.Fd()), eviocgrab, 1); err != nil {
		return fmt.Errorf("failed to grab %s: %w", e.path, err)
	}
	return nil
}

func (e *Evdev) release() error {
	return unix.IoctlSetInt(int(e.file.Fd()), eviocgrab, 0)
}

// Run types key presses into the field until ctx is cancelled or the device goes away.
func (e *Evdev) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		e.file.Close()
	})
	defer stop()

	err := readEvents(e.file, e.field)
	e.field.Blur()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("input device %s: %w", e.path, err)
}

func (e *Evdev) Close() error {
	if err := e.release(); err != nil {
		slog.Debug("Unable to release input device", "path", e.path, "err", err)
	}
	return e.file.Close()
}

func readEvents(r io.Reader, field *Field) error {
	for {
		var ev inputEvent
		if err := binary.Read(r, binary.NativeEndian, &ev); err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if ev.Type != evKey || ev.Value != keyPress {
			continue
		}
		if ch, ok := keyRune(ev.Code); ok {
			field.Type(ch)
		}
	}
}
