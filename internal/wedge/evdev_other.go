//go:build !linux

package wedge

import (
	"context"
	"errors"
)

var ErrEvdevUnsupported = errors.New("evdev input devices are only supported on linux")

type Evdev struct{}

func OpenEvdev(path string, field *Field) (*Evdev, error) {
	return nil, ErrEvdevUnsupported
}

func (e *Evdev) Run(ctx context.Context) error {
	return ErrEvdevUnsupported
}

func (e *Evdev) Close() error {
	return nil
}
