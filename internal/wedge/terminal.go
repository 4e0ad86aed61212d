package wedge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// Terminal types runes read from r (usually stdin) into a Field.
// A reader attached to the terminal delivers its burst followed by Enter.
type Terminal struct {
	r     *bufio.Reader
	field *Field
}

func NewTerminal(r io.Reader, field *Field) *Terminal {
	return &Terminal{r: bufio.NewReader(r), field: field}
}

// Run copies input until EOF or ctx is cancelled. A blocked read is only
// noticed after the next rune arrives.
func (t *Terminal) Run(ctx context.Context) error {
	for {
		r, _, err := t.r.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read terminal input: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		t.field.Type(r)
	}
}
