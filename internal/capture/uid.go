package capture

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultUIDLength is the number of hex characters emitted by the reference reader.
const DefaultUIDLength = 8

var (
	// ErrIncomplete means the burst is shorter than a UID. The reader may still be typing.
	ErrIncomplete = errors.New("burst shorter than uid length")
	// ErrMalformed means the burst has the right length but is not hexadecimal.
	ErrMalformed = errors.New("burst is not a hexadecimal uid")
)

// UID is a canonical (uppercase) card identifier.
type UID string

func (u UID) String() string {
	return string(u)
}

// Validate turns a completed burst into a UID candidate.
// Length counts characters, not bytes. Bursts longer than n are truncated to
// their first n characters before the alphabet check, so trailing reader
// noise does not reject a good read.
func Validate(burst string, n int) (UID, error) {
	if n <= 0 {
		n = DefaultUIDLength
	}
	runes := []rune(burst)
	if len(runes) < n {
		return "", ErrIncomplete
	}
	candidate := runes[:n]
	for _, r := range candidate {
		if !isHex(r) {
			return "", fmt.Errorf("%w: %q", ErrMalformed, string(candidate))
		}
	}
	return UID(strings.ToUpper(string(candidate))), nil
}

func isHex(c rune) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	}
	return false
}
