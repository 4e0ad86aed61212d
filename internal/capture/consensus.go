package capture

// RequiredReads is how many independent reads must agree before a UID is accepted.
const RequiredReads = 3

// Verify reports whether every reading is identical.
// There is no majority vote; a single differing read rejects the set.
func Verify(readings []UID) (UID, bool) {
	if len(readings) != RequiredReads {
		return "", false
	}
	first := readings[0]
	for _, r := range readings[1:] {
		if r != first {
			return "", false
		}
	}
	return first, true
}
