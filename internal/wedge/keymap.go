package wedge

// Linux input key codes (include/uapi/linux/input-event-codes.h) for the keys
// a card reader emits.
var keyRunes = map[uint16]rune{
	2: '1', 3: '2', 4: '3', 5: '4', 6: '5', 7: '6', 8: '7', 9: '8', 10: '9', 11: '0',
	16: 'Q', 17: 'W', 18: 'E', 19: 'R', 20: 'T', 21: 'Y', 22: 'U', 23: 'I', 24: 'O', 25: 'P',
	30: 'A', 31: 'S', 32: 'D', 33: 'F', 34: 'G', 35: 'H', 36: 'J', 37: 'K', 38: 'L',
	44: 'Z', 45: 'X', 46: 'C', 47: 'V', 48: 'B', 49: 'N', 50: 'M',
}

// keyRune maps a key code to the character it types. Enter, modifiers and
// anything else return false.
func keyRune(code uint16) (rune, bool) {
	r, ok := keyRunes[code]
	return r, ok
}
