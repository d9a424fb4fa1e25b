// Package metadata builds the auxiliary metadata document that anchors a
// commit on the ledger.
//
// Ledger metadata text values are limited to MaxSlotBytes bytes each, so the
// commit message is spread over one or two slots of the "msg" list.
package metadata

import (
	"unicode/utf8"

	"github.com/gitgood-project/gitgood/pkg/errclass"
)

const (
	// MaxSlotBytes is the ledger's limit for a single metadata text value.
	MaxSlotBytes = 64
	// MaxMessageBytes is the largest message that can be spread over two slots.
	MaxMessageBytes = 2 * MaxSlotBytes
)

// SplitMessage returns the message slots for msg.
//
// Messages of at most MaxSlotBytes bytes occupy one slot. Longer messages up to
// MaxMessageBytes are split in two at the character midpoint; if that leaves a
// half over the slot limit, the split moves to the rune boundary closest to the
// byte midpoint. The returned parts always concatenate back to msg.
func SplitMessage(msg string) ([]string, error) {
	n := len(msg)
	if n <= MaxSlotBytes {
		return []string{msg}, nil
	}
	if n > MaxMessageBytes {
		return nil, errclass.ErrMessageTooLong.WithMessagef("message is %d bytes, limit is %d", n, MaxMessageBytes)
	}

	cut := runeMidpoint(msg)
	if fits(msg, cut) {
		return []string{msg[:cut], msg[cut:]}, nil
	}

	cut, ok := byteBalancedCut(msg)
	if !ok {
		return nil, errclass.ErrSlotOverflow.WithMessagef("no character boundary splits %d bytes into two %d-byte slots", n, MaxSlotBytes)
	}
	return []string{msg[:cut], msg[cut:]}, nil
}

// runeMidpoint returns the byte offset of the middle character of s.
func runeMidpoint(s string) int {
	half := utf8.RuneCountInString(s) / 2
	i := 0
	for off := range s {
		if i == half {
			return off
		}
		i++
	}
	return len(s)
}

// byteBalancedCut finds the rune boundary closest to the byte midpoint at
// which both halves fit a slot.
func byteBalancedCut(s string) (int, bool) {
	best, found := 0, false
	mid := len(s) / 2
	for off := range s {
		if !fits(s, off) {
			continue
		}
		if !found || abs(off-mid) < abs(best-mid) {
			best, found = off, true
		}
	}
	return best, found
}

func fits(s string, cut int) bool {
	return cut > 0 && cut < len(s) && cut <= MaxSlotBytes && len(s)-cut <= MaxSlotBytes
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
