package activity

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/carbontoken/internal/ledger"
)

// MaxTrackingLen is the longest tracking number accepted. Longer values are
// almost always several numbers run together.
const MaxTrackingLen = 18

var (
	ErrTrackingEmpty   = errors.New("empty tracking number")
	ErrTrackingTooLong = errors.New("tracking number too long")

	// ErrTrackingSeparator rejects tracking numbers that would split into an
	// extra activity id component.
	ErrTrackingSeparator = errors.New("tracking number contains the id separator")
)

// NormalizeTracking removes every whitespace rune from s.
func NormalizeTracking(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// SplitTracking splits a raw comma-separated tracking field into normalised
// parts, in order. Empty parts are kept so callers can report them.
func SplitTracking(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = NormalizeTracking(p)
	}
	return parts
}

// ValidateTracking checks a normalised tracking number. Length is counted in
// characters, not bytes.
func ValidateTracking(tracking string) error {
	if tracking == "" {
		return ErrTrackingEmpty
	}
	if n := utf8.RuneCountInString(tracking); n > MaxTrackingLen {
		return fmt.Errorf("%w: %q has %d characters, max %d", ErrTrackingTooLong, tracking, n, MaxTrackingLen)
	}
	if strings.Contains(tracking, ledger.IDSeparator) {
		return fmt.Errorf("%w: %q", ErrTrackingSeparator, tracking)
	}
	return nil
}
