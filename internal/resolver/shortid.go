package resolver

import (
	"fmt"
	"strings"

	"github.com/dyluth/aura/pkg/board"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ResolveSpecID resolves a spec ID, or a unique prefix of one, against an
// anchor's spec list and returns the entry's index and full ID.
func ResolveSpecID(entries []board.AuraSpecEntry, shortID string) (int, string, error) {
	// Full UUIDs must match exactly.
	if len(shortID) == 36 && strings.Count(shortID, "-") == 4 {
		for i, e := range entries {
			if e.SpecID == shortID {
				return i, shortID, nil
			}
		}
		return -1, "", &NotFoundError{ShortID: shortID}
	}

	if len(shortID) < MinShortIDLength {
		return -1, "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	index := -1
	var matches []string
	for i, e := range entries {
		if strings.HasPrefix(e.SpecID, shortID) {
			index = i
			matches = append(matches, e.SpecID)
		}
	}

	switch len(matches) {
	case 0:
		return -1, "", &NotFoundError{ShortID: shortID}
	case 1:
		return index, matches[0], nil
	default:
		return -1, "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no spec entry matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no spec entries found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple spec entries matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d spec entries", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists the matching IDs (up to 10, then "...and N
// more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous short ID '%s' matches %d spec entries:\n", err.ShortID, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}
	for i := 0; i < displayCount; i++ {
		fmt.Fprintf(&b, "  %s\n", err.Matches[i])
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the entry.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
