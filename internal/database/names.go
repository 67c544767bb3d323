package database

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims surrounding whitespace and converts the name to NFC so that
// visually identical names ("Jiří" typed precomposed or decomposed) map to one key.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// MaxNameLen is the longest identity name in bytes, after normalization.
// Every persistence backend stores it with a 16-bit length prefix.
const MaxNameLen = math.MaxUint16

// ValidateName normalizes the name and rejects it when nothing is left or
// when it is longer than MaxNameLen bytes.
func ValidateName(name string) (string, error) {
	n := NormalizeName(name)
	if n == "" {
		return "", fmt.Errorf("%w: identity name is empty", ErrInvalidInput)
	}
	if len(n) > MaxNameLen {
		return "", fmt.Errorf("%w: identity name is %d bytes, at most %d allowed", ErrInvalidInput, len(n), MaxNameLen)
	}
	return n, nil
}
