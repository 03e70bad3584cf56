// Package mac parses, validates, normalizes and formats hardware addresses.
//
// The canonical form is twelve upper-case hex digits with no separators
// ("AABBCC112233"). That is what gets stored on a device record; Format
// renders it for display.
package mac

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Length is the number of hex digits in a normalized address.
const Length = 12

// Normalize strips every character that is not a hex digit and upper-cases
// the rest. It succeeds only if exactly twelve hex digits remain.
func Normalize(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(Length)
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			b.WriteRune(r)
		case r >= 'a' && r <= 'f':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	out := b.String()
	if len(out) != Length {
		return "", false
	}
	return out, true
}

// IsValid reports whether addr is exactly twelve hex digits.
func IsValid(addr string) bool {
	if len(addr) != Length {
		return false
	}
	for i := 0; i < len(addr); i++ {
		if !isHex(addr[i]) {
			return false
		}
	}
	return true
}

// Format renders a normalized address as six colon-separated upper-case
// byte pairs. Any input that is not exactly twelve hex digits is an error.
func Format(addr string) (string, error) {
	if !IsValid(addr) {
		return "", fmt.Errorf("mac: %q is not a 12-digit hex address", addr)
	}
	addr = strings.ToUpper(addr)
	parts := make([]string, 0, Length/2)
	for i := 0; i < Length; i += 2 {
		parts = append(parts, addr[i:i+2])
	}
	return strings.Join(parts, ":"), nil
}

// Display formats raw input for humans, returning the input unchanged when
// it cannot be normalized.
func Display(raw string) string {
	norm, ok := Normalize(raw)
	if !ok {
		return raw
	}
	out, _ := Format(norm)
	return out
}

// Bytes decodes a normalized address into its six raw bytes.
func Bytes(addr string) ([]byte, error) {
	if !IsValid(addr) {
		return nil, fmt.Errorf("mac: %q is not a 12-digit hex address", addr)
	}
	return hex.DecodeString(addr)
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
