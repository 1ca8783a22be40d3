// Package email holds the small amount of email handling the handoff
// protocol needs: normalization for case-insensitive comparison, format
// validation at protocol boundaries, and display-name derivation for
// notification payloads.
package email

import (
	"net/mail"
	"strings"
	"unicode"
)

// Normalize lowercases and trims an address so comparisons are
// case-insensitive. All recipient/sender email comparisons in the handoff
// protocol go through this.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Valid reports whether the address parses as a bare RFC 5322 address.
// Display-name forms ("Bo <bo@x.com>") are rejected; the protocol stores
// plain addresses only.
func Valid(address string) bool {
	addr, err := mail.ParseAddress(address)
	if err != nil {
		return false
	}
	return addr.Address == address
}

// Equal compares two addresses case-insensitively.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// DeriveName guesses a first/last display name from the local part of an
// address. Used only for notification payloads; never authoritative.
func DeriveName(address string) (string, string) {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
