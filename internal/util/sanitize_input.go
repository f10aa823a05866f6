package util

import (
	"strings"
	"unicode"
)

const maxFormFieldLength = 256

// SanitizeFormValue trims whitespace, drops control characters and caps the length of a
// submitted form value before it is used as a lookup key or logged.
func SanitizeFormValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if r := []rune(s); len(r) > maxFormFieldLength {
		s = string(r[:maxFormFieldLength])
	}
	return s
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
