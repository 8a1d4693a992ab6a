package identifier

import (
	"regexp"
	"strings"
)

// Phone numbers are Pakistani mobile numbers: country code 92 with a 10-digit
// subscriber number. Accepted raw forms after stripping non-digits:
// 10 digits (local), 11 digits with a leading zero, or 12 digits already
// prefixed with the country code.
const countryCode = "92"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizePhone canonicalizes raw into an E.164-style "+92…" string.
// Returns ok=false for anything that does not reduce to a valid form;
// callers must treat that as a validation failure.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, countryCode):
		return "+" + digits, true
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return "+" + countryCode + digits[1:], true
	case len(digits) == 10:
		return "+" + countryCode + digits, true
	}
	return "", false
}

// NormalizeEmail lowercases and trims raw and checks the basic
// local@domain.tld shape. Returns ok=false when the shape check fails.
func NormalizeEmail(raw string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(e) {
		return "", false
	}
	return e, true
}
