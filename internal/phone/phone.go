// Package phone normalizes raw phone input into a canonical identifier and
// validates it against the regional format used for OTP delivery.
package phone

import (
	"regexp"
	"strings"
)

// DefaultCountryCode is prefixed to numbers entered without one.
const DefaultCountryCode = "+91"

// validPhone matches the canonical form: country code followed by a 10-digit
// number whose first digit is 1-9.
var validPhone = regexp.MustCompile(`^\+91[1-9]\d{9}$`)

// Normalize strips everything except digits and a leading '+', then rewrites
// the result to carry the default country code. It is total: any input yields
// a string.
func Normalize(input string) string {
	var b strings.Builder
	for _, r := range input {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if !strings.HasPrefix(cleaned, "+") {
		return DefaultCountryCode + cleaned
	}
	if !strings.HasPrefix(cleaned, DefaultCountryCode) {
		return DefaultCountryCode + strings.TrimPrefix(cleaned, "+")
	}
	return cleaned
}

// IsValid reports whether p is a canonical phone identifier. Used as a
// precondition gate before any OTP send.
func IsValid(p string) bool {
	return validPhone.MatchString(p)
}
