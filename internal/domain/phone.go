package domain

import "strings"

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// NormalizePhone reduces a phone number to its canonical digits-only form.
// Spaces, dashes, dots, parentheses and a leading plus sign are dropped;
// anything else is rejected.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", NewValidationError("phone_number contains invalid characters")
		}
	}

	digits := b.String()
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", NewValidationError("phone_number must have 7 to 15 digits")
	}
	return digits, nil
}
