package app

import (
	"regexp"
	"strings"
	"unicode"
)

// fieldErrors accumulates per-field validation messages. A nil-safe
// err() converts the map into a 422 DomainError once all checks ran,
// so callers report every invalid field in one response.
type fieldErrors map[string]string

func (fe fieldErrors) add(field, message string) {
	if _, ok := fe[field]; !ok {
		fe[field] = message
	}
}

func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return validationFailed(fe)
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func checkLength(fe fieldErrors, field, value string, min, max int) {
	value = strings.TrimSpace(value)
	if len(value) < min {
		if min <= 1 {
			fe.add(field, "is required")
			return
		}
		fe.add(field, "is too short")
		return
	}
	if len(value) > max {
		fe.add(field, "is too long")
	}
}

func checkEmail(fe fieldErrors, field, value string) {
	if !emailPattern.MatchString(value) {
		fe.add(field, "must be a valid email address")
	}
}

func checkSlug(fe fieldErrors, field, value string) {
	if !slugPattern.MatchString(value) {
		fe.add(field, "must contain only lowercase letters, digits and hyphens")
	}
}

// Passwords need 6 to 32 characters with at least one uppercase letter,
// one lowercase letter, one digit and one symbol.
func checkPassword(fe fieldErrors, field, value string) {
	if len(value) < 6 || len(value) > 32 {
		fe.add(field, "must be between 6 and 32 characters")
		return
	}
	var upper, lower, digit, symbol bool
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		fe.add(field, "must include uppercase, lowercase, digit and symbol characters")
	}
}

// slugify reduces a display name to a URL-safe slug. Used when a
// client omits the slug on company or workspace registration.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
