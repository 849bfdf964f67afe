package validate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaskEmail hides all but the first three characters of the local part.
func MaskEmail(email string) string {
	user, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	n := utf8.RuneCountInString(user)
	if n > 3 {
		return string([]rune(user)[:3]) + strings.Repeat("*", n-3) + "@" + domain
	}
	return strings.Repeat("*", n) + "@" + domain
}

// MaskPhone hides all but the last four characters.
func MaskPhone(phone string) string {
	r := []rune(phone)
	if len(r) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

// Initials returns up to two upper-case initials, or "?" for an empty name.
func Initials(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "?"
	}
	first, _ := utf8.DecodeRuneInString(parts[0])
	if len(parts) == 1 {
		return string(unicode.ToUpper(first))
	}
	last, _ := utf8.DecodeRuneInString(parts[len(parts)-1])
	return string(unicode.ToUpper(first)) + string(unicode.ToUpper(last))
}
