// Package validate cleans and checks candidate input.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/talentscout/internal/candidate"
)

// MaxInputLength is the longest input kept by Sanitize, in characters.
const MaxInputLength = 1000

var (
	scriptRe  = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	jsLinkRe  = regexp.MustCompile(`(?is)<.*?javascript:.*?>`)
	handlerRe = regexp.MustCompile(`(?is)on\w+=".*?"`)

	emailRe     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneSepRe  = regexp.MustCompile(`[\s()\-.]`)
	nonNumberRe = regexp.MustCompile(`[^\d.]`)
)

// FieldError carries a message meant to be shown to the candidate.
type FieldError struct {
	Field   candidate.Field
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// Sanitize strips script blocks, javascript: tags and inline event handlers,
// then truncates to MaxInputLength characters.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = scriptRe.ReplaceAllString(s, "")
	s = jsLinkRe.ReplaceAllString(s, "")
	s = handlerRe.ReplaceAllString(s, "")
	return Truncate(s, MaxInputLength)
}

// Truncate cuts s to max characters and appends "..." when it was longer.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

func Email(s string) bool {
	return emailRe.MatchString(s)
}

// Phone accepts 7 to 15 digits once spaces, parentheses, dashes and dots are removed.
func Phone(s string) bool {
	digits := phoneSepRe.ReplaceAllString(s, "")
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Field sanitizes and validates value for field f, returning the value to
// store. Validation failures are reported as *FieldError.
func Field(f candidate.Field, value string) (string, error) {
	clean := strings.TrimSpace(Sanitize(value))
	if clean == "" {
		return "", &FieldError{Field: f, Message: fmt.Sprintf("Please provide a valid %s.", f.Label())}
	}

	switch f {
	case candidate.FieldEmail:
		if !Email(clean) {
			return "", &FieldError{Field: f, Message: "Please provide a valid email address (e.g., name@example.com)."}
		}
	case candidate.FieldPhone:
		if !Phone(clean) {
			return "", &FieldError{Field: f, Message: "Please provide a valid phone number (e.g., 123-456-7890)."}
		}
	case candidate.FieldExperience:
		return experience(clean)
	}
	return clean, nil
}

// experience extracts the number of years from free text such as
// "about 5 years" and normalizes it.
func experience(s string) (string, error) {
	years, err := strconv.ParseFloat(nonNumberRe.ReplaceAllString(s, ""), 64)
	if err != nil {
		return "", &FieldError{Field: candidate.FieldExperience, Message: "Please provide a valid number for your years of experience."}
	}
	if years > 100 {
		return "", &FieldError{Field: candidate.FieldExperience, Message: "Please provide a valid number of years of experience."}
	}
	if years == math.Trunc(years) {
		return strconv.Itoa(int(years)), nil
	}
	return strconv.FormatFloat(math.Round(years*10)/10, 'f', -1, 64), nil
}
