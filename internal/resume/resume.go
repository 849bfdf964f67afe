// Package resume pulls plain text out of PDF resumes and spots known skills
// in it.
package resume

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/talentscout/internal/assessment"
)

// MaxSize is the largest resume accepted, in bytes.
const MaxSize = 5 << 20

var ErrTooLarge = errors.New("resume exceeds 5 MiB")

// ExtractText returns the plain text of every page of the PDF in r.
func ExtractText(r io.ReaderAt, size int64) (string, error) {
	if size > MaxSize {
		return "", ErrTooLarge
	}
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	text, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	b, err := io.ReadAll(text)
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

type term struct {
	name string
	re   *regexp.Regexp
}

var vocabulary = sync.OnceValue(func() []term {
	var terms []term
	for _, name := range assessment.Vocabulary() {
		re := regexp.MustCompile(`(^|[^a-z0-9+#])` + regexp.QuoteMeta(name) + `($|[^a-z0-9+#])`)
		terms = append(terms, term{name: name, re: re})
	}
	return terms
})

// DetectSkills returns every known skill occurring in text as a whole word,
// in vocabulary order.
func DetectSkills(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, t := range vocabulary() {
		if t.re.MatchString(lower) {
			found = append(found, t.name)
		}
	}
	return found
}
