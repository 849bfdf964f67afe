// Package intent classifies candidate messages that steer the conversation
// rather than answer a question.
package intent

import (
	"regexp"
	"strings"
)

// Kind is the detected purpose of a message.
type Kind string

const (
	Unknown   Kind = ""
	Greeting  Kind = "greeting"
	Goodbye   Kind = "goodbye"
	Help      Kind = "help"
	Restart   Kind = "restart"
	Gibberish Kind = "gibberish"
)

type rule struct {
	kind     Kind
	patterns []*regexp.Regexp
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{Greeting, compile(
		`(?i)^(hi|hello|hey|greetings|howdy)[\s.,!]*$`,
		`(?i)^good\s(morning|afternoon|evening|day)[\s.,!]*$`,
	)},
	{Goodbye, compile(
		`(?i)^(bye|goodbye|see\syou|farewell)[\s.,!]*$`,
		`(?i)^(end|finish|complete)\s(chat|conversation|interview)[\s.,!]*$`,
	)},
	{Help, compile(
		`(?i)^(help|assist|guidance|support|how\s.+\swork)[\s.,?!]*$`,
		`(?i)^what\scan\syou\sdo[\s.,?!]*$`,
		`(?i)^how\s(does\sthis|do\syou)\swork[\s.,?!]*$`,
	)},
	{Restart, compile(
		`(?i)^(restart|start\sover|reset|begin\sagain)[\s.,!]*$`,
	)},
	{Gibberish, compile(
		`^[a-z]{1,2}$`,
		`^[a-z]{20,}$`,
		`^[\W_]+$`,
	)},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Detect returns the intent of text, or Unknown when the message should be
// treated as an ordinary answer. Surrounding whitespace is ignored.
func Detect(text string) Kind {
	text = strings.TrimSpace(text)
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(text) {
				return r.kind
			}
		}
	}
	if hasRun(text, 5) {
		return Gibberish
	}
	return Unknown
}

// hasRun reports whether any character repeats n or more times in a row.
func hasRun(s string, n int) bool {
	var prev rune
	count := 0
	for i, r := range s {
		if i > 0 && r == prev {
			count++
		} else {
			count = 1
		}
		if count >= n {
			return true
		}
		prev = r
	}
	return false
}
