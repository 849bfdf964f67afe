// Package assessment parses candidate skills, maps experience to seniority,
// generates technical interview questions and scores skills against a role.
package assessment

import (
	"regexp"
	"strconv"
	"strings"
)

// Level is a seniority band derived from years of experience.
type Level string

const (
	Beginner     Level = "beginner"
	Intermediate Level = "intermediate"
	Advanced     Level = "advanced"
)

// LevelFor maps a years-of-experience string to a Level. Anything that does
// not parse as a number is Intermediate.
func LevelFor(experience string) Level {
	s := strings.ReplaceAll(experience, "years", "")
	s = strings.ReplaceAll(s, "year", "")
	years, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Intermediate
	}
	switch {
	case years < 2:
		return Beginner
	case years < 5:
		return Intermediate
	default:
		return Advanced
	}
}

// Years returns the approximate experience range for l, used in prompts.
func (l Level) Years() string {
	switch l {
	case Beginner:
		return "1-2"
	case Advanced:
		return "5+"
	}
	return "3-5"
}

// Skill is a normalized skill name and the relationship-map category it
// belongs to ("unknown" when none matches).
type Skill struct {
	Name     string `json:"skill"`
	Category string `json:"category"`
}

type relation struct {
	skill   string
	related []string
}

// relationships is ordered: categorization picks the first entry that
// matches.
var relationships = []relation{
	{"javascript", []string{"typescript", "react", "vue", "angular", "node.js", "express", "frontend"}},
	{"python", []string{"django", "flask", "fastapi", "data science", "machine learning", "backend"}},
	{"java", []string{"spring", "spring boot", "hibernate", "backend", "enterprise"}},
	{"c#", []string{".net", "asp.net", "xamarin", "unity", "backend"}},
	{"react", []string{"javascript", "typescript", "redux", "frontend", "react native"}},
	{"angular", []string{"typescript", "javascript", "rxjs", "frontend"}},
	{"vue", []string{"javascript", "vuex", "frontend"}},
	{"node.js", []string{"javascript", "express", "backend", "api"}},
	{"php", []string{"laravel", "symfony", "wordpress", "backend"}},
	{"sql", []string{"postgresql", "mysql", "oracle", "database", "data"}},
	{"nosql", []string{"mongodb", "couchdb", "cassandra", "database", "data"}},
	{"aws", []string{"cloud", "devops", "serverless", "infrastructure"}},
	{"azure", []string{"cloud", "devops", "microsoft", "infrastructure"}},
	{"devops", []string{"ci/cd", "jenkins", "docker", "kubernetes", "infrastructure"}},
	{"machine learning", []string{"python", "tensorflow", "pytorch", "data science", "ai"}},
	{"data science", []string{"python", "r", "statistics", "machine learning", "data"}},
	{"mobile", []string{"android", "ios", "react native", "flutter", "frontend"}},
	{"blockchain", []string{"smart contracts", "ethereum", "solidity", "web3"}},
	{"frontend", []string{"html", "css", "javascript", "ui/ux", "responsive design"}},
	{"backend", []string{"api", "database", "server", "authentication", "authorization"}},
	{"fullstack", []string{"frontend", "backend", "javascript", "python", "java"}},
}

// related returns the related skills of a relationship-map key.
func related(skill string) ([]string, bool) {
	for _, r := range relationships {
		if r.skill == skill {
			return r.related, true
		}
	}
	return nil, false
}

func categorize(skill string) string {
	for _, r := range relationships {
		if r.skill == skill {
			return r.skill
		}
		for _, rel := range r.related {
			if rel == skill {
				return r.skill
			}
		}
	}
	return "unknown"
}

var skillSep = regexp.MustCompile(`[,;/\s]+`)

// ParseSkills splits free-form skill text into lower-cased, de-duplicated
// skills in order of first appearance. Single-character tokens are dropped.
func ParseSkills(text string) []Skill {
	var out []Skill
	seen := make(map[string]bool)
	for _, tok := range skillSep.Split(text, -1) {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if len(tok) < 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, Skill{Name: tok, Category: categorize(tok)})
	}
	return out
}

type role struct {
	name     string
	keywords []string
}

// roles is ordered: on equal keyword counts the earlier role wins.
var roles = []role{
	{"frontend", []string{"javascript", "typescript", "react", "vue", "angular", "html", "css", "responsive", "ui/ux", "frontend"}},
	{"backend", []string{"java", "python", "c#", "node.js", "php", "go", "rust", "sql", "nosql", "api", "backend"}},
	{"fullstack", []string{"javascript", "python", "java", "node.js", "react", "angular", "vue", "sql", "nosql", "fullstack"}},
	{"devops", []string{"docker", "kubernetes", "jenkins", "github actions", "aws", "azure", "gcp", "linux", "ci/cd", "devops"}},
	{"data", []string{"python", "r", "sql", "nosql", "pandas", "hadoop", "spark", "etl", "tableau", "power bi", "data"}},
	{"mobile", []string{"android", "ios", "swift", "kotlin", "react native", "flutter", "mobile"}},
	{"machine learning", []string{"python", "tensorflow", "pytorch", "scikit-learn", "nlp", "computer vision", "ml", "ai"}},
}

func roleKeywords(name string) []string {
	for _, r := range roles {
		if r.name == name {
			return r.keywords
		}
	}
	return nil
}

// matchRole returns the role whose keywords occur most often in position,
// or "" when none occurs.
func matchRole(position string) string {
	p := strings.ToLower(position)
	best, bestCount := "", 0
	for _, r := range roles {
		n := 0
		for _, kw := range r.keywords {
			if containsKeyword(p, kw) {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = r.name, n
		}
	}
	return best
}

// containsKeyword reports whether kw occurs in text. Keywords of two
// characters or fewer ("r", "go", "ai") must appear as whole words.
func containsKeyword(text, kw string) bool {
	if len(kw) > 2 {
		return strings.Contains(text, kw)
	}
	for _, w := range words(text) {
		if w == kw {
			return true
		}
	}
	return false
}

func words(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '#' || r == '+' || r == '.')
	})
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".")
	}
	return fields
}

// Vocabulary returns every known skill name: the relationship-map keys, their
// related skills and the role keywords, de-duplicated in table order.
func Vocabulary() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, r := range relationships {
		add(r.skill)
		for _, rel := range r.related {
			add(rel)
		}
	}
	for _, r := range roles {
		for _, kw := range r.keywords {
			add(kw)
		}
	}
	return out
}
