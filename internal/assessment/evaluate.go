package assessment

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Evaluation scores one skill against a position.
type Evaluation struct {
	Skill          string `json:"skill"`
	Role           string `json:"role,omitempty"`
	Relevance      string `json:"relevance"`
	Score          int    `json:"score"`
	Level          Level  `json:"experience_level"`
	Recommendation string `json:"recommendation"`
}

var levelMultiplier = map[Level]float64{
	Beginner:     0.8,
	Intermediate: 1.0,
	Advanced:     1.2,
}

// Evaluate scores how relevant skill is to position. Scores are drawn from
// the band of the skill's relation to the matched role and then scaled by
// seniority.
func (a *Assessor) Evaluate(skill, experience, position string) Evaluation {
	ev := Evaluation{
		Skill:          skill,
		Relevance:      "moderate",
		Score:          50,
		Level:          LevelFor(experience),
		Recommendation: "Consider exploring this skill further in the interview.",
	}
	if position == "" {
		return ev
	}

	roleName := matchRole(position)
	if roleName == "" {
		ev.Recommendation = fmt.Sprintf("Explore how %s has been applied in previous roles.", skill)
		return ev
	}
	ev.Role = roleName
	keywords := roleKeywords(roleName)
	s := strings.ToLower(skill)

	switch rel, known := related(s); {
	case slices.Contains(keywords, s):
		ev.Relevance = "high"
		ev.Score = a.intRange(80, 100)
		ev.Recommendation = fmt.Sprintf("%s is a core skill for this %s role. Explore depth of expertise.", skill, roleName)
	case known && intersects(rel, keywords):
		ev.Relevance = "medium-high"
		ev.Score = a.intRange(65, 80)
		ev.Recommendation = fmt.Sprintf("%s is a complementary skill for this %s role. Assess how it enhances their primary expertise.", skill, roleName)
	case known:
		ev.Relevance = "medium-low"
		ev.Score = a.intRange(40, 65)
		ev.Recommendation = fmt.Sprintf("While %s is not directly related to the %s role, it may provide valuable perspective.", skill, roleName)
	default:
		ev.Relevance = "low"
		ev.Score = a.intRange(20, 40)
		ev.Recommendation = fmt.Sprintf("%s appears to be outside the core requirements for this %s role, but may indicate breadth of knowledge.", skill, roleName)
	}

	m, ok := levelMultiplier[ev.Level]
	if !ok {
		m = 1.0
	}
	ev.Score = clamp(int(float64(ev.Score)*m), 0, 100)
	return ev
}

var (
	roleMatchSep = regexp.MustCompile(`[,;\s]+`)
	nonNumeric   = regexp.MustCompile(`[^\d.]`)
)

// RoleMatch estimates how well a skill list fits position as the share of
// the role's keywords the candidate covers, adjusted for experience. The
// result is in 20..100, or 50 when skills is empty. Unrecognized positions
// are treated as fullstack.
func RoleMatch(skills, experience, position string) (int, []string) {
	var list []string
	for _, s := range roleMatchSep.Split(skills, -1) {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			list = append(list, s)
		}
	}

	roleName := matchRole(position)
	if roleName == "" {
		roleName = "fullstack"
	}
	keywords := roleKeywords(roleName)

	var matching []string
	for _, s := range list {
		for _, kw := range keywords {
			if skillMatches(s, kw) {
				matching = append(matching, s)
				break
			}
		}
	}
	if len(list) == 0 {
		return 50, matching
	}

	pct := min(100, float64(len(matching))/float64(len(keywords))*100)
	if years, err := strconv.ParseFloat(nonNumeric.ReplaceAllString(experience, ""), 64); err == nil {
		switch {
		case years < 2:
			pct *= 0.85
		case years >= 5:
			pct *= 1.15
		}
	}
	return clamp(int(pct), 20, 100), matching
}

// skillMatches reports whether skill and keyword name the same thing, one
// containing the other. Very short strings only match exactly.
func skillMatches(skill, kw string) bool {
	if skill == kw {
		return true
	}
	if len(kw) > 2 && strings.Contains(skill, kw) {
		return true
	}
	return len(skill) > 2 && strings.Contains(kw, skill)
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
