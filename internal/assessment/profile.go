package assessment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/talentscout/internal/candidate"
	"github.com/kalambet/talentscout/internal/validate"
)

const matchThreshold = 70

// Profile is the recruiter-facing card for a candidate.
type Profile struct {
	Initials       string      `json:"initials"`
	Name           string      `json:"name"`
	MaskedEmail    string      `json:"masked_email"`
	MaskedPhone    string      `json:"masked_phone"`
	Position       string      `json:"position"`
	Experience     string      `json:"experience"`
	Location       string      `json:"location"`
	Level          Level       `json:"experience_level"`
	Skills         []string    `json:"skills"`
	MatchScore     int         `json:"match_score"`
	MatchingSkills []string    `json:"matching_skills"`
	TopEvaluation  *Evaluation `json:"top_evaluation,omitempty"`
}

// Profile builds the candidate card. The match score is the mean evaluation
// score across the tech stack, or 50 without a stack or position.
func (a *Assessor) Profile(c candidate.Candidate) Profile {
	p := Profile{
		Initials:    validate.Initials(c.Name),
		Name:        orDefault(c.Name, "Candidate"),
		MaskedEmail: validate.MaskEmail(c.Email),
		MaskedPhone: validate.MaskPhone(c.Phone),
		Position:    orDefault(c.Position, "Role not specified"),
		Experience:  orDefault(c.Experience, "0"),
		Location:    orDefault(c.Location, "Location not specified"),
		Level:       LevelFor(c.Experience),
		Skills:      strings.Fields(strings.ReplaceAll(c.TechStack, ",", " ")),
		MatchScore:  50,
	}
	if len(p.Skills) == 0 || c.Position == "" {
		return p
	}

	evals := make([]Evaluation, 0, len(p.Skills))
	total := 0
	for _, s := range p.Skills {
		ev := a.Evaluate(s, c.Experience, c.Position)
		evals = append(evals, ev)
		total += ev.Score
		if ev.Score >= matchThreshold {
			p.MatchingSkills = append(p.MatchingSkills, s)
		}
	}
	sort.SliceStable(evals, func(i, j int) bool { return evals[i].Score > evals[j].Score })
	p.TopEvaluation = &evals[0]
	p.MatchScore = total / len(p.Skills)
	return p
}

// Markdown renders the profile as a recruiter summary.
func (p Profile) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Candidate Summary: %s\n\n", p.Name)
	b.WriteString("## Basic Information\n")
	fmt.Fprintf(&b, "- **Position Applied For:** %s\n", p.Position)
	fmt.Fprintf(&b, "- **Location:** %s\n", p.Location)
	fmt.Fprintf(&b, "- **Experience:** %s years (%s)\n", p.Experience, p.Level)
	fmt.Fprintf(&b, "- **Contact:** %s | %s\n\n", p.MaskedEmail, p.MaskedPhone)

	b.WriteString("## Technical Skills\n")
	if len(p.Skills) == 0 {
		b.WriteString("- None listed\n")
	}
	for _, s := range p.Skills {
		fmt.Fprintf(&b, "- %s\n", s)
	}

	b.WriteString("\n## Match Analysis\n")
	fmt.Fprintf(&b, "- Overall match for role: %d%%\n", p.MatchScore)
	matching := "none"
	if len(p.MatchingSkills) > 0 {
		matching = strings.Join(p.MatchingSkills, ", ")
	}
	fmt.Fprintf(&b, "- Key matching skills: %s\n", matching)
	if p.TopEvaluation != nil {
		fmt.Fprintf(&b, "- %s\n", p.TopEvaluation.Recommendation)
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
