package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/talentscout/internal/llm"
)

var (
	ErrNoSkills       = errors.New("no skill information")
	ErrNoParsedSkills = errors.New("no recognizable skills")
	ErrNoQuestions    = errors.New("no questions generated")
)

// Message returns the candidate-facing text for a Generate error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrNoSkills):
		return "Could not generate questions without skill information."
	case errors.Is(err, ErrNoParsedSkills):
		return "Could not identify specific skills to generate questions. Please provide more details about your technical expertise."
	}
	return "Could not generate appropriate technical questions. Please review the candidate's skills and experience."
}

const (
	questionsPerLookup = 2
	minQuestionLength  = 10
)

// Generator produces LLM text. Implemented by llm.Service.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, llm.Metadata)
}

type Options struct {
	MaxQuestionsPerSkill int
	MaxTotalQuestions    int
}

// Question is one interview question about a skill.
type Question struct {
	Skill string `json:"skill"`
	Text  string `json:"text"`
}

// QuestionSet is the outcome of one question generation run.
type QuestionSet struct {
	Level      Level      `json:"level"`
	Position   string     `json:"position"`
	Experience string     `json:"experience"`
	Skills     []string   `json:"skills"`
	Questions  []Question `json:"questions"`
}

// Assessor generates technical questions and evaluates skills. It is safe
// for concurrent use.
type Assessor struct {
	bank   Bank
	gen    Generator
	opts   Options
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an Assessor. gen may be nil, in which case skills missing from
// the bank get the built-in fallback questions.
func New(bank Bank, gen Generator, opts Options) *Assessor {
	if opts.MaxQuestionsPerSkill <= 0 {
		opts.MaxQuestionsPerSkill = 2
	}
	if opts.MaxTotalQuestions <= 0 {
		opts.MaxTotalQuestions = 5
	}
	if bank == nil {
		bank = Bank{}
	}
	seed := uint64(time.Now().UnixNano())
	return &Assessor{
		bank:   bank,
		gen:    gen,
		opts:   opts,
		logger: slog.Default(),
		rng:    rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

// NewWithRand creates an Assessor with a caller-supplied random source.
func NewWithRand(bank Bank, gen Generator, opts Options, rng *rand.Rand) *Assessor {
	a := New(bank, gen, opts)
	a.rng = rng
	return a
}

func (a *Assessor) intRange(lo, hi int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return lo + a.rng.IntN(hi-lo+1)
}

// sample returns up to n distinct elements of qs in random order.
func (a *Assessor) sample(qs []string, n int) []string {
	a.mu.Lock()
	perm := a.rng.Perm(len(qs))
	a.mu.Unlock()
	n = min(n, len(qs))
	out := make([]string, n)
	for i := range n {
		out[i] = qs[perm[i]]
	}
	return out
}

// Generate builds a question set for the candidate. Skills are ordered by
// relevance to position when one is given.
func (a *Assessor) Generate(ctx context.Context, skills, experience, position string) (*QuestionSet, error) {
	if strings.TrimSpace(skills) == "" {
		return nil, ErrNoSkills
	}
	parsed := ParseSkills(skills)
	if len(parsed) == 0 {
		return nil, ErrNoParsedSkills
	}
	level := LevelFor(experience)

	if position != "" {
		scores := make(map[string]int, len(parsed))
		for _, s := range parsed {
			scores[s.Name] = a.Evaluate(s.Name, experience, position).Score
		}
		sort.SliceStable(parsed, func(i, j int) bool {
			return scores[parsed[i].Name] > scores[parsed[j].Name]
		})
	}

	// Every skill contributes at least one question, so no more than
	// MaxTotalQuestions skills can be used.
	picked := parsed[:min(len(parsed), a.opts.MaxTotalQuestions)]
	perSkill := make([][]string, len(picked))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, s := range picked {
		g.Go(func() error {
			perSkill[i] = a.questionsFor(gCtx, s, level, position)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := &QuestionSet{Level: level, Position: position, Experience: experience}
	for _, s := range parsed {
		set.Skills = append(set.Skills, s.Name)
	}
	for i, s := range picked {
		qs := perSkill[i]
		if len(qs) > a.opts.MaxQuestionsPerSkill {
			qs = qs[:a.opts.MaxQuestionsPerSkill]
		}
		for _, q := range qs {
			if len(set.Questions) >= a.opts.MaxTotalQuestions {
				break
			}
			set.Questions = append(set.Questions, Question{Skill: s.Name, Text: q})
		}
	}
	if len(set.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return set, nil
}

// questionsFor tries the bank, then the LLM, then the fallback templates.
func (a *Assessor) questionsFor(ctx context.Context, s Skill, level Level, position string) []string {
	if qs := a.bank.Lookup(s, level); len(qs) > 0 {
		return a.sample(qs, questionsPerLookup)
	}
	if a.gen != nil {
		qs, err := a.generateQuestions(ctx, s.Name, level, position)
		if err == nil && len(qs) > 0 {
			return qs
		}
		a.logger.Warn("generating questions from LLM", "skill", s.Name, "error", err)
	}
	return a.fallbackQuestions(s.Name, level)
}

var numbering = regexp.MustCompile(`^\d+[.)]\s*`)

func (a *Assessor) generateQuestions(ctx context.Context, skill string, level Level, position string) ([]string, error) {
	positionContext := ""
	if position != "" {
		positionContext = fmt.Sprintf(" for a %s role", position)
	}
	prompt := fmt.Sprintf(`Generate 2 technical interview questions about %[1]s that would be appropriate for a candidate with %[2]s years of experience%[3]s.

The questions should:
1. Be specific to %[1]s and appropriate for %[4]s level (no basic questions for advanced candidates)
2. Assess both theoretical knowledge and practical application
3. Reveal the depth of the candidate's expertise
4. Be concise and clearly worded

Format your response as a numbered list with only the questions, nothing else.
`, skill, level.Years(), positionContext, level)

	text, meta := a.gen.Generate(ctx, llm.Request{
		Prompt:      prompt,
		Task:        llm.TechnicalQuestions,
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if meta.Error != "" {
		return nil, errors.New(meta.Error)
	}
	return parseNumberedList(text, questionsPerLookup), nil
}

// parseNumberedList strips list numbering and keeps up to max lines longer
// than minQuestionLength.
func parseNumberedList(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = numbering.ReplaceAllString(strings.TrimSpace(line), "")
		if len(line) > minQuestionLength {
			out = append(out, line)
		}
		if len(out) == max {
			break
		}
	}
	return out
}

var fallbackTemplates = map[Level][]string{
	Beginner: {
		"Describe your experience with %s and what you've built with it so far.",
		"What are the fundamental concepts of %s that you're familiar with?",
		"How have you approached learning %s and what resources have you found most helpful?",
	},
	Intermediate: {
		"What challenges have you overcome while working with %s in a professional context?",
		"How do you stay updated with best practices and new developments in %s?",
		"Describe a complex problem you solved using %s and your approach to it.",
	},
	Advanced: {
		"How have you optimized or improved %s implementations in previous roles?",
		"Describe your approach to mentoring junior developers in %s.",
		"What architectural decisions have you made around %s and what were the trade-offs?",
	},
}

func (a *Assessor) fallbackQuestions(skill string, level Level) []string {
	templates, ok := fallbackTemplates[level]
	if !ok {
		templates = fallbackTemplates[Intermediate]
	}
	qs := make([]string, len(templates))
	for i, t := range templates {
		qs[i] = fmt.Sprintf(t, skill)
	}
	return a.sample(qs, questionsPerLookup)
}

// Markdown renders the set for interviewers.
func (qs *QuestionSet) Markdown() string {
	var b strings.Builder
	profile := string(qs.Level) + " level"
	if qs.Position != "" {
		profile += ", " + qs.Position
	}
	fmt.Fprintf(&b, "## Technical Interview Questions\n\nBased on the candidate's profile (%s), here are customized technical questions:\n\n", profile)
	for i, q := range qs.Questions {
		fmt.Fprintf(&b, "### %d. %s Question\n%s\n\n", i+1, capitalize(q.Skill), q.Text)
	}
	b.WriteString("### Interviewer Notes\n")
	fmt.Fprintf(&b, "- Candidate has indicated %s years of experience, placing them at %s %s level.\n", qs.Experience, article(string(qs.Level)), qs.Level)
	top := qs.Skills[:min(3, len(qs.Skills))]
	fmt.Fprintf(&b, "- Focus on depth of knowledge in their primary skills: %s\n", strings.Join(top, ", "))
	b.WriteString("- These questions are designed to reveal both theoretical understanding and practical application.\n")
	return b.String()
}

// article returns "an" before a vowel and "a" otherwise.
func article(word string) string {
	if word != "" && strings.ContainsRune("aeiouAEIOU", rune(word[0])) {
		return "an"
	}
	return "a"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
