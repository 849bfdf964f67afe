package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/candidate"
	"github.com/kalambet/talentscout/internal/intent"
	"github.com/kalambet/talentscout/internal/llm"
	"github.com/kalambet/talentscout/internal/validate"
)

const (
	historyWindow     = 10
	historyMessageMax = 200
	defaultDisplayMax = 800
)

// Responder generates LLM replies. Implemented by llm.Service.
type Responder interface {
	Generate(ctx context.Context, req llm.Request) (string, llm.Metadata)
}

// QuestionGenerator builds technical questions. Implemented by
// assessment.Assessor.
type QuestionGenerator interface {
	Generate(ctx context.Context, skills, experience, position string) (*assessment.QuestionSet, error)
}

// Message is one prior turn of the conversation.
type Message struct {
	Role    string
	Content string
}

// Session is the conversation state Handle reads and advances.
type Session struct {
	State         State
	Candidate     candidate.Candidate
	Questions     []assessment.Question
	QuestionIndex int
	History       []Message // turns before the current message
}

// Reply is the assistant's answer to one message.
type Reply struct {
	Text string
	// QuestionSet is set when this turn generated technical questions.
	QuestionSet *assessment.QuestionSet
	// LLM is set when the text came from the model.
	LLM *llm.Metadata
}

// Manager handles candidate messages. It holds no per-session state and is
// safe for concurrent use on distinct sessions.
type Manager struct {
	llm        Responder
	questions  QuestionGenerator
	displayMax int
	logger     *slog.Logger
}

// NewManager creates a Manager. displayMax caps LLM reply length in runes;
// zero means 800.
func NewManager(r Responder, q QuestionGenerator, displayMax int) *Manager {
	if displayMax <= 0 {
		displayMax = defaultDisplayMax
	}
	return &Manager{llm: r, questions: q, displayMax: displayMax, logger: slog.Default()}
}

// Handle processes one candidate message, mutating sess in place. The only
// errors returned come from ctx.
func (m *Manager) Handle(ctx context.Context, sess *Session, text string) (Reply, error) {
	msg := validate.Sanitize(text)
	kind := intent.Detect(msg)
	if strings.TrimSpace(msg) == "" {
		kind = intent.Gibberish
	}
	m.logger.Debug("handling message", "state", sess.State, "intent", kind)

	if sess.State.Closed() {
		reply := m.ask(ctx, sess, msg, llm.QuickResponse)
		m.transition(sess, StateFollowUp)
		return reply, nil
	}

	switch kind {
	case intent.Gibberish:
		return Reply{Text: fallback(sess.State, sess.Candidate)}, nil
	case intent.Restart:
		sess.Candidate = candidate.Candidate{}
		sess.Questions = nil
		sess.QuestionIndex = 0
		m.transition(sess, StateInitial)
		return Reply{Text: restartText}, nil
	case intent.Goodbye:
		m.transition(sess, StateCompletion)
		return Reply{Text: goodbyeText}, nil
	case intent.Help:
		return Reply{Text: withPending(helpText, sess)}, nil
	case intent.Greeting:
		if sess.State == StateInitial {
			m.transition(sess, StateDataCollection)
			return Reply{Text: greetingText}, nil
		}
		return Reply{Text: withPending(welcomeBack, sess)}, nil
	}

	switch sess.State {
	case StateInitial, StateGeneralChat:
		if strings.HasSuffix(strings.TrimSpace(msg), "?") {
			reply := m.ask(ctx, sess, msg, llm.Conversation)
			m.transition(sess, StateGeneralChat)
			if f, ok := sess.Candidate.NextMissing(); ok {
				reply.Text += "\n\n" + FieldPrompt(f, sess.Candidate)
			}
			return reply, nil
		}
		m.transition(sess, StateDataCollection)
		return m.collect(ctx, sess, msg)
	case StateDataCollection:
		return m.collect(ctx, sess, msg)
	case StateTechnicalAssessment:
		return m.assess(ctx, sess, msg)
	case StateFeedback:
		reply := m.ask(ctx, sess, msg, llm.Screening)
		reply.Text += "\n\n" + goodbyeText
		m.transition(sess, StateCompletion)
		return reply, nil
	}

	m.logger.Warn("unknown conversation state", "state", sess.State)
	return Reply{Text: fallback(sess.State, sess.Candidate)}, nil
}

// collect records msg as the next missing field.
func (m *Manager) collect(ctx context.Context, sess *Session, msg string) (Reply, error) {
	if f, ok := sess.Candidate.NextMissing(); ok {
		value, err := validate.Field(f, msg)
		if err != nil {
			return Reply{Text: err.Error()}, nil
		}
		sess.Candidate.Set(f, value)
		if next, ok := sess.Candidate.NextMissing(); ok {
			return Reply{Text: FieldPrompt(next, sess.Candidate)}, nil
		}
	}

	c := sess.Candidate
	reply := Reply{Text: confirmation(c)}
	set, err := m.questions.Generate(ctx, c.TechStack, c.Experience, c.Position)
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	m.transition(sess, StateTechnicalAssessment)
	sess.QuestionIndex = 0
	if err != nil {
		m.logger.Warn("generating technical questions", "error", err)
		sess.Questions = nil
		reply.Text += "\n\n" + assessment.Message(err)
		return reply, nil
	}
	sess.Questions = set.Questions
	reply.QuestionSet = set
	reply.Text += "\n\n" + formatQuestion(sess.Questions, 0)
	return reply, nil
}

// assess takes msg as the answer to the current question and moves on.
func (m *Manager) assess(ctx context.Context, sess *Session, msg string) (Reply, error) {
	if len(sess.Questions) == 0 {
		reply := m.ask(ctx, sess, msg, llm.TechnicalQuestions)
		m.transition(sess, StateFeedback)
		return reply, nil
	}
	sess.QuestionIndex++
	if sess.QuestionIndex < len(sess.Questions) {
		return Reply{Text: formatQuestion(sess.Questions, sess.QuestionIndex)}, nil
	}
	m.transition(sess, StateFeedback)
	return Reply{Text: assessedText}, nil
}

func formatQuestion(qs []assessment.Question, i int) string {
	q := qs[i]
	return fmt.Sprintf("Question %d of %d (%s): %s", i+1, len(qs), q.Skill, q.Text)
}

// ask answers msg with the LLM using the session context.
func (m *Manager) ask(ctx context.Context, sess *Session, msg string, task llm.Task) Reply {
	text, meta := m.llm.Generate(ctx, llm.Request{
		Prompt: ContextPrompt(sess, msg),
		Task:   task,
	})
	if meta.Error != "" {
		m.logger.Warn("llm fallback used", "task", task, "error", meta.Error)
	}
	return Reply{Text: validate.Truncate(text, m.displayMax), LLM: &meta}
}

// transition moves sess to the next state when the machine allows it.
func (m *Manager) transition(sess *Session, to State) {
	if !CanTransition(sess.State, to) {
		m.logger.Warn("refusing state transition", "from", sess.State, "to", to)
		return
	}
	sess.State = to
}

// withPending appends the pending field prompt during data collection.
func withPending(text string, sess *Session) string {
	if sess.State != StateDataCollection {
		return text
	}
	if f, ok := sess.Candidate.NextMissing(); ok {
		return text + "\n\n" + FieldPrompt(f, sess.Candidate)
	}
	return text
}

// ContextPrompt renders the candidate context, recent history and latest
// message for the LLM.
func ContextPrompt(sess *Session, latest string) string {
	c := sess.Candidate
	var b strings.Builder
	fmt.Fprintf(&b, "Current conversation state: %s\n", sess.State)
	fmt.Fprintf(&b, "Candidate: %s\n", orDefault(c.Name, "Unnamed candidate"))
	fmt.Fprintf(&b, "Position: %s\n", orDefault(c.Position, "Unspecified position"))
	fmt.Fprintf(&b, "Experience: %s years\n", orDefault(c.Experience, "Unknown"))
	fmt.Fprintf(&b, "Tech stack: %s\n\n", orDefault(c.TechStack, "Not specified"))
	b.WriteString("Recent conversation:\n")
	b.WriteString(formatHistory(sess.History))
	fmt.Fprintf(&b, "\nLatest message: %q\n\n", latest)
	b.WriteString("Respond as TalentScout AI, a professional hiring assistant. Keep your response concise (under 75 words),\n")
	b.WriteString("focused on screening for the position, and maintain a professional tone.\n")
	return b.String()
}

func formatHistory(history []Message) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var b strings.Builder
	for _, msg := range history {
		speaker := "Assistant"
		if msg.Role == "user" {
			speaker = "User"
		}
		content := msg.Content
		if utf8.RuneCountInString(content) > historyMessageMax {
			content = string([]rune(content)[:historyMessageMax-3]) + "..."
		}
		fmt.Fprintf(&b, "%s: %s\n\n", speaker, content)
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
