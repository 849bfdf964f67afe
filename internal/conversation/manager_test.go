package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/candidate"
	"github.com/kalambet/talentscout/internal/llm"
)

type mockResponder struct {
	text     string
	requests []llm.Request
}

func (m *mockResponder) Generate(_ context.Context, req llm.Request) (string, llm.Metadata) {
	m.requests = append(m.requests, req)
	text := m.text
	if text == "" {
		text = "LLM says hello."
	}
	return text, llm.Metadata{Model: "test", Task: req.Task}
}

type mockQuestions struct {
	set   *assessment.QuestionSet
	err   error
	calls int
}

func (m *mockQuestions) Generate(_ context.Context, skills, experience, position string) (*assessment.QuestionSet, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.set, nil
}

func twoQuestions() *assessment.QuestionSet {
	return &assessment.QuestionSet{
		Level: assessment.Intermediate,
		Questions: []assessment.Question{
			{Skill: "go", Text: "How do you cancel goroutines?"},
			{Skill: "sql", Text: "When do you add an index?"},
		},
	}
}

func newTestManager() (*Manager, *mockResponder, *mockQuestions) {
	r := &mockResponder{}
	q := &mockQuestions{set: twoQuestions()}
	return NewManager(r, q, 0), r, q
}

func handle(t *testing.T, m *Manager, sess *Session, text string) Reply {
	t.Helper()
	reply, err := m.Handle(context.Background(), sess, text)
	if err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
	return reply
}

// TestFullScreening walks a candidate from the first message to completion.
func TestFullScreening(t *testing.T) {
	m, r, q := newTestManager()
	sess := &Session{State: StateInitial}

	steps := []struct {
		input     string
		wantState State
		wantText  string
	}{
		{"Jane Doe", StateDataCollection, "Thank you, Jane Doe! Could you please provide your email address?"},
		{"jane@example.com", StateDataCollection, "Great! Now, what's your phone number?"},
		{"555-123-4567", StateDataCollection, "How many years of experience"},
		{"5 years", StateDataCollection, "What position are you applying for?"},
		{"Backend Engineer", StateDataCollection, "What is your current location?"},
		{"Berlin", StateDataCollection, "Please list your tech stack"},
		{"Go, SQL", StateTechnicalAssessment, "Question 1 of 2 (go): How do you cancel goroutines?"},
		{"With context cancellation.", StateTechnicalAssessment, "Question 2 of 2 (sql): When do you add an index?"},
		{"When reads dominate.", StateFeedback, "Is there anything else you'd like to share"},
		{"Thanks for the chat.", StateCompletion, "contact you within 5-7 business days"},
		{"When will I hear back?", StateFollowUp, "LLM says hello."},
	}
	for _, s := range steps {
		reply := handle(t, m, sess, s.input)
		if sess.State != s.wantState {
			t.Fatalf("after %q: state = %q, want %q", s.input, sess.State, s.wantState)
		}
		if !strings.Contains(reply.Text, s.wantText) {
			t.Errorf("after %q: reply = %q, want it to contain %q", s.input, reply.Text, s.wantText)
		}
	}

	if sess.Candidate.Experience != "5" {
		t.Errorf("Experience = %q, want 5", sess.Candidate.Experience)
	}
	if q.calls != 1 {
		t.Errorf("question generation calls = %d, want 1", q.calls)
	}
	if len(r.requests) != 2 {
		t.Fatalf("LLM calls = %d, want 2", len(r.requests))
	}
	if r.requests[0].Task != llm.Screening || r.requests[1].Task != llm.QuickResponse {
		t.Errorf("tasks = %q, %q", r.requests[0].Task, r.requests[1].Task)
	}
}

func TestConfirmationListsProfile(t *testing.T) {
	m, _, _ := newTestManager()
	sess := &Session{
		State: StateDataCollection,
		Candidate: candidate.Candidate{
			Name: "Jane", Email: "j@example.com", Phone: "5551234567",
			Experience: "3", Position: "Dev", Location: "Oslo",
		},
	}
	reply := handle(t, m, sess, "Go, Docker")
	want := "Thank you for your information. I have: Name: Jane, Email: j@example.com, Phone: 5551234567, Experience: 3 years, Position: Dev, Location: Oslo, Tech Stack: Go, Docker. Now I'll ask a few technical questions."
	if !strings.HasPrefix(reply.Text, want) {
		t.Errorf("reply = %q\nwant prefix %q", reply.Text, want)
	}
	if reply.QuestionSet == nil {
		t.Error("QuestionSet not returned")
	}
	if len(sess.Questions) != 2 || sess.QuestionIndex != 0 {
		t.Errorf("questions = %d, index = %d", len(sess.Questions), sess.QuestionIndex)
	}
}

func TestInvalidFieldKeepsState(t *testing.T) {
	m, _, _ := newTestManager()
	sess := &Session{State: StateDataCollection, Candidate: candidate.Candidate{Name: "Jane"}}

	reply := handle(t, m, sess, "not-an-email")
	if reply.Text != "Please provide a valid email address (e.g., name@example.com)." {
		t.Errorf("reply = %q", reply.Text)
	}
	if sess.Candidate.Email != "" || sess.State != StateDataCollection {
		t.Errorf("session changed: %+v", sess)
	}
}

// TestQuestionGenerationFailure verifies the assessment continues through
// the LLM when no questions could be produced.
func TestQuestionGenerationFailure(t *testing.T) {
	r := &mockResponder{}
	m := NewManager(r, &mockQuestions{err: assessment.ErrNoParsedSkills}, 0)
	sess := &Session{
		State: StateDataCollection,
		Candidate: candidate.Candidate{
			Name: "Jane", Email: "j@example.com", Phone: "5551234567",
			Experience: "3", Position: "Dev", Location: "Oslo",
		},
	}
	reply := handle(t, m, sess, "stuff")
	if !strings.HasSuffix(reply.Text, assessment.Message(assessment.ErrNoParsedSkills)) {
		t.Errorf("reply = %q", reply.Text)
	}
	if sess.State != StateTechnicalAssessment {
		t.Fatalf("state = %q", sess.State)
	}

	handle(t, m, sess, "I mostly write scripts")
	if sess.State != StateFeedback {
		t.Errorf("state = %q, want feedback", sess.State)
	}
	if len(r.requests) != 1 || r.requests[0].Task != llm.TechnicalQuestions {
		t.Errorf("requests = %+v", r.requests)
	}
}

func TestIntents(t *testing.T) {
	m, _, _ := newTestManager()

	t.Run("greeting in initial", func(t *testing.T) {
		sess := &Session{State: StateInitial}
		reply := handle(t, m, sess, "hello")
		if reply.Text != Greeting() || sess.State != StateDataCollection {
			t.Errorf("reply = %q, state = %q", reply.Text, sess.State)
		}
	})

	t.Run("greeting during collection", func(t *testing.T) {
		sess := &Session{State: StateDataCollection, Candidate: candidate.Candidate{Name: "Jane"}}
		reply := handle(t, m, sess, "hi")
		want := "Hello again! Let's continue with the screening process.\n\nThank you, Jane! Could you please provide your email address?"
		if reply.Text != want {
			t.Errorf("reply = %q, want %q", reply.Text, want)
		}
	})

	t.Run("help", func(t *testing.T) {
		sess := &Session{State: StateTechnicalAssessment}
		reply := handle(t, m, sess, "help")
		if !strings.HasPrefix(reply.Text, "I'm TalentScout AI, your hiring assistant.") {
			t.Errorf("reply = %q", reply.Text)
		}
		if sess.State != StateTechnicalAssessment {
			t.Errorf("state = %q", sess.State)
		}
	})

	t.Run("restart clears profile", func(t *testing.T) {
		sess := &Session{
			State:         StateTechnicalAssessment,
			Candidate:     candidate.Candidate{Name: "Jane", Email: "j@example.com"},
			Questions:     twoQuestions().Questions,
			QuestionIndex: 1,
		}
		reply := handle(t, m, sess, "start over")
		if reply.Text != restartText {
			t.Errorf("reply = %q", reply.Text)
		}
		if sess.State != StateInitial || sess.Candidate != (candidate.Candidate{}) || sess.Questions != nil || sess.QuestionIndex != 0 {
			t.Errorf("session not reset: %+v", sess)
		}
	})

	t.Run("goodbye", func(t *testing.T) {
		sess := &Session{State: StateDataCollection}
		reply := handle(t, m, sess, "bye")
		if reply.Text != goodbyeText || sess.State != StateCompletion {
			t.Errorf("reply = %q, state = %q", reply.Text, sess.State)
		}
	})
}

func TestGibberishFallbacks(t *testing.T) {
	m, _, _ := newTestManager()

	tests := []struct {
		state State
		c     candidate.Candidate
		want  string
	}{
		{StateInitial, candidate.Candidate{}, "Hi there, I didn't quite understand that."},
		{StateDataCollection, candidate.Candidate{Name: "Jane"}, "Could you please provide your email address (example: name@company.com)?"},
		{StateTechnicalAssessment, candidate.Candidate{Name: "Jane"}, "I didn't quite understand your response, Jane."},
		{StateFeedback, candidate.Candidate{Name: "Jane"}, "I didn't quite understand that, Jane."},
	}
	for _, tt := range tests {
		sess := &Session{State: tt.state, Candidate: tt.c}
		reply := handle(t, m, sess, "!!!")
		if !strings.Contains(reply.Text, tt.want) {
			t.Errorf("%s: reply = %q, want %q", tt.state, reply.Text, tt.want)
		}
		if sess.State != tt.state {
			t.Errorf("%s: state changed to %q", tt.state, sess.State)
		}
	}
}

// TestGeneralChat verifies questions before the screening are answered and
// the name is asked again.
func TestGeneralChat(t *testing.T) {
	m, r, _ := newTestManager()
	sess := &Session{State: StateInitial}

	reply := handle(t, m, sess, "What does this role involve?")
	if sess.State != StateGeneralChat {
		t.Fatalf("state = %q, want general_chat", sess.State)
	}
	if !strings.HasPrefix(reply.Text, "LLM says hello.") || !strings.HasSuffix(reply.Text, Greeting()) {
		t.Errorf("reply = %q", reply.Text)
	}
	if r.requests[0].Task != llm.Conversation {
		t.Errorf("task = %q", r.requests[0].Task)
	}

	handle(t, m, sess, "Jane Doe")
	if sess.State != StateDataCollection || sess.Candidate.Name != "Jane Doe" {
		t.Errorf("state = %q, name = %q", sess.State, sess.Candidate.Name)
	}
}

func TestLLMReplyTruncated(t *testing.T) {
	r := &mockResponder{text: strings.Repeat("a", 50)}
	m := NewManager(r, &mockQuestions{}, 20)
	sess := &Session{State: StateFeedback}

	reply := handle(t, m, sess, "One more thing.")
	if !strings.HasPrefix(reply.Text, strings.Repeat("a", 20)+"...\n\n") {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestHandleContextCanceled(t *testing.T) {
	m, _, _ := newTestManager()
	sess := &Session{
		State: StateDataCollection,
		Candidate: candidate.Candidate{
			Name: "Jane", Email: "j@example.com", Phone: "5551234567",
			Experience: "3", Position: "Dev", Location: "Oslo",
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Handle(ctx, sess, "Go"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestContextPrompt(t *testing.T) {
	long := strings.Repeat("x", 250)
	var history []Message
	for i := 0; i < 12; i++ {
		history = append(history, Message{Role: "user", Content: "old"})
	}
	history = append(history, Message{Role: "assistant", Content: long})

	p := ContextPrompt(&Session{State: StateFeedback, History: history}, "latest words")
	for _, want := range []string{
		"Current conversation state: feedback",
		"Candidate: Unnamed candidate",
		"Position: Unspecified position",
		"Experience: Unknown years",
		"Tech stack: Not specified",
		"Assistant: " + strings.Repeat("x", 197) + "...",
		`Latest message: "latest words"`,
		"under 75 words",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if n := strings.Count(p, "User: old"); n != 9 {
		t.Errorf("history lines = %d, want 9", n)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateInitial, StateDataCollection, true},
		{StateDataCollection, StateTechnicalAssessment, true},
		{StateDataCollection, StateFeedback, false},
		{StateFollowUp, StateFeedback, false},
		{StateFollowUp, StateInitial, true},
		{StateTechnicalAssessment, StateCompletion, true},
		{StateGeneralChat, StateDataCollection, true},
		{StateFollowUp, StateFollowUp, true},
		{State("bogus"), StateInitial, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
