// Package session persists candidate conversations and serializes the
// messages of each one through the conversation state machine.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/candidate"
	"github.com/kalambet/talentscout/internal/conversation"
	"github.com/kalambet/talentscout/internal/storage"
	"github.com/kalambet/talentscout/internal/validate"
)

// ConsentVersion is the privacy notice version recorded with each consent.
const ConsentVersion = "1.0"

var (
	ErrConsentRequired = errors.New("privacy consent is required to start a session")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrNotFound        = errors.New("session not found")
	ErrSessionClosed   = errors.New("session has been anonymized")
)

// Store defines the storage operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	CreateSession(sess storage.Session) error
	GetSession(id string) (storage.Session, error)
	UpdateSession(sess storage.Session) error
	ListSessions(limit, offset int) ([]storage.Session, error)
	DeleteSession(id string) error
	AppendMessage(m storage.Message) (storage.Message, error)
	ListMessages(sessionID string) ([]storage.Message, error)
	SaveConsent(c storage.Consent) error
	SaveQuestionSet(q storage.QuestionSet) error
	LatestQuestionSet(sessionID string) (storage.QuestionSet, error)
	EnqueueJob(job storage.Job) error
}

// Handler advances a conversation. Implemented by conversation.Manager.
type Handler interface {
	Handle(ctx context.Context, sess *conversation.Session, text string) (conversation.Reply, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Session is the public view of a stored session.
type Session struct {
	ID            string                `json:"id"`
	CandidateID   string                `json:"candidate_id"`
	State         conversation.State    `json:"state"`
	Candidate     candidate.Candidate   `json:"candidate"`
	Questions     []assessment.Question `json:"questions"`
	QuestionIndex int                   `json:"question_index"`
	Anonymized    bool                  `json:"anonymized"`
	ConsentAt     time.Time             `json:"consent_at"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
}

// Turn is the result of starting a session or sending a message.
type Turn struct {
	Session Session `json:"session"`
	Reply   string  `json:"reply"`
}

// Manager owns the lifecycle of candidate sessions.
type Manager struct {
	store  Store
	conv   Handler
	clock  Clock
	locks  *keyedMutex
	logger *slog.Logger
}

// NewManager creates a Manager.
func NewManager(store Store, conv Handler) *Manager {
	return NewManagerWithClock(store, conv, realClock{})
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store Store, conv Handler, clock Clock) *Manager {
	return &Manager{
		store:  store,
		conv:   conv,
		clock:  clock,
		locks:  newKeyedMutex(),
		logger: slog.Default(),
	}
}

// Start opens a new session once the candidate has consented, records the
// consent and stores the greeting.
func (m *Manager) Start(ctx context.Context, consent bool) (Turn, error) {
	if !consent {
		return Turn{}, ErrConsentRequired
	}
	if err := ctx.Err(); err != nil {
		return Turn{}, err
	}
	now := m.clock.Now()
	rec := storage.Session{
		ID:          uuid.New().String(),
		CandidateID: newCandidateID(now),
		State:       string(conversation.StateDataCollection),
		ConsentAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.CreateSession(rec); err != nil {
		return Turn{}, fmt.Errorf("creating session: %w", err)
	}
	if err := m.store.SaveConsent(storage.Consent{
		CandidateID: rec.CandidateID,
		SessionID:   rec.ID,
		Version:     ConsentVersion,
		ConsentedAt: now,
	}); err != nil {
		return Turn{}, fmt.Errorf("recording consent: %w", err)
	}
	greeting := conversation.Greeting()
	if _, err := m.store.AppendMessage(storage.Message{
		SessionID: rec.ID, Role: "assistant", Content: greeting, CreatedAt: now,
	}); err != nil {
		return Turn{}, fmt.Errorf("storing greeting: %w", err)
	}
	m.logger.Info("session started", "session_id", rec.ID, "candidate_id", rec.CandidateID)
	return Turn{Session: fromRecord(rec), Reply: greeting}, nil
}

// Send handles one candidate message. Messages to the same session are
// processed one at a time.
func (m *Manager) Send(ctx context.Context, id, text string) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, ErrEmptyMessage
	}
	unlock := m.locks.Lock(id)
	defer unlock()

	rec, err := m.load(id)
	if err != nil {
		return Turn{}, err
	}
	if rec.Anonymized {
		return Turn{}, ErrSessionClosed
	}

	stored, err := m.store.ListMessages(id)
	if err != nil {
		return Turn{}, fmt.Errorf("loading messages: %w", err)
	}
	history := make([]conversation.Message, len(stored))
	for i, msg := range stored {
		history[i] = conversation.Message{Role: msg.Role, Content: msg.Content}
	}

	if err := ctx.Err(); err != nil {
		return Turn{}, err
	}
	sent := m.clock.Now()
	conv := toConversation(rec, history)
	reply, err := m.conv.Handle(ctx, &conv, text)
	if err != nil {
		return Turn{}, err
	}

	now := m.clock.Now()
	wasOpen := rec.CompletedAt.IsZero()
	if err := applyConversation(&rec, conv); err != nil {
		return Turn{}, err
	}
	rec.UpdatedAt = now
	if conv.State == conversation.StateCompletion && wasOpen {
		rec.CompletedAt = now
	}

	if err := m.store.UpdateSession(rec); err != nil {
		if errors.Is(err, storage.ErrAnonymized) {
			return Turn{}, ErrSessionClosed
		}
		return Turn{}, fmt.Errorf("updating session: %w", err)
	}
	if reply.QuestionSet != nil {
		if err := m.saveQuestionSet(id, reply.QuestionSet, now); err != nil {
			return Turn{}, err
		}
	}
	// A user turn is stored only once it has an answer.
	if _, err := m.store.AppendMessage(storage.Message{
		SessionID: id, Role: "user", Content: validate.Sanitize(text), CreatedAt: sent,
	}); err != nil {
		return Turn{}, fmt.Errorf("storing message: %w", err)
	}
	if _, err := m.store.AppendMessage(storage.Message{
		SessionID: id, Role: "assistant", Content: reply.Text, CreatedAt: now,
	}); err != nil {
		return Turn{}, fmt.Errorf("storing reply: %w", err)
	}

	if wasOpen && !rec.CompletedAt.IsZero() {
		if err := m.enqueue(storage.JobNotifyCompletion, id); err != nil {
			m.logger.Error("enqueueing completion notification", "session_id", id, "error", err)
		}
		m.logger.Info("session completed", "session_id", id)
	}
	return Turn{Session: fromRecord(rec), Reply: reply.Text}, nil
}

func (m *Manager) saveQuestionSet(sessionID string, set *assessment.QuestionSet, now time.Time) error {
	qs, err := json.Marshal(set.Questions)
	if err != nil {
		return fmt.Errorf("encoding questions: %w", err)
	}
	if err := m.store.SaveQuestionSet(storage.QuestionSet{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		Level:         string(set.Level),
		QuestionsJSON: string(qs),
		Markdown:      set.Markdown(),
		CreatedAt:     now,
	}); err != nil {
		return fmt.Errorf("saving question set: %w", err)
	}
	return nil
}

// LockSession blocks until no message for the session is being processed
// and holds it until the returned func is called.
func (m *Manager) LockSession(id string) func() {
	return m.locks.Lock(id)
}

// Get returns a session by ID.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	rec, err := m.load(id)
	if err != nil {
		return Session{}, err
	}
	return fromRecord(rec), nil
}

// Messages returns the transcript of a session.
func (m *Manager) Messages(ctx context.Context, id string) ([]storage.Message, error) {
	if _, err := m.load(id); err != nil {
		return nil, err
	}
	return m.store.ListMessages(id)
}

// QuestionSet returns the most recent question set of a session.
func (m *Manager) QuestionSet(ctx context.Context, id string) (storage.QuestionSet, error) {
	q, err := m.store.LatestQuestionSet(id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.QuestionSet{}, ErrNotFound
	}
	return q, err
}

// List returns sessions newest first.
func (m *Manager) List(ctx context.Context, limit, offset int) ([]Session, error) {
	recs, err := m.store.ListSessions(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	out := make([]Session, len(recs))
	for i, r := range recs {
		out[i] = fromRecord(r)
	}
	return out, nil
}

// Delete erases a session with its transcript, question sets and consent.
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	if _, err := m.load(id); err != nil {
		return err
	}
	if err := m.store.DeleteSession(id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	m.logger.Info("session erased", "session_id", id)
	return nil
}

// RegenerateQuestions queues a new question set for the session.
func (m *Manager) RegenerateQuestions(ctx context.Context, id string) error {
	if _, err := m.load(id); err != nil {
		return err
	}
	return m.enqueue(storage.JobGenerateQuestions, id)
}

// StoreQuestionSet records a question set generated outside the chat.
// Sessions that have not reached the technical assessment adopt its
// questions. Later sessions keep the questions they were asked.
func (m *Manager) StoreQuestionSet(ctx context.Context, id string, set *assessment.QuestionSet) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	rec, err := m.load(id)
	if err != nil {
		return err
	}
	if rec.Anonymized {
		return ErrSessionClosed
	}
	now := m.clock.Now()
	if err := m.saveQuestionSet(id, set, now); err != nil {
		return err
	}
	switch st := conversation.State(rec.State); {
	case st == conversation.StateTechnicalAssessment, st == conversation.StateFeedback, st.Closed():
		return nil
	}
	data, err := json.Marshal(set.Questions)
	if err != nil {
		return fmt.Errorf("encoding questions: %w", err)
	}
	rec.QuestionsJSON = string(data)
	rec.QuestionIndex = 0
	if err := m.store.UpdateSession(rec); err != nil {
		if errors.Is(err, storage.ErrAnonymized) {
			return ErrSessionClosed
		}
		return fmt.Errorf("updating session: %w", err)
	}
	return nil
}

func (m *Manager) enqueue(jobType, sessionID string) error {
	payload, err := json.Marshal(storage.SessionJobPayload{SessionID: sessionID})
	if err != nil {
		return err
	}
	return m.store.EnqueueJob(storage.Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		PayloadJSON: string(payload),
	})
}

func (m *Manager) load(id string) (storage.Session, error) {
	rec, err := m.store.GetSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Session{}, ErrNotFound
	}
	if err != nil {
		return storage.Session{}, fmt.Errorf("loading session: %w", err)
	}
	return rec, nil
}

// newCandidateID returns candidate_<unix seconds>_<four random digits>.
func newCandidateID(now time.Time) string {
	return fmt.Sprintf("candidate_%d_%d", now.Unix(), 1000+rand.IntN(9000))
}
