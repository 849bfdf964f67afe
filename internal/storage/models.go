package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAnonymized is returned when writing to a session the retention
	// purge has already anonymized.
	ErrAnonymized = errors.New("session is anonymized")
)

// Session is one candidate's screening conversation together with the
// profile collected so far. Name, Email and Phone are stored encrypted when
// the store has a FieldCipher.
type Session struct {
	ID            string
	CandidateID   string
	State         string
	Name          string
	Email         string
	Phone         string
	Experience    string
	Position      string
	Location      string
	TechStack     string
	QuestionsJSON string // JSON array of {skill, text}
	QuestionIndex int
	ConsentAt     time.Time
	Anonymized    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   time.Time // zero while the session is open
}

type Message struct {
	ID        int64
	SessionID string
	Role      string // "user", "assistant"
	Content   string
	CreatedAt time.Time
}

type Consent struct {
	CandidateID string
	SessionID   string
	Version     string
	ConsentedAt time.Time
}

type QuestionSet struct {
	ID            string
	SessionID     string
	Level         string
	QuestionsJSON string
	Markdown      string
	CreatedAt     time.Time
}

// CacheEntry is a memoized LLM completion keyed by a digest of the request.
type CacheEntry struct {
	Key       string
	Model     string
	Response  string
	CreatedAt time.Time
}

// Job types processed by the background worker.
const (
	JobGenerateQuestions = "generate_questions"
	JobNotifyCompletion  = "notify_completion"
	JobRetentionPurge    = "retention_purge"
)

// SessionJobPayload is the payload of jobs that target one session.
type SessionJobPayload struct {
	SessionID string `json:"session_id"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// FieldCipher encrypts personal fields before they reach disk.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
