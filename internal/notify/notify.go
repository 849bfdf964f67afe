// Package notify tells recruiters that a screening finished.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventCompleted is emitted once per session when it reaches completion.
const EventCompleted = "screening.completed"

// Event describes a finished screening. It carries no contact details.
type Event struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	CandidateID string    `json:"candidate_id"`
	Name        string    `json:"name"`
	Position    string    `json:"position"`
	Experience  string    `json:"experience"`
	Level       string    `json:"level"`
	MatchScore  int       `json:"match_score"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Summary renders the event as one line of text.
func (e Event) Summary() string {
	name := e.Name
	if name == "" {
		name = "A candidate"
	}
	position := e.Position
	if position == "" {
		position = "an unspecified role"
	}
	return fmt.Sprintf("%s completed screening for %s (%s level, %s years, match %d%%). Session %s.",
		name, position, e.Level, e.Experience, e.MatchScore, e.SessionID)
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Multi sends to every notifier, even after one fails.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
