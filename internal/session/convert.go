package session

import (
	"encoding/json"
	"fmt"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/candidate"
	"github.com/kalambet/talentscout/internal/conversation"
	"github.com/kalambet/talentscout/internal/storage"
)

func candidateOf(r storage.Session) candidate.Candidate {
	return candidate.Candidate{
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Experience: r.Experience,
		Position:   r.Position,
		Location:   r.Location,
		TechStack:  r.TechStack,
	}
}

func questionsOf(r storage.Session) []assessment.Question {
	var qs []assessment.Question
	if r.QuestionsJSON == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(r.QuestionsJSON), &qs); err != nil {
		return nil
	}
	return qs
}

func fromRecord(r storage.Session) Session {
	s := Session{
		ID:            r.ID,
		CandidateID:   r.CandidateID,
		State:         conversation.State(r.State),
		Candidate:     candidateOf(r),
		Questions:     questionsOf(r),
		QuestionIndex: r.QuestionIndex,
		Anonymized:    r.Anonymized,
		ConsentAt:     r.ConsentAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if !r.CompletedAt.IsZero() {
		t := r.CompletedAt
		s.CompletedAt = &t
	}
	return s
}

func toConversation(r storage.Session, history []conversation.Message) conversation.Session {
	return conversation.Session{
		State:         conversation.State(r.State),
		Candidate:     candidateOf(r),
		Questions:     questionsOf(r),
		QuestionIndex: r.QuestionIndex,
		History:       history,
	}
}

// applyConversation copies the mutable conversation state back onto r.
func applyConversation(r *storage.Session, c conversation.Session) error {
	r.State = string(c.State)
	r.Name = c.Candidate.Name
	r.Email = c.Candidate.Email
	r.Phone = c.Candidate.Phone
	r.Experience = c.Candidate.Experience
	r.Position = c.Candidate.Position
	r.Location = c.Candidate.Location
	r.TechStack = c.Candidate.TechStack
	r.QuestionIndex = c.QuestionIndex

	qs := c.Questions
	if qs == nil {
		qs = []assessment.Question{}
	}
	data, err := json.Marshal(qs)
	if err != nil {
		return fmt.Errorf("encoding questions: %w", err)
	}
	r.QuestionsJSON = string(data)
	return nil
}
