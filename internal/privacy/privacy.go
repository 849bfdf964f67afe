// Package privacy implements the candidate data-protection features:
// the privacy notice, anonymization, data export, field encryption and
// retention purging.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kalambet/talentscout/internal/candidate"
	"github.com/kalambet/talentscout/internal/storage"
)

const (
	ContactEmail    = "privacy@talentscout.ai"
	DataController  = "TalentScout AI"
	RetentionPolicy = "Data retained for 6 months from interview date"
)

// Notice is the privacy notice shown before a candidate consents.
const Notice = `Privacy Notice - TalentScout AI Hiring Assistant

TalentScout AI collects and processes your personal data to facilitate the hiring process. This notice explains how we handle your information.

Data We Collect
  - Basic personal information (name, email, phone number)
  - Professional information (experience, skills, position applying for)
  - Your responses during the screening conversation

How We Use Your Data
  - To assess your suitability for the position
  - To generate relevant technical questions
  - To provide hiring recommendations to employers

Your Data Rights
  - Access your personal data
  - Request correction of inaccurate data
  - Request deletion of your data
  - Export your conversation data

Data Retention
We retain your data for 6 months after the interview, after which it will be anonymized or deleted.

Contact Information
For privacy inquiries, please contact: ` + ContactEmail + "\n"

// Anonymize replaces the identifying fields of c with stable hashes.
// Professional fields are kept.
func Anonymize(c candidate.Candidate) candidate.Candidate {
	if c.Name != "" {
		c.Name = "Candidate_" + digest(c.Name, 8)
	}
	if c.Email != "" {
		c.Email = "email_" + digest(c.Email, 10)
	}
	if c.Phone != "" {
		c.Phone = "phone_" + digest(c.Phone, 10)
	}
	return c
}

func digest(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}

type PersonalData struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

type ProfessionalData struct {
	Experience string `json:"experience,omitempty"`
	Position   string `json:"position,omitempty"`
	TechStack  string `json:"tech_stack,omitempty"`
}

type ExportMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DataExport is everything stored about a candidate, in the shape handed
// out on a data access request.
type DataExport struct {
	PersonalData     PersonalData     `json:"personal_data"`
	ProfessionalData ProfessionalData `json:"professional_data"`
	ChatHistory      []ExportMessage  `json:"chat_history"`
	ExportDate       time.Time        `json:"export_date"`
	RetentionPolicy  string           `json:"retention_policy"`
	DataController   string           `json:"data_controller"`
	PrivacyContact   string           `json:"privacy_contact"`
}

// NewDataExport assembles the export for c and its transcript.
func NewDataExport(c candidate.Candidate, messages []storage.Message, now time.Time) DataExport {
	history := make([]ExportMessage, len(messages))
	for i, m := range messages {
		history[i] = ExportMessage{Role: m.Role, Content: m.Content, Timestamp: m.CreatedAt}
	}
	return DataExport{
		PersonalData: PersonalData{
			Name: c.Name, Email: c.Email, Phone: c.Phone, Location: c.Location,
		},
		ProfessionalData: ProfessionalData{
			Experience: c.Experience, Position: c.Position, TechStack: c.TechStack,
		},
		ChatHistory:     history,
		ExportDate:      now,
		RetentionPolicy: RetentionPolicy,
		DataController:  DataController,
		PrivacyContact:  ContactEmail,
	}
}
