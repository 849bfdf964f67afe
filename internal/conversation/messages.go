package conversation

import (
	"fmt"
	"strings"

	"github.com/kalambet/talentscout/internal/candidate"
)

const (
	greetingText = "Welcome to TalentScout AI! I'm your hiring assistant, here to help with the initial screening process. To get started, could you please tell me your full name?"
	restartText  = "I've reset our conversation. Let's start again. Could you please tell me your full name?"
	goodbyeText  = "Thank you for your time today. Your application has been recorded. Our hiring team will review your information and contact you within 5-7 business days."
	helpText     = "I'm TalentScout AI, your hiring assistant. I'll guide you through the screening process by asking about your background, experience, and skills. Just answer each question as it comes up. If you need to correct any information, just let me know."
	welcomeBack  = "Hello again! Let's continue with the screening process."
	assessedText = "Thank you for your responses to the technical questions. Your answers will help us evaluate your fit for this role. Is there anything else you'd like to share before we wrap up?"
)

// Greeting is the first assistant message of every session.
func Greeting() string { return greetingText }

var fieldPrompts = map[candidate.Field]string{
	candidate.FieldName:       greetingText,
	candidate.FieldEmail:      "Thank you, %s! Could you please provide your email address?",
	candidate.FieldPhone:      "Great! Now, what's your phone number?",
	candidate.FieldExperience: "How many years of experience do you have in your field?",
	candidate.FieldPosition:   "What position are you applying for?",
	candidate.FieldLocation:   "What is your current location?",
	candidate.FieldTechStack:  "Please list your tech stack (programming languages, frameworks, databases, tools you're proficient in):",
}

// FieldPrompt returns the question asking for f.
func FieldPrompt(f candidate.Field, c candidate.Candidate) string {
	p := fieldPrompts[f]
	if f == candidate.FieldEmail {
		return fmt.Sprintf(p, c.Name)
	}
	return p
}

var fieldDescriptions = map[candidate.Field]string{
	candidate.FieldName:       "full name",
	candidate.FieldEmail:      "email address (example: name@company.com)",
	candidate.FieldPhone:      "phone number",
	candidate.FieldExperience: "years of experience in your field",
	candidate.FieldPosition:   "position you're applying for",
	candidate.FieldLocation:   "current location or city",
	candidate.FieldTechStack:  "technical skills and technologies you're proficient in",
}

// fallback answers input that could not be understood in state.
func fallback(state State, c candidate.Candidate) string {
	name := c.Name
	if name == "" {
		name = "there"
	}
	switch state {
	case StateInitial:
		return fmt.Sprintf("Hi %s, I didn't quite understand that. I'm TalentScout AI, your hiring assistant. To get started with the screening process, could you please tell me your full name?", name)
	case StateDataCollection:
		if f, ok := c.NextMissing(); ok {
			return fmt.Sprintf("I need to collect some information for your application. Could you please provide your %s?", fieldDescriptions[f])
		}
	case StateTechnicalAssessment:
		return fmt.Sprintf("I didn't quite understand your response, %s. We're currently in the technical assessment phase. Could you please elaborate on your experience with the technologies you mentioned?", name)
	}
	return fmt.Sprintf("I didn't quite understand that, %s. Could you please rephrase or provide more details? I'm here to help with your job application.", name)
}

func confirmation(c candidate.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your information. I have: Name: %s, Email: %s, Phone: %s, Experience: %s years, Position: %s",
		c.Name, c.Email, c.Phone, c.Experience, c.Position)
	if c.Location != "" {
		fmt.Fprintf(&b, ", Location: %s", c.Location)
	}
	fmt.Fprintf(&b, ", Tech Stack: %s. Now I'll ask a few technical questions.", c.TechStack)
	return b.String()
}
