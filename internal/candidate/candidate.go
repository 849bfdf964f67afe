// Package candidate defines the profile collected during screening.
package candidate

import (
	"fmt"
	"strings"
)

// Field names a profile attribute. The values double as storage column and
// JSON keys.
type Field string

const (
	FieldName       Field = "name"
	FieldEmail      Field = "email"
	FieldPhone      Field = "phone"
	FieldExperience Field = "experience"
	FieldPosition   Field = "position"
	FieldLocation   Field = "location"
	FieldTechStack  Field = "tech_stack"
)

// Order is the sequence in which fields are asked for.
var Order = []Field{
	FieldName, FieldEmail, FieldPhone, FieldExperience,
	FieldPosition, FieldLocation, FieldTechStack,
}

// Label returns the human-readable name of f ("tech stack" for tech_stack).
func (f Field) Label() string {
	return strings.ReplaceAll(string(f), "_", " ")
}

// Candidate is the profile gathered field by field during data collection.
type Candidate struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Experience string `json:"experience,omitempty"`
	Position   string `json:"position,omitempty"`
	Location   string `json:"location,omitempty"`
	TechStack  string `json:"tech_stack,omitempty"`
}

// Get returns the value of field f.
func (c Candidate) Get(f Field) string {
	switch f {
	case FieldName:
		return c.Name
	case FieldEmail:
		return c.Email
	case FieldPhone:
		return c.Phone
	case FieldExperience:
		return c.Experience
	case FieldPosition:
		return c.Position
	case FieldLocation:
		return c.Location
	case FieldTechStack:
		return c.TechStack
	}
	return ""
}

// Set assigns v to field f. Unknown fields are ignored.
func (c *Candidate) Set(f Field, v string) {
	switch f {
	case FieldName:
		c.Name = v
	case FieldEmail:
		c.Email = v
	case FieldPhone:
		c.Phone = v
	case FieldExperience:
		c.Experience = v
	case FieldPosition:
		c.Position = v
	case FieldLocation:
		c.Location = v
	case FieldTechStack:
		c.TechStack = v
	}
}

// NextMissing returns the first field in Order without a value.
func (c Candidate) NextMissing() (Field, bool) {
	for _, f := range Order {
		if c.Get(f) == "" {
			return f, true
		}
	}
	return "", false
}

// Summary renders the profile as newline-separated "Label: value" lines,
// substituting N/A for missing values.
func (c Candidate) Summary() string {
	na := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}
	return fmt.Sprintf("Candidate: %s\nEmail: %s\nPhone: %s\nExperience: %s years\nPosition: %s\nLocation: %s\nTech Stack: %s",
		na(c.Name), na(c.Email), na(c.Phone), na(c.Experience), na(c.Position), na(c.Location), na(c.TechStack))
}
