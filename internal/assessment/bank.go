package assessment

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultBank []byte

// Bank maps a skill or category name to questions per Level.
type Bank map[string]map[Level][]string

// DefaultBank returns the embedded question bank.
func DefaultBank() Bank {
	b, err := ParseBank(defaultBank)
	if err != nil {
		panic(fmt.Sprintf("assessment: embedded question bank: %v", err))
	}
	return b
}

// LoadBank reads a YAML question bank from path. An empty path returns the
// embedded bank.
func LoadBank(path string) (Bank, error) {
	if path == "" {
		return DefaultBank(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question bank: %w", err)
	}
	return ParseBank(data)
}

// ParseBank decodes a YAML question bank. Keys are lower-cased.
func ParseBank(data []byte) (Bank, error) {
	var raw map[string]map[Level][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing question bank: %w", err)
	}
	b := make(Bank, len(raw))
	for k, levels := range raw {
		b[strings.ToLower(strings.TrimSpace(k))] = levels
	}
	return b, nil
}

// Lookup returns the bank questions for skill at level, trying the skill
// name first and then its category.
func (b Bank) Lookup(skill Skill, level Level) []string {
	if qs := b[skill.Name][level]; len(qs) > 0 {
		return qs
	}
	if qs := b[skill.Category][level]; len(qs) > 0 {
		return qs
	}
	return nil
}
