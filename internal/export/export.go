// Package export renders interview transcripts as downloadable files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kalambet/talentscout/internal/candidate"
	"github.com/kalambet/talentscout/internal/privacy"
	"github.com/kalambet/talentscout/internal/storage"
)

const timeLayout = "2006-01-02 15:04:05"

type Format string

const (
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
	FormatJSON Format = "json"
)

// ParseFormat accepts csv, txt (or text) and json, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "txt", "text":
		return FormatTXT, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported export format %q (want csv, txt or json)", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// Filename returns talentscout_interview_YYYYMMDD_HHMMSS.<ext>.
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("talentscout_interview_%s.%s", now.Format("20060102_150405"), f)
}

// Transcript is the input of every writer.
type Transcript struct {
	Candidate   candidate.Candidate
	Messages    []storage.Message
	GeneratedAt time.Time
}

// Write renders t in format f.
func Write(w io.Writer, f Format, t Transcript) error {
	switch f {
	case FormatCSV:
		return CSV(w, t)
	case FormatTXT:
		return TXT(w, t)
	case FormatJSON:
		return JSON(w, t)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// CSV writes a header block, the candidate summary as a System row and one
// row per message.
func CSV(w io.Writer, t Transcript) error {
	cw := csv.NewWriter(w)
	generated := t.GeneratedAt.Format(timeLayout)
	rows := [][]string{
		{"TalentScout AI Interview Export (CSV)"},
		{"Generated:", generated},
		{"Data Retention Policy:", "6 months from interview date"},
		{},
		{"Time", "Role", "Content"},
		{generated, "System", cell(t.Candidate.Summary())},
	}
	for _, m := range t.Messages {
		rows = append(rows, []string{m.CreatedAt.Format(timeLayout), capitalize(m.Role), cell(m.Content)})
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// TXT writes a plain-text transcript with privacy notice and profile.
func TXT(w io.Writer, t Transcript) error {
	c := t.Candidate
	var b strings.Builder
	fmt.Fprintf(&b, "TalentScout AI Interview - %s\n\n", t.GeneratedAt.Format(timeLayout))

	b.WriteString("DATA PRIVACY NOTICE\n")
	b.WriteString("=================\n")
	b.WriteString("This interview transcript contains personal data protected under GDPR.\n")
	b.WriteString("Data retention period: 6 months from interview date\n")
	fmt.Fprintf(&b, "For privacy concerns, contact: %s\n\n", privacy.ContactEmail)

	b.WriteString("CANDIDATE INFORMATION\n")
	b.WriteString("=====================\n")
	fmt.Fprintf(&b, "Name: %s\n", na(c.Name))
	fmt.Fprintf(&b, "Email: %s\n", na(c.Email))
	fmt.Fprintf(&b, "Phone: %s\n", na(c.Phone))
	fmt.Fprintf(&b, "Experience: %s years\n", na(c.Experience))
	fmt.Fprintf(&b, "Position: %s\n", na(c.Position))
	fmt.Fprintf(&b, "Location: %s\n", na(c.Location))
	fmt.Fprintf(&b, "Tech Stack: %s\n\n", na(c.TechStack))

	b.WriteString("INTERVIEW TRANSCRIPT\n")
	b.WriteString("===================\n\n")
	speaker := c.Name
	if speaker == "" {
		speaker = "Candidate"
	}
	for _, m := range t.Messages {
		who := speaker + ":"
		if m.Role == "assistant" {
			who = "TalentScout AI:"
		}
		fmt.Fprintf(&b, "%s\n%s\n\n", who, m.Content)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// JSON writes the privacy data export.
func JSON(w io.Writer, t Transcript) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(privacy.NewDataExport(t.Candidate, t.Messages, t.GeneratedAt))
}

// cell quotes candidate text that a spreadsheet would read as a formula.
func cell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func na(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
