package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/config"
	"github.com/kalambet/talentscout/internal/export"
	"github.com/kalambet/talentscout/internal/privacy"
	"github.com/kalambet/talentscout/internal/session"
)

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Review candidate sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/admin/sessions?limit=%d&offset=%d", limit, offset))
		if err != nil {
			return err
		}

		var sessions []session.Session
		if err := decodeJSON(resp, &sessions); err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Fprintln(stdout, "No sessions found.")
			return nil
		}

		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tSTATE\tCANDIDATE\tPOSITION")
		for _, s := range sessions {
			name := s.Candidate.Name
			if s.Anonymized {
				name = "(anonymized)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				colorize(stepColor, s.ID),
				s.CreatedAt.Local().Format("2006-01-02 15:04"),
				s.State,
				orDash(name),
				orDash(s.Candidate.Position),
			)
		}
		return tw.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session's candidate profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		id := url.PathEscape(args[0])

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if asJSON {
			resp, err := client.get(cmd.Context(), "/sessions/"+id)
			if err != nil {
				return err
			}
			var sess any
			if err := decodeJSON(resp, &sess); err != nil {
				return err
			}
			return printJSON(sess)
		}

		resp, err := client.get(cmd.Context(), "/admin/sessions/"+id+"/profile?format=markdown")
		if err != nil {
			return err
		}
		body, err := readBody(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, strings.TrimRight(string(body), "\n"))
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Erase a session and everything recorded about the candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/admin/sessions/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}

		printSuccess("Deleted session %s", args[0])
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	sessionsListCmd.Flags().Int("offset", 0, "number of sessions to skip")
	sessionsShowCmd.Flags().Bool("json", false, "print the raw session as JSON")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Download a session transcript",
	Long: `Download a session transcript as CSV, TXT or JSON.

Without --output the file is saved in the current directory under the
name the server suggests. Use --output - to write to stdout.

Examples:
  talentscout export 3f6c... --format csv
  talentscout export 3f6c... --format txt --output interview.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/sessions/%s/export?format=%s", url.PathEscape(args[0]), format)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		suggested := attachmentName(resp.Header().Get("Content-Disposition"))
		body, err := readBody(resp)
		if err != nil {
			return err
		}

		if output == "-" {
			_, err := stdout.Write(body)
			return err
		}
		if output == "" {
			output = suggested
			if output == "" {
				output = export.Filename(format, time.Now())
			}
		}
		if err := os.WriteFile(output, body, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		printSuccess("Transcript exported to %s", output)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "export format: csv, txt or json")
	exportCmd.Flags().String("output", "", "output file path (- for stdout)")
}

// attachmentName extracts a safe base filename from a Content-Disposition
// header.
func attachmentName(header string) string {
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return ""
	}
	return name
}

// --- questions ---

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Generate or review technical questions",
}

var questionsGenerateCmd = &cobra.Command{
	Use:   "generate [<id>]",
	Short: "Generate questions for a tech stack, or regenerate a session's set",
	Long: `Generate technical questions.

With a session ID the session's question set is regenerated in the
background. Otherwise --skills is required and the set is printed.

Examples:
  talentscout questions generate --skills "Go, PostgreSQL" --experience 5
  talentscout questions generate 3f6c...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		skills, _ := cmd.Flags().GetString("skills")
		experience, _ := cmd.Flags().GetString("experience")
		position, _ := cmd.Flags().GetString("position")

		if len(args) == 0 && strings.TrimSpace(skills) == "" {
			return fmt.Errorf("either a session ID or --skills is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			resp, err := client.post(cmd.Context(), "/admin/sessions/"+url.PathEscape(args[0])+"/questions", nil)
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, nil); err != nil {
				return err
			}
			printSuccess("Question regeneration queued for session %s", args[0])
			return nil
		}

		resp, err := client.post(cmd.Context(), "/admin/questions", map[string]string{
			"skills":     skills,
			"experience": experience,
			"position":   position,
		})
		if err != nil {
			return err
		}
		var set struct {
			Markdown string `json:"markdown"`
		}
		if err := decodeJSON(resp, &set); err != nil {
			return err
		}
		fmt.Fprintln(stdout, strings.TrimRight(set.Markdown, "\n"))
		return nil
	},
}

var questionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the latest question set of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/admin/sessions/"+url.PathEscape(args[0])+"/questions?format=markdown")
		if err != nil {
			return err
		}
		body, err := readBody(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, strings.TrimRight(string(body), "\n"))
		return nil
	},
}

func init() {
	questionsGenerateCmd.Flags().String("skills", "", "comma-separated tech stack")
	questionsGenerateCmd.Flags().String("experience", "", "years of experience")
	questionsGenerateCmd.Flags().String("position", "", "desired position")
	questionsCmd.AddCommand(questionsGenerateCmd)
	questionsCmd.AddCommand(questionsShowCmd)
}

// --- evaluate ---

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <skill>",
	Short: "Score a skill against experience and role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		experience, _ := cmd.Flags().GetString("experience")
		position, _ := cmd.Flags().GetString("position")
		asJSON, _ := cmd.Flags().GetBool("json")

		ev := assessment.New(assessment.DefaultBank(), nil, assessment.Options{}).
			Evaluate(args[0], experience, position)
		if asJSON {
			return printJSON(ev)
		}

		fmt.Fprintf(stdout, "%s %s\n", colorize(boldColor, "Skill:"), ev.Skill)
		if ev.Role != "" {
			fmt.Fprintf(stdout, "%s %s\n", colorize(boldColor, "Role:"), ev.Role)
		}
		fmt.Fprintf(stdout, "%s %s\n", colorize(boldColor, "Relevance:"), ev.Relevance)
		fmt.Fprintf(stdout, "%s %s\n", colorize(boldColor, "Level:"), ev.Level)
		fmt.Fprintf(stdout, "%s %d/100\n", colorize(boldColor, "Score:"), ev.Score)
		fmt.Fprintf(stdout, "%s %s\n", colorize(boldColor, "Recommendation:"), ev.Recommendation)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("experience", "", "years of experience")
	evaluateCmd.Flags().String("position", "", "target position")
	evaluateCmd.Flags().Bool("json", false, "print the evaluation as JSON")
}

// --- purge ---

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Anonymize sessions past the retention period now",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This anonymizes every session past the retention period and deletes its transcript. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Purging expired sessions...")
		resp, err := client.post(cmd.Context(), "/admin/purge", nil)
		if err != nil {
			return err
		}
		var result struct {
			Purged int `json:"purged"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Purged %d session(s)", result.Purged)
		return nil
	},
}

func init() {
	purgeCmd.Flags().Bool("confirm", false, "confirm the purge")
}

// --- privacy ---

var privacyCmd = &cobra.Command{
	Use:   "privacy",
	Short: "Print the privacy notice shown to candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(stdout, privacy.Notice)
		return err
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadUnchecked()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(stdout, "  %s = %s\n", colorize(boldColor, k.Key), k.Value)
		}
		if cfg.Groq.APIKey == "" {
			printWarning("GROQ_API_KEY is not set; chat and serve will refuse to start")
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return config.ValidKeys(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
