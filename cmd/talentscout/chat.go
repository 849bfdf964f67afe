package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/talentscout/internal/config"
	"github.com/kalambet/talentscout/internal/conversation"
	"github.com/kalambet/talentscout/internal/export"
	"github.com/kalambet/talentscout/internal/privacy"
	"github.com/kalambet/talentscout/internal/session"
	"github.com/kalambet/talentscout/internal/storage"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run a candidate screening in the terminal",
	Long: `Run a candidate screening in the terminal.

The privacy notice is shown first and the chat only starts after consent.
Type /quit to leave early. With --export-dir, CSV and TXT transcripts are
written when the chat ends.

Examples:
  talentscout chat
  talentscout chat --export-dir ./transcripts`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exportDir, _ := cmd.Flags().GetString("export-dir")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log)

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w := a.newWorker()
		workerCtx, stopWorker := context.WithCancel(ctx)
		go w.Run(workerCtx)

		err = runChat(ctx, os.Stdin, stdout, a.sessions, chatOptions{ExportDir: exportDir})
		stopWorker()

		// Deliver the completion notice queued by the last turn.
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for {
			ok, jobErr := w.RunOnce(drainCtx)
			if jobErr != nil {
				slog.Warn("background job failed", "error", jobErr)
			}
			if !ok {
				break
			}
		}
		return err
	},
}

func init() {
	chatCmd.Flags().String("export-dir", "", "directory for CSV and TXT transcripts written at the end")
}

// chatSessions is the part of session.Manager the terminal chat uses.
type chatSessions interface {
	Start(ctx context.Context, consent bool) (session.Turn, error)
	Send(ctx context.Context, id, text string) (session.Turn, error)
	Get(ctx context.Context, id string) (session.Session, error)
	Messages(ctx context.Context, id string) ([]storage.Message, error)
}

type chatOptions struct {
	ExportDir string
	Now       func() time.Time
}

// runChat drives one screening over in/out. It returns nil when the
// candidate declines consent, quits, or the conversation completes.
func runChat(ctx context.Context, in io.Reader, out io.Writer, sessions chatSessions, opts chatOptions) error {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	fmt.Fprint(out, privacy.Notice+"\n")
	fmt.Fprint(out, colorize(boldColor, "Do you consent to the processing of your data? [y/N]: "))
	if !scanner.Scan() || !isYes(scanner.Text()) {
		fmt.Fprintln(out, "\nConsent is required to continue. Goodbye.")
		return scanner.Err()
	}

	turn, err := sessions.Start(ctx, true)
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	id := turn.Session.ID
	printReply(out, turn.Reply)

	for turn.Session.State != conversation.StateCompletion {
		fmt.Fprint(out, colorize(youColor, "You: "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			break
		}

		next, err := sessions.Send(ctx, id, text)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, session.ErrSessionClosed) || errors.Is(err, session.ErrNotFound) {
				return err
			}
			fmt.Fprintln(out, colorize(errorColor, "Sorry, something went wrong: "+err.Error()))
			continue
		}
		turn = next
		printReply(out, turn.Reply)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	if opts.ExportDir == "" {
		return nil
	}
	return exportChat(ctx, sessions, id, opts.ExportDir, opts.Now().UTC(), out)
}

func printReply(out io.Writer, reply string) {
	fmt.Fprintf(out, "\n%s\n%s\n\n", colorize(botColor, "TalentScout AI:"), reply)
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "i agree", "agree":
		return true
	}
	return false
}

// exportChat writes CSV and TXT transcripts of session id into dir.
func exportChat(ctx context.Context, sessions chatSessions, id, dir string, now time.Time, out io.Writer) error {
	sess, err := sessions.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	msgs, err := sessions.Messages(ctx, id)
	if err != nil {
		return fmt.Errorf("loading transcript: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}

	t := export.Transcript{Candidate: sess.Candidate, Messages: msgs, GeneratedAt: now}
	for _, f := range []export.Format{export.FormatCSV, export.FormatTXT} {
		path := filepath.Join(dir, export.Filename(f, now))
		if err := writeExport(path, f, t); err != nil {
			return err
		}
		fmt.Fprintln(out, colorize(successColor, "✓ Transcript saved to "+path))
	}
	return nil
}

func writeExport(path string, f export.Format, t export.Transcript) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := export.Write(file, f, t); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}
