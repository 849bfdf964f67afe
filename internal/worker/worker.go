// Package worker runs background jobs: question generation, completion
// notifications and the retention purge.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/notify"
	"github.com/kalambet/talentscout/internal/session"
	"github.com/kalambet/talentscout/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	PruneJobs(cutoff time.Time) (int64, error)
}

// CachePruner drops stale LLM responses. Implemented by storage.Store.
type CachePruner interface {
	PruneCache(ttl time.Duration) (int64, error)
}

// Finished jobs are kept this long for inspection before the purge drops them.
const jobHistory = 7 * 24 * time.Hour

// Sessions reads sessions and stores question sets.
// Implemented by session.Manager.
type Sessions interface {
	Get(ctx context.Context, id string) (session.Session, error)
	StoreQuestionSet(ctx context.Context, id string, set *assessment.QuestionSet) error
}

// QuestionGenerator builds a question set from a candidate's stack.
type QuestionGenerator interface {
	Generate(ctx context.Context, skills, experience, position string) (*assessment.QuestionSet, error)
}

// Purger anonymizes expired sessions. Implemented by privacy.Purger.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int, error)
}

var jobTypes = []string{
	storage.JobGenerateQuestions,
	storage.JobNotifyCompletion,
	storage.JobRetentionPurge,
}

// Worker processes jobs from the SQLite job queue.
type Worker struct {
	store     JobStore
	sessions  Sessions
	questions QuestionGenerator
	notifier  notify.Notifier
	purger    Purger
	cache     CachePruner
	cacheTTL  time.Duration
	poll      time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Deps groups the collaborators of a Worker.
type Deps struct {
	Store     JobStore
	Sessions  Sessions
	Questions QuestionGenerator
	Notifier  notify.Notifier
	Purger    Purger

	// Cache is pruned of entries older than CacheTTL during the retention
	// purge. Optional.
	Cache    CachePruner
	CacheTTL time.Duration
}

// New creates a Worker. A nil Notifier discards events.
// If pollInterval is <= 0, it defaults to 500ms.
func New(deps Deps, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	n := deps.Notifier
	if n == nil {
		n = notify.Nop{}
	}
	return &Worker{
		store:     deps.Store,
		sessions:  deps.Sessions,
		questions: deps.Questions,
		notifier:  n,
		purger:    deps.Purger,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		poll:      pollInterval,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(jobTypes)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.process(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case storage.JobRetentionPurge:
		return w.retentionPurge(ctx)
	case storage.JobGenerateQuestions, storage.JobNotifyCompletion:
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}

	var payload storage.SessionJobPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	sess, err := w.sessions.Get(ctx, payload.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		w.logger.Info("session gone, dropping job", "job_id", job.ID, "session_id", payload.SessionID)
		return nil
	}
	if err != nil {
		return err
	}
	if sess.Anonymized {
		return nil
	}

	if job.Type == storage.JobGenerateQuestions {
		return w.generateQuestions(ctx, sess)
	}
	return w.notifyCompletion(ctx, sess)
}

func (w *Worker) retentionPurge(ctx context.Context) error {
	now := w.now()
	n, err := w.purger.Purge(ctx, now)
	if err != nil {
		return fmt.Errorf("purging: %w", err)
	}

	jobs, err := w.store.PruneJobs(now.Add(-jobHistory))
	if err != nil {
		return err
	}

	var cached int64
	if w.cache != nil && w.cacheTTL > 0 {
		if cached, err = w.cache.PruneCache(w.cacheTTL); err != nil {
			return fmt.Errorf("pruning cache: %w", err)
		}
	}
	w.logger.Info("retention purge finished", "sessions", n, "jobs", jobs, "cache_entries", cached)
	return nil
}

func (w *Worker) generateQuestions(ctx context.Context, sess session.Session) error {
	c := sess.Candidate
	set, err := w.questions.Generate(ctx, c.TechStack, c.Experience, c.Position)
	if err != nil {
		return fmt.Errorf("generating questions for %s: %w", sess.ID, err)
	}
	if err := w.sessions.StoreQuestionSet(ctx, sess.ID, set); err != nil {
		return fmt.Errorf("storing questions for %s: %w", sess.ID, err)
	}
	w.logger.Info("questions regenerated", "session_id", sess.ID, "count", len(set.Questions))
	return nil
}

func (w *Worker) notifyCompletion(ctx context.Context, sess session.Session) error {
	c := sess.Candidate
	score, _ := assessment.RoleMatch(c.TechStack, c.Experience, c.Position)
	occurred := w.now()
	if sess.CompletedAt != nil {
		occurred = *sess.CompletedAt
	}
	e := notify.Event{
		Type:        notify.EventCompleted,
		SessionID:   sess.ID,
		CandidateID: sess.CandidateID,
		Name:        c.Name,
		Position:    c.Position,
		Experience:  c.Experience,
		Level:       string(assessment.LevelFor(c.Experience)),
		MatchScore:  score,
		OccurredAt:  occurred,
	}
	if err := w.notifier.Notify(ctx, e); err != nil {
		return fmt.Errorf("notifying completion of %s: %w", sess.ID, err)
	}
	return nil
}
