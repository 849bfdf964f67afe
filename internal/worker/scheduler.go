package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/kalambet/talentscout/internal/storage"
)

// DefaultPurgeSchedule runs the retention purge daily at 03:00.
const DefaultPurgeSchedule = "0 3 * * *"

// Enqueuer adds jobs to the queue. Implemented by storage.Store.
type Enqueuer interface {
	EnqueueJob(job storage.Job) error
}

// Scheduler enqueues a retention_purge job at every activation of a
// standard 5-field cron expression.
type Scheduler struct {
	store    Enqueuer
	schedule cron.Schedule
	expr     string
	now      func() time.Time
	logger   *slog.Logger
}

// NewScheduler parses expr. An empty expr means DefaultPurgeSchedule.
func NewScheduler(store Enqueuer, expr string) (*Scheduler, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultPurgeSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", expr, err)
	}
	return &Scheduler{
		store:    store,
		schedule: sched,
		expr:     expr,
		now:      time.Now,
		logger:   slog.Default(),
	}, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run sleeps until each activation and enqueues a purge, until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("retention purge scheduled", "cron", s.expr)
	for {
		now := s.now()
		next := s.schedule.Next(now)
		s.logger.Debug("next retention purge", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.Enqueue(); err != nil {
			s.logger.Error("enqueueing retention purge", "error", err)
		}
	}
}

// Enqueue adds one retention_purge job.
func (s *Scheduler) Enqueue() error {
	return s.store.EnqueueJob(storage.Job{
		ID:          uuid.New().String(),
		Type:        storage.JobRetentionPurge,
		PayloadJSON: "{}",
	})
}
