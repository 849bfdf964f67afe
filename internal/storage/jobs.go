package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

const (
	defaultMaxAttempts = 3
	// maxBackoffSeconds caps the retry delay of a failing job.
	maxBackoffSeconds = 300
)

const jobColumns = `id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error`

// EnqueueJob adds a pending job. An identical job (same type and payload)
// that is still pending absorbs the new one, so repeated regenerate requests
// or overlapping purge schedules queue a single unit of work. An empty ID is
// replaced with a UUID; MaxAttempts defaults to 3 and RunAfter to now.
func (s *Store) EnqueueJob(job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = defaultMaxAttempts
	}
	now := time.Now()
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}

	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		SELECT ?, ?, ?, 'pending', 0, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM jobs WHERE type = ? AND payload_json = ? AND status = 'pending'
		)`,
		job.ID, job.Type, job.PayloadJSON, job.MaxAttempts, formatTime(job.RunAfter), formatTime(now), formatTime(now),
		job.Type, job.PayloadJSON,
	)
	if err != nil {
		return fmt.Errorf("enqueueing %s job: %w", job.Type, err)
	}
	return nil
}

// ClaimNextJob moves the oldest runnable job of one of the given types to
// running and returns it, or nil when nothing is runnable. The select and
// the update are one statement, so two workers never claim the same job.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := formatTime(time.Now())
	args := []any{now, now}
	for _, t := range types {
		args = append(args, t)
	}
	row := s.db.QueryRow(`
		UPDATE jobs SET status = 'running', updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND run_after <= ? AND type IN (?`+strings.Repeat(",?", len(types)-1)+`)
			ORDER BY run_after, created_at
			LIMIT 1
		)
		RETURNING `+jobColumns, args...)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	return j, nil
}

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	if err := row.Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError); err != nil {
		return nil, err
	}
	j.LastError = lastError.String

	var err error
	if j.RunAfter, err = parseTime(runAfter); err != nil {
		return nil, err
	}
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if j.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

// GetJob returns a job by ID.
func (s *Store) GetJob(id string) (Job, error) {
	j, err := scanJob(s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("getting job %s: %w", id, err)
	}
	return *j, nil
}

func (s *Store) CompleteJob(id string) error {
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// FailJob records a failed attempt. Until max_attempts is reached the job
// goes back to pending and becomes runnable again after 2^attempts seconds
// (at most five minutes); then it is marked failed for good.
func (s *Store) FailJob(id string, errMsg string) error {
	now := formatTime(time.Now())
	res, err := s.db.Exec(`
		UPDATE jobs SET
			attempts   = attempts + 1,
			last_error = ?,
			updated_at = ?,
			status     = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
			run_after  = CASE WHEN attempts + 1 >= max_attempts THEN run_after
				ELSE strftime('%Y-%m-%dT%H:%M:%SZ', ?, '+' || min(1 << (attempts + 1), ?) || ' seconds') END
		WHERE id = ?`,
		errMsg, now, now, maxBackoffSeconds, id,
	)
	if err != nil {
		return fmt.Errorf("failing job %s: %w", id, err)
	}
	return expectOne(res)
}

// PruneJobs deletes completed and failed jobs last updated before cutoff.
func (s *Store) PruneJobs(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM jobs WHERE status IN ('completed', 'failed') AND updated_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning jobs: %w", err)
	}
	return res.RowsAffected()
}

// JobCounts returns the number of jobs per status.
func (s *Store) JobCounts() (map[string]int, error) {
	return s.countBy(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
