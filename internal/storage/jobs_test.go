package storage

import (
	"errors"
	"testing"
	"time"
)

func enqueue(t *testing.T, s *Store, job Job) {
	t.Helper()
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob(%s): %v", job.ID, err)
	}
}

func claim(t *testing.T, s *Store, types ...string) *Job {
	t.Helper()
	j, err := s.ClaimNextJob(types)
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	return j
}

func TestClaimNextJob(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "j-1", Type: JobGenerateQuestions, PayloadJSON: `{"session_id":"s1"}`})

	got := claim(t, s, JobGenerateQuestions)
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j-1" || got.Type != JobGenerateQuestions || got.PayloadJSON != `{"session_id":"s1"}` {
		t.Errorf("job = %+v", got)
	}
	if got.Status != JobRunning || got.MaxAttempts != 3 || got.Attempts != 0 {
		t.Errorf("status = %q, attempts = %d/%d", got.Status, got.Attempts, got.MaxAttempts)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("timestamps = %v / %v", got.CreatedAt, got.UpdatedAt)
	}

	if again := claim(t, s, JobGenerateQuestions); again != nil {
		t.Errorf("running job claimed twice: %+v", again)
	}
}

func TestClaimNextJob_NothingRunnable(t *testing.T) {
	tests := []struct {
		name  string
		jobs  []Job
		types []string
	}{
		{name: "empty queue", types: []string{JobGenerateQuestions}},
		{name: "no types", jobs: []Job{{ID: "a", Type: JobRetentionPurge, PayloadJSON: `{}`}}},
		{
			name:  "other type",
			jobs:  []Job{{ID: "a", Type: JobRetentionPurge, PayloadJSON: `{}`}},
			types: []string{JobNotifyCompletion},
		},
		{
			name:  "scheduled later",
			jobs:  []Job{{ID: "a", Type: JobRetentionPurge, PayloadJSON: `{}`, RunAfter: time.Now().Add(time.Hour)}},
			types: []string{JobRetentionPurge},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			for _, j := range tt.jobs {
				enqueue(t, s, j)
			}
			if got := claim(t, s, tt.types...); got != nil {
				t.Errorf("claimed %+v", got)
			}
		})
	}
}

func TestClaimNextJob_OldestFirstAcrossTypes(t *testing.T) {
	s := openTestStore(t)
	past := time.Now().Add(-time.Minute)
	enqueue(t, s, Job{ID: "newer", Type: JobNotifyCompletion, PayloadJSON: `{"session_id":"s2"}`})
	enqueue(t, s, Job{ID: "older", Type: JobGenerateQuestions, PayloadJSON: `{"session_id":"s1"}`, RunAfter: past})

	first := claim(t, s, JobGenerateQuestions, JobNotifyCompletion)
	second := claim(t, s, JobGenerateQuestions, JobNotifyCompletion)
	if first == nil || second == nil || first.ID != "older" || second.ID != "newer" {
		t.Errorf("claim order = %v, %v", first, second)
	}
}

func TestEnqueueJob_CollapsesPendingDuplicates(t *testing.T) {
	s := openTestStore(t)
	payload := `{"session_id":"s1"}`
	enqueue(t, s, Job{ID: "first", Type: JobGenerateQuestions, PayloadJSON: payload})
	enqueue(t, s, Job{ID: "second", Type: JobGenerateQuestions, PayloadJSON: payload})
	enqueue(t, s, Job{Type: JobNotifyCompletion, PayloadJSON: payload})

	counts, err := s.JobCounts()
	if err != nil {
		t.Fatalf("JobCounts: %v", err)
	}
	if counts[JobPending] != 2 {
		t.Fatalf("pending = %d, want 2 (duplicate collapsed)", counts[JobPending])
	}
	if _, err := s.GetJob("second"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob(second) error = %v, want ErrNotFound", err)
	}

	// Once the first is running a new request queues again.
	if j := claim(t, s, JobGenerateQuestions); j == nil || j.ID != "first" {
		t.Fatalf("claimed %+v", j)
	}
	enqueue(t, s, Job{ID: "third", Type: JobGenerateQuestions, PayloadJSON: payload})
	if _, err := s.GetJob("third"); err != nil {
		t.Errorf("GetJob(third): %v", err)
	}
}

func TestEnqueueJob_GeneratesID(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{Type: JobRetentionPurge, PayloadJSON: `{}`})

	j := claim(t, s, JobRetentionPurge)
	if j == nil || len(j.ID) != 36 {
		t.Errorf("job = %+v, want a UUID id", j)
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "j-done", Type: JobNotifyCompletion, PayloadJSON: `{}`})
	claim(t, s, JobNotifyCompletion)

	if err := s.CompleteJob("j-done"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	j, err := s.GetJob("j-done")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Status != JobCompleted {
		t.Errorf("status = %q, want completed", j.Status)
	}

	if err := s.CompleteJob("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestFailJob_RetriesWithBackoff(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "j-retry", Type: JobGenerateQuestions, PayloadJSON: `{}`})
	claim(t, s, JobGenerateQuestions)

	before := time.Now().UTC().Truncate(time.Second)
	if err := s.FailJob("j-retry", "groq unavailable"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	j, err := s.GetJob("j-retry")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Status != JobPending || j.Attempts != 1 || j.LastError != "groq unavailable" {
		t.Errorf("job = %+v", j)
	}
	// First retry waits 2s.
	if d := j.RunAfter.Sub(before); d < 2*time.Second || d > 4*time.Second {
		t.Errorf("run_after - now = %v, want about 2s", d)
	}
	if got := claim(t, s, JobGenerateQuestions); got != nil {
		t.Error("job claimed before its backoff elapsed")
	}
}

func TestFailJob_GivesUpAtMaxAttempts(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "j-fatal", Type: JobNotifyCompletion, PayloadJSON: `{}`, MaxAttempts: 1})
	claim(t, s, JobNotifyCompletion)

	if err := s.FailJob("j-fatal", "slack rejected token"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	j, err := s.GetJob("j-fatal")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Status != JobFailed || j.Attempts != 1 {
		t.Errorf("status = %q, attempts = %d", j.Status, j.Attempts)
	}

	if err := s.FailJob("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestPruneJobs(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "done", Type: JobNotifyCompletion, PayloadJSON: `{"session_id":"a"}`})
	enqueue(t, s, Job{ID: "waiting", Type: JobNotifyCompletion, PayloadJSON: `{"session_id":"b"}`})
	claim(t, s, JobNotifyCompletion)
	if err := s.CompleteJob("done"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	n, err := s.PruneJobs(time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("PruneJobs(past) = %d, %v", n, err)
	}
	n, err = s.PruneJobs(time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PruneJobs(future) = %d, %v, want 1", n, err)
	}
	if _, err := s.GetJob("waiting"); err != nil {
		t.Errorf("pending job pruned: %v", err)
	}
}

func TestJobCounts(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"s1", "s2", "s3"} {
		enqueue(t, s, Job{Type: JobGenerateQuestions, PayloadJSON: `{"session_id":"` + id + `"}`})
	}
	claim(t, s, JobGenerateQuestions)

	counts, err := s.JobCounts()
	if err != nil {
		t.Fatalf("JobCounts: %v", err)
	}
	if counts[JobPending] != 2 || counts[JobRunning] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
