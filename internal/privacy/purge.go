package privacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/talentscout/internal/candidate"
	"github.com/kalambet/talentscout/internal/storage"
)

// PurgeStore defines the storage operations the Purger needs.
// Implemented by storage.Store.
type PurgeStore interface {
	ListExpiredSessions(cutoff time.Time) ([]storage.Session, error)
	GetSession(id string) (storage.Session, error)
	UpdateSession(sess storage.Session) error
	DeleteMessages(sessionID string) error
	DeleteQuestionSets(sessionID string) error
}

// SessionLocker serializes the purge of a session with the messages
// being sent to it. Implemented by session.Manager.
type SessionLocker interface {
	LockSession(id string) (unlock func())
}

// Purger anonymizes sessions that have outlived the retention period.
type Purger struct {
	store     PurgeStore
	locks     SessionLocker
	retention time.Duration
	logger    *slog.Logger
}

// NewPurger creates a Purger keeping data for retentionDays days.
// Non-positive values mean 180.
func NewPurger(store PurgeStore, retentionDays int) *Purger {
	if retentionDays <= 0 {
		retentionDays = 180
	}
	return &Purger{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    slog.Default(),
	}
}

// WithSessionLocks makes the Purger wait for in-flight messages of a
// session before anonymizing it.
func (p *Purger) WithSessionLocks(l SessionLocker) *Purger {
	p.locks = l
	return p
}

// Purge anonymizes every session created before now minus the retention
// period, deletes its transcript and question sets, and returns how many
// sessions were purged.
func (p *Purger) Purge(ctx context.Context, now time.Time) (int, error) {
	expired, err := p.store.ListExpiredSessions(now.Add(-p.retention))
	if err != nil {
		return 0, fmt.Errorf("listing expired sessions: %w", err)
	}
	n := 0
	for _, sess := range expired {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := p.purgeSession(sess.ID)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		p.logger.Info("retention purge complete", "sessions", n)
	}
	return n, nil
}

// purgeSession re-reads the session under its lock so the anonymized row
// reflects any message that finished in the meantime.
func (p *Purger) purgeSession(id string) (bool, error) {
	if p.locks != nil {
		unlock := p.locks.LockSession(id)
		defer unlock()
	}
	sess, err := p.store.GetSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", id, err)
	}
	if sess.Anonymized {
		return false, nil
	}
	if err := p.store.DeleteMessages(id); err != nil {
		return false, fmt.Errorf("deleting messages of %s: %w", id, err)
	}
	if err := p.store.DeleteQuestionSets(id); err != nil {
		return false, fmt.Errorf("deleting question sets of %s: %w", id, err)
	}
	c := Anonymize(candidate.Candidate{Name: sess.Name, Email: sess.Email, Phone: sess.Phone})
	sess.Name, sess.Email, sess.Phone = c.Name, c.Email, c.Phone
	sess.Anonymized = true
	if err := p.store.UpdateSession(sess); errors.Is(err, storage.ErrAnonymized) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("anonymizing %s: %w", id, err)
	}
	return true, nil
}
