package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const sessionColumns = `id, candidate_id, state, name, email, phone, experience, position, location, tech_stack,
	questions_json, question_index, consent_at, anonymized, created_at, updated_at, completed_at`

// --- Sessions ---

func (s *Store) CreateSession(sess Session) error {
	sealed, err := s.seal(sess)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if sealed.CreatedAt.IsZero() {
		sealed.CreatedAt = now
	}
	if sealed.UpdatedAt.IsZero() {
		sealed.UpdatedAt = sealed.CreatedAt
	}
	if sealed.ConsentAt.IsZero() {
		sealed.ConsentAt = sealed.CreatedAt
	}
	if sealed.QuestionsJSON == "" {
		sealed.QuestionsJSON = "[]"
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sealed.ID, sealed.CandidateID, sealed.State, sealed.Name, sealed.Email, sealed.Phone,
		sealed.Experience, sealed.Position, sealed.Location, sealed.TechStack,
		sealed.QuestionsJSON, sealed.QuestionIndex, formatTime(sealed.ConsentAt), sealed.Anonymized,
		formatTime(sealed.CreatedAt), formatTime(sealed.UpdatedAt), nullTime(sealed.CompletedAt),
	)
	return err
}

func (s *Store) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return s.open(sess)
}

// UpdateSession overwrites the mutable columns of an existing session.
// Anonymized sessions are frozen and updating one returns ErrAnonymized.
func (s *Store) UpdateSession(sess Session) error {
	sealed, err := s.seal(sess)
	if err != nil {
		return err
	}
	if sealed.QuestionsJSON == "" {
		sealed.QuestionsJSON = "[]"
	}
	res, err := s.db.Exec(`
		UPDATE sessions SET state = ?, name = ?, email = ?, phone = ?, experience = ?, position = ?,
			location = ?, tech_stack = ?, questions_json = ?, question_index = ?, anonymized = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ? AND anonymized = 0`,
		sealed.State, sealed.Name, sealed.Email, sealed.Phone, sealed.Experience, sealed.Position,
		sealed.Location, sealed.TechStack, sealed.QuestionsJSON, sealed.QuestionIndex, sealed.Anonymized,
		formatTime(time.Now()), nullTime(sealed.CompletedAt), sealed.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var anonymized int
	err = s.db.QueryRow(`SELECT anonymized FROM sessions WHERE id = ?`, sealed.ID).Scan(&anonymized)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAnonymized
}

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(limit, offset int) ([]Session, error) {
	return s.querySessions(`SELECT `+sessionColumns+` FROM sessions
		ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`, limit, offset)
}

// ListExpiredSessions returns sessions created before cutoff that have not
// been anonymized yet.
func (s *Store) ListExpiredSessions(cutoff time.Time) ([]Session, error) {
	return s.querySessions(`SELECT `+sessionColumns+` FROM sessions
		WHERE created_at < ? AND anonymized = 0 ORDER BY created_at ASC`, formatTime(cutoff))
}

// CountSessions returns the number of sessions per conversation state.
func (s *Store) CountSessions() (map[string]int, error) {
	return s.countBy(`SELECT state, COUNT(*) FROM sessions GROUP BY state`)
}

// DeleteSession erases a session with its transcript, question sets and
// consent record.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	for _, q := range []string{
		`DELETE FROM messages WHERE session_id = ?`,
		`DELETE FROM question_sets WHERE session_id = ?`,
		`DELETE FROM consents WHERE session_id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) querySessions(query string, args ...any) ([]Session, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		if sess, err = s.open(sess); err != nil {
			return nil, err
		}
		results = append(results, sess)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var sess Session
	var consentAt, createdAt, updatedAt string
	var completedAt sql.NullString
	err := row.Scan(&sess.ID, &sess.CandidateID, &sess.State, &sess.Name, &sess.Email, &sess.Phone,
		&sess.Experience, &sess.Position, &sess.Location, &sess.TechStack,
		&sess.QuestionsJSON, &sess.QuestionIndex, &consentAt, &sess.Anonymized,
		&createdAt, &updatedAt, &completedAt)
	if err != nil {
		return Session{}, err
	}
	if sess.ConsentAt, err = parseTime(consentAt); err != nil {
		return Session{}, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return Session{}, err
	}
	if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Session{}, err
	}
	if completedAt.Valid {
		if sess.CompletedAt, err = parseTime(completedAt.String); err != nil {
			return Session{}, err
		}
	}
	return sess, nil
}

// seal encrypts the personal fields of sess when a cipher is configured.
func (s *Store) seal(sess Session) (Session, error) {
	if s.cipher == nil {
		return sess, nil
	}
	for _, f := range []*string{&sess.Name, &sess.Email, &sess.Phone} {
		if *f == "" {
			continue
		}
		enc, err := s.cipher.Encrypt(*f)
		if err != nil {
			return Session{}, fmt.Errorf("encrypting session %s: %w", sess.ID, err)
		}
		*f = enc
	}
	return sess, nil
}

func (s *Store) open(sess Session) (Session, error) {
	if s.cipher == nil {
		return sess, nil
	}
	for _, f := range []*string{&sess.Name, &sess.Email, &sess.Phone} {
		if *f == "" {
			continue
		}
		dec, err := s.cipher.Decrypt(*f)
		if err != nil {
			return Session{}, fmt.Errorf("decrypting session %s: %w", sess.ID, err)
		}
		*f = dec
	}
	return sess, nil
}

// --- Messages ---

// AppendMessage stores m and returns it with its assigned ID.
func (s *Store) AppendMessage(m Message) (Message, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		m.SessionID, m.Role, m.Content, formatTime(m.CreatedAt))
	if err != nil {
		return Message{}, err
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// ListMessages returns the transcript of a session in insertion order.
func (s *Store) ListMessages(sessionID string) ([]Message, error) {
	rows, err := s.db.Query(`SELECT id, session_id, role, content, created_at FROM messages
		WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *Store) DeleteMessages(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID)
	return err
}

// --- Consents ---

func (s *Store) SaveConsent(c Consent) error {
	if c.ConsentedAt.IsZero() {
		c.ConsentedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO consents (candidate_id, session_id, version, consented_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(candidate_id) DO UPDATE SET session_id = excluded.session_id,
			version = excluded.version, consented_at = excluded.consented_at`,
		c.CandidateID, c.SessionID, c.Version, formatTime(c.ConsentedAt))
	return err
}

func (s *Store) GetConsent(candidateID string) (Consent, error) {
	var c Consent
	var consentedAt string
	err := s.db.QueryRow(`SELECT candidate_id, session_id, version, consented_at FROM consents WHERE candidate_id = ?`,
		candidateID).Scan(&c.CandidateID, &c.SessionID, &c.Version, &consentedAt)
	if err == sql.ErrNoRows {
		return Consent{}, ErrNotFound
	}
	if err != nil {
		return Consent{}, err
	}
	if c.ConsentedAt, err = parseTime(consentedAt); err != nil {
		return Consent{}, err
	}
	return c, nil
}

// --- Question sets ---

func (s *Store) SaveQuestionSet(q QuestionSet) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO question_sets (id, session_id, level, questions_json, markdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.SessionID, q.Level, q.QuestionsJSON, q.Markdown, formatTime(q.CreatedAt))
	return err
}

// LatestQuestionSet returns the most recently generated question set for a session.
func (s *Store) LatestQuestionSet(sessionID string) (QuestionSet, error) {
	var q QuestionSet
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, session_id, level, questions_json, markdown, created_at FROM question_sets
		WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, sessionID,
	).Scan(&q.ID, &q.SessionID, &q.Level, &q.QuestionsJSON, &q.Markdown, &createdAt)
	if err == sql.ErrNoRows {
		return QuestionSet{}, ErrNotFound
	}
	if err != nil {
		return QuestionSet{}, err
	}
	if q.CreatedAt, err = parseTime(createdAt); err != nil {
		return QuestionSet{}, err
	}
	return q, nil
}

func (s *Store) DeleteQuestionSets(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM question_sets WHERE session_id = ?`, sessionID)
	return err
}
