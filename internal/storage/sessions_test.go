package storage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testSession(id string) Session {
	return Session{
		ID:          id,
		CandidateID: "candidate_1700000000_1234",
		State:       "data_collection",
		Name:        "Ada Lovelace",
		Email:       "ada@example.com",
		Phone:       "+44 20 7946 0018",
		Experience:  "7",
		Position:    "Backend Engineer",
		Location:    "London",
		TechStack:   "Go, PostgreSQL, Docker",
	}
}

// reverseCipher is a reversible stand-in for field encryption.
type reverseCipher struct{}

func (reverseCipher) Encrypt(s string) (string, error) { return "rev:" + reverse(s), nil }

func (reverseCipher) Decrypt(s string) (string, error) {
	return reverse(strings.TrimPrefix(s, "rev:")), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func TestCreateAndGetSession(t *testing.T) {
	s := openTestStore(t)

	in := testSession("s-1")
	if err := s.CreateSession(in); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession("s-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Name != in.Name {
		t.Errorf("Name = %q, want %q", got.Name, in.Name)
	}
	if got.TechStack != in.TechStack {
		t.Errorf("TechStack = %q, want %q", got.TechStack, in.TechStack)
	}
	if got.QuestionsJSON != "[]" {
		t.Errorf("QuestionsJSON = %q, want %q", got.QuestionsJSON, "[]")
	}
	if got.CreatedAt.IsZero() || got.ConsentAt.IsZero() {
		t.Error("expected CreatedAt and ConsentAt to be set")
	}
	if !got.CompletedAt.IsZero() {
		t.Errorf("CompletedAt = %v, want zero", got.CompletedAt)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetSession("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession error = %v, want ErrNotFound", err)
	}
}

func TestUpdateSession(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateSession(testSession("s-up")); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	sess, err := s.GetSession("s-up")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	done := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sess.State = "completion"
	sess.QuestionIndex = 3
	sess.QuestionsJSON = `[{"skill":"go","text":"q"}]`
	sess.CompletedAt = done
	if err := s.UpdateSession(sess); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	got, err := s.GetSession("s-up")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.State != "completion" {
		t.Errorf("State = %q, want %q", got.State, "completion")
	}
	if got.QuestionIndex != 3 {
		t.Errorf("QuestionIndex = %d, want 3", got.QuestionIndex)
	}
	if !got.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, done)
	}
}

func TestUpdateSessionNotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.UpdateSession(testSession("nope"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSession error = %v, want ErrNotFound", err)
	}
}

func TestUpdateSessionAnonymizedIsFrozen(t *testing.T) {
	s := openTestStore(t)

	sess := testSession("s-anon")
	sess.Name = "Jane Doe"
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	stale, err := s.GetSession("s-anon")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	purged := stale
	purged.Name = "Candidate_1234"
	purged.Anonymized = true
	if err := s.UpdateSession(purged); err != nil {
		t.Fatalf("UpdateSession(anonymize): %v", err)
	}

	stale.State = "completion"
	if err := s.UpdateSession(stale); !errors.Is(err, ErrAnonymized) {
		t.Fatalf("UpdateSession(stale) error = %v, want ErrAnonymized", err)
	}
	got, err := s.GetSession("s-anon")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !got.Anonymized || got.Name != "Candidate_1234" || got.State == "completion" {
		t.Errorf("session = %+v, want anonymized row untouched", got)
	}
}

// TestFieldCipherEncryptsAtRest verifies that personal fields are stored
// encrypted and transparently decrypted on read.
func TestFieldCipherEncryptsAtRest(t *testing.T) {
	s := openTestStore(t)
	s.SetFieldCipher(reverseCipher{})

	if err := s.CreateSession(testSession("s-enc")); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	var rawEmail, rawPosition string
	if err := s.db.QueryRow(`SELECT email, position FROM sessions WHERE id = 's-enc'`).Scan(&rawEmail, &rawPosition); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if !strings.HasPrefix(rawEmail, "rev:") {
		t.Errorf("raw email = %q, want encrypted value", rawEmail)
	}
	if rawPosition != "Backend Engineer" {
		t.Errorf("raw position = %q, want plaintext", rawPosition)
	}

	got, err := s.GetSession("s-enc")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Email != "ada@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "ada@example.com")
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"s-old", "s-mid", "s-new"} {
		sess := testSession(id)
		sess.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.CreateSession(sess); err != nil {
			t.Fatalf("CreateSession %s: %v", id, err)
		}
	}

	got, err := s.ListSessions(2, 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "s-new" || got[1].ID != "s-mid" {
		t.Errorf("order = [%s %s], want [s-new s-mid]", got[0].ID, got[1].ID)
	}

	rest, err := s.ListSessions(10, 2)
	if err != nil {
		t.Fatalf("ListSessions offset: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != "s-old" {
		t.Errorf("offset page = %+v, want [s-old]", rest)
	}
}

func TestListExpiredSessions(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	old := testSession("s-expired")
	old.CreatedAt = now.AddDate(0, 0, -200)
	gone := testSession("s-anon")
	gone.CreatedAt = now.AddDate(0, 0, -300)
	gone.Anonymized = true
	fresh := testSession("s-fresh")
	for _, sess := range []Session{old, gone, fresh} {
		if err := s.CreateSession(sess); err != nil {
			t.Fatalf("CreateSession %s: %v", sess.ID, err)
		}
	}

	got, err := s.ListExpiredSessions(now.AddDate(0, 0, -180))
	if err != nil {
		t.Fatalf("ListExpiredSessions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s-expired" {
		t.Errorf("expired = %+v, want only s-expired", got)
	}
}

func TestCountSessions(t *testing.T) {
	s := openTestStore(t)

	a := testSession("s-a")
	b := testSession("s-b")
	c := testSession("s-c")
	c.State = "completion"
	for _, sess := range []Session{a, b, c} {
		if err := s.CreateSession(sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	counts, err := s.CountSessions()
	if err != nil {
		t.Fatalf("CountSessions: %v", err)
	}
	if counts["data_collection"] != 2 || counts["completion"] != 1 {
		t.Errorf("counts = %v, want data_collection=2 completion=1", counts)
	}
}

func TestMessagesAppendAndList(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateSession(testSession("s-msg")); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for _, m := range []Message{
		{SessionID: "s-msg", Role: "assistant", Content: "Welcome"},
		{SessionID: "s-msg", Role: "user", Content: "Ada"},
		{SessionID: "other", Role: "user", Content: "ignored"},
	} {
		if _, err := s.AppendMessage(m); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	msgs, err := s.ListMessages("s-msg")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != "assistant" || msgs[1].Content != "Ada" {
		t.Errorf("messages = %+v", msgs)
	}
	if msgs[0].ID >= msgs[1].ID {
		t.Errorf("IDs not increasing: %d, %d", msgs[0].ID, msgs[1].ID)
	}
}

// TestDeleteSessionErasesEverything verifies that deleting a session also
// removes its transcript, question sets and consent.
func TestDeleteSessionErasesEverything(t *testing.T) {
	s := openTestStore(t)

	sess := testSession("s-del")
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := s.AppendMessage(Message{SessionID: "s-del", Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := s.SaveQuestionSet(QuestionSet{ID: "q-1", SessionID: "s-del", Level: "advanced", QuestionsJSON: "[]", Markdown: "#"}); err != nil {
		t.Fatalf("SaveQuestionSet: %v", err)
	}
	if err := s.SaveConsent(Consent{CandidateID: sess.CandidateID, SessionID: "s-del", Version: "1.0"}); err != nil {
		t.Fatalf("SaveConsent: %v", err)
	}

	if err := s.DeleteSession("s-del"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	if _, err := s.GetSession("s-del"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession after delete = %v, want ErrNotFound", err)
	}
	msgs, err := s.ListMessages("s-del")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages left = %d, want 0", len(msgs))
	}
	if _, err := s.LatestQuestionSet("s-del"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestQuestionSet after delete = %v, want ErrNotFound", err)
	}
	if _, err := s.GetConsent(sess.CandidateID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetConsent after delete = %v, want ErrNotFound", err)
	}

	if err := s.DeleteSession("s-del"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteSession = %v, want ErrNotFound", err)
	}
}

func TestConsentRoundTrip(t *testing.T) {
	s := openTestStore(t)

	at := time.Date(2025, 2, 2, 10, 0, 0, 0, time.UTC)
	if err := s.SaveConsent(Consent{CandidateID: "c-1", SessionID: "s-1", Version: "1.0", ConsentedAt: at}); err != nil {
		t.Fatalf("SaveConsent: %v", err)
	}

	got, err := s.GetConsent("c-1")
	if err != nil {
		t.Fatalf("GetConsent: %v", err)
	}
	if got.Version != "1.0" || got.SessionID != "s-1" || !got.ConsentedAt.Equal(at) {
		t.Errorf("consent = %+v", got)
	}
}

func TestLatestQuestionSet(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"q-old", "q-new"} {
		q := QuestionSet{ID: id, SessionID: "s-q", Level: "beginner", QuestionsJSON: "[]", Markdown: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.SaveQuestionSet(q); err != nil {
			t.Fatalf("SaveQuestionSet %s: %v", id, err)
		}
	}

	got, err := s.LatestQuestionSet("s-q")
	if err != nil {
		t.Fatalf("LatestQuestionSet: %v", err)
	}
	if got.ID != "q-new" {
		t.Errorf("ID = %q, want %q", got.ID, "q-new")
	}
}
