package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/conversation"
	"github.com/kalambet/talentscout/internal/llm"
	"github.com/kalambet/talentscout/internal/session"
	"github.com/kalambet/talentscout/internal/storage"
)

const testToken = "test-token-12345"

var fixedNow = time.Date(2026, 4, 2, 15, 4, 5, 0, time.UTC)

type cannedResponder struct{}

func (cannedResponder) Generate(_ context.Context, req llm.Request) (string, llm.Metadata) {
	return "Happy to help.", llm.Metadata{Task: req.Task}
}

type mockPurger struct {
	calls int
	at    time.Time
}

func (p *mockPurger) Purge(_ context.Context, now time.Time) (int, error) {
	p.calls++
	p.at = now
	return 3, nil
}

type testEnv struct {
	handler  http.Handler
	store    *storage.Store
	sessions *session.Manager
	assessor *assessment.Assessor
	purger   *mockPurger
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	a := assessment.New(assessment.DefaultBank(), nil, assessment.Options{})
	conv := conversation.NewManager(cannedResponder{}, a, 0)
	sessions := session.NewManager(store, conv)
	purger := &mockPurger{}
	h := NewHandler(Deps{
		Sessions: sessions,
		Assessor: a,
		Purger:   purger,
		Stats:    store,
		Token:    testToken,
		Now:      func() time.Time { return fixedNow },
	})
	return &testEnv{handler: h, store: store, sessions: sessions, assessor: a, purger: purger}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) start(t *testing.T) string {
	t.Helper()
	turn, err := e.sessions.Start(context.Background(), true)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return turn.Session.ID
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rr.Body.String(), err)
	}
	return v
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func TestHealthAndPrivacy(t *testing.T) {
	e := setup(t)

	rr := e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != `{"status":"ok"}` {
		t.Errorf("health = %d %s", rr.Code, rr.Body.String())
	}

	rr = e.do(httptest.NewRequest(http.MethodGet, "/privacy", nil))
	got := decode[map[string]string](t, rr)
	if !strings.Contains(got["notice"], "Your Data Rights") || got["version"] != session.ConsentVersion {
		t.Errorf("privacy = %v", got)
	}
}

func TestStartSession(t *testing.T) {
	e := setup(t)

	rr := e.do(authReq(http.MethodPost, "/sessions", `{"consent":false}`, ""))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if eb := decode[errorBody](t, rr); eb.Error.Type != "invalid_request_error" || !strings.Contains(eb.Error.Message, "consent") {
		t.Errorf("error = %+v", eb)
	}

	rr = e.do(authReq(http.MethodPost, "/sessions", `{"consent":true}`, ""))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", rr.Code, rr.Body.String())
	}
	got := decode[TurnResponse](t, rr)
	if got.Reply != conversation.Greeting() || got.State != "data_collection" || got.Completed {
		t.Errorf("turn = %+v", got)
	}

	rr = e.do(authReq(http.MethodPost, "/sessions", `{consent`, ""))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d, want 400", rr.Code)
	}
}

func TestSendMessage(t *testing.T) {
	e := setup(t)
	id := e.start(t)

	rr := e.do(authReq(http.MethodPost, "/sessions/"+id+"/messages", `{"content":"Jane Doe"}`, ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	got := decode[TurnResponse](t, rr)
	if got.Session.Candidate.Name != "Jane Doe" || !strings.Contains(got.Reply, "email") {
		t.Errorf("turn = %+v", got)
	}

	rr = e.do(authReq(http.MethodGet, "/sessions/"+id, "", ""))
	if s := decode[session.Session](t, rr); s.Candidate.Name != "Jane Doe" {
		t.Errorf("GET session = %+v", s)
	}

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"empty content", "/sessions/" + id + "/messages", `{"content":"  "}`, http.StatusBadRequest},
		{"unknown session", "/sessions/missing/messages", `{"content":"hi"}`, http.StatusNotFound},
		{"bad json", "/sessions/" + id + "/messages", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(authReq(http.MethodPost, tt.path, tt.body, ""))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d; body = %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestSendToAnonymizedSession(t *testing.T) {
	e := setup(t)
	id := e.start(t)
	rec, _ := e.store.GetSession(id)
	rec.Anonymized = true
	if err := e.store.UpdateSession(rec); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	rr := e.do(authReq(http.MethodPost, "/sessions/"+id+"/messages", `{"content":"hello"}`, ""))
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestExport(t *testing.T) {
	e := setup(t)
	id := e.start(t)
	if _, err := e.sessions.Send(context.Background(), id, "Jane Doe"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	rr := e.do(authReq(http.MethodGet, "/sessions/"+id+"/export?format=csv", "", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="talentscout_interview_20260402_150405.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "TalentScout AI Interview Export (CSV)") {
		t.Errorf("body = %q", rr.Body.String())
	}

	rr = e.do(authReq(http.MethodGet, "/sessions/"+id+"/export?format=txt", "", ""))
	if !strings.Contains(rr.Body.String(), "Jane Doe:\nJane Doe") {
		t.Errorf("txt body = %q", rr.Body.String())
	}

	rr = e.do(authReq(http.MethodGet, "/sessions/"+id+"/export?format=json", "", ""))
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("json Content-Type = %q", rr.Header().Get("Content-Type"))
	}

	rr = e.do(authReq(http.MethodGet, "/sessions/"+id+"/export?format=docx", "", ""))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("docx status = %d, want 400", rr.Code)
	}
	rr = e.do(authReq(http.MethodGet, "/sessions/missing/export?format=csv", "", ""))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rr.Code)
	}
}

func TestResumeRejectsNonPDF(t *testing.T) {
	e := setup(t)
	id := e.start(t)

	rr := e.do(authReq(http.MethodPost, "/sessions/"+id+"/resume", "plain text resume", ""))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
	rr = e.do(authReq(http.MethodPost, "/sessions/missing/resume", "x", ""))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rr.Code)
	}
}

func TestAdminRequiresToken(t *testing.T) {
	e := setup(t)
	for _, token := range []string{"", "wrong-token"} {
		rr := e.do(authReq(http.MethodGet, "/admin/sessions", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rr.Code)
		}
		if rr.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("token %q: missing WWW-Authenticate", token)
		}
	}

	// An unset token locks the admin routes entirely.
	h := NewHandler(Deps{Sessions: e.sessions, Assessor: e.assessor, Purger: e.purger})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/admin/sessions", "", ""))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("empty token: status = %d, want 401", rr.Code)
	}
}

func TestAdminSessions(t *testing.T) {
	e := setup(t)
	id := e.start(t)
	e.start(t)

	rr := e.do(authReq(http.MethodGet, "/admin/sessions?limit=1", "", testToken))
	if list := decode[[]session.Session](t, rr); len(list) != 1 {
		t.Errorf("list = %d sessions, want 1", len(list))
	}

	rr = e.do(authReq(http.MethodDelete, "/admin/sessions/"+id, "", testToken))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = e.do(authReq(http.MethodGet, "/sessions/"+id, "", ""))
	if rr.Code != http.StatusNotFound {
		t.Errorf("after delete status = %d, want 404", rr.Code)
	}
	rr = e.do(authReq(http.MethodDelete, "/admin/sessions/"+id, "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestAdminProfile(t *testing.T) {
	e := setup(t)
	id := e.start(t)
	for _, in := range []string{"Jane Doe", "jane@example.com", "555-123-4567", "6", "Backend Developer"} {
		if _, err := e.sessions.Send(context.Background(), id, in); err != nil {
			t.Fatalf("Send(%q): %v", in, err)
		}
	}

	rr := e.do(authReq(http.MethodGet, "/admin/sessions/"+id+"/profile", "", testToken))
	p := decode[assessment.Profile](t, rr)
	if p.Initials != "JD" || p.MaskedEmail == "jane@example.com" || p.Level != assessment.Advanced {
		t.Errorf("profile = %+v", p)
	}

	rr = e.do(authReq(http.MethodGet, "/admin/sessions/"+id+"/profile?format=markdown", "", testToken))
	if !strings.HasPrefix(rr.Body.String(), "# Candidate Summary") {
		t.Errorf("markdown = %q", rr.Body.String())
	}
}

func TestAdminQuestions(t *testing.T) {
	e := setup(t)
	id := e.start(t)

	rr := e.do(authReq(http.MethodGet, "/admin/sessions/"+id+"/questions", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("no question set: status = %d, want 404", rr.Code)
	}

	rr = e.do(authReq(http.MethodPost, "/admin/sessions/"+id+"/questions", "", testToken))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("regenerate status = %d", rr.Code)
	}
	if job, err := e.store.ClaimNextJob([]string{storage.JobGenerateQuestions}); err != nil || job == nil {
		t.Errorf("ClaimNextJob = %v, %v", job, err)
	}

	set := &assessment.QuestionSet{
		Level:     assessment.Beginner,
		Questions: []assessment.Question{{Skill: "go", Text: "What is a slice?"}},
	}
	if err := e.sessions.StoreQuestionSet(context.Background(), id, set); err != nil {
		t.Fatalf("StoreQuestionSet: %v", err)
	}
	rr = e.do(authReq(http.MethodGet, "/admin/sessions/"+id+"/questions", "", testToken))
	got := decode[StoredQuestionSet](t, rr)
	if got.Level != "beginner" || !strings.Contains(string(got.Questions), "What is a slice?") {
		t.Errorf("question set = %+v", got)
	}
}

func TestAdminGenerateAndEvaluate(t *testing.T) {
	e := setup(t)

	rr := e.do(authReq(http.MethodPost, "/admin/questions",
		`{"skills":"Go, SQL","experience":"3","position":"Backend Developer"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	got := decode[QuestionSetResponse](t, rr)
	if got.QuestionSet == nil || len(got.Questions) == 0 || !strings.Contains(got.Markdown, "Go") {
		t.Errorf("question set = %+v", got)
	}

	rr = e.do(authReq(http.MethodPost, "/admin/questions", `{"skills":""}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty skills status = %d, want 400", rr.Code)
	}

	rr = e.do(authReq(http.MethodPost, "/admin/evaluate",
		`{"skill":"python","experience":"1","position":"Data Scientist"}`, testToken))
	ev := decode[assessment.Evaluation](t, rr)
	if ev.Skill != "python" || ev.Level != assessment.Beginner || ev.Score <= 0 {
		t.Errorf("evaluation = %+v", ev)
	}

	rr = e.do(authReq(http.MethodPost, "/admin/evaluate", `{}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing skill status = %d, want 400", rr.Code)
	}
}

func TestAdminPurge(t *testing.T) {
	e := setup(t)
	rr := e.do(authReq(http.MethodPost, "/admin/purge", "", testToken))
	if got := decode[map[string]int](t, rr); got["purged"] != 3 {
		t.Errorf("purge = %v", got)
	}
	if e.purger.calls != 1 || !e.purger.at.Equal(fixedNow) {
		t.Errorf("purger calls = %d at %v", e.purger.calls, e.purger.at)
	}
}

func TestAdminStats(t *testing.T) {
	e := setup(t)
	e.start(t)
	e.start(t)

	rr := e.do(authReq(http.MethodGet, "/admin/stats", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	got := decode[StatsResponse](t, rr)
	total := 0
	for _, n := range got.Sessions {
		total += n
	}
	if total != 2 {
		t.Errorf("sessions = %v, want 2 in total", got.Sessions)
	}
	if got.SchemaVersion < 4 {
		t.Errorf("schema_version = %d", got.SchemaVersion)
	}

	h := NewHandler(Deps{Sessions: e.sessions, Assessor: e.assessor, Purger: e.purger, Token: testToken})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/admin/stats", "", testToken))
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("without Stats status = %d, want 501", rr.Code)
	}
}
