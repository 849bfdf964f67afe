package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/session"
)

// QuestionsRequest asks for a question set outside a chat.
type QuestionsRequest struct {
	Skills     string `json:"skills"`
	Experience string `json:"experience"`
	Position   string `json:"position"`
}

type EvaluateRequest struct {
	Skill      string `json:"skill"`
	Experience string `json:"experience"`
	Position   string `json:"position"`
}

// StatsResponse summarizes what the server holds.
type StatsResponse struct {
	Sessions      map[string]int `json:"sessions"`
	Jobs          map[string]int `json:"jobs"`
	SchemaVersion int            `json:"schema_version"`
}

// QuestionSetResponse pairs a question set with its Markdown rendering.
type QuestionSetResponse struct {
	*assessment.QuestionSet
	Markdown string `json:"markdown"`
}

// StoredQuestionSet is the latest question set saved for a session.
type StoredQuestionSet struct {
	ID        string          `json:"id"`
	Level     string          `json:"level"`
	Questions json.RawMessage `json:"questions"`
	Markdown  string          `json:"markdown"`
	CreatedAt time.Time       `json:"created_at"`
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		list, err := deps.Sessions.List(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list sessions: %v", err)
			return
		}
		if list == nil {
			list = []session.Session{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			sessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		p := deps.Assessor.Profile(sess.Candidate)
		if r.URL.Query().Get("format") == "markdown" {
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.Write([]byte(p.Markdown()))
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleGetQuestions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := deps.Sessions.QuestionSet(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		if r.URL.Query().Get("format") == "markdown" {
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.Write([]byte(qs.Markdown))
			return
		}
		questions := json.RawMessage(qs.QuestionsJSON)
		if len(questions) == 0 {
			questions = json.RawMessage("[]")
		}
		writeJSON(w, http.StatusOK, StoredQuestionSet{
			ID:        qs.ID,
			Level:     qs.Level,
			Questions: questions,
			Markdown:  qs.Markdown,
			CreatedAt: qs.CreatedAt,
		})
	}
}

func handleRegenerateQuestions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.RegenerateQuestions(r.Context(), chi.URLParam(r, "id")); err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	}
}

func handleGenerateQuestions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QuestionsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		set, err := deps.Assessor.Generate(r.Context(), req.Skills, req.Experience, req.Position)
		if err != nil {
			code := http.StatusUnprocessableEntity
			if errors.Is(err, assessment.ErrNoSkills) || errors.Is(err, assessment.ErrNoParsedSkills) {
				code = http.StatusBadRequest
			}
			httpError(w, code, "invalid_request_error", "%s", assessment.Message(err))
			return
		}
		writeJSON(w, http.StatusOK, QuestionSetResponse{QuestionSet: set, Markdown: set.Markdown()})
	}
}

func handleEvaluate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EvaluateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Skill == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "skill is required")
			return
		}
		writeJSON(w, http.StatusOK, deps.Assessor.Evaluate(req.Skill, req.Experience, req.Position))
	}
}

func handlePurge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Purger.Purge(r.Context(), deps.Now())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "purge failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"purged": n})
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Stats == nil {
			httpError(w, http.StatusNotImplemented, "api_error", "stats not available")
			return
		}
		var resp StatsResponse
		var err error
		if resp.Sessions, err = deps.Stats.CountSessions(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting sessions: %v", err)
			return
		}
		if resp.Jobs, err = deps.Stats.JobCounts(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting jobs: %v", err)
			return
		}
		if resp.SchemaVersion, err = deps.Stats.SchemaVersion(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading schema version: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
