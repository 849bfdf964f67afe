package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/talentscout/internal/export"
	"github.com/kalambet/talentscout/internal/privacy"
	"github.com/kalambet/talentscout/internal/resume"
	"github.com/kalambet/talentscout/internal/session"
)

type StartRequest struct {
	Consent bool `json:"consent"`
}

type MessageRequest struct {
	Content string `json:"content"`
}

// TurnResponse is returned for every chat turn.
type TurnResponse struct {
	Reply     string          `json:"reply"`
	State     string          `json:"state"`
	Completed bool            `json:"completed"`
	Session   session.Session `json:"session"`
}

func turnResponse(t session.Turn) TurnResponse {
	return TurnResponse{
		Reply:     t.Reply,
		State:     string(t.Session.State),
		Completed: t.Session.CompletedAt != nil,
		Session:   t.Session,
	}
}

func handlePrivacyNotice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"notice":           privacy.Notice,
		"version":          session.ConsentVersion,
		"data_controller":  privacy.DataController,
		"retention_policy": privacy.RetentionPolicy,
		"contact":          privacy.ContactEmail,
	})
}

func handleStartSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartRequest
		if !decodeBody(w, r, &req) {
			return
		}
		turn, err := deps.Sessions.Start(r.Context(), req.Consent)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, turnResponse(turn))
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func handleSendMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MessageRequest
		if !decodeBody(w, r, &req) {
			return
		}
		turn, err := deps.Sessions.Send(r.Context(), chi.URLParam(r, "id"), req.Content)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, turnResponse(turn))
	}
}

func handleExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		id := chi.URLParam(r, "id")
		sess, err := deps.Sessions.Get(r.Context(), id)
		if err != nil {
			sessionError(w, err)
			return
		}
		msgs, err := deps.Sessions.Messages(r.Context(), id)
		if err != nil {
			sessionError(w, err)
			return
		}

		now := deps.Now()
		var buf bytes.Buffer
		t := export.Transcript{Candidate: sess.Candidate, Messages: msgs, GeneratedAt: now}
		if err := export.Write(&buf, format, t); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "rendering export: %v", err)
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(format, now)))
		w.Write(buf.Bytes())
	}
}

func handleResume(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := deps.Sessions.Get(r.Context(), chi.URLParam(r, "id")); err != nil {
			sessionError(w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, resume.MaxSize)
		defer r.Body.Close()
		data, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "%v", resume.ErrTooLarge)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading body: %v", err)
			return
		}

		text, err := resume.ExtractText(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
			return
		}
		skills := resume.DetectSkills(text)
		if skills == nil {
			skills = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"skills":     skills,
			"characters": len([]rune(text)),
		})
	}
}
