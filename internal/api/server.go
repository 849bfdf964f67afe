// Package api exposes TalentScout over HTTP, WebSocket and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/session"
	"github.com/kalambet/talentscout/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Purger anonymizes expired sessions. Implemented by privacy.Purger.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int, error)
}

// Stats reports queue and storage counters. Implemented by storage.Store.
type Stats interface {
	CountSessions() (map[string]int, error)
	JobCounts() (map[string]int, error)
	SchemaVersion() (int, error)
}

// Deps holds the collaborators of the HTTP handler.
type Deps struct {
	Sessions *session.Manager
	Assessor *assessment.Assessor
	Purger   Purger
	Stats    Stats
	// Token protects the /admin routes.
	Token string
	// AllowedOrigins lists the hosts browsers may open the chat socket from.
	// Empty means DefaultAllowedOrigins.
	AllowedOrigins []string
	Now            func() time.Time
}

// NewHandler returns the candidate and recruiter HTTP API. Candidate routes
// are addressed by unguessable session IDs; recruiter routes live under
// /admin behind a bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Get("/privacy", handlePrivacyNotice)

	r.Post("/sessions", handleStartSession(deps))
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", handleGetSession(deps))
		r.Post("/messages", handleSendMessage(deps))
		r.Get("/ws", handleChatSocket(deps))
		r.Get("/export", handleExport(deps))
		r.Post("/resume", handleResume(deps))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/sessions", handleListSessions(deps))
		r.Delete("/sessions/{id}", handleDeleteSession(deps))
		r.Get("/sessions/{id}/profile", handleProfile(deps))
		r.Get("/sessions/{id}/questions", handleGetQuestions(deps))
		r.Post("/sessions/{id}/questions", handleRegenerateQuestions(deps))
		r.Post("/questions", handleGenerateQuestions(deps))
		r.Post("/evaluate", handleEvaluate(deps))
		r.Post("/purge", handlePurge(deps))
		r.Get("/stats", handleStats(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// sessionError maps session and storage errors to HTTP statuses.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, session.ErrConsentRequired), errors.Is(err, session.ErrEmptyMessage):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, session.ErrSessionClosed):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	if maxVal > 0 && n > maxVal {
		return maxVal
	}
	return n
}
