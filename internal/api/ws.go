package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kalambet/talentscout/internal/session"
)

// DefaultAllowedOrigins are the hosts allowed to open the chat socket from a
// browser. Subdomains of each entry are allowed too.
var DefaultAllowedOrigins = []string{"localhost", "127.0.0.1", "talentscout.ai"}

const socketIdleTimeout = 10 * time.Minute

// socketFrame is sent for every turn or failure on the chat socket.
type socketFrame struct {
	Reply     string `json:"reply,omitempty"`
	State     string `json:"state,omitempty"`
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

// originAllowed accepts requests without an Origin header (non-browser
// clients) and origins whose host is, or is a subdomain of, an allowed host.
func originAllowed(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		allowed = DefaultAllowedOrigins
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(u.Hostname())
		for _, a := range allowed {
			a = strings.ToLower(a)
			if host == a || strings.HasSuffix(host, "."+a) {
				return true
			}
		}
		return false
	}
}

func handleChatSocket(deps Deps) http.HandlerFunc {
	upgrader := websocket.Upgrader{CheckOrigin: originAllowed(deps.AllowedOrigins)}

	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Sessions.Get(r.Context(), id); err != nil {
			sessionError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied.
			slog.Debug("websocket upgrade failed", "session_id", id, "error", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxRequestBodySize)

		for {
			conn.SetReadDeadline(time.Now().Add(socketIdleTimeout))
			var in MessageRequest
			if err := conn.ReadJSON(&in); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("websocket read ended", "session_id", id, "error", err)
				}
				return
			}

			turn, err := deps.Sessions.Send(r.Context(), id, in.Content)
			if err != nil {
				if werr := conn.WriteJSON(socketFrame{Error: err.Error()}); werr != nil {
					return
				}
				if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrSessionClosed) {
					return
				}
				continue
			}
			frame := socketFrame{
				Reply:     turn.Reply,
				State:     string(turn.Session.State),
				Completed: turn.Session.CompletedAt != nil,
			}
			if err := conn.WriteJSON(frame); err != nil {
				slog.Debug("websocket write failed", "session_id", id, "error", err)
				return
			}
		}
	}
}
