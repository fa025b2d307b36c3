package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// TeamLookup resolves the teams a user belongs to, for the session topic set.
type TeamLookup interface {
	GetUserTeamIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Server upgrades portal connections to websockets and forwards hub frames
// to them. Each session subscribes to its user topic plus one topic per team
// the user belongs to.
type Server struct {
	hub      *Hub
	teams    TeamLookup
	upgrader websocket.Upgrader
}

// NewServer creates a websocket server over the given hub.
func NewServer(hub *Hub, teams TeamLookup) *Server {
	return &Server{
		hub:   hub,
		teams: teams,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The portal fronts this service behind its own auth proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws?user_id=<id>.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}

	teamIDs, err := s.teams.GetUserTeamIDs(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to resolve session teams", "user_id", userID, "error", err)
		http.Error(w, "failed to resolve session", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		slog.Warn("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	topics := make([]string, 0, len(teamIDs)+1)
	topics = append(topics, UserTopic(userID))
	for _, teamID := range teamIDs {
		topics = append(topics, TeamTopic(teamID))
	}
	sub := s.hub.SubscribeTopics(topics...)

	sessionID := uuid.New().String()
	slog.Info("Session connected", "session_id", sessionID, "user_id", userID, "topics", len(topics))

	go s.writePump(conn, sub, sessionID)
	go s.readPump(conn, sub, sessionID)
}

// writePump forwards hub frames to the connection and keeps it alive with
// pings. Exits when the subscription is cancelled or a write fails.
func (s *Server) writePump(conn *websocket.Conn, sub *Subscription, sessionID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("Session write failed", "session_id", sessionID, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and close frames are processed.
// Cancels the subscription when the peer goes away, which stops writePump.
func (s *Server) readPump(conn *websocket.Conn, sub *Subscription, sessionID string) {
	defer sub.Cancel()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Session closed unexpectedly", "session_id", sessionID, "error", err)
			}
			return
		}
	}
}
