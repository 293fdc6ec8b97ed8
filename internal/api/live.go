package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/circademic/gradetrack/internal/apperr"
	"github.com/circademic/gradetrack/internal/grades"
	"github.com/circademic/gradetrack/internal/live"
	"github.com/circademic/gradetrack/internal/locale"
	"github.com/circademic/gradetrack/internal/models"
)

const (
	liveWriteTimeout = 10 * time.Second
	// liveAuthInterval bounds how long a socket outlives its token
	liveAuthInterval = 30 * time.Second
)

// Message types of the live channel
const (
	liveTypeDashboard = "dashboard"
	liveTypeFilter    = "filter"
	liveTypeSignedOut = "signed_out"
	liveTypeError     = "error"
)

// LiveMessage is exchanged over the live dashboard WebSocket. The server
// sends "dashboard", "signed_out" and "error", the client sends "filter".
type LiveMessage struct {
	Type     string            `json:"type"`
	Data     *grades.Dashboard `json:"data,omitempty"`
	Message  string            `json:"message,omitempty"`
	Search   string            `json:"q,omitempty"`
	Semester int               `json:"semester,omitempty"`
	Category string            `json:"category,omitempty"`
	Sort     string            `json:"sort,omitempty"`
}

// handleLive pushes the user's dashboard on connect and again after every
// change made from another tab or device.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	token := TokenFromContext(r.Context())
	bundle := BundleFromContext(r.Context())

	filter := parseFilter(r)
	filter.Language = bundle.Tag

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe, err := s.broker.Subscribe(ctx, user.ID)
	if err != nil {
		slog.Error("failed to subscribe to live events", "error", err, "user_id", user.ID)
		s.sendLiveMessage(conn, LiveMessage{Type: liveTypeError, Message: bundle.FallbackMessage})
		return
	}
	defer unsubscribe()

	slog.Info("live dashboard connected", "user_id", user.ID)

	if err := s.sendDashboard(ctx, conn, user, bundle, filter); err != nil {
		return
	}

	filters := make(chan grades.Filter, 1)

	// Read from WebSocket -> filter updates
	go func() {
		defer cancel()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}

			var msg LiveMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				slog.Debug("invalid message format", "error", err)
				continue
			}
			if msg.Type != liveTypeFilter {
				continue
			}

			f := grades.Filter{
				Search:   msg.Search,
				Semester: msg.Semester,
				Category: msg.Category,
				Sort:     grades.ParseSortKey(msg.Sort),
				Language: bundle.Tag,
			}
			select {
			case filters <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(liveAuthInterval)
	defer ticker.Stop()

	// Broker events and filter updates -> WebSocket
	for {
		select {
		case <-ctx.Done():
			slog.Info("live dashboard disconnected", "user_id", user.ID)
			return
		case <-ticker.C:
			if !s.liveSessionValid(ctx, token) {
				s.closeLive(conn, bundle.Notice("signed_out"), "signed out")
				return
			}
			continue
		case f := <-filters:
			filter = f
		case event, ok := <-events:
			if !ok {
				return
			}
			switch event.Kind {
			case live.EventAccountDeleted:
				s.closeLive(conn, bundle.Notice("account_deleted"), "account deleted")
				return
			case live.EventSignedOut:
				if !s.liveSessionValid(ctx, token) {
					s.closeLive(conn, bundle.Notice("signed_out"), "signed out")
					return
				}
				continue
			}
		}

		if !s.liveSessionValid(ctx, token) {
			s.closeLive(conn, bundle.Notice("signed_out"), "signed out")
			return
		}
		if err := s.sendDashboard(ctx, conn, user, bundle, filter); err != nil {
			return
		}
	}
}

// liveSessionValid reports whether the socket's token is still accepted.
// Lookup failures keep the socket open.
func (s *Server) liveSessionValid(ctx context.Context, token string) bool {
	if _, err := s.auth.CurrentUser(ctx, token); err != nil {
		if apperr.CodeOf(err) == apperr.CodeInternal {
			slog.Warn("failed to recheck live session", "error", err)
			return true
		}
		return false
	}
	return true
}

func (s *Server) closeLive(conn *websocket.Conn, message, reason string) {
	s.sendLiveMessage(conn, LiveMessage{Type: liveTypeSignedOut, Message: message})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(liveWriteTimeout))
}

func (s *Server) sendDashboard(ctx context.Context, conn *websocket.Conn, user *models.User, bundle *locale.Bundle, f grades.Filter) error {
	dashboard, err := s.tracker.Dashboard(ctx, user, f, bundle.YearLabels)
	if err != nil {
		slog.Error("failed to compute live dashboard", "error", err, "user_id", user.ID)
		return s.sendLiveMessage(conn, LiveMessage{Type: liveTypeError, Message: bundle.FallbackMessage})
	}
	return s.sendLiveMessage(conn, LiveMessage{Type: liveTypeDashboard, Data: dashboard})
}

func (s *Server) sendLiveMessage(conn *websocket.Conn, msg LiveMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal live message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send live message", "error", err)
		return err
	}
	return nil
}
