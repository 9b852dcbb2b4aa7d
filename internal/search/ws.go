package search

import (
	"net/http"
	"sync"
	"time"

	"github.com/aruzhan/gostash/internal/auth"
	"github.com/aruzhan/gostash/internal/file"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type inboundFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	FileID string `json:"file_id,omitempty"`
}

type outboundFrame struct {
	Type     string    `json:"type"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Target   string    `json:"target,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// RegisterRoutes mounts the live-search websocket endpoint.
func RegisterRoutes(group *gin.RouterGroup, querier Querier, quiet time.Duration, logger *zap.Logger) {
	handler := &wsHandler{querier: querier, quiet: quiet, logger: logger.Named("search_ws")}
	group.GET("/search/live", handler.liveSearch)
}

type wsHandler struct {
	querier Querier
	quiet   time.Duration
	logger  *zap.Logger
}

// liveSearch runs one search session per connection. The client streams
// keystrokes; the server debounces, queries, and pushes result frames.
func (h *wsHandler) liveSearch(c *gin.Context) {
	userID, user, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(frame outboundFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(frame); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
		}
	}

	owner := file.OwnerScope{UserID: userID, Email: user.Email}
	session := NewSession(h.querier, owner, h.quiet, h.logger, func(snap Snapshot) {
		send(outboundFrame{Type: "results", Snapshot: &snap})
	})
	defer session.Close()

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case "input":
			session.OnInputChange(frame.Text)
		case "select":
			rec, ok := findResult(session.Snapshot(), frame.FileID)
			if !ok {
				send(outboundFrame{Type: "error", Error: "unknown result"})
				continue
			}
			send(outboundFrame{Type: "navigate", Target: session.SelectResult(rec)})
		default:
			send(outboundFrame{Type: "error", Error: "unknown frame type"})
		}
	}
}

func findResult(snap Snapshot, rawID string) (file.Record, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return file.Record{}, false
	}
	for _, rec := range snap.Results {
		if rec.ID == id {
			return rec, true
		}
	}
	return file.Record{}, false
}
