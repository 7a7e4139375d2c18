package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lecturemate/backend/internal/models"
	"github.com/lecturemate/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST API; the token query param authenticates here
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TokenValidator resolves a bearer token to a user id and role.
type TokenValidator func(token string) (userID uuid.UUID, role models.Role, err error)

// LectureGetter loads the lecture a client wants to watch.
type LectureGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Lecture, error)
}

// Client represents a single WebSocket connection watching a lecture.
type Client struct {
	ID        string
	LectureID uuid.UUID
	UserID    uuid.UUID
	hub       *Hub
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger
}

// ServeWs handles GET /ws?lecture_id=&token=. The caller must own the lecture (admins may watch any).
// A lecture_snapshot event with the current record is sent right after the upgrade.
func ServeWs(hub *Hub, store LectureGetter, validate TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		lectureIDStr := c.Query("lecture_id")
		token := c.Query("token")
		if lectureIDStr == "" || token == "" {
			response.BadRequest(c, "lecture_id and token required")
			return
		}
		lectureID, err := uuid.Parse(lectureIDStr)
		if err != nil {
			response.BadRequest(c, "invalid lecture_id")
			return
		}
		userID, role, err := validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		lecture, err := store.Get(c.Request.Context(), lectureID)
		if err != nil {
			logger.Error("load lecture for websocket", zap.Error(err))
			response.Internal(c, "failed to load lecture")
			return
		}
		if lecture == nil || (lecture.OwnerID != userID && role != models.RoleAdmin) {
			response.NotFound(c, "lecture not found")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			LectureID: lectureID,
			UserID:    userID,
			hub:       hub,
			conn:      conn,
			send:      make(chan WSMessage, 64),
			logger:    logger,
		}
		hub.Register(client)
		hub.SendToClient(lectureID, client.ID, models.EventLectureSnapshot, models.LectureEvent{
			Type:      models.EventLectureSnapshot,
			LectureID: lectureID,
			Status:    lecture.Status,
			Progress:  lecture.Progress,
			Error:     lecture.Error,
			Lecture:   lecture,
		})
		go client.writePump()
		client.readPump()
	}
}

// readPump only keeps the connection alive; clients do not send commands.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		if msg.Event == "ping" {
			c.hub.SendToClient(c.LectureID, c.ID, "pong", nil)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
