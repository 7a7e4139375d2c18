package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lecturemate/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains lecture_id -> set of connections and broadcasts progress events.
// Uses Redis pub/sub for horizontal scaling so a worker in another process reaches the
// browsers connected here.
type Hub struct {
	// lectureID -> map[clientID]*Client
	lectures map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per lecture
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishLectureEvent(ctx context.Context, lectureID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to lecture channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeLecture(lectureID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Either Redis side may be nil.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		lectures: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a lecture room. Starts the Redis subscription for the lecture on the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.lectures[c.LectureID] == nil {
		h.lectures[c.LectureID] = make(map[string]*Client)
		if h.redisSub != nil {
			lectureID := c.LectureID
			cancel, err := h.redisSub.SubscribeLecture(lectureID, func(event string, payload []byte) {
				h.Broadcast(lectureID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("subscribe lecture channel", zap.String("lecture_id", lectureID.String()), zap.Error(err))
			} else {
				h.subs[lectureID] = cancel
			}
		}
	}
	h.lectures[c.LectureID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client watching lecture", zap.String("client_id", c.ID), zap.String("lecture_id", c.LectureID.String()))
}

// Unregister removes a client. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.lectures[c.LectureID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.lectures, c.LectureID)
			if cancel, ok := h.subs[c.LectureID]; ok {
				cancel()
				delete(h.subs, c.LectureID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left lecture", zap.String("client_id", c.ID), zap.String("lecture_id", c.LectureID.String()))
}

// Broadcast sends a message to all local clients watching a lecture.
func (h *Hub) Broadcast(lectureID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.lectures[lectureID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Notify delivers a pipeline event. With Redis configured it only publishes, and the
// subscriber side performs the broadcast once on every instance including this one.
func (h *Hub) Notify(ctx context.Context, ev models.LectureEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishLectureEvent(ctx, ev.LectureID, ev.Type, data); err != nil {
			h.logger.Warn("publish lecture event", zap.String("lecture_id", ev.LectureID.String()), zap.Error(err))
		}
		return
	}
	h.Broadcast(ev.LectureID, ev.Type, json.RawMessage(data))
}

// Watchers returns the number of local clients watching a lecture.
func (h *Hub) Watchers(lectureID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lectures[lectureID])
}

// SendToClient sends a message to a single client.
func (h *Hub) SendToClient(lectureID uuid.UUID, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	c, ok := h.lectures[lectureID][clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
