package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturemate/backend/internal/lectures"
	"github.com/lecturemate/backend/internal/models"
)

func testClient(hub *Hub, lectureID uuid.UUID) *Client {
	return &Client{ID: uuid.New().String(), LectureID: lectureID, hub: hub, send: make(chan WSMessage, 8)}
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("no message received")
		return WSMessage{}
	}
}

func TestHubNotifyLocal(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	id := uuid.New()
	watcher := testClient(hub, id)
	other := testClient(hub, uuid.New())
	hub.Register(watcher)
	hub.Register(other)
	assert.Equal(t, 1, hub.Watchers(id))

	hub.Notify(context.Background(), models.LectureEvent{
		Type: models.EventLectureProgress, LectureID: id, Status: models.LectureStatusProcessing, Progress: 60, Stage: "summary",
	})

	msg := receive(t, watcher)
	assert.Equal(t, models.EventLectureProgress, msg.Event)
	var ev models.LectureEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, 60, ev.Progress)
	assert.Equal(t, "summary", ev.Stage)
	assert.Empty(t, other.send)

	hub.Unregister(watcher)
	assert.Zero(t, hub.Watchers(id))
}

func TestHubNotifyThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ps := NewRedisPubSub(client, nil)

	api := NewHub(nil, ps, ps)
	worker := NewHub(nil, ps, nil)
	id := uuid.New()
	watcher := testClient(api, id)
	api.Register(watcher)
	defer api.Unregister(watcher)

	worker.Notify(context.Background(), models.LectureEvent{
		Type: models.EventLectureCompleted, LectureID: id, Status: models.LectureStatusCompleted, Progress: 100,
	})

	msg := receive(t, watcher)
	assert.Equal(t, models.EventLectureCompleted, msg.Event)
	var ev models.LectureEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, 100, ev.Progress)
	assert.Empty(t, watcher.send, "event must be delivered exactly once")
}

func TestServeWsSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := lectures.NewMemoryStore()
	owner := uuid.New()
	l := &models.Lecture{OwnerID: owner, Title: "Algebra", Status: models.LectureStatusProcessing, Progress: 40}
	require.NoError(t, store.Create(context.Background(), l))

	validate := func(token string) (uuid.UUID, models.Role, error) {
		switch token {
		case "owner":
			return owner, models.RoleStudent, nil
		case "stranger":
			return uuid.New(), models.RoleStudent, nil
		}
		return uuid.Nil, "", errors.New("bad token")
	}
	hub := NewHub(nil, nil, nil)
	r := gin.New()
	r.GET("/ws", ServeWs(hub, store, validate, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?lecture_id=" + l.ID.String()

	_, resp, err := websocket.DefaultDialer.Dial(base+"&token=stranger", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"&token=nope", nil)
	require.Error(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"&token=owner", nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.EventLectureSnapshot, msg.Event)
	var ev models.LectureEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, 40, ev.Progress)
	require.NotNil(t, ev.Lecture)
	assert.Equal(t, "Algebra", ev.Lecture.Title)

	hub.Notify(context.Background(), models.LectureEvent{Type: models.EventLectureProgress, LectureID: l.ID, Progress: 60})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.EventLectureProgress, msg.Event)
}
