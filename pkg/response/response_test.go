package response

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(k KeepAlive, fn func(ctx context.Context) (int, Body)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/slow", func(c *gin.Context) { k.Run(c, fn) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/slow", nil))
	return w
}

func TestKeepAliveFastPath(t *testing.T) {
	k := KeepAlive{Delay: time.Second, Interval: time.Second, Deadline: time.Minute}
	w := serve(k, func(ctx context.Context) (int, Body) {
		return http.StatusNotFound, Body{Error: "no captions", Details: "disabled"}
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, strings.HasPrefix(w.Body.String(), "\n"))

	var b Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "disabled", b.Details)
}

func TestKeepAliveStreams(t *testing.T) {
	k := KeepAlive{Delay: 10 * time.Millisecond, Interval: 10 * time.Millisecond, Deadline: time.Minute}
	w := serve(k, func(ctx context.Context) (int, Body) {
		time.Sleep(80 * time.Millisecond)
		return http.StatusInternalServerError, Body{Success: false, Error: "late failure"}
	})
	assert.Equal(t, http.StatusOK, w.Code, "status is committed once streaming starts")

	raw := w.Body.String()
	assert.True(t, strings.HasPrefix(raw, "\n"))
	var b Body
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(raw)), &b))
	assert.Equal(t, "late failure", b.Error)
}

func TestKeepAliveDeadline(t *testing.T) {
	k := KeepAlive{Delay: time.Second, Interval: time.Second, Deadline: 20 * time.Millisecond}
	w := serve(k, func(ctx context.Context) (int, Body) {
		<-ctx.Done()
		return http.StatusGatewayTimeout, Body{Error: ctx.Err().Error()}
	})
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}
