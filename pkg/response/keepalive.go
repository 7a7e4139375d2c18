package response

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// KeepAlive runs slow handlers while keeping intermediaries from closing an idle connection.
// If the work outlasts Delay, a 200 status is committed and a newline is written every Interval
// until the JSON body follows. Clients must tolerate leading whitespace.
type KeepAlive struct {
	Delay    time.Duration
	Interval time.Duration
	Deadline time.Duration
}

// DefaultKeepAlive starts streaming after 5s, pings every 20s and gives up after 10 minutes.
var DefaultKeepAlive = KeepAlive{Delay: 5 * time.Second, Interval: 20 * time.Second, Deadline: 10 * time.Minute}

type outcome struct {
	status int
	body   Body
}

// Run executes fn under the deadline and writes its result.
func (k KeepAlive) Run(c *gin.Context, fn func(ctx context.Context) (int, Body)) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), k.Deadline)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		status, body := fn(ctx)
		done <- outcome{status: status, body: body}
	}()

	delay := time.NewTimer(k.Delay)
	defer delay.Stop()
	select {
	case out := <-done:
		c.JSON(out.status, out.body)
		return
	case <-delay.C:
	}

	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	ping := func() bool {
		if _, err := c.Writer.Write([]byte("\n")); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}
	if !ping() {
		return
	}

	ticker := time.NewTicker(k.Interval)
	defer ticker.Stop()
	for {
		select {
		case out := <-done:
			_ = json.NewEncoder(c.Writer).Encode(out.body)
			c.Writer.Flush()
			return
		case <-ticker.C:
			if !ping() {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}
