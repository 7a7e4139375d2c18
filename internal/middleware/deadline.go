package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// LongRequest replaces the server-wide read and write timeouts for routes that take large
// uploads or run transcription: the body may take up to body to arrive and the response
// may be written until total has passed.
func LongRequest(body, total time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		rc := http.NewResponseController(c.Writer)
		// Recorders in tests do not support deadlines.
		_ = rc.SetReadDeadline(now.Add(body))
		_ = rc.SetWriteDeadline(now.Add(total))
		c.Next()
	}
}
