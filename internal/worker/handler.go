package worker

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lecturemate/backend/pkg/queue"
	"github.com/lecturemate/backend/pkg/response"
)

// JobInspector reads queue state for operators.
type JobInspector interface {
	Len(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context, limit int64) ([]queue.Job, error)
}

// AdminHandler serves /admin/jobs/*.
type AdminHandler struct {
	jobs   JobInspector
	logger *zap.Logger
}

// NewAdminHandler creates the admin job handler.
func NewAdminHandler(jobs JobInspector, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{jobs: jobs, logger: logger}
}

// DeadLetters handles GET /admin/jobs/dead?limit=.
func (h *AdminHandler) DeadLetters(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
	if err != nil || limit <= 0 || limit > 1000 {
		response.BadRequest(c, "limit must be between 1 and 1000")
		return
	}
	ctx := c.Request.Context()
	jobs, err := h.jobs.DeadLetters(ctx, limit)
	if err != nil {
		h.logger.Error("list dead letters", zap.Error(err))
		response.Internal(c, "failed to list dead-lettered jobs")
		return
	}
	pending, err := h.jobs.Len(ctx)
	if err != nil {
		h.logger.Warn("queue length", zap.Error(err))
		pending = -1
	}
	response.OK(c, gin.H{"jobs": jobs, "pending": pending})
}
