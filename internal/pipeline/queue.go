package pipeline

import (
	"context"

	"github.com/lecturemate/backend/pkg/queue"
)

// QueueEnqueuer sends pipeline jobs to the Redis job queue.
type QueueEnqueuer struct {
	q *queue.Queue
}

// NewQueueEnqueuer wraps q.
func NewQueueEnqueuer(q *queue.Queue) *QueueEnqueuer {
	return &QueueEnqueuer{q: q}
}

func (e *QueueEnqueuer) Enqueue(ctx context.Context, job Job) error {
	return e.q.Enqueue(ctx, queue.JobTypeLecture, job)
}
