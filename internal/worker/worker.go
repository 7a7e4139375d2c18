package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lecturemate/backend/internal/pipeline"
	"github.com/lecturemate/backend/internal/runstate"
	"github.com/lecturemate/backend/pkg/queue"
)

// DefaultConcurrency is the number of lectures processed in parallel when unset.
const DefaultConcurrency = 2

// ErrLectureBusy means another run of the lecture holds its claim; the job is requeued.
var ErrLectureBusy = errors.New("lecture is already running")

// Runner runs one pipeline job.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) error
}

// LectureProcessor pulls lecture jobs from the queue and drives the pipeline.
type LectureProcessor struct {
	runner      Runner
	registry    runstate.Registry
	queue       *queue.Queue
	concurrency int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewLectureProcessor creates a lecture job processor.
func NewLectureProcessor(runner Runner, registry runstate.Registry, q *queue.Queue, concurrency int, logger *zap.Logger) *LectureProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &LectureProcessor{
		runner:      runner,
		registry:    registry,
		queue:       q,
		concurrency: concurrency,
		backoff:     queue.RetryBackoff,
		logger:      logger,
	}
}

// Process executes one job. Only failures that left the lecture untouched are returned,
// so the caller can retry them. ErrLectureBusy is returned while another run holds the claim.
func (p *LectureProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeLecture {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload pipeline.Job
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	log := p.logger.With(zap.String("job_id", job.ID), zap.String("lecture_id", payload.LectureID.String()))

	ok, err := p.registry.Claim(ctx, payload.LectureID)
	if err != nil {
		return fmt.Errorf("claim lecture: %w", err)
	}
	if !ok {
		log.Info("lecture already running, deferring job")
		return ErrLectureBusy
	}
	defer func() {
		if err := p.registry.Release(context.WithoutCancel(ctx), payload.LectureID); err != nil {
			log.Warn("release lecture", zap.Error(err))
		}
	}()

	err = p.runner.Run(ctx, payload)
	if err == nil {
		return nil
	}
	if pipeline.Retryable(err) {
		return err
	}
	log.Warn("lecture run failed", zap.Error(err))
	return nil
}

// Run starts the worker loop: dequeue, process with bounded parallelism, retry on error.
// It returns once ctx is done and in-flight jobs have finished.
func (p *LectureProcessor) Run(ctx context.Context) {
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	defer func() {
		_ = g.Wait()
		p.logger.Info("lecture worker stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("lecture worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		g.Go(func() error {
			err := p.Process(ctx, job)
			if errors.Is(err, ErrLectureBusy) {
				sleep(ctx, p.backoff)
				if reErr := p.queue.Requeue(context.WithoutCancel(ctx), job); reErr != nil {
					p.logger.Error("requeue failed", zap.String("job_id", job.ID), zap.Error(reErr))
				}
				return nil
			}
			if err != nil {
				p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
				sleep(ctx, p.backoff)
				if reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
					p.logger.Error("retry enqueue failed", zap.Error(reErr))
				}
			}
			return nil
		})
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
