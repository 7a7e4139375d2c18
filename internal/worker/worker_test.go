package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturemate/backend/internal/pipeline"
	"github.com/lecturemate/backend/internal/runstate"
	"github.com/lecturemate/backend/pkg/queue"
)

type fakeRunner struct {
	mu   sync.Mutex
	jobs []pipeline.Job
	err  error
	done chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, job pipeline.Job) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return f.err
}

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.NewQueue(client, nil)
}

func lectureJob(t *testing.T, id uuid.UUID) *queue.Job {
	t.Helper()
	body, err := json.Marshal(pipeline.Job{LectureID: id, Mode: "cloud"})
	require.NoError(t, err)
	return &queue.Job{ID: "job-1", Type: queue.JobTypeLecture, Payload: body}
}

func TestProcessRunsAndReleases(t *testing.T) {
	runner := &fakeRunner{}
	reg := runstate.NewMemory()
	p := NewLectureProcessor(runner, reg, newQueue(t), 1, nil)
	id := uuid.New()

	require.NoError(t, p.Process(context.Background(), lectureJob(t, id)))
	require.Len(t, runner.jobs, 1)
	assert.Equal(t, id, runner.jobs[0].LectureID)

	ok, err := reg.Claim(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok, "claim must be released after the run")
}

func TestProcessDefersClaimedLecture(t *testing.T) {
	runner := &fakeRunner{}
	reg := runstate.NewMemory()
	id := uuid.New()
	_, err := reg.Claim(context.Background(), id)
	require.NoError(t, err)

	p := NewLectureProcessor(runner, reg, newQueue(t), 1, nil)
	assert.ErrorIs(t, p.Process(context.Background(), lectureJob(t, id)), ErrLectureBusy)
	assert.Empty(t, runner.jobs)
}

func TestRunRequeuesClaimedLecture(t *testing.T) {
	q := newQueue(t)
	reg := runstate.NewMemory()
	runner := &fakeRunner{done: make(chan struct{}, 1)}
	p := NewLectureProcessor(runner, reg, q, 1, nil)
	p.backoff = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id := uuid.New()
	_, err := reg.Claim(ctx, id)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, queue.JobTypeLecture, pipeline.Job{LectureID: id, RunID: uuid.New()}))

	stopped := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(stopped)
	}()

	time.Sleep(100 * time.Millisecond)
	select {
	case <-runner.done:
		t.Fatal("job ran while the lecture was claimed")
	default:
	}
	require.NoError(t, reg.Release(ctx, id))

	select {
	case <-runner.done:
	case <-time.After(10 * time.Second):
		t.Fatal("deferred job never ran")
	}
	runner.mu.Lock()
	require.Len(t, runner.jobs, 1)
	assert.Equal(t, id, runner.jobs[0].LectureID)
	runner.mu.Unlock()

	cancel()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestProcessSwallowsFinalFailures(t *testing.T) {
	runner := &fakeRunner{err: errors.New("summary stage: boom")}
	p := NewLectureProcessor(runner, runstate.NewMemory(), newQueue(t), 1, nil)
	assert.NoError(t, p.Process(context.Background(), lectureJob(t, uuid.New())))
}

func TestProcessRejectsUnknownType(t *testing.T) {
	p := NewLectureProcessor(&fakeRunner{}, runstate.NewMemory(), newQueue(t), 1, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "email"})
	assert.Error(t, err)
}

func TestRunDrainsQueue(t *testing.T) {
	q := newQueue(t)
	runner := &fakeRunner{done: make(chan struct{}, 2)}
	p := NewLectureProcessor(runner, runstate.NewMemory(), q, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < 2; i++ {
		require.NoError(t, q.Enqueue(ctx, queue.JobTypeLecture, pipeline.Job{LectureID: uuid.New()}))
	}

	stopped := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(stopped)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-runner.done:
		case <-time.After(5 * time.Second):
			t.Fatal("job was not processed")
		}
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}
}
