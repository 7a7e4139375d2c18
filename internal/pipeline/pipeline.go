// Package pipeline runs a lecture through transcript acquisition and content
// generation, persisting each stage's output as it completes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lecturemate/backend/internal/acquisition"
	"github.com/lecturemate/backend/internal/generate"
	"github.com/lecturemate/backend/internal/lectures"
	"github.com/lecturemate/backend/internal/models"
	"github.com/lecturemate/backend/internal/runstate"
)

// Stage names reported in progress events.
const (
	StageTranscript = "transcript"
	StageSummary    = "summary"
	StageQuiz       = "quiz"
	StageFlashcards = "flashcards"
	StageSlides     = "slides"
)

// Progress checkpoints.
const (
	ProgressAcquiring       = 20
	ProgressTranscript      = 40
	ProgressSummary         = 60
	ProgressQuiz            = 80
	ProgressQuizWithCards   = 70
	ProgressFlashcards      = 85
	ProgressComplete        = 100
	MinRerunTranscriptChars = 100
)

// StoppedByUser is the error recorded on a lecture stopped by its owner.
const StoppedByUser = "Processing stopped by user"

var (
	// ErrCancelled means a stop request was observed; no further writes are made.
	ErrCancelled = errors.New("lecture processing cancelled")
	// ErrEmptyTranscript means acquisition produced no text.
	ErrEmptyTranscript = errors.New("transcript is empty")

	// Lifecycle errors shared with the HTTP layer.
	ErrNotRerunnable      = lectures.ErrNotRerunnable
	ErrTranscriptTooShort = lectures.ErrTranscriptTooShort
	ErrNotProcessing      = lectures.ErrNotProcessing
)

// Job is one unit of pipeline work.
type Job struct {
	LectureID uuid.UUID `json:"lecture_id"`
	// RunID must match the lecture's current run; jobs of superseded runs are skipped.
	RunID      uuid.UUID                     `json:"run_id"`
	Mode       string                        `json:"mode"`
	Strategy   acquisition.Strategy          `json:"strategy,omitempty"`
	Options    acquisition.TranscribeOptions `json:"options"`
	Flashcards bool                          `json:"flashcards"`
	// GenerateOnly skips acquisition and reuses the stored transcript.
	GenerateOnly bool `json:"generate_only"`
}

// Generator produces lecture content.
type Generator interface {
	Summary(ctx context.Context, transcript, mode string) (string, error)
	Quiz(ctx context.Context, transcript, mode string) ([]models.Question, error)
	Flashcards(ctx context.Context, transcript, mode string) ([]models.Flashcard, error)
	Slides(ctx context.Context, transcript, summary, mode string) (*generate.Deck, error)
}

// Enqueuer hands jobs to the worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Notifier receives lecture events.
type Notifier interface {
	Notify(ctx context.Context, ev models.LectureEvent)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.LectureEvent) {}

// Orchestrator sequences the pipeline stages for a lecture.
type Orchestrator struct {
	store     lectures.Store
	acquirer  acquisition.Acquirer
	generator Generator
	registry  runstate.Registry
	queue     Enqueuer
	notifier  Notifier
	logger    *zap.Logger
}

// New creates an orchestrator. notifier may be nil.
func New(store lectures.Store, acquirer acquisition.Acquirer, generator Generator, registry runstate.Registry,
	queue Enqueuer, notifier Notifier, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Orchestrator{
		store:     store,
		acquirer:  acquirer,
		generator: generator,
		registry:  registry,
		queue:     queue,
		notifier:  notifier,
		logger:    logger,
	}
}

// Submit clears any stale stop request and enqueues the job.
func (o *Orchestrator) Submit(ctx context.Context, job Job) error {
	if err := o.registry.Clear(ctx, job.LectureID); err != nil {
		return err
	}
	if err := o.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue lecture: %w", err)
	}
	return nil
}

// Start assigns the first run of a newly created lecture and submits it.
func (o *Orchestrator) Start(ctx context.Context, l *models.Lecture, opts lectures.StartOptions) error {
	runID := uuid.New()
	err := o.store.Update(ctx, l.ID, lectures.Patch{
		RunID:        lectures.UUID(runID),
		ExpectStatus: models.LectureStatusProcessing,
	})
	if err != nil {
		return err
	}
	l.RunID = runID
	return o.Submit(ctx, Job{
		LectureID:  l.ID,
		RunID:      runID,
		Mode:       l.Mode,
		Strategy:   opts.Strategy,
		Options:    opts.Options,
		Flashcards: opts.Flashcards,
	})
}

// ReRun resets a finished lecture and queues a generator-only run. flashcards defaults to true.
func (o *Orchestrator) ReRun(ctx context.Context, id uuid.UUID, mode string, flashcards *bool) error {
	l, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if l == nil {
		return lectures.ErrNotFound
	}
	if !l.IsTerminal() {
		return ErrNotRerunnable
	}
	if generate.CharCount(l.Transcript) < MinRerunTranscriptChars {
		return ErrTranscriptTooShort
	}
	if mode == "" {
		mode = l.Mode
	}
	withCards := true
	if flashcards != nil {
		withCards = *flashcards
	}

	runID := uuid.New()
	err = o.store.Update(ctx, id, lectures.Patch{
		Status:       lectures.String(models.LectureStatusProcessing),
		Progress:     lectures.Int(ProgressTranscript),
		Mode:         lectures.String(mode),
		RunID:        lectures.UUID(runID),
		ClearOutputs: true,
		ExpectStatus: l.Status,
		ExpectRun:    lectures.UUID(l.RunID),
	})
	if errors.Is(err, lectures.ErrStatusConflict) {
		return ErrNotRerunnable
	}
	if err != nil {
		return err
	}
	o.notifier.Notify(ctx, models.LectureEvent{
		Type: models.EventLectureProgress, LectureID: id,
		Status: models.LectureStatusProcessing, Progress: ProgressTranscript, Stage: StageSummary,
	})
	return o.Submit(ctx, Job{LectureID: id, RunID: runID, Mode: mode, Flashcards: withCards, GenerateOnly: true})
}

// Stop requests cancellation and marks the lecture failed.
func (o *Orchestrator) Stop(ctx context.Context, id uuid.UUID) error {
	if err := o.registry.Cancel(ctx, id); err != nil {
		return err
	}
	err := o.store.Update(ctx, id, lectures.Patch{
		Status:       lectures.String(models.LectureStatusFailed),
		Error:        lectures.String(StoppedByUser),
		ExpectStatus: models.LectureStatusProcessing,
	})
	if errors.Is(err, lectures.ErrStatusConflict) {
		return ErrNotProcessing
	}
	if err != nil {
		return err
	}
	o.logger.Info("lecture stopped", zap.String("lecture_id", id.String()))
	o.notifier.Notify(ctx, models.LectureEvent{
		Type: models.EventLectureFailed, LectureID: id, Status: models.LectureStatusFailed, Error: StoppedByUser,
	})
	return nil
}

// Run executes the job. A stop request ends the run silently; any other failure marks
// the lecture failed and is returned.
func (o *Orchestrator) Run(ctx context.Context, job Job) error {
	log := o.logger.With(zap.String("lecture_id", job.LectureID.String()), zap.String("mode", job.Mode))
	l, err := o.store.Get(ctx, job.LectureID)
	if err != nil {
		return &retryableError{err: fmt.Errorf("load lecture: %w", err)}
	}
	if l == nil || l.Status != models.LectureStatusProcessing {
		log.Info("lecture not processing, skipping run")
		return nil
	}
	if l.RunID != job.RunID {
		log.Info("run superseded, skipping", zap.String("run_id", job.RunID.String()))
		return nil
	}

	start := time.Now()
	err = o.run(ctx, job, l)
	switch {
	case err == nil:
		log.Info("lecture completed", zap.Duration("took", time.Since(start)))
		return nil
	case errors.Is(err, ErrCancelled):
		log.Info("lecture run cancelled")
		return nil
	}

	log.Error("lecture failed", zap.Error(err))
	o.fail(context.WithoutCancel(ctx), job, err)
	return err
}

func (o *Orchestrator) run(ctx context.Context, job Job, l *models.Lecture) error {
	mode := job.Mode
	if mode == "" {
		mode = l.Mode
	}
	transcript := l.Transcript

	if !job.GenerateOnly {
		if err := o.checkpoint(ctx, job, StageTranscript, lectures.Patch{Progress: lectures.Int(ProgressAcquiring)}); err != nil {
			return err
		}
		res, err := o.acquirer.Acquire(ctx, sourceFor(l, job))
		if err != nil {
			return &StageError{Stage: StageTranscript, Err: err}
		}
		if err := o.cancelled(ctx, l.ID); err != nil {
			return err
		}
		if strings.TrimSpace(res.Transcript) == "" {
			return &StageError{Stage: StageTranscript, Err: ErrEmptyTranscript}
		}
		transcript = res.Transcript
		if err := o.checkpoint(ctx, job, StageTranscript, lectures.Patch{
			Transcript: lectures.String(res.Transcript),
			Language:   lectures.String(res.Language),
			WordCount:  lectures.Int(res.WordCount),
			Progress:   lectures.Int(ProgressTranscript),
		}); err != nil {
			return err
		}
	} else if strings.TrimSpace(transcript) == "" {
		return &StageError{Stage: StageTranscript, Err: ErrEmptyTranscript}
	}

	// summary
	if err := o.cancelled(ctx, l.ID); err != nil {
		return err
	}
	summary, err := o.generator.Summary(ctx, transcript, mode)
	if err != nil {
		return &StageError{Stage: StageSummary, Err: err}
	}
	if err := o.checkpoint(ctx, job, StageSummary, lectures.Patch{
		Summary:  lectures.String(summary),
		Progress: lectures.Int(ProgressSummary),
	}); err != nil {
		return err
	}

	// quiz
	if err := o.cancelled(ctx, l.ID); err != nil {
		return err
	}
	questions, err := o.generator.Quiz(ctx, transcript, mode)
	if err != nil {
		return &StageError{Stage: StageQuiz, Err: err}
	}
	quizProgress := ProgressQuiz
	if job.Flashcards {
		quizProgress = ProgressQuizWithCards
	}
	if err := o.checkpoint(ctx, job, StageQuiz, lectures.Patch{
		Questions: nonNil(questions),
		Progress:  lectures.Int(quizProgress),
	}); err != nil {
		return err
	}

	if job.Flashcards {
		if err := o.cancelled(ctx, l.ID); err != nil {
			return err
		}
		cards, err := o.generator.Flashcards(ctx, transcript, mode)
		if err != nil {
			return &StageError{Stage: StageFlashcards, Err: err}
		}
		if cards == nil {
			cards = []models.Flashcard{}
		}
		if err := o.checkpoint(ctx, job, StageFlashcards, lectures.Patch{
			Flashcards: cards,
			Progress:   lectures.Int(ProgressFlashcards),
		}); err != nil {
			return err
		}
	}

	// slides
	if err := o.cancelled(ctx, l.ID); err != nil {
		return err
	}
	deck, err := o.generator.Slides(ctx, transcript, summary, mode)
	if err != nil {
		return &StageError{Stage: StageSlides, Err: err}
	}
	slides := []models.Slide{}
	if deck != nil && deck.Slides != nil {
		slides = deck.Slides
	}
	if err := o.cancelled(ctx, l.ID); err != nil {
		return err
	}
	err = o.store.Update(ctx, l.ID, lectures.Patch{
		Slides:       slides,
		Progress:     lectures.Int(ProgressComplete),
		Status:       lectures.String(models.LectureStatusCompleted),
		ExpectStatus: models.LectureStatusProcessing,
		ExpectRun:    lectures.UUID(job.RunID),
	})
	if err != nil {
		return persistErr(err)
	}
	o.notifier.Notify(ctx, models.LectureEvent{
		Type: models.EventLectureCompleted, LectureID: l.ID,
		Status: models.LectureStatusCompleted, Progress: ProgressComplete, Stage: StageSlides,
	})
	return nil
}

// checkpoint checks for a stop request, then writes p conditioned on the lecture still
// processing under the job's run.
func (o *Orchestrator) checkpoint(ctx context.Context, job Job, stage string, p lectures.Patch) error {
	id := job.LectureID
	if err := o.cancelled(ctx, id); err != nil {
		return err
	}
	p.ExpectStatus = models.LectureStatusProcessing
	p.ExpectRun = lectures.UUID(job.RunID)
	if err := o.store.Update(ctx, id, p); err != nil {
		return persistErr(err)
	}
	progress := 0
	if p.Progress != nil {
		progress = *p.Progress
	}
	o.notifier.Notify(ctx, models.LectureEvent{
		Type: models.EventLectureProgress, LectureID: id,
		Status: models.LectureStatusProcessing, Progress: progress, Stage: stage,
	})
	return nil
}

func (o *Orchestrator) cancelled(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop, err := o.registry.Cancelled(ctx, id)
	if err != nil {
		return fmt.Errorf("check cancellation: %w", err)
	}
	if stop {
		return ErrCancelled
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job Job, cause error) {
	id := job.LectureID
	msg := FailureMessage(cause)
	err := o.store.Update(ctx, id, lectures.Patch{
		Status:       lectures.String(models.LectureStatusFailed),
		Error:        lectures.String(msg),
		ExpectStatus: models.LectureStatusProcessing,
		ExpectRun:    lectures.UUID(job.RunID),
	})
	if err != nil {
		if !errors.Is(err, lectures.ErrStatusConflict) && !errors.Is(err, lectures.ErrNotFound) {
			o.logger.Error("mark lecture failed", zap.String("lecture_id", id.String()), zap.Error(err))
		}
		return
	}
	o.notifier.Notify(ctx, models.LectureEvent{
		Type: models.EventLectureFailed, LectureID: id, Status: models.LectureStatusFailed, Error: msg,
	})
}

// persistErr maps a lost precondition to cancellation.
func persistErr(err error) error {
	if errors.Is(err, lectures.ErrStatusConflict) || errors.Is(err, lectures.ErrNotFound) {
		return ErrCancelled
	}
	return fmt.Errorf("persist stage: %w", err)
}

func nonNil(qs []models.Question) []models.Question {
	if qs == nil {
		return []models.Question{}
	}
	return qs
}

func sourceFor(l *models.Lecture, job Job) acquisition.Source {
	return acquisition.Source{
		Kind:     l.SourceType,
		VideoID:  l.VideoID,
		Range:    acquisition.TimeRange{Start: l.StartTime, End: l.EndTime},
		Strategy: job.Strategy,
		OwnerID:  l.OwnerID.String(),
		MediaKey: l.MediaKey,
		Options:  job.Options,
	}
}
