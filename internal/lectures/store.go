package lectures

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/lecturemate/backend/internal/models"
)

var (
	// ErrNotFound is returned by Update and Delete when the lecture does not exist.
	ErrNotFound = errors.New("lecture not found")
	// ErrStatusConflict is returned by Update when Patch.ExpectStatus or Patch.ExpectRun does not match.
	ErrStatusConflict = errors.New("lecture status changed")

	// ErrNotRerunnable is returned by a re-run of a lecture that is still processing.
	ErrNotRerunnable = errors.New("lecture is still processing")
	// ErrTranscriptTooShort is returned by a re-run when there is not enough transcript to work with.
	ErrTranscriptTooShort = errors.New("transcript too short to re-run")
	// ErrNotProcessing is returned by a stop request for a lecture that already finished.
	ErrNotProcessing = errors.New("lecture is not processing")
)

// Store persists lecture records. Update is atomic per call; Get reflects the last completed Update.
type Store interface {
	Create(ctx context.Context, l *models.Lecture) error
	Update(ctx context.Context, id uuid.UUID, p Patch) error
	Get(ctx context.Context, id uuid.UUID) (*models.Lecture, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Lecture, error)
}

// Patch is a partial lecture update. Nil fields are left untouched.
type Patch struct {
	Status     *string
	Progress   *int
	Title      *string
	Transcript *string
	Language   *string
	WordCount  *int
	Summary    *string
	Questions  []models.Question
	Slides     []models.Slide
	Flashcards []models.Flashcard
	Error      *string
	Mode       *string
	RunID      *uuid.UUID

	// ClearOutputs empties summary, questions, slides, flashcards and error before the
	// other fields are applied.
	ClearOutputs bool
	// ExpectStatus, when set, makes the update conditional on the current status.
	ExpectStatus string
	// ExpectRun, when set, makes the update conditional on the current run id.
	ExpectRun *uuid.UUID
}

// Matches reports whether l satisfies the patch preconditions.
func (p Patch) Matches(l *models.Lecture) bool {
	if p.ExpectStatus != "" && l.Status != p.ExpectStatus {
		return false
	}
	if p.ExpectRun != nil && l.RunID != *p.ExpectRun {
		return false
	}
	return true
}

func (p Patch) conditional() bool {
	return p.ExpectStatus != "" || p.ExpectRun != nil
}

// Apply merges p into l. Stores without native partial updates use it.
func (p Patch) Apply(l *models.Lecture) {
	if p.ClearOutputs {
		l.Summary = ""
		l.Questions = nil
		l.Slides = nil
		l.Flashcards = nil
		l.Error = ""
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.Progress != nil {
		l.Progress = *p.Progress
	}
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Transcript != nil {
		l.Transcript = *p.Transcript
	}
	if p.Language != nil {
		l.Language = *p.Language
	}
	if p.WordCount != nil {
		l.WordCount = *p.WordCount
	}
	if p.Summary != nil {
		l.Summary = *p.Summary
	}
	if p.Questions != nil {
		l.Questions = p.Questions
	}
	if p.Slides != nil {
		l.Slides = p.Slides
	}
	if p.Flashcards != nil {
		l.Flashcards = p.Flashcards
	}
	if p.Error != nil {
		l.Error = *p.Error
	}
	if p.Mode != nil {
		l.Mode = *p.Mode
	}
	if p.RunID != nil {
		l.RunID = *p.RunID
	}
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Int returns a pointer to n, for building patches.
func Int(n int) *int { return &n }

// UUID returns a pointer to id, for building patches.
func UUID(id uuid.UUID) *uuid.UUID { return &id }
