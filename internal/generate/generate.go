// Package generate produces summaries, quizzes, flashcards and slide decks from a
// transcript by trying an ordered list of backends.
package generate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lecturemate/backend/internal/models"
)

const (
	// MinSummaryChars is the shortest transcript a summary is generated for.
	MinSummaryChars = 100
	// MinQuizChars is the shortest transcript quiz questions and flashcards are generated for.
	MinQuizChars = 200

	// ShortTranscriptSummary is returned instead of a summary for short transcripts.
	ShortTranscriptSummary = "Transcript is too short to generate a summary."
)

var (
	// ErrUnsupported is returned by a backend that cannot produce the requested output.
	ErrUnsupported = errors.New("output not supported by backend")
	// ErrNotConfigured is returned when the only backend able to serve a call is missing.
	ErrNotConfigured = errors.New("generator backend not configured")
	// ErrRateLimited is returned when every API key is rate limited.
	ErrRateLimited = errors.New("generator rate limited")
)

// Deck is a generated slide deck.
type Deck struct {
	LectureTitle string         `json:"lecture_title"`
	Language     string         `json:"language"`
	Slides       []models.Slide `json:"slides"`
}

// TextSummary is the short summary of free text returned by /summarize.
type TextSummary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// Backend produces content from a transcript.
type Backend interface {
	Name() string
	Summary(ctx context.Context, transcript string) (string, error)
	Quiz(ctx context.Context, transcript string) ([]models.Question, error)
	Flashcards(ctx context.Context, transcript string) ([]models.Flashcard, error)
	Slides(ctx context.Context, transcript, summary string) (*Deck, error)
}

// TextSummarizer summarizes arbitrary text into a paragraph and key points.
type TextSummarizer interface {
	SummarizeText(ctx context.Context, text string) (*TextSummary, error)
}

// Service routes generator calls through the backend chain for a mode.
type Service struct {
	cloud      Backend
	local      Backend
	fallback   Backend
	summarizer TextSummarizer
	logger     *zap.Logger
}

// NewService creates a generator service. cloud and local may be nil when not configured.
// summarizer may be nil; SummarizeText then returns ErrNotConfigured.
func NewService(cloud, local Backend, summarizer TextSummarizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cloud:      cloud,
		local:      local,
		fallback:   NewHeuristic(),
		summarizer: summarizer,
		logger:     logger,
	}
}

// chain returns the backends to try for mode, in order.
func (s *Service) chain(mode string) []Backend {
	var ordered []Backend
	if mode == models.ModeLocal {
		ordered = []Backend{s.local, s.cloud, s.fallback}
	} else {
		ordered = []Backend{s.cloud, s.local, s.fallback}
	}
	out := ordered[:0]
	for _, b := range ordered {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// firstSuccess returns the result of the first backend that succeeds.
func firstSuccess[T any](ctx context.Context, s *Service, op, mode string, call func(Backend) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for _, b := range s.chain(mode) {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := call(b)
		if err == nil {
			s.logger.Debug("generated", zap.String("op", op), zap.String("backend", b.Name()))
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
		}
		if !errors.Is(err, ErrUnsupported) {
			s.logger.Warn("generator backend failed", zap.String("op", op), zap.String("backend", b.Name()), zap.Error(err))
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%s: all backends failed: %w", op, lastErr)
}

// Summary summarizes the transcript. Short transcripts get a fixed message without any backend call.
func (s *Service) Summary(ctx context.Context, transcript, mode string) (string, error) {
	if CharCount(transcript) < MinSummaryChars {
		return ShortTranscriptSummary, nil
	}
	return firstSuccess(ctx, s, "summary", mode, func(b Backend) (string, error) {
		return b.Summary(ctx, transcript)
	})
}

// Quiz generates quiz questions. Short transcripts yield an empty list.
func (s *Service) Quiz(ctx context.Context, transcript, mode string) ([]models.Question, error) {
	if CharCount(transcript) < MinQuizChars {
		return []models.Question{}, nil
	}
	return firstSuccess(ctx, s, "quiz", mode, func(b Backend) ([]models.Question, error) {
		return b.Quiz(ctx, transcript)
	})
}

// Flashcards generates flashcards. Short transcripts yield an empty list.
func (s *Service) Flashcards(ctx context.Context, transcript, mode string) ([]models.Flashcard, error) {
	if CharCount(transcript) < MinQuizChars {
		return []models.Flashcard{}, nil
	}
	return firstSuccess(ctx, s, "flashcards", mode, func(b Backend) ([]models.Flashcard, error) {
		return b.Flashcards(ctx, transcript)
	})
}

// Slides generates a slide deck from the transcript and its summary.
func (s *Service) Slides(ctx context.Context, transcript, summary, mode string) (*Deck, error) {
	return firstSuccess(ctx, s, "slides", mode, func(b Backend) (*Deck, error) {
		return b.Slides(ctx, transcript, summary)
	})
}

// SummarizeText summarizes free text with the hosted model.
func (s *Service) SummarizeText(ctx context.Context, text string) (*TextSummary, error) {
	if s.summarizer == nil {
		return nil, ErrNotConfigured
	}
	return s.summarizer.SummarizeText(ctx, text)
}
