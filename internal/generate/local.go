package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lecturemate/backend/internal/models"
)

// LocalModel is the subset of the local model server client used for text generation.
type LocalModel interface {
	Summary(ctx context.Context, transcript string) (string, error)
	Quiz(ctx context.Context, transcript string) (json.RawMessage, error)
	Flashcards(ctx context.Context, transcript string) (json.RawMessage, error)
}

// Local generates content on the local model server. It has no slide generation.
type Local struct {
	client LocalModel
}

// NewLocal wraps a local model client. It returns nil when client is nil.
func NewLocal(client LocalModel) *Local {
	if client == nil {
		return nil
	}
	return &Local{client: client}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Summary(ctx context.Context, transcript string) (string, error) {
	summary, err := l.client.Summary(ctx, transcript)
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if CharCount(summary) <= minAISummary {
		return "", fmt.Errorf("local summary too short (%d characters)", CharCount(summary))
	}
	return summary, nil
}

func (l *Local) Quiz(ctx context.Context, transcript string) ([]models.Question, error) {
	raw, err := l.client.Quiz(ctx, transcript)
	if err != nil {
		return nil, err
	}
	return ParseQuestions(raw)
}

func (l *Local) Flashcards(ctx context.Context, transcript string) ([]models.Flashcard, error) {
	raw, err := l.client.Flashcards(ctx, transcript)
	if err != nil {
		return nil, err
	}
	return ParseFlashcards(raw)
}

func (l *Local) Slides(ctx context.Context, transcript, summary string) (*Deck, error) {
	return nil, ErrUnsupported
}
