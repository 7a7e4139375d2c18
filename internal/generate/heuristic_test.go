package generate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturemate/backend/internal/models"
)

func TestHeuristicSummary(t *testing.T) {
	var parts []string
	for i := 0; i < 14; i++ {
		parts = append(parts, "Sentence number "+string(rune('A'+i))+" talks about distributed systems")
	}
	parts = append(parts, "too short")
	text := strings.Join(parts, ". ")

	summary, err := NewHeuristic().Summary(context.Background(), text)
	require.NoError(t, err)

	paragraphs := strings.Split(summary, "\n\n")
	require.Len(t, paragraphs, 4, "twelve sentences in groups of three")
	assert.Equal(t, "Sentence number A talks about distributed systems. Sentence number B talks about distributed systems. Sentence number C talks about distributed systems.", paragraphs[0])
	assert.NotContains(t, summary, "Sentence number M")
	assert.NotContains(t, summary, "too short")
}

func TestHeuristicQuiz(t *testing.T) {
	h := NewHeuristic()
	ctx := context.Background()

	t.Run("english with enough sentences", func(t *testing.T) {
		quiz, err := h.Quiz(ctx, longText(3))
		require.NoError(t, err)
		require.Len(t, quiz, 2)
		assert.Equal(t, models.QuestionMultipleChoice, quiz[0].Type)
		assert.Len(t, quiz[0].Options, 4)
		assert.Equal(t, models.QuestionTrueFalse, quiz[1].Type)
		assert.Equal(t, []string{"True", "False"}, quiz[1].Options)
	})

	t.Run("one sentence", func(t *testing.T) {
		quiz, err := h.Quiz(ctx, "The lecture explains how queues decouple producers from consumers.")
		require.NoError(t, err)
		require.Len(t, quiz, 1)
	})

	t.Run("arabic", func(t *testing.T) {
		text := strings.Repeat("تشرح هذه المحاضرة كيفية عمل قواعد البيانات الموزعة بالتفصيل. ", 3)
		quiz, err := h.Quiz(ctx, text)
		require.NoError(t, err)
		require.Len(t, quiz, 2)
		assert.Equal(t, "ما هو الموضوع الرئيسي الذي تمت مناقشته في هذه المحاضرة؟", quiz[0].Text)
		assert.Equal(t, []string{"صحيح", "خطأ"}, quiz[1].Options)
	})
}

func TestHeuristicFlashcards(t *testing.T) {
	text := "Queues decouple producers from consumers. Short one here. " +
		"Backpressure keeps the worker pool from overloading. " +
		"Retries move failed jobs to a dead letter list"
	cards, err := NewHeuristic().Flashcards(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, "Queues decouple producers", cards[0].Term)
	assert.Equal(t, "Queues decouple producers from consumers", cards[0].Definition)
	assert.Equal(t, 1, cards[0].ID)
}

func TestHeuristicSlides(t *testing.T) {
	summary := "First paragraph sentence one is long enough. Second sentence is also long enough. Tiny.\n\n" +
		"Another section begins right here. It has a second bullet too. Third bullet sentence appears. Fourth bullet sentence appears. Fifth bullet is dropped here."
	deck, err := NewHeuristic().Slides(context.Background(), "", summary)
	require.NoError(t, err)
	require.Len(t, deck.Slides, 2)
	assert.Equal(t, "Section 1", deck.Slides[0].Title)
	assert.Len(t, deck.Slides[0].Bullets, 2)
	assert.Len(t, deck.Slides[1].Bullets, 4)
	assert.Equal(t, "Lecture Slides", deck.LectureTitle)
}

func TestHeuristicSlidesWithoutContent(t *testing.T) {
	deck, err := NewHeuristic().Slides(context.Background(), "short", "")
	require.NoError(t, err)
	require.Len(t, deck.Slides, 1)
	assert.Equal(t, []string{"Slide content"}, deck.Slides[0].Bullets)
}
