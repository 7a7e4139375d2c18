package lectures

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturemate/backend/internal/models"
)

func storeContract(t *testing.T, s Store) {
	ctx := context.Background()
	owner := uuid.New()
	start, end := 10.0, 20.0

	l := &models.Lecture{
		OwnerID:    owner,
		Title:      "First",
		SourceType: models.SourceYouTube,
		VideoID:    "dQw4w9WgXcQ",
		StartTime:  &start,
		EndTime:    &end,
		Mode:       models.ModeCloud,
		Status:     models.LectureStatusProcessing,
	}
	require.NoError(t, s.Create(ctx, l))
	require.NotEqual(t, uuid.Nil, l.ID)

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "First", got.Title)
	require.NotNil(t, got.StartTime)
	assert.Equal(t, 10.0, *got.StartTime)

	missing, err := s.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Update(ctx, l.ID, Patch{
		Progress:   Int(40),
		Transcript: String("hello world"),
		WordCount:  Int(2),
		Questions:  []models.Question{{ID: 1, Text: "Q", Options: []string{"a", "b"}, Type: models.QuestionTrueFalse}},
	}))
	got, err = s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, "hello world", got.Transcript)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, []string{"a", "b"}, got.Questions[0].Options)

	err = s.Update(ctx, l.ID, Patch{Status: String(models.LectureStatusCompleted), ExpectStatus: models.LectureStatusFailed})
	assert.ErrorIs(t, err, ErrStatusConflict)

	require.NoError(t, s.Update(ctx, l.ID, Patch{
		Status:       String(models.LectureStatusFailed),
		Error:        String("stopped"),
		ExpectStatus: models.LectureStatusProcessing,
	}))
	require.NoError(t, s.Update(ctx, l.ID, Patch{
		Status:       String(models.LectureStatusProcessing),
		ClearOutputs: true,
		ExpectStatus: models.LectureStatusFailed,
	}))
	got, err = s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Questions)
	assert.Empty(t, got.Error)
	assert.Equal(t, "hello world", got.Transcript, "clearing outputs keeps the transcript")

	assert.ErrorIs(t, s.Update(ctx, uuid.New(), Patch{Progress: Int(1)}), ErrNotFound)

	first, next := uuid.New(), uuid.New()
	require.NoError(t, s.Update(ctx, l.ID, Patch{RunID: UUID(first), ExpectRun: UUID(uuid.Nil)}))
	require.NoError(t, s.Update(ctx, l.ID, Patch{RunID: UUID(next), ExpectRun: UUID(first)}))
	err = s.Update(ctx, l.ID, Patch{Summary: String("late"), ExpectStatus: models.LectureStatusProcessing, ExpectRun: UUID(first)})
	assert.ErrorIs(t, err, ErrStatusConflict, "a superseded run cannot write")
	got, err = s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, next, got.RunID)
	assert.Empty(t, got.Summary)

	time.Sleep(5 * time.Millisecond)
	second := &models.Lecture{OwnerID: owner, Title: "Second", SourceType: models.SourceUpload, Mode: models.ModeLocal, Status: models.LectureStatusProcessing}
	require.NoError(t, s.Create(ctx, second))
	require.NoError(t, s.Create(ctx, &models.Lecture{OwnerID: uuid.New(), Title: "Other", Status: models.LectureStatusProcessing}))

	list, err := s.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Title)
	assert.Equal(t, "First", list[1].Title)

	require.NoError(t, s.Delete(ctx, l.ID))
	assert.ErrorIs(t, s.Delete(ctx, l.ID), ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	l := &models.Lecture{Status: models.LectureStatusProcessing, Slides: []models.Slide{{ID: 1, Bullets: []string{"a"}}}}
	require.NoError(t, s.Create(ctx, l))

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	got.Slides[0].Bullets[0] = "changed"

	again, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Slides[0].Bullets[0])
}

func TestFirestoreStore(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "lecturemate-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	storeContract(t, NewFirestore(client, "lectures_"+strings.ReplaceAll(uuid.NewString(), "-", "")))
}

func TestBuildUpdate(t *testing.T) {
	id := uuid.New()

	q, args, err := buildUpdate(id, Patch{Progress: Int(60), Summary: String("s"), ExpectStatus: models.LectureStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE lectures SET progress = $1, summary = $2, updated_at = NOW() WHERE id = $3 AND status = $4", q)
	assert.Equal(t, []any{60, "s", id, models.LectureStatusProcessing}, args)

	q, args, err = buildUpdate(id, Patch{
		ClearOutputs: true,
		Status:       String(models.LectureStatusProcessing),
		Slides:       []models.Slide{{ID: 1, Title: "t", Bullets: []string{"b"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE lectures SET status = $1, slides = $2, summary = NULL, questions = NULL, flashcards = NULL, error = NULL, updated_at = NOW() WHERE id = $3", q)
	require.Len(t, args, 3)
	assert.JSONEq(t, `[{"id":1,"title":"t","bullets":["b"]}]`, string(args[1].([]byte)))

	run := uuid.New()
	q, args, err = buildUpdate(id, Patch{Progress: Int(80), ExpectStatus: models.LectureStatusProcessing, ExpectRun: UUID(run)})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE lectures SET progress = $1, updated_at = NOW() WHERE id = $2 AND status = $3 AND run_id = $4", q)
	assert.Equal(t, []any{80, id, models.LectureStatusProcessing, run}, args)

	q, args, err = buildUpdate(id, Patch{RunID: UUID(run), ExpectRun: UUID(uuid.Nil)})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE lectures SET run_id = $1, updated_at = NOW() WHERE id = $2 AND run_id IS NULL", q)
	assert.Equal(t, []any{run, id}, args)
}
