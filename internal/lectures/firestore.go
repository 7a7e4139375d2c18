package lectures

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lecturemate/backend/internal/models"
)

// DefaultCollection is the Firestore collection holding lecture documents.
const DefaultCollection = "lectures"

// Firestore is a Store keeping one document per lecture.
type Firestore struct {
	client *firestore.Client
	coll   string
}

// NewFirestore creates a Firestore-backed store.
func NewFirestore(client *firestore.Client, collection string) *Firestore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Firestore{client: client, coll: collection}
}

type lectureDoc struct {
	OwnerID      string             `firestore:"owner_id"`
	Title        string             `firestore:"title"`
	ThumbnailURL string             `firestore:"thumbnail_url,omitempty"`
	Duration     string             `firestore:"duration,omitempty"`
	SourceType   string             `firestore:"source_type"`
	VideoID      string             `firestore:"video_id,omitempty"`
	StartTime    *float64           `firestore:"start_time,omitempty"`
	EndTime      *float64           `firestore:"end_time,omitempty"`
	MediaKey     string             `firestore:"media_key,omitempty"`
	Mode         string             `firestore:"mode"`
	Status       string             `firestore:"status"`
	Progress     int                `firestore:"progress"`
	Transcript   string             `firestore:"transcript,omitempty"`
	Language     string             `firestore:"language,omitempty"`
	WordCount    int                `firestore:"word_count"`
	Summary      string             `firestore:"summary,omitempty"`
	Questions    []models.Question  `firestore:"questions,omitempty"`
	Slides       []models.Slide     `firestore:"slides,omitempty"`
	Flashcards   []models.Flashcard `firestore:"flashcards,omitempty"`
	Error        string             `firestore:"error,omitempty"`
	RunID        string             `firestore:"run_id,omitempty"`
	CreatedAt    time.Time          `firestore:"created_at"`
	UpdatedAt    time.Time          `firestore:"updated_at"`
}

func toDoc(l *models.Lecture) lectureDoc {
	return lectureDoc{
		OwnerID: l.OwnerID.String(), Title: l.Title, ThumbnailURL: l.ThumbnailURL, Duration: l.Duration,
		SourceType: l.SourceType, VideoID: l.VideoID, StartTime: l.StartTime, EndTime: l.EndTime,
		MediaKey: l.MediaKey, Mode: l.Mode, Status: l.Status, Progress: l.Progress,
		Transcript: l.Transcript, Language: l.Language, WordCount: l.WordCount, Summary: l.Summary,
		Questions: l.Questions, Slides: l.Slides, Flashcards: l.Flashcards, Error: l.Error,
		RunID: runString(l.RunID), CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
	}
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (*models.Lecture, error) {
	var d lectureDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode lecture %s: %w", snap.Ref.ID, err)
	}
	id, err := uuid.Parse(snap.Ref.ID)
	if err != nil {
		return nil, fmt.Errorf("lecture document id %q: %w", snap.Ref.ID, err)
	}
	owner, _ := uuid.Parse(d.OwnerID)
	run, _ := uuid.Parse(d.RunID)
	return &models.Lecture{
		ID: id, OwnerID: owner, Title: d.Title, ThumbnailURL: d.ThumbnailURL, Duration: d.Duration,
		SourceType: d.SourceType, VideoID: d.VideoID, StartTime: d.StartTime, EndTime: d.EndTime,
		MediaKey: d.MediaKey, Mode: d.Mode, Status: d.Status, Progress: d.Progress,
		Transcript: d.Transcript, Language: d.Language, WordCount: d.WordCount, Summary: d.Summary,
		Questions: d.Questions, Slides: d.Slides, Flashcards: d.Flashcards, Error: d.Error,
		RunID: run, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}, nil
}

func runString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func notFound(err error) bool { return status.Code(err) == codes.NotFound }

func (f *Firestore) doc(id uuid.UUID) *firestore.DocumentRef {
	return f.client.Collection(f.coll).Doc(id.String())
}

// Create writes a new lecture document.
func (f *Firestore) Create(ctx context.Context, l *models.Lecture) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	if _, err := f.doc(l.ID).Create(ctx, toDoc(l)); err != nil {
		return fmt.Errorf("create lecture: %w", err)
	}
	return nil
}

// Update applies a patch inside a transaction so the status precondition and the write are atomic.
func (f *Firestore) Update(ctx context.Context, id uuid.UUID, p Patch) error {
	ref := f.doc(id)
	return f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if notFound(err) {
				return ErrNotFound
			}
			return fmt.Errorf("read lecture: %w", err)
		}
		l, err := fromSnapshot(snap)
		if err != nil {
			return err
		}
		if !p.Matches(l) {
			return ErrStatusConflict
		}
		p.Apply(l)
		l.UpdatedAt = time.Now().UTC()
		return tx.Set(ref, toDoc(l))
	})
}

// Get returns a lecture, or nil when missing.
func (f *Firestore) Get(ctx context.Context, id uuid.UUID) (*models.Lecture, error) {
	snap, err := f.doc(id).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lecture: %w", err)
	}
	return fromSnapshot(snap)
}

// Delete removes a lecture document.
func (f *Firestore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := f.doc(id).Delete(ctx, firestore.Exists)
	if notFound(err) {
		return ErrNotFound
	}
	return err
}

// List returns the owner's lectures, newest first. Sorting happens here so the query
// needs no composite index.
func (f *Firestore) List(ctx context.Context, ownerID uuid.UUID) ([]models.Lecture, error) {
	it := f.client.Collection(f.coll).Where("owner_id", "==", ownerID.String()).Documents(ctx)
	defer it.Stop()
	list := make([]models.Lecture, 0)
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list lectures: %w", err)
		}
		l, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		list = append(list, *l)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}
