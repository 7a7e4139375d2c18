package lectures

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lecturemate/backend/internal/models"
)

// MemoryStore is an in-process Store. Records are copied in and out so callers never share state with it.
type MemoryStore struct {
	mu       sync.RWMutex
	lectures map[uuid.UUID]models.Lecture
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lectures: make(map[uuid.UUID]models.Lecture)}
}

// Create inserts a lecture, assigning an id when empty.
func (s *MemoryStore) Create(ctx context.Context, l *models.Lecture) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	s.mu.Lock()
	s.lectures[l.ID] = clone(*l)
	s.mu.Unlock()
	return nil
}

// Update applies a patch under the store lock.
func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lectures[id]
	if !ok {
		return ErrNotFound
	}
	if !p.Matches(&l) {
		return ErrStatusConflict
	}
	p.Apply(&l)
	l.UpdatedAt = time.Now().UTC()
	s.lectures[id] = clone(l)
	return nil
}

// Get returns a copy of the lecture, or nil when missing.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.Lecture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lectures[id]
	if !ok {
		return nil, nil
	}
	out := clone(l)
	return &out, nil
}

// Delete removes a lecture.
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lectures[id]; !ok {
		return ErrNotFound
	}
	delete(s.lectures, id)
	return nil
}

// List returns the owner's lectures, newest first.
func (s *MemoryStore) List(ctx context.Context, ownerID uuid.UUID) ([]models.Lecture, error) {
	s.mu.RLock()
	list := make([]models.Lecture, 0)
	for _, l := range s.lectures {
		if l.OwnerID == ownerID {
			list = append(list, clone(l))
		}
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func clone(l models.Lecture) models.Lecture {
	if l.Questions != nil {
		qs := make([]models.Question, len(l.Questions))
		for i, q := range l.Questions {
			q.Options = append([]string(nil), q.Options...)
			qs[i] = q
		}
		l.Questions = qs
	}
	if l.Slides != nil {
		ss := make([]models.Slide, len(l.Slides))
		for i, sl := range l.Slides {
			sl.Bullets = append([]string(nil), sl.Bullets...)
			ss[i] = sl
		}
		l.Slides = ss
	}
	if l.Flashcards != nil {
		l.Flashcards = append([]models.Flashcard(nil), l.Flashcards...)
	}
	if l.StartTime != nil {
		v := *l.StartTime
		l.StartTime = &v
	}
	if l.EndTime != nil {
		v := *l.EndTime
		l.EndTime = &v
	}
	return l
}
