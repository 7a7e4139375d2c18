package lectures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lecturemate/backend/internal/models"
)

const lectureColumns = `id, owner_id, title, COALESCE(thumbnail_url,''), COALESCE(duration,''), source_type,
	COALESCE(video_id,''), start_time, end_time, COALESCE(media_key,''), mode, status, progress,
	COALESCE(transcript,''), COALESCE(language,''), word_count, COALESCE(summary,''),
	questions, slides, flashcards, COALESCE(error,''), COALESCE(run_id::text,''), created_at, updated_at`

// Repository is the Postgres-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a lectures repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new lecture and fills id and timestamps.
func (r *Repository) Create(ctx context.Context, l *models.Lecture) error {
	const q = `INSERT INTO lectures (id, owner_id, title, thumbnail_url, duration, source_type, video_id,
		start_time, end_time, media_key, mode, status, progress, run_id)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6, NULLIF($7,''), $8, $9, NULLIF($10,''), $11, $12, $13, $14)
		RETURNING created_at, updated_at`
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, q, l.ID, l.OwnerID, l.Title, l.ThumbnailURL, l.Duration, l.SourceType, l.VideoID,
		l.StartTime, l.EndTime, l.MediaKey, l.Mode, l.Status, l.Progress, nullUUID(l.RunID)).
		Scan(&l.CreatedAt, &l.UpdatedAt)
}

// Update applies a patch in a single statement.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p Patch) error {
	q, args, err := buildUpdate(id, p)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update lecture: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if !p.conditional() {
		return ErrNotFound
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM lectures WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check lecture: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

// Get returns a lecture by ID, or nil when missing.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Lecture, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+lectureColumns+` FROM lectures WHERE id = $1`, id)
	l, err := scanLecture(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

// Delete removes a lecture.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lectures WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the owner's lectures, newest first.
func (r *Repository) List(ctx context.Context, ownerID uuid.UUID) ([]models.Lecture, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lectureColumns+` FROM lectures WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.Lecture, 0)
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *l)
	}
	return list, rows.Err()
}

func scanLecture(row pgx.Row) (*models.Lecture, error) {
	var (
		l                             models.Lecture
		questions, slides, flashcards []byte
		runID                         string
	)
	err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &l.ThumbnailURL, &l.Duration, &l.SourceType,
		&l.VideoID, &l.StartTime, &l.EndTime, &l.MediaKey, &l.Mode, &l.Status, &l.Progress,
		&l.Transcript, &l.Language, &l.WordCount, &l.Summary,
		&questions, &slides, &flashcards, &l.Error, &runID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if runID != "" {
		if l.RunID, err = uuid.Parse(runID); err != nil {
			return nil, fmt.Errorf("run id: %w", err)
		}
	}
	if err := unmarshalColumn(questions, &l.Questions); err != nil {
		return nil, fmt.Errorf("questions: %w", err)
	}
	if err := unmarshalColumn(slides, &l.Slides); err != nil {
		return nil, fmt.Errorf("slides: %w", err)
	}
	if err := unmarshalColumn(flashcards, &l.Flashcards); err != nil {
		return nil, fmt.Errorf("flashcards: %w", err)
	}
	return &l, nil
}

func unmarshalColumn(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// buildUpdate renders a patch as one UPDATE statement with positional arguments.
func buildUpdate(id uuid.UUID, p Patch) (string, []any, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	setJSON := func(column string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", column, err)
		}
		set(column, raw)
		return nil
	}

	if p.Status != nil {
		set("status", *p.Status)
	}
	if p.Progress != nil {
		set("progress", *p.Progress)
	}
	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Transcript != nil {
		set("transcript", *p.Transcript)
	}
	if p.Language != nil {
		set("language", *p.Language)
	}
	if p.WordCount != nil {
		set("word_count", *p.WordCount)
	}
	if p.Summary != nil {
		set("summary", *p.Summary)
	}
	if p.Questions != nil {
		if err := setJSON("questions", p.Questions); err != nil {
			return "", nil, err
		}
	}
	if p.Slides != nil {
		if err := setJSON("slides", p.Slides); err != nil {
			return "", nil, err
		}
	}
	if p.Flashcards != nil {
		if err := setJSON("flashcards", p.Flashcards); err != nil {
			return "", nil, err
		}
	}
	if p.Error != nil {
		set("error", *p.Error)
	}
	if p.Mode != nil {
		set("mode", *p.Mode)
	}
	if p.RunID != nil {
		set("run_id", nullUUID(*p.RunID))
	}
	if p.ClearOutputs {
		cleared := []struct {
			column string
			set    bool
		}{
			{"summary", p.Summary != nil},
			{"questions", p.Questions != nil},
			{"slides", p.Slides != nil},
			{"flashcards", p.Flashcards != nil},
			{"error", p.Error != nil},
		}
		for _, c := range cleared {
			if !c.set {
				sets = append(sets, c.column+" = NULL")
			}
		}
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	q := fmt.Sprintf("UPDATE lectures SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if p.ExpectStatus != "" {
		args = append(args, p.ExpectStatus)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if p.ExpectRun != nil {
		if *p.ExpectRun == uuid.Nil {
			q += " AND run_id IS NULL"
		} else {
			args = append(args, *p.ExpectRun)
			q += fmt.Sprintf(" AND run_id = $%d", len(args))
		}
	}
	return q, args, nil
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
