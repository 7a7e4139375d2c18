package models

import (
	"time"

	"github.com/google/uuid"
)

// Lecture lifecycle status.
const (
	LectureStatusProcessing = "processing"
	LectureStatusCompleted  = "completed"
	LectureStatusFailed     = "failed"
)

// Lecture source kinds.
const (
	SourceYouTube = "youtube"
	SourceUpload  = "upload"
)

// Generator modes. ModeCloud tries the hosted AI API first, ModeLocal the local model server.
const (
	ModeCloud = "cloud"
	ModeLocal = "local"
)

// Question types.
const (
	QuestionMultipleChoice = "multiple-choice"
	QuestionTrueFalse      = "true-false"
)

// Lecture is one submitted video or file and everything derived from it.
type Lecture struct {
	ID           uuid.UUID   `json:"id"`
	OwnerID      uuid.UUID   `json:"owner_id"`
	Title        string      `json:"title"`
	ThumbnailURL string      `json:"thumbnail_url,omitempty"`
	Duration     string      `json:"duration,omitempty"`
	SourceType   string      `json:"source_type"`
	VideoID      string      `json:"video_id,omitempty"`
	StartTime    *float64    `json:"start_time,omitempty"`
	EndTime      *float64    `json:"end_time,omitempty"`
	MediaKey     string      `json:"media_key,omitempty"`
	Mode         string      `json:"mode"`
	Status       string      `json:"status"`
	Progress     int         `json:"progress"`
	Transcript   string      `json:"transcript,omitempty"`
	Language     string      `json:"language,omitempty"`
	WordCount    int         `json:"word_count,omitempty"`
	Summary      string      `json:"summary,omitempty"`
	Questions    []Question  `json:"questions,omitempty"`
	Slides       []Slide     `json:"slides,omitempty"`
	Flashcards   []Flashcard `json:"flashcards,omitempty"`
	Error        string      `json:"error,omitempty"`
	// RunID identifies the pipeline run allowed to write stage output.
	RunID     uuid.UUID `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the lecture is completed or failed.
func (l *Lecture) IsTerminal() bool {
	return l.Status == LectureStatusCompleted || l.Status == LectureStatusFailed
}

// Question is a quiz question.
type Question struct {
	ID           int      `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Type         string   `json:"type"`
}

// Slide is one slide of a generated deck.
type Slide struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Notes   string   `json:"notes,omitempty"`
}

// Flashcard is a term and its definition.
type Flashcard struct {
	ID         int    `json:"id"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
}
