package models

import "github.com/google/uuid"

// Lecture event types pushed to subscribers.
const (
	EventLectureSnapshot  = "lecture_snapshot"
	EventLectureProgress  = "lecture_progress"
	EventLectureCompleted = "lecture_completed"
	EventLectureFailed    = "lecture_failed"
)

// LectureEvent is a progress notification for one lecture.
type LectureEvent struct {
	Type      string    `json:"type"`
	LectureID uuid.UUID `json:"lecture_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	Lecture   *Lecture  `json:"lecture,omitempty"`
}
