package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventQuizGraded      EventType = "quiz_graded"
	EventLessonCompleted EventType = "lesson_completed"
	EventLevelProgressed EventType = "level_progressed"
	EventLevelUnlocked   EventType = "level_unlocked"
	EventBadgeAwarded    EventType = "badge_awarded"
)

// AllEventTypes lists every event the engine publishes.
var AllEventTypes = []EventType{
	EventQuizGraded,
	EventLessonCompleted,
	EventLevelProgressed,
	EventLevelUnlocked,
	EventBadgeAwarded,
}

// Event represents an immutable domain event.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Time       time.Time      `json:"time"`
	UserID     UserID         `json:"user_id"`
	LessonID   LessonID       `json:"lesson_id,omitempty"`
	LevelID    LevelID        `json:"level_id,omitempty"`
	BadgeID    BadgeID        `json:"badge_id,omitempty"`
	AttemptID  AttemptID      `json:"attempt_id,omitempty"`
	Score      int            `json:"score,omitempty"`
	Passed     bool           `json:"passed,omitempty"`
	Percentage float64        `json:"percentage,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func newEvent(typ EventType, user UserID, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: at.UTC(), UserID: user}
}

func NewQuizGraded(user UserID, attempt QuizAttempt) Event {
	ev := newEvent(EventQuizGraded, user, attempt.AttemptDate)
	ev.LessonID = attempt.LessonID
	ev.AttemptID = attempt.ID
	ev.Score = attempt.Score
	ev.Passed = attempt.Passed
	return ev
}

func NewLessonCompleted(user UserID, lesson LessonID, at time.Time) Event {
	ev := newEvent(EventLessonCompleted, user, at)
	ev.LessonID = lesson
	return ev
}

func NewLevelProgressed(user UserID, level LevelID, pct float64, at time.Time) Event {
	ev := newEvent(EventLevelProgressed, user, at)
	ev.LevelID = level
	ev.Percentage = pct
	return ev
}

// NewLevelUnlocked reports that level became reachable after from was finished.
func NewLevelUnlocked(user UserID, from, level LevelID, at time.Time) Event {
	ev := newEvent(EventLevelUnlocked, user, at)
	ev.LevelID = level
	ev.Metadata = map[string]any{"completed_level_id": int64(from)}
	return ev
}

func NewBadgeAwarded(user UserID, badge BadgeID, at time.Time) Event {
	ev := newEvent(EventBadgeAwarded, user, at)
	ev.BadgeID = badge
	return ev
}
