package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// UserID uniquely identifies a learner.
type UserID string

// Identifiers for curriculum and progress rows. All are positive integers.
type (
	LevelID    int64
	LessonID   int64
	BranchID   int64
	QuestionID int64
	BadgeID    int64
	AttemptID  int64
)

// QuestionType enumerates supported quiz question kinds.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
)

// Level is an ordered tier of the curriculum. Levels unlock by Number.
type Level struct {
	ID     LevelID `json:"id"`
	Number int     `json:"number"`
	Title  string  `json:"title"`
}

// Lesson belongs to exactly one level and one branch.
// Questions are ordered by Position.
type Lesson struct {
	ID        LessonID   `json:"id"`
	LevelID   LevelID    `json:"level_id"`
	BranchID  BranchID   `json:"branch_id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions,omitempty"`
}

// Question is one graded item of a lesson quiz.
type Question struct {
	ID            QuestionID   `json:"id"`
	LessonID      LessonID     `json:"lesson_id"`
	Position      int          `json:"position"`
	Type          QuestionType `json:"type"`
	CorrectAnswer string       `json:"correct_answer"`
	Options       []string     `json:"options,omitempty"`
}

// UserProgress is the lesson-viewing record for a (user, lesson) pair.
type UserProgress struct {
	UserID    UserID    `json:"user_id"`
	LessonID  LessonID  `json:"lesson_id"`
	Completed bool      `json:"completed"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuizAttempt is one append-only quiz submission.
type QuizAttempt struct {
	ID             AttemptID `json:"id"`
	UserID         UserID    `json:"user_id"`
	LessonID       LessonID  `json:"lesson_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	Passed         bool      `json:"passed"`
	AttemptDate    time.Time `json:"attempt_date"`
}

// UserLevelStatus tracks unlock state and completion for a (user, level) pair.
type UserLevelStatus struct {
	UserID               UserID     `json:"user_id"`
	LevelID              LevelID    `json:"level_id"`
	IsUnlocked           bool       `json:"is_unlocked"`
	CompletionPercentage float64    `json:"completion_percentage"`
	UnlockedAt           *time.Time `json:"unlocked_at,omitempty"`
}

// UserBadge records that a user earned a badge. At most one per (user, badge).
type UserBadge struct {
	UserID   UserID    `json:"user_id"`
	BadgeID  BadgeID   `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}

// UserStats is the aggregate snapshot badge criteria are evaluated against.
type UserStats struct {
	UserID           UserID               `json:"user_id"`
	LessonsCompleted int64                `json:"lessons_completed"`
	QuizzesPassed    int64                `json:"quizzes_passed"`
	PerfectScores    int64                `json:"perfect_scores"`
	LevelsUnlocked   int64                `json:"levels_unlocked"`
	Badges           map[BadgeID]struct{} `json:"badges"`
}

// HasBadge reports whether the stats snapshot already holds badge.
func (s UserStats) HasBadge(badge BadgeID) bool {
	_, ok := s.Badges[badge]
	return ok
}

// BadgeIDs returns held badges in ascending order.
func (s UserStats) BadgeIDs() []BadgeID {
	out := make([]BadgeID, 0, len(s.Badges))
	for id := range s.Badges {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NormalizeUserID trims user identifiers and rejects empty or oversized ones.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidIdentifier)
	}
	if len(s) > 128 {
		return "", fmt.Errorf("%w: user id too long", ErrInvalidIdentifier)
	}
	return UserID(s), nil
}

// ParseID parses a caller-supplied identifier. Only plain base-10 digits
// forming a positive int64 are accepted; signs, whitespace and anything else
// yield ErrInvalidIdentifier.
func ParseID[T ~int64](kind, raw string) (T, error) {
	if raw == "" || len(raw) > 19 {
		return 0, fmt.Errorf("%w: %s id %q", ErrInvalidIdentifier, kind, raw)
	}
	var n int64
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %s id %q", ErrInvalidIdentifier, kind, raw)
		}
		d := int64(r - '0')
		if n > (1<<63-1-d)/10 {
			return 0, fmt.Errorf("%w: %s id %q", ErrInvalidIdentifier, kind, raw)
		}
		n = n*10 + d
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s id %q", ErrInvalidIdentifier, kind, raw)
	}
	return T(n), nil
}
