package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

// QuizResult mirrors the quiz submission response.
type QuizResult struct {
	Score                int            `json:"score"`
	Passed               bool           `json:"passed"`
	CorrectAnswers       int            `json:"correct_answers"`
	TotalQuestions       int            `json:"total_questions"`
	AttemptID            int64          `json:"attempt_id"`
	LevelUnlocked        bool           `json:"level_unlocked"`
	NextLevelID          *int64         `json:"next_level_id,omitempty"`
	CompletionPercentage float64        `json:"completion_percentage"`
	NewBadges            []core.BadgeID `json:"new_badges"`
}

// LessonCompletion mirrors the lesson completion response.
type LessonCompletion struct {
	LessonID             int64          `json:"lesson_id"`
	FullyComplete        bool           `json:"fully_complete"`
	LevelUnlocked        bool           `json:"level_unlocked"`
	NextLevelID          *int64         `json:"next_level_id,omitempty"`
	CompletionPercentage float64        `json:"completion_percentage"`
	NewBadges            []core.BadgeID `json:"new_badges"`
}

// LevelProgress mirrors the level check response.
type LevelProgress struct {
	LevelUnlocked        bool    `json:"level_unlocked"`
	NextLevelID          *int64  `json:"next_level_id,omitempty"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// Stats mirrors the learner stats response.
type Stats struct {
	UserID           string         `json:"user_id"`
	LessonsCompleted int64          `json:"lessons_completed"`
	QuizzesPassed    int64          `json:"quizzes_passed"`
	PerfectScores    int64          `json:"perfect_scores"`
	LevelsUnlocked   int64          `json:"levels_unlocked"`
	Badges           []core.BadgeID `json:"badges"`
}

// Standing is one leaderboard row.
type Standing struct {
	UserID         string `json:"user_id"`
	Badges         int64  `json:"badges"`
	LevelsUnlocked int64  `json:"levels_unlocked"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is the server's error envelope plus the HTTP status.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "http_error"
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
