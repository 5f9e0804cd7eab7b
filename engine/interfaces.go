package engine

import (
	"context"
	"time"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

// ContentReader exposes the curriculum. Content is immutable while the
// engine evaluates a request. Missing rows yield core.ErrNotFound.
type ContentReader interface {
	// GetLesson returns the lesson with its questions ordered by position.
	GetLesson(ctx context.Context, id core.LessonID) (core.Lesson, error)
	// ListLessonsByLevel returns the lessons of a level without questions.
	ListLessonsByLevel(ctx context.Context, level core.LevelID) ([]core.Lesson, error)
	GetLevel(ctx context.Context, id core.LevelID) (core.Level, error)
	GetLevelByNumber(ctx context.Context, number int) (core.Level, error)
	// ListLevelsUpTo returns every level with Number <= number, ascending.
	ListLevelsUpTo(ctx context.Context, number int) ([]core.Level, error)
	GetBadge(ctx context.Context, id core.BadgeID) (core.Badge, error)
	// ListAutoBadges returns all badges whose criteria are not manual.
	ListAutoBadges(ctx context.Context) ([]core.Badge, error)
}

// ProgressReader answers the two questions the completion evaluator asks.
type ProgressReader interface {
	HasCompletedLesson(ctx context.Context, user core.UserID, lesson core.LessonID) (bool, error)
	HasPassedQuiz(ctx context.Context, user core.UserID, lesson core.LessonID) (bool, error)
}

// Storage abstracts persistence for progression state.
// Writes keyed by (user, level), (user, lesson) and (user, badge) must be
// atomic upserts or inserts guarded by a unique key.
type Storage interface {
	ContentReader
	ProgressReader

	// RecordAttempt appends attempt and upserts the UserProgress score for the
	// same (user, lesson) in one transaction. The completed flag is left as is.
	RecordAttempt(ctx context.Context, attempt core.QuizAttempt) (core.QuizAttempt, error)
	// ListAttempts returns attempt history for a lesson, newest first.
	ListAttempts(ctx context.Context, user core.UserID, lesson core.LessonID) ([]core.QuizAttempt, error)
	// MarkLessonCompleted upserts UserProgress with completed=true and reports
	// whether the row changed from absent or incomplete.
	MarkLessonCompleted(ctx context.Context, user core.UserID, lesson core.LessonID, at time.Time) (bool, error)

	GetLevelStatus(ctx context.Context, user core.UserID, level core.LevelID) (core.UserLevelStatus, error)
	ListLevelStatuses(ctx context.Context, user core.UserID) ([]core.UserLevelStatus, error)
	// UpsertLevelCompletion sets the completion percentage. Existing rows keep
	// their unlock state; a new row is created unlocked at at.
	UpsertLevelCompletion(ctx context.Context, user core.UserID, level core.LevelID, pct float64, at time.Time) error
	// UnlockLevels marks every listed level unlocked at at, atomically. It
	// reports whether the last listed level went from absent or locked to
	// unlocked; of several concurrent callers at most one sees true.
	UnlockLevels(ctx context.Context, user core.UserID, levels []core.LevelID, at time.Time) (bool, error)

	GetUserStats(ctx context.Context, user core.UserID) (core.UserStats, error)
	// ListUserBadges returns a learner's awards ordered by earn time.
	ListUserBadges(ctx context.Context, user core.UserID) ([]core.UserBadge, error)
	HasBadge(ctx context.Context, user core.UserID, badge core.BadgeID) (bool, error)
	// CreateUserBadge inserts the award. A unique-key collision returns core.ErrBenignDuplicate.
	CreateUserBadge(ctx context.Context, award core.UserBadge) error
}

// CurriculumWriter seeds content. Admin authoring lives outside the engine;
// fixtures and tests use this.
type CurriculumWriter interface {
	PutLevel(ctx context.Context, level core.Level) error
	PutLesson(ctx context.Context, lesson core.Lesson) error
	PutBadge(ctx context.Context, badge core.Badge) error
}

// Notifier delivers level-unlock and badge-award events to learners.
// Delivery is best effort; errors are logged by the caller and never propagated.
type Notifier interface {
	Notify(ctx context.Context, ev core.Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev core.Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev core.Event) error { return f(ctx, ev) }

// Clock supplies timestamps for attempts and unlocks.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns wall-clock UTC time.
func SystemClock() Clock { return systemClock{} }
