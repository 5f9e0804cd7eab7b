package engine

import (
	"context"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

// LessonFullyComplete reports whether the learner has both viewed the lesson
// and passed its quiz at least once. Neither condition alone is enough.
func LessonFullyComplete(ctx context.Context, r ProgressReader, user core.UserID, lesson core.LessonID) (bool, error) {
	completed, err := r.HasCompletedLesson(ctx, user, lesson)
	if err != nil || !completed {
		return false, err
	}
	return r.HasPassedQuiz(ctx, user, lesson)
}
