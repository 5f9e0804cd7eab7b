package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

func TestMemoryStoreProgress(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	a, err := s.RecordAttempt(ctx, core.QuizAttempt{UserID: "u", LessonID: 7, Score: 40, AttemptDate: now})
	if err != nil || a.ID == 0 {
		t.Fatalf("got %v %v", a, err)
	}
	done, _ := s.HasCompletedLesson(ctx, "u", 7)
	passed, _ := s.HasPassedQuiz(ctx, "u", 7)
	if done || passed {
		t.Fatalf("expected neither flag, got completed=%v passed=%v", done, passed)
	}

	if changed, err := s.MarkLessonCompleted(ctx, "u", 7, now); err != nil || !changed {
		t.Fatalf("first completion: changed=%v err=%v", changed, err)
	}
	if changed, _ := s.MarkLessonCompleted(ctx, "u", 7, now); changed {
		t.Fatal("repeat completion must report no change")
	}
	b, _ := s.RecordAttempt(ctx, core.QuizAttempt{UserID: "u", LessonID: 7, Score: 100, Passed: true, AttemptDate: now.Add(time.Minute)})
	done, _ = s.HasCompletedLesson(ctx, "u", 7)
	passed, _ = s.HasPassedQuiz(ctx, "u", 7)
	if !done || !passed {
		t.Fatal("recording an attempt must keep the completed flag")
	}

	history, _ := s.ListAttempts(ctx, "u", 7)
	if len(history) != 2 || history[0].ID != b.ID {
		t.Fatalf("want newest first, got %+v", history)
	}

	stats, _ := s.GetUserStats(ctx, "u")
	if stats.LessonsCompleted != 1 || stats.QuizzesPassed != 1 || stats.PerfectScores != 1 {
		t.Fatalf("stats %+v", stats)
	}
}

func TestMemoryStoreLevelStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.GetLevelStatus(ctx, "u", 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	_ = s.UpsertLevelCompletion(ctx, "u", 1, 50, t0)
	st, _ := s.GetLevelStatus(ctx, "u", 1)
	if !st.IsUnlocked || st.UnlockedAt == nil || !st.UnlockedAt.Equal(t0) || st.CompletionPercentage != 50 {
		t.Fatalf("bootstrap row %+v", st)
	}

	_ = s.UpsertLevelCompletion(ctx, "u", 1, 100, t0.Add(time.Hour))
	st, _ = s.GetLevelStatus(ctx, "u", 1)
	if !st.UnlockedAt.Equal(t0) || st.CompletionPercentage != 100 {
		t.Fatalf("existing row must keep unlock time, got %+v", st)
	}

	if changed, _ := s.UnlockLevels(ctx, "u", []core.LevelID{1, 2}, t0.Add(2*time.Hour)); !changed {
		t.Fatal("unlocking a new level must report a change")
	}
	if changed, _ := s.UnlockLevels(ctx, "u", []core.LevelID{1, 2}, t0.Add(3*time.Hour)); changed {
		t.Fatal("re-unlocking must report no change")
	}
	all, _ := s.ListLevelStatuses(ctx, "u")
	if len(all) != 2 || !all[1].IsUnlocked || all[0].CompletionPercentage != 100 {
		t.Fatalf("statuses %+v", all)
	}
}

func TestMemoryStoreBadgeUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateUserBadge(ctx, core.UserBadge{UserID: "u", BadgeID: 9, EarnedAt: time.Now()})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else if !errors.Is(err, core.ErrBenignDuplicate) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("want exactly one award, got %d", created)
	}
	held, _ := s.HasBadge(ctx, "u", 9)
	list, _ := s.ListUserBadges(ctx, "u")
	if !held || len(list) != 1 {
		t.Fatal("badge missing")
	}
}

func TestMemoryStoreCurriculum(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.PutLevel(ctx, core.Level{ID: 1, Number: 1})
	_ = s.PutLevel(ctx, core.Level{ID: 2, Number: 2})
	if err := s.PutLevel(ctx, core.Level{ID: 3, Number: 2}); err == nil {
		t.Fatal("duplicate level number accepted")
	}
	if err := s.PutLesson(ctx, core.Lesson{ID: 5, LevelID: 99}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("lesson with unknown level: %v", err)
	}
	_ = s.PutLesson(ctx, core.Lesson{ID: 5, LevelID: 1, Questions: []core.Question{
		{ID: 2, Position: 1, CorrectAnswer: "B"},
		{ID: 1, Position: 0, CorrectAnswer: "A"},
	}})
	l, err := s.GetLesson(ctx, 5)
	if err != nil || l.Questions[0].ID != 1 {
		t.Fatalf("questions not ordered: %+v %v", l, err)
	}
	levels, _ := s.ListLevelsUpTo(ctx, 2)
	if len(levels) != 2 || levels[0].Number != 1 {
		t.Fatalf("levels %+v", levels)
	}
	if _, err := s.GetLevelByNumber(ctx, 3); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}

	_ = s.PutBadge(ctx, core.Badge{ID: 1, Criteria: core.Manual{}})
	_ = s.PutBadge(ctx, core.Badge{ID: 2, Criteria: core.QuizzesPassed{Value: 1}})
	if err := s.PutBadge(ctx, core.Badge{ID: 3}); !errors.Is(err, core.ErrInvalidCriteria) {
		t.Fatalf("badge without criteria: %v", err)
	}
	auto, _ := s.ListAutoBadges(ctx)
	if len(auto) != 1 || auto[0].ID != 2 {
		t.Fatalf("auto badges %+v", auto)
	}
}
