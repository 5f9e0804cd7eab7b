package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samir777-eng/ebad-academy-sub001/core"
	"github.com/samir777-eng/ebad-academy-sub001/engine"
)

// Store is a concurrent in-memory Storage implementation.
// Curriculum sits behind one RWMutex; each learner's progress has its own lock.
type Store struct {
	contentMu sync.RWMutex
	levels    map[core.LevelID]core.Level
	lessons   map[core.LessonID]core.Lesson
	badges    map[core.BadgeID]core.Badge

	users     sync.Map // map[core.UserID]*userRecord
	attemptID atomic.Int64
}

type userRecord struct {
	mu       sync.Mutex
	progress map[core.LessonID]core.UserProgress
	attempts []core.QuizAttempt
	statuses map[core.LevelID]core.UserLevelStatus
	badges   map[core.BadgeID]core.UserBadge
}

func New() *Store {
	return &Store{
		levels:  map[core.LevelID]core.Level{},
		lessons: map[core.LessonID]core.Lesson{},
		badges:  map[core.BadgeID]core.Badge{},
	}
}

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	rec := &userRecord{
		progress: map[core.LessonID]core.UserProgress{},
		statuses: map[core.LevelID]core.UserLevelStatus{},
		badges:   map[core.BadgeID]core.UserBadge{},
	}
	actual, _ := s.users.LoadOrStore(user, rec)
	return actual.(*userRecord)
}

// Curriculum

func (s *Store) PutLevel(_ context.Context, level core.Level) error {
	s.contentMu.Lock()
	defer s.contentMu.Unlock()
	for id, l := range s.levels {
		if id != level.ID && l.Number == level.Number {
			return fmt.Errorf("level number %d already used by level %d", level.Number, id)
		}
	}
	s.levels[level.ID] = level
	return nil
}

func (s *Store) PutLesson(_ context.Context, lesson core.Lesson) error {
	s.contentMu.Lock()
	defer s.contentMu.Unlock()
	if _, ok := s.levels[lesson.LevelID]; !ok {
		return fmt.Errorf("lesson %d: level %d: %w", lesson.ID, lesson.LevelID, core.ErrNotFound)
	}
	qs := make([]core.Question, len(lesson.Questions))
	copy(qs, lesson.Questions)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Position < qs[j].Position })
	lesson.Questions = qs
	s.lessons[lesson.ID] = lesson
	return nil
}

func (s *Store) PutBadge(_ context.Context, badge core.Badge) error {
	if badge.Criteria == nil {
		return fmt.Errorf("badge %d: %w: missing criteria", badge.ID, core.ErrInvalidCriteria)
	}
	s.contentMu.Lock()
	defer s.contentMu.Unlock()
	s.badges[badge.ID] = badge
	return nil
}

func (s *Store) GetLesson(_ context.Context, id core.LessonID) (core.Lesson, error) {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()
	l, ok := s.lessons[id]
	if !ok {
		return core.Lesson{}, fmt.Errorf("lesson %d: %w", id, core.ErrNotFound)
	}
	qs := make([]core.Question, len(l.Questions))
	copy(qs, l.Questions)
	l.Questions = qs
	return l, nil
}

func (s *Store) ListLessonsByLevel(_ context.Context, level core.LevelID) ([]core.Lesson, error) {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()
	out := []core.Lesson{}
	for _, l := range s.lessons {
		if l.LevelID == level {
			l.Questions = nil
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetLevel(_ context.Context, id core.LevelID) (core.Level, error) {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()
	l, ok := s.levels[id]
	if !ok {
		return core.Level{}, fmt.Errorf("level %d: %w", id, core.ErrNotFound)
	}
	return l, nil
}

func (s *Store) GetLevelByNumber(_ context.Context, number int) (core.Level, error) {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()
	for _, l := range s.levels {
		if l.Number == number {
			return l, nil
		}
	}
	return core.Level{}, fmt.Errorf("level number %d: %w", number, core.ErrNotFound)
}

func (s *Store) ListLevelsUpTo(_ context.Context, number int) ([]core.Level, error) {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()
	out := []core.Level{}
	for _, l := range s.levels {
		if l.Number <= number {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) GetBadge(_ context.Context, id core.BadgeID) (core.Badge, error) {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()
	b, ok := s.badges[id]
	if !ok {
		return core.Badge{}, fmt.Errorf("badge %d: %w", id, core.ErrNotFound)
	}
	return b, nil
}

func (s *Store) ListAutoBadges(_ context.Context) ([]core.Badge, error) {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()
	out := []core.Badge{}
	for _, b := range s.badges {
		if b.IsAutomatic() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Progress

func (s *Store) HasCompletedLesson(_ context.Context, user core.UserID, lesson core.LessonID) (bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.progress[lesson].Completed, nil
}

func (s *Store) HasPassedQuiz(_ context.Context, user core.UserID, lesson core.LessonID) (bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, a := range rec.attempts {
		if a.LessonID == lesson && a.Passed {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RecordAttempt(_ context.Context, attempt core.QuizAttempt) (core.QuizAttempt, error) {
	rec := s.getOrCreate(attempt.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	attempt.ID = core.AttemptID(s.attemptID.Add(1))
	rec.attempts = append(rec.attempts, attempt)
	p, ok := rec.progress[attempt.LessonID]
	if !ok {
		p = core.UserProgress{UserID: attempt.UserID, LessonID: attempt.LessonID}
	}
	p.Score = attempt.Score
	p.UpdatedAt = attempt.AttemptDate
	rec.progress[attempt.LessonID] = p
	return attempt, nil
}

func (s *Store) ListAttempts(_ context.Context, user core.UserID, lesson core.LessonID) ([]core.QuizAttempt, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := []core.QuizAttempt{}
	for i := len(rec.attempts) - 1; i >= 0; i-- {
		if rec.attempts[i].LessonID == lesson {
			out = append(out, rec.attempts[i])
		}
	}
	return out, nil
}

func (s *Store) MarkLessonCompleted(_ context.Context, user core.UserID, lesson core.LessonID, at time.Time) (bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	p, ok := rec.progress[lesson]
	if !ok {
		p = core.UserProgress{UserID: user, LessonID: lesson}
	}
	changed := !p.Completed
	p.Completed = true
	p.UpdatedAt = at
	rec.progress[lesson] = p
	return changed, nil
}

// ResetLessonProgress clears the completed flag. Used to model content resets.
func (s *Store) ResetLessonProgress(_ context.Context, user core.UserID, lesson core.LessonID) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	delete(rec.progress, lesson)
}

// Levels

func (s *Store) GetLevelStatus(_ context.Context, user core.UserID, level core.LevelID) (core.UserLevelStatus, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	st, ok := rec.statuses[level]
	if !ok {
		return core.UserLevelStatus{}, fmt.Errorf("level status %s/%d: %w", user, level, core.ErrNotFound)
	}
	return st, nil
}

func (s *Store) ListLevelStatuses(_ context.Context, user core.UserID) ([]core.UserLevelStatus, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]core.UserLevelStatus, 0, len(rec.statuses))
	for _, st := range rec.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LevelID < out[j].LevelID })
	return out, nil
}

func (s *Store) UpsertLevelCompletion(_ context.Context, user core.UserID, level core.LevelID, pct float64, at time.Time) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	st, ok := rec.statuses[level]
	if !ok {
		unlockedAt := at
		st = core.UserLevelStatus{UserID: user, LevelID: level, IsUnlocked: true, UnlockedAt: &unlockedAt}
	}
	st.CompletionPercentage = pct
	rec.statuses[level] = st
	return nil
}

func (s *Store) UnlockLevels(_ context.Context, user core.UserID, levels []core.LevelID, at time.Time) (bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	changed := false
	for i, level := range levels {
		st, ok := rec.statuses[level]
		if !ok {
			st = core.UserLevelStatus{UserID: user, LevelID: level}
		}
		if i == len(levels)-1 {
			changed = !st.IsUnlocked
		}
		unlockedAt := at
		st.IsUnlocked = true
		st.UnlockedAt = &unlockedAt
		rec.statuses[level] = st
	}
	return changed, nil
}

// Badges

func (s *Store) GetUserStats(_ context.Context, user core.UserID) (core.UserStats, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	stats := core.UserStats{UserID: user, Badges: make(map[core.BadgeID]struct{}, len(rec.badges))}
	for _, p := range rec.progress {
		if p.Completed {
			stats.LessonsCompleted++
		}
	}
	for _, a := range rec.attempts {
		if a.Passed {
			stats.QuizzesPassed++
		}
		if a.Score == 100 {
			stats.PerfectScores++
		}
	}
	for _, st := range rec.statuses {
		if st.IsUnlocked {
			stats.LevelsUnlocked++
		}
	}
	for id := range rec.badges {
		stats.Badges[id] = struct{}{}
	}
	return stats, nil
}

func (s *Store) HasBadge(_ context.Context, user core.UserID, badge core.BadgeID) (bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	_, ok := rec.badges[badge]
	return ok, nil
}

func (s *Store) CreateUserBadge(_ context.Context, award core.UserBadge) error {
	rec := s.getOrCreate(award.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, ok := rec.badges[award.BadgeID]; ok {
		return fmt.Errorf("user badge %s/%d: %w", award.UserID, award.BadgeID, core.ErrBenignDuplicate)
	}
	rec.badges[award.BadgeID] = award
	return nil
}

// ListUserBadges returns a learner's awards ordered by earn time.
func (s *Store) ListUserBadges(_ context.Context, user core.UserID) ([]core.UserBadge, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]core.UserBadge, 0, len(rec.badges))
	for _, b := range rec.badges {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].BadgeID < out[j].BadgeID
		}
		return out[i].EarnedAt.Before(out[j].EarnedAt)
	})
	return out, nil
}

var (
	_ engine.Storage          = (*Store)(nil)
	_ engine.CurriculumWriter = (*Store)(nil)
)
