package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

// LevelProgress is the outcome of evaluating one level for a learner.
type LevelProgress struct {
	LevelUnlocked        bool          `json:"level_unlocked"`
	NextLevelID          *core.LevelID `json:"next_level_id,omitempty"`
	CompletionPercentage float64       `json:"completion_percentage"`

	newBadges []core.BadgeID
}

// CheckAndUnlockNextLevel recomputes the learner's completion of a level and,
// when every lesson is fully complete, unlocks the next level.
func (s *Service) CheckAndUnlockNextLevel(ctx context.Context, userID, levelID string) (res LevelProgress, err error) {
	user, err := core.NormalizeUserID(core.UserID(userID))
	if err != nil {
		return LevelProgress{}, err
	}
	lvl, err := core.ParseID[core.LevelID]("level", levelID)
	if err != nil {
		return LevelProgress{}, err
	}
	ctx, span := s.startSpan(ctx, "engine.CheckAndUnlockNextLevel", user)
	span.SetAttributes(attribute.Int64("level.id", int64(lvl)))
	defer func() { endSpan(span, err) }()
	return s.checkLevel(ctx, user, lvl)
}

func (s *Service) checkLevel(ctx context.Context, user core.UserID, level core.LevelID) (LevelProgress, error) {
	lessons, err := s.storage.ListLessonsByLevel(ctx, level)
	if err != nil {
		return LevelProgress{}, fmt.Errorf("list lessons of level %d: %w", level, err)
	}
	// empty levels never get a status row
	if len(lessons) == 0 {
		return LevelProgress{}, nil
	}

	complete := 0
	for _, l := range lessons {
		ok, err := LessonFullyComplete(ctx, s.storage, user, l.ID)
		if err != nil {
			return LevelProgress{}, fmt.Errorf("evaluate lesson %d: %w", l.ID, err)
		}
		if ok {
			complete++
		}
	}
	pct := core.CompletionPercentage(complete, len(lessons))
	now := s.clock.Now()
	if err := s.storage.UpsertLevelCompletion(ctx, user, level, pct, now); err != nil {
		return LevelProgress{}, fmt.Errorf("upsert level completion: %w", err)
	}
	s.publish(ctx, core.NewLevelProgressed(user, level, pct, now))

	if complete < len(lessons) {
		return LevelProgress{CompletionPercentage: pct}, nil
	}
	return s.unlockCascade(ctx, user, level)
}

// unlockCascade unlocks the level after a fully completed one. Every level
// up to and including the next is rewritten as unlocked so that a gap left by
// an earlier missed unlock heals itself.
func (s *Service) unlockCascade(ctx context.Context, user core.UserID, completed core.LevelID) (LevelProgress, error) {
	current, err := s.storage.GetLevel(ctx, completed)
	if err != nil {
		return LevelProgress{}, fmt.Errorf("load level %d: %w", completed, err)
	}
	next, err := s.storage.GetLevelByNumber(ctx, current.Number+1)
	if errors.Is(err, core.ErrNotFound) {
		// final level finished
		return LevelProgress{CompletionPercentage: 100}, nil
	}
	if err != nil {
		return LevelProgress{}, fmt.Errorf("load level number %d: %w", current.Number+1, err)
	}
	nextID := next.ID

	status, err := s.storage.GetLevelStatus(ctx, user, next.ID)
	switch {
	case err == nil && status.IsUnlocked:
		return LevelProgress{NextLevelID: &nextID, CompletionPercentage: 100}, nil
	case err != nil && !errors.Is(err, core.ErrNotFound):
		return LevelProgress{}, fmt.Errorf("load level status: %w", err)
	}

	levels, err := s.storage.ListLevelsUpTo(ctx, next.Number)
	if err != nil {
		return LevelProgress{}, fmt.Errorf("list levels up to %d: %w", next.Number, err)
	}
	ids := make([]core.LevelID, len(levels))
	for i, l := range levels {
		ids[i] = l.ID
	}
	now := s.clock.Now()
	changed, err := s.storage.UnlockLevels(ctx, user, ids, now)
	if err != nil {
		return LevelProgress{}, fmt.Errorf("unlock levels: %w", err)
	}
	if !changed {
		// a concurrent request unlocked it between the check and the write
		return LevelProgress{NextLevelID: &nextID, CompletionPercentage: 100}, nil
	}
	s.logger.Info("level unlocked", "user_id", string(user), "level_id", int64(next.ID), "cascade", len(ids))

	res := LevelProgress{LevelUnlocked: true, NextLevelID: &nextID, CompletionPercentage: 100}
	awarded, err := s.awardBadges(ctx, user)
	if err != nil {
		s.logger.Error("badge evaluation after unlock failed", "user_id", string(user), "error", err)
	}
	res.newBadges = awarded
	s.publish(ctx, core.NewLevelUnlocked(user, completed, next.ID, now))
	return res, nil
}
